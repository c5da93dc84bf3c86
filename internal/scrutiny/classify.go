package scrutiny

// Kind is the canonical type of a post.
type Kind int

const (
	KindUnknown Kind = iota
	KindProduct
	KindMetadata
	KindBinding
	KindUpdate
	KindConfirmation
	KindContestation
)

func (k Kind) String() string {
	switch k {
	case KindUnknown:
		return "unknown"
	case KindProduct:
		return "product"
	case KindMetadata:
		return "metadata"
	case KindBinding:
		return "binding"
	case KindUpdate:
		return "update"
	case KindConfirmation:
		return "confirmation"
	case KindContestation:
		return "contestation"
	}
	return "unknown"
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// IsReply reports whether posts of this kind target an earlier post.
func (k Kind) IsReply() bool {
	switch k {
	case KindUpdate, KindConfirmation, KindContestation:
		return true
	case KindUnknown, KindProduct, KindMetadata, KindBinding:
		return false
	}
	return false
}

// Reply types carry their target's base type tag as well, so they are tested
// first.
var (
	replyOrder = []struct {
		base string
		kind Kind
	}{
		{TagUpdate, KindUpdate},
		{TagContestation, KindContestation},
		{TagConfirmation, KindConfirmation},
	}
	baseOrder = []struct {
		base string
		kind Kind
	}{
		{TagProduct, KindProduct},
		{TagMetadata, KindMetadata},
		{TagBinding, KindBinding},
	}
)

// Classify returns the canonical kind of a post from its raw tags.
func Classify(raw [][]string) Kind {
	return classifyTags(ParseTags(raw))
}

func classifyTags(tags []Tag) Kind {
	topics := topicsOf(tags)
	for _, r := range replyOrder {
		if topics.matches(r.base) {
			return r.kind
		}
	}
	for _, b := range baseOrder {
		if topics.matches(b.base) {
			return b.kind
		}
	}
	return KindUnknown
}

// LegacyStatus describes whether a post uses a deprecated tagging generation.
type LegacyStatus struct {
	Legacy bool   `json:"legacy"`
	Reason string `json:"reason,omitempty"`
}

// Deprecated namespace tags from earlier protocol drafts.
const (
	LegacyNamespaceOverlay = "scrutiny_overlay"
	LegacyNamespaceCerts   = "seccerts_mo"
)

// ReasonHyphenated is reported for posts that only carry hyphenated type tags.
const ReasonHyphenated = "hyphenated legacy"

var typeBases = []string{
	TagProduct, TagMetadata, TagBinding,
	TagUpdate, TagContestation, TagConfirmation,
}

// Legacy flags posts from deprecated tag generations. It is informational and
// never feeds back into classification.
func Legacy(raw [][]string) LegacyStatus {
	return legacyTags(ParseTags(raw))
}

func legacyTags(tags []Tag) LegacyStatus {
	topics := topicsOf(tags)
	if topics.matches(TagNamespace) {
		return LegacyStatus{}
	}
	for _, ns := range []string{LegacyNamespaceOverlay, LegacyNamespaceCerts} {
		if topics.matches(ns) {
			return LegacyStatus{Legacy: true, Reason: "deprecated namespace " + ns}
		}
	}
	for _, base := range typeBases {
		if topics.hasAny(hyphenatedVariants(base)) {
			return LegacyStatus{Legacy: true, Reason: ReasonHyphenated}
		}
	}
	return LegacyStatus{}
}
