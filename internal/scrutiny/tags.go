package scrutiny

import "strings"

// Canonical base tag names. Every lookup goes through ExpandTag so that all
// historical spellings of a base name are accepted.
const (
	TagNamespace    = "scrutiny_mo"
	TagVersion      = "scrutiny_v01"
	TagProduct      = "scrutiny_product"
	TagMetadata     = "scrutiny_metadata"
	TagBinding      = "scrutiny_binding"
	TagUpdate       = "scrutiny_update"
	TagContestation = "scrutiny_contestation"
	TagConfirmation = "scrutiny_confirmation"
)

const (
	versionSuffix       = "_v01"
	legacyVersionSuffix = "-v0"
)

// ExpandTag returns every literal spelling that must be treated as equal to
// base: plain, hash-prefixed, explicitly versioned and the legacy hyphenated
// forms (un-versioned and with the legacy version marker).
func ExpandTag(base string) []string {
	hyphenated := strings.ReplaceAll(base, "_", "-")
	return []string{
		base,
		"#" + base,
		base + versionSuffix,
		"#" + base + versionSuffix,
		hyphenated,
		"#" + hyphenated,
		hyphenated + legacyVersionSuffix,
		"#" + hyphenated + legacyVersionSuffix,
	}
}

// TopicFilter returns every topic value a relay subscription must match to
// receive all SCRUTINY posts, including deprecated namespaces and posts that
// carry only a legacy type tag.
func TopicFilter() []string {
	bases := []string{TagNamespace, LegacyNamespaceOverlay, LegacyNamespaceCerts}
	bases = append(bases, typeBases...)

	var out []string
	for _, b := range bases {
		out = append(out, ExpandTag(b)...)
	}
	return out
}

// hyphenatedVariants returns only the legacy hyphenated spellings of base.
func hyphenatedVariants(base string) []string {
	return ExpandTag(base)[4:]
}

// topicSet is the set of topic tag values carried by a post.
type topicSet map[string]struct{}

func (s topicSet) hasAny(variants []string) bool {
	for _, v := range variants {
		if _, ok := s[v]; ok {
			return true
		}
	}
	return false
}

// matches reports whether any spelling of base is present.
func (s topicSet) matches(base string) bool {
	return s.hasAny(ExpandTag(base))
}

// Marker is the role of a reference tag.
type Marker int

const (
	MarkerNone Marker = iota
	MarkerRoot
	MarkerReply
	MarkerMention
	MarkerContains
	MarkerDependsOn
	MarkerSupersedes
	MarkerSuccessor
	MarkerOther
)

var markerNames = map[string]Marker{
	"root":       MarkerRoot,
	"reply":      MarkerReply,
	"mention":    MarkerMention,
	"contains":   MarkerContains,
	"depends_on": MarkerDependsOn,
	"supersedes": MarkerSupersedes,
	"successor":  MarkerSuccessor,
}

func parseMarker(s string) Marker {
	if s == "" {
		return MarkerNone
	}
	if m, ok := markerNames[s]; ok {
		return m
	}
	return MarkerOther
}

func (m Marker) String() string {
	switch m {
	case MarkerNone:
		return ""
	case MarkerRoot:
		return "root"
	case MarkerReply:
		return "reply"
	case MarkerMention:
		return "mention"
	case MarkerContains:
		return "contains"
	case MarkerDependsOn:
		return "depends_on"
	case MarkerSupersedes:
		return "supersedes"
	case MarkerSuccessor:
		return "successor"
	case MarkerOther:
		return "other"
	}
	return "other"
}

// Relation returns the product relationship a marker denotes, if any.
func (m Marker) Relation() (RelationKind, bool) {
	switch m {
	case MarkerContains:
		return RelationContains, true
	case MarkerDependsOn:
		return RelationDependsOn, true
	case MarkerSupersedes:
		return RelationSupersedes, true
	case MarkerSuccessor:
		return RelationSuccessor, true
	case MarkerNone, MarkerRoot, MarkerReply, MarkerMention, MarkerOther:
		return 0, false
	}
	return 0, false
}

// Tag is one parsed tag entry. The concrete type is one of TopicTag,
// ReferenceTag, LabelTag or OtherTag.
type Tag interface {
	isTag()
}

// TopicTag is a ["t", value] hashtag.
type TopicTag struct {
	Value string
}

// ReferenceTag is an ["e", id, relay, marker] reference to another post.
type ReferenceTag struct {
	ID     string
	Relay  string
	Marker Marker
}

// LabelTag is an ["l", value, namespace] label. Namespace is kept as written;
// use NormalizeLabel before keying on it.
type LabelTag struct {
	Value     string
	Namespace string
}

// OtherTag is any tag the engine does not interpret (d, url, x, p, ...).
type OtherTag struct {
	Name   string
	Values []string
}

func (TopicTag) isTag()     {}
func (ReferenceTag) isTag() {}
func (LabelTag) isTag()     {}
func (OtherTag) isTag()     {}

// ParseTags converts positional tag arrays into typed tags in a single pass.
// Empty entries are dropped; short entries degrade to OtherTag.
func ParseTags(raw [][]string) []Tag {
	tags := make([]Tag, 0, len(raw))
	for _, entry := range raw {
		if len(entry) == 0 {
			continue
		}
		tags = append(tags, parseTag(entry))
	}
	return tags
}

func parseTag(entry []string) Tag {
	name, rest := entry[0], entry[1:]
	switch name {
	case "t":
		if len(rest) >= 1 {
			return TopicTag{Value: rest[0]}
		}
	case "e":
		if len(rest) >= 1 && rest[0] != "" {
			ref := ReferenceTag{ID: rest[0]}
			if len(rest) >= 2 {
				ref.Relay = rest[1]
			}
			if len(rest) >= 3 {
				ref.Marker = parseMarker(rest[2])
			}
			return ref
		}
	case "l":
		if lbl, ok := parseLabel(rest); ok {
			return lbl
		}
	}
	return OtherTag{Name: name, Values: append([]string(nil), rest...)}
}

// publisherTypes are the value types the original tooling writes as the last
// element of a publisher-layout label.
var publisherTypes = map[string]bool{
	"text": true, "id": true, "url": true, "hash": true, "date": true,
	"semver": true, "algorithm": true, "mode": true, "version": true, "host": true,
}

// parseLabel accepts the ["l", value, namespace] layout and the publisher
// layout ["l", name, value, type]. The publisher layout is recognized when
// name is a known flat label, or a plain snake_case name followed by a known
// value type.
func parseLabel(rest []string) (LabelTag, bool) {
	if len(rest) >= 3 && !isKnownLabel(rest[1]) &&
		(isKnownLabel(rest[0]) || (isPlainName(rest[0]) && publisherTypes[rest[2]])) {
		return LabelTag{Value: rest[1], Namespace: rest[0]}, true
	}
	if len(rest) >= 2 {
		return LabelTag{Value: rest[0], Namespace: rest[1]}, true
	}
	return LabelTag{}, false
}

// isPlainName reports whether s is a lowercase snake_case identifier.
func isPlainName(s string) bool {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '_' {
			return false
		}
	}
	return true
}

func topicsOf(tags []Tag) topicSet {
	set := make(topicSet)
	for _, t := range tags {
		if topic, ok := t.(TopicTag); ok {
			set[topic.Value] = struct{}{}
		}
	}
	return set
}

// references returns all reference tags carrying marker, in tag order.
func references(tags []Tag, marker Marker) []ReferenceTag {
	var refs []ReferenceTag
	for _, t := range tags {
		if ref, ok := t.(ReferenceTag); ok && ref.Marker == marker {
			refs = append(refs, ref)
		}
	}
	return refs
}

// firstReference returns the id of the first reference tag carrying marker.
func firstReference(tags []Tag, marker Marker) (string, bool) {
	for _, t := range tags {
		if ref, ok := t.(ReferenceTag); ok && ref.Marker == marker {
			return ref.ID, true
		}
	}
	return "", false
}

// identifier returns the value of the first "d" tag.
func identifier(tags []Tag) string {
	for _, t := range tags {
		if o, ok := t.(OtherTag); ok && o.Name == "d" && len(o.Values) > 0 {
			return o.Values[0]
		}
	}
	return ""
}
