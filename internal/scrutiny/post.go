// Package scrutiny turns a snapshot of tagged social posts into the SCRUTINY
// product knowledge graph: typed entities, the links between them, and the
// relationship graph handed to renderers.
//
// Every function in this package is a pure function of its inputs. Callers
// rebuild results whenever their post snapshot changes.
package scrutiny

// RawPost is a post as observed on a relay. It is immutable and identified by
// ID; the same post may arrive from several relays.
type RawPost struct {
	ID        string     `json:"id"`
	Author    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Content   string     `json:"content"`
	Tags      [][]string `json:"tags"`
}

// ClassifiedPost is a RawPost with its derived kind and parsed tags.
type ClassifiedPost struct {
	RawPost
	Kind Kind  `json:"kind"`
	Tags []Tag `json:"-"`
}

// ClassifyPost parses the post's tags and derives its kind.
func ClassifyPost(p RawPost) ClassifiedPost {
	tags := ParseTags(p.Tags)
	return ClassifiedPost{
		RawPost: p,
		Kind:    classifyTags(tags),
		Tags:    tags,
	}
}

// Root returns the id of the post this post replies to.
func (p ClassifiedPost) Root() (string, bool) {
	return firstReference(p.Tags, MarkerRoot)
}

// Legacy reports the post's tag generation.
func (p ClassifiedPost) Legacy() LegacyStatus {
	return legacyTags(p.Tags)
}

// Labels returns the post's labels keyed by normalized name.
func (p ClassifiedPost) Labels() map[string][]string {
	return Labels(p.Tags)
}

// Identifier returns the post's "d" tag value, if any.
func (p ClassifiedPost) Identifier() string {
	return identifier(p.Tags)
}

// Mentions returns the ids of all mention-marked references in tag order.
func (p ClassifiedPost) Mentions() []string {
	refs := references(p.Tags, MarkerMention)
	ids := make([]string, 0, len(refs))
	for _, r := range refs {
		ids = append(ids, r.ID)
	}
	return ids
}

// Evidence returns the first mention of a confirmation or contestation, which
// points at the supporting (or alternative) metadata post.
func (p ClassifiedPost) Evidence() (string, bool) {
	if !p.Kind.IsReply() {
		return "", false
	}
	return firstReference(p.Tags, MarkerMention)
}

// Dedupe collapses repeated observations of the same post id. The first
// observation wins and input order is otherwise preserved.
func Dedupe(posts []RawPost) []RawPost {
	seen := make(map[string]struct{}, len(posts))
	out := make([]RawPost, 0, len(posts))
	for _, p := range posts {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}
