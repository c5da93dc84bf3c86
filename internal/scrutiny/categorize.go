package scrutiny

import "sort"

// EntityCollections partitions a snapshot by kind. A post id appears in at
// most one of Products, Metadata and Bindings; each reply appears once, under
// the id of the post it targets.
type EntityCollections struct {
	Products            map[string]ClassifiedPost
	Metadata            map[string]ClassifiedPost
	Bindings            map[string]ClassifiedPost
	UpdatesByRoot       map[string][]ClassifiedPost
	ConfirmationsByRoot map[string][]ClassifiedPost
	ContestationsByRoot map[string][]ClassifiedPost

	// Unknown counts posts that matched no kind.
	Unknown int
	// Orphans counts replies dropped for lack of a root reference.
	Orphans int
}

func newEntityCollections() *EntityCollections {
	return &EntityCollections{
		Products:            make(map[string]ClassifiedPost),
		Metadata:            make(map[string]ClassifiedPost),
		Bindings:            make(map[string]ClassifiedPost),
		UpdatesByRoot:       make(map[string][]ClassifiedPost),
		ConfirmationsByRoot: make(map[string][]ClassifiedPost),
		ContestationsByRoot: make(map[string][]ClassifiedPost),
	}
}

// Categorize classifies every post and routes it into its collection.
// Duplicate observations of an id are collapsed before routing.
func (e *Engine) Categorize(posts []RawPost) *EntityCollections {
	unique := Dedupe(posts)
	if dupes := len(posts) - len(unique); dupes > 0 {
		e.observer.Observe(Diagnostic{Code: DiagDuplicatePosts, Count: dupes})
	}

	c := newEntityCollections()
	for _, raw := range unique {
		p := ClassifyPost(raw)
		switch p.Kind {
		case KindProduct:
			c.Products[p.ID] = p
		case KindMetadata:
			c.Metadata[p.ID] = p
		case KindBinding:
			c.Bindings[p.ID] = p
		case KindUpdate, KindConfirmation, KindContestation:
			root, ok := p.Root()
			if !ok {
				c.Orphans++
				e.observer.Observe(Diagnostic{
					Code:   DiagReplyWithoutRoot,
					PostID: p.ID,
					Detail: p.Kind.String(),
				})
				continue
			}
			replies := c.replies(p.Kind)
			replies[root] = append(replies[root], p)
		case KindUnknown:
			c.Unknown++
		}
	}

	if c.Unknown > 0 {
		e.observer.Observe(Diagnostic{Code: DiagUnknownPosts, Count: c.Unknown})
	}
	return c
}

func (c *EntityCollections) replies(kind Kind) map[string][]ClassifiedPost {
	switch kind {
	case KindUpdate:
		return c.UpdatesByRoot
	case KindConfirmation:
		return c.ConfirmationsByRoot
	case KindContestation:
		return c.ContestationsByRoot
	case KindUnknown, KindProduct, KindMetadata, KindBinding:
		return nil
	}
	return nil
}

// Lookup finds a categorized post by id.
func (c *EntityCollections) Lookup(id string) (ClassifiedPost, bool) {
	for _, m := range []map[string]ClassifiedPost{c.Products, c.Metadata, c.Bindings} {
		if p, ok := m[id]; ok {
			return p, true
		}
	}
	for _, byRoot := range []map[string][]ClassifiedPost{c.UpdatesByRoot, c.ConfirmationsByRoot, c.ContestationsByRoot} {
		for _, replies := range byRoot {
			for _, p := range replies {
				if p.ID == id {
					return p, true
				}
			}
		}
	}
	return ClassifiedPost{}, false
}

// Counts summarizes the collection sizes.
type Counts struct {
	Products      int `json:"products"`
	Metadata      int `json:"metadata"`
	Bindings      int `json:"bindings"`
	Updates       int `json:"updates"`
	Confirmations int `json:"confirmations"`
	Contestations int `json:"contestations"`
	Unknown       int `json:"unknown"`
	Orphans       int `json:"orphans"`
}

// Counts returns the size of each collection.
func (c *EntityCollections) Counts() Counts {
	return Counts{
		Products:      len(c.Products),
		Metadata:      len(c.Metadata),
		Bindings:      len(c.Bindings),
		Updates:       countReplies(c.UpdatesByRoot),
		Confirmations: countReplies(c.ConfirmationsByRoot),
		Contestations: countReplies(c.ContestationsByRoot),
		Unknown:       c.Unknown,
		Orphans:       c.Orphans,
	}
}

func countReplies(m map[string][]ClassifiedPost) int {
	n := 0
	for _, replies := range m {
		n += len(replies)
	}
	return n
}

func sortedIDs(m map[string]ClassifiedPost) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
