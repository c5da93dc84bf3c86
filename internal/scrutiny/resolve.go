package scrutiny

import (
	"regexp"
	"sort"
	"strings"
)

// RelationshipIndex holds every cross reference derived from a snapshot.
// Forward indexes keep unresolved ids for traceability; reverse indexes only
// contain edges whose target exists in the categorized collections.
type RelationshipIndex struct {
	BindingToProducts  map[string][]string
	BindingToMetadata  map[string][]string
	ProductToBindings  map[string][]string
	MetadataToBindings map[string][]string

	// ContestationToAlternative maps a contestation id to the metadata id it
	// proposes instead of the contested post.
	ContestationToAlternative map[string]string

	Contains     map[string][]string
	DependsOn    map[string][]string
	ContainedIn  map[string][]string
	DependedOnBy map[string][]string
	Supersedes   map[string]string
	Successor    map[string]string
}

func newRelationshipIndex() *RelationshipIndex {
	return &RelationshipIndex{
		BindingToProducts:         make(map[string][]string),
		BindingToMetadata:         make(map[string][]string),
		ProductToBindings:         make(map[string][]string),
		MetadataToBindings:        make(map[string][]string),
		ContestationToAlternative: make(map[string]string),
		Contains:                  make(map[string][]string),
		DependsOn:                 make(map[string][]string),
		ContainedIn:               make(map[string][]string),
		DependedOnBy:              make(map[string][]string),
		Supersedes:                make(map[string]string),
		Successor:                 make(map[string]string),
	}
}

// hintPattern matches binding content lines such as
// "Product: nostr:note1..." or "Metadata: <hex>".
var hintPattern = regexp.MustCompile(`^\s*(Product|Metadata)\s*:\s*(\S+)`)

// Resolve builds the relationship index for categorized collections.
func (e *Engine) Resolve(c *EntityCollections) *RelationshipIndex {
	idx := newRelationshipIndex()

	for _, bindingID := range sortedIDs(c.Bindings) {
		e.resolveBinding(idx, c, c.Bindings[bindingID])
	}

	for _, root := range sortedReplyRoots(c.ContestationsByRoot) {
		for _, p := range c.ContestationsByRoot[root] {
			if alt, ok := p.Evidence(); ok {
				idx.ContestationToAlternative[p.ID] = alt
			}
		}
	}

	for _, productID := range sortedIDs(c.Products) {
		rel := ExtractRelations(c.Products[productID])
		if len(rel.Contains) > 0 {
			idx.Contains[productID] = rel.Contains
		}
		if len(rel.DependsOn) > 0 {
			idx.DependsOn[productID] = rel.DependsOn
		}
		if rel.Supersedes != "" {
			idx.Supersedes[productID] = rel.Supersedes
		}
		if rel.Successor != "" {
			idx.Successor[productID] = rel.Successor
		}
		for _, target := range rel.Contains {
			if _, ok := c.Products[target]; ok {
				idx.ContainedIn[target] = appendUnique(idx.ContainedIn[target], productID)
			}
		}
		for _, target := range rel.DependsOn {
			if _, ok := c.Products[target]; ok {
				idx.DependedOnBy[target] = appendUnique(idx.DependedOnBy[target], productID)
			}
		}
	}
	return idx
}

func (e *Engine) resolveBinding(idx *RelationshipIndex, c *EntityCollections, binding ClassifiedPost) {
	var hints map[string]Kind
	products := []string{}
	metadata := []string{}

	for _, id := range binding.Mentions() {
		var kind Kind
		switch {
		case has(c.Products, id):
			kind = KindProduct
		case has(c.Metadata, id):
			kind = KindMetadata
		default:
			if hints == nil {
				hints = e.contentHints(binding)
			}
			hinted, ok := hints[id]
			if ok {
				kind = hinted
				e.observer.Observe(Diagnostic{Code: DiagMentionFromHint, PostID: binding.ID, Detail: id})
			} else {
				kind = KindMetadata
				e.observer.Observe(Diagnostic{Code: DiagMentionDefaulted, PostID: binding.ID, Detail: id})
			}
		}

		if kind == KindProduct {
			products = appendUnique(products, id)
			if has(c.Products, id) {
				idx.ProductToBindings[id] = appendUnique(idx.ProductToBindings[id], binding.ID)
			}
		} else {
			metadata = appendUnique(metadata, id)
			if has(c.Metadata, id) {
				idx.MetadataToBindings[id] = appendUnique(idx.MetadataToBindings[id], binding.ID)
			}
		}
	}

	idx.BindingToProducts[binding.ID] = products
	idx.BindingToMetadata[binding.ID] = metadata
}

// contentHints scans a binding's body for "Product:"/"Metadata:" lines and
// decodes the reference on each. The first hint for an id wins.
func (e *Engine) contentHints(binding ClassifiedPost) map[string]Kind {
	hints := make(map[string]Kind)
	for _, line := range strings.Split(binding.Content, "\n") {
		m := hintPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		id, err := e.decode(m[2])
		if err != nil {
			e.observer.Observe(Diagnostic{Code: DiagUndecodableHint, PostID: binding.ID, Detail: err.Error()})
			continue
		}
		if _, seen := hints[id]; seen {
			continue
		}
		if m[1] == "Product" {
			hints[id] = KindProduct
		} else {
			hints[id] = KindMetadata
		}
	}
	return hints
}

func has(m map[string]ClassifiedPost, id string) bool {
	_, ok := m[id]
	return ok
}

func sortedReplyRoots(m map[string][]ClassifiedPost) []string {
	roots := make([]string, 0, len(m))
	for root := range m {
		roots = append(roots, root)
	}
	sort.Strings(roots)
	return roots
}
