package scrutiny

// RelationshipNode is a product reached while walking relationship edges
// outward from a binding.
type RelationshipNode struct {
	PostID string `json:"post_id"`
	Depth  int    `json:"depth"`
	Direct bool   `json:"direct"`
}

// RelationshipSet is the result of a traversal. Truncated is set when some
// node at maxDepth still had unvisited neighbours.
type RelationshipSet struct {
	Nodes     []RelationshipNode
	Truncated bool
}

// CollectRelationships walks product relationships breadth first, one depth
// level at a time, starting from the directly bound products at depth 0.
// Each product is recorded once, at the level where it was first reached.
// Only targets present in products are followed and nothing beyond maxDepth
// is recorded, so cyclic or very deep data always terminates.
func CollectRelationships(direct []string, products map[string]ClassifiedPost, maxDepth int) RelationshipSet {
	var set RelationshipSet
	var beyond []string
	visited := make(map[string]struct{})
	frontier := direct

	for depth := 0; len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			if _, ok := visited[id]; ok {
				continue
			}
			visited[id] = struct{}{}
			set.Nodes = append(set.Nodes, RelationshipNode{
				PostID: id,
				Depth:  depth,
				Direct: depth == 0,
			})

			p, ok := products[id]
			if !ok {
				continue
			}
			rel := ExtractRelations(p)
			for _, kind := range relationKinds {
				for _, target := range rel.Targets(kind) {
					if _, ok := products[target]; !ok {
						continue
					}
					if _, ok := visited[target]; ok {
						continue
					}
					if depth >= maxDepth {
						beyond = append(beyond, target)
						continue
					}
					next = append(next, target)
				}
			}
		}
		frontier = next
	}

	for _, id := range beyond {
		if _, ok := visited[id]; !ok {
			set.Truncated = true
			break
		}
	}
	return set
}
