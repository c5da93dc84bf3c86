package scrutiny

import (
	"strconv"
	"strings"
)

// NodeKind is the entity type of a graph node.
type NodeKind string

const (
	NodeBinding  NodeKind = "binding"
	NodeProduct  NodeKind = "product"
	NodeMetadata NodeKind = "metadata"
)

// EdgeKind is the type of a graph edge.
type EdgeKind string

const (
	EdgeBindsProduct  EdgeKind = "binds_product"
	EdgeBindsMetadata EdgeKind = "binds_metadata"
	EdgeContains      EdgeKind = "contains"
	EdgeDependsOn     EdgeKind = "depends_on"
	EdgeSupersedes    EdgeKind = "supersedes"
	EdgeSuccessor     EdgeKind = "successor"
)

func edgeKindOf(k RelationKind) EdgeKind {
	switch k {
	case RelationContains:
		return EdgeContains
	case RelationDependsOn:
		return EdgeDependsOn
	case RelationSupersedes:
		return EdgeSupersedes
	case RelationSuccessor:
		return EdgeSuccessor
	}
	return EdgeContains
}

// GraphNode is one renderable entity.
type GraphNode struct {
	ID     string   `json:"id"`
	Kind   NodeKind `json:"kind"`
	Label  string   `json:"label"`
	Depth  int      `json:"depth"`
	Direct bool     `json:"direct"`
	// Missing marks referenced ids that are not in the snapshot.
	Missing bool `json:"missing,omitempty"`
	Legacy  bool `json:"legacy,omitempty"`
}

// GraphEdge is a typed, directed edge between two nodes.
type GraphEdge struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Kind EdgeKind `json:"kind"`
}

// Graph is the node/edge structure handed to renderers.
type Graph struct {
	BindingID string      `json:"binding_id"`
	Nodes     []GraphNode `json:"nodes"`
	Edges     []GraphEdge `json:"edges"`
	Truncated bool        `json:"truncated"`
}

const maxLabelLen = 80

// BindingGraph assembles the graph around one binding: its metadata, its
// directly bound products and every product reachable from them within the
// engine's depth bound.
func (e *Engine) BindingGraph(s *Snapshot, bindingID string) (*Graph, bool) {
	binding, ok := s.Collections.Bindings[bindingID]
	if !ok {
		return nil, false
	}

	g := &Graph{BindingID: bindingID}
	g.Nodes = append(g.Nodes, s.node(binding.ID, NodeBinding, 0, true))

	for _, id := range s.Index.BindingToMetadata[bindingID] {
		g.Nodes = append(g.Nodes, s.node(id, NodeMetadata, 0, true))
		g.Edges = append(g.Edges, GraphEdge{From: bindingID, To: id, Kind: EdgeBindsMetadata})
	}

	direct := s.Index.BindingToProducts[bindingID]
	set := CollectRelationships(direct, s.Collections.Products, e.maxDepth)
	if set.Truncated {
		g.Truncated = true
		e.observer.Observe(Diagnostic{Code: DiagTraversalTruncated, PostID: bindingID, Detail: "max depth " + strconv.Itoa(e.maxDepth)})
	}

	reached := make(map[string]struct{}, len(set.Nodes))
	for _, n := range set.Nodes {
		reached[n.PostID] = struct{}{}
		g.Nodes = append(g.Nodes, s.node(n.PostID, NodeProduct, n.Depth, n.Direct))
	}
	for _, id := range direct {
		g.Edges = append(g.Edges, GraphEdge{From: bindingID, To: id, Kind: EdgeBindsProduct})
	}
	for _, n := range set.Nodes {
		p, ok := s.Collections.Products[n.PostID]
		if !ok {
			continue
		}
		rel := ExtractRelations(p)
		for _, kind := range relationKinds {
			for _, target := range rel.Targets(kind) {
				if _, ok := reached[target]; ok {
					g.Edges = append(g.Edges, GraphEdge{From: n.PostID, To: target, Kind: edgeKindOf(kind)})
				}
			}
		}
	}
	return g, true
}

func (s *Snapshot) node(id string, kind NodeKind, depth int, direct bool) GraphNode {
	n := GraphNode{ID: id, Kind: kind, Depth: depth, Direct: direct}
	p, ok := s.Collections.Lookup(id)
	if !ok {
		n.Missing = true
		n.Label = shortID(id)
		return n
	}
	n.Legacy = p.Legacy().Legacy
	if shown, ok := s.Display(id, false); ok {
		p = ClassifyPost(shown)
	}
	n.Label = label(p)
	return n
}

// label prefers the product name label, then the d identifier, then the
// first non-empty content line.
func label(p ClassifiedPost) string {
	if names := p.Labels()["product_name"]; len(names) > 0 && names[0] != "" {
		return Truncate(names[0], maxLabelLen)
	}
	if d := p.Identifier(); d != "" {
		return Truncate(d, maxLabelLen)
	}
	for _, line := range strings.Split(p.Content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return Truncate(line, maxLabelLen)
		}
	}
	return shortID(p.ID)
}

func shortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12]
}

// Truncate returns the first n runes of s, appending "..." if truncated.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
