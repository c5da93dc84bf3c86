package scrutiny

// RelationKind is a typed product-to-product edge.
type RelationKind int

const (
	RelationContains RelationKind = iota
	RelationDependsOn
	RelationSupersedes
	RelationSuccessor
)

// relationKinds lists the kinds in traversal order.
var relationKinds = []RelationKind{
	RelationContains,
	RelationDependsOn,
	RelationSupersedes,
	RelationSuccessor,
}

func (k RelationKind) String() string {
	switch k {
	case RelationContains:
		return "contains"
	case RelationDependsOn:
		return "depends_on"
	case RelationSupersedes:
		return "supersedes"
	case RelationSuccessor:
		return "successor"
	}
	return "unknown"
}

// MarshalText encodes the relation by name.
func (k RelationKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ProductRelations are the outgoing edges of one product. Contains and
// DependsOn are lists; Supersedes and Successor hold at most one id.
type ProductRelations struct {
	Contains   []string `json:"contains,omitempty"`
	DependsOn  []string `json:"depends_on,omitempty"`
	Supersedes string   `json:"supersedes,omitempty"`
	Successor  string   `json:"successor,omitempty"`
}

// Targets returns the ids reached through kind.
func (r ProductRelations) Targets(kind RelationKind) []string {
	switch kind {
	case RelationContains:
		return r.Contains
	case RelationDependsOn:
		return r.DependsOn
	case RelationSupersedes:
		if r.Supersedes != "" {
			return []string{r.Supersedes}
		}
	case RelationSuccessor:
		if r.Successor != "" {
			return []string{r.Successor}
		}
	}
	return nil
}

func (r *ProductRelations) add(kind RelationKind, id string) {
	if id == "" {
		return
	}
	switch kind {
	case RelationContains:
		r.Contains = appendUnique(r.Contains, id)
	case RelationDependsOn:
		r.DependsOn = appendUnique(r.DependsOn, id)
	case RelationSupersedes:
		if r.Supersedes == "" {
			r.Supersedes = id
		}
	case RelationSuccessor:
		if r.Successor == "" {
			r.Successor = id
		}
	}
}

// ExtractRelations reads a product's edges from its marked references and,
// as a secondary source, its normalized labels. Label values never override
// a single-valued relation already set by a reference tag.
func ExtractRelations(p ClassifiedPost) ProductRelations {
	var rel ProductRelations
	for _, t := range p.Tags {
		ref, ok := t.(ReferenceTag)
		if !ok {
			continue
		}
		if kind, ok := ref.Marker.Relation(); ok {
			rel.add(kind, ref.ID)
		}
	}

	labels := p.Labels()
	for _, kind := range relationKinds {
		for _, id := range labels[kind.String()] {
			rel.add(kind, id)
		}
	}
	return rel
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
