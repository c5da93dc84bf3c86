package scrutiny

import (
	"github.com/blackmichael/scrutiny-graph/internal/nip19"
)

// DefaultMaxDepth bounds relationship traversal from a binding's products.
const DefaultMaxDepth = 5

// DecodeFunc turns a shareable reference (note1..., nevent1..., nostr: URI,
// hex) into a raw post id.
type DecodeFunc func(ref string) (string, error)

// Engine builds snapshots. It holds configuration only; every call works on
// its own inputs, so one Engine may be shared between goroutines.
type Engine struct {
	observer Observer
	decode   DecodeFunc
	maxDepth int
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver routes diagnostics to obs.
func WithObserver(obs Observer) Option {
	return func(e *Engine) {
		if obs != nil {
			e.observer = obs
		}
	}
}

// WithDecoder replaces the reference decoder used for binding content hints.
func WithDecoder(decode DecodeFunc) Option {
	return func(e *Engine) {
		if decode != nil {
			e.decode = decode
		}
	}
}

// WithMaxDepth sets the traversal bound. Non-positive values keep the default.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) {
		if depth > 0 {
			e.maxDepth = depth
		}
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		observer: nopObserver{},
		decode:   nip19.EventID,
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxDepth returns the configured traversal bound.
func (e *Engine) MaxDepth() int {
	return e.maxDepth
}

// Snapshot is the full derived state for one post collection.
type Snapshot struct {
	Collections *EntityCollections
	Index       *RelationshipIndex
}

// Build categorizes posts and resolves their relationships.
func (e *Engine) Build(posts []RawPost) *Snapshot {
	collections := e.Categorize(posts)
	return &Snapshot{
		Collections: collections,
		Index:       e.Resolve(collections),
	}
}

// Lookup returns any categorized post by id, searching the singular
// collections first and then the reply collections.
func (s *Snapshot) Lookup(id string) (ClassifiedPost, bool) {
	return s.Collections.Lookup(id)
}
