package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/blackmichael/scrutiny-graph/internal/scrutiny"
)

// GraphService is the core domain service. It persists incoming posts and
// serves views over the knowledge graph derived from everything stored.
//
// The derived snapshot is rebuilt lazily: ingesting a new post marks it
// stale and the next read rebuilds it from the store.
type GraphService struct {
	engine   *scrutiny.Engine
	repo     PostRepository
	cursors  CursorRepository
	recorder Recorder
	logger   *slog.Logger

	buildMu sync.Mutex // serializes rebuilds

	mu           sync.RWMutex
	version      uint64
	builtVersion uint64
	snapshot     *scrutiny.Snapshot
	builtAt      time.Time
}

// NewGraphService creates a GraphService. A nil recorder disables metrics.
func NewGraphService(engine *scrutiny.Engine, repo PostRepository, cursors CursorRepository, recorder Recorder, logger *slog.Logger) (*GraphService, error) {
	if engine == nil {
		return nil, fmt.Errorf("graph service: engine is required")
	}
	if repo == nil || cursors == nil {
		return nil, fmt.Errorf("graph service: repositories are required")
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &GraphService{
		engine:   engine,
		repo:     repo,
		cursors:  cursors,
		recorder: recorder,
		logger:   logger,
	}, nil
}

// IngestPost validates and persists an incoming post. Returns true if the
// post was new; repeated observations of the same id are ignored.
func (s *GraphService) IngestPost(ctx context.Context, incoming *IncomingPost) (bool, error) {
	if err := incoming.Validate(); err != nil {
		return false, err
	}

	post := &StoredPost{
		RawPost: incoming.Post,
		Relay:   incoming.Relay,
		SeenAt:  time.Now().UTC(),
	}
	inserted, err := s.repo.SavePost(ctx, post)
	if err != nil {
		return false, fmt.Errorf("save post: %w", err)
	}

	kind := scrutiny.Classify(post.Tags)
	s.recorder.RecordIngest(kind, inserted)

	if inserted {
		s.mu.Lock()
		s.version++
		s.mu.Unlock()
		s.logger.Debug("stored post", "id", post.ID, "kind", kind, "relay", post.Relay)
	}
	return inserted, nil
}

// Snapshot returns the current derived snapshot, rebuilding it if posts were
// ingested since the last build.
func (s *GraphService) Snapshot(ctx context.Context) (*scrutiny.Snapshot, error) {
	s.mu.RLock()
	snap, fresh := s.snapshot, s.snapshot != nil && s.builtVersion == s.version
	s.mu.RUnlock()
	if fresh {
		return snap, nil
	}
	return s.refresh(ctx, false)
}

// Rebuild unconditionally rebuilds the snapshot from the store.
func (s *GraphService) Rebuild(ctx context.Context) (*scrutiny.Snapshot, error) {
	return s.refresh(ctx, true)
}

func (s *GraphService) refresh(ctx context.Context, force bool) (*scrutiny.Snapshot, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	s.mu.RLock()
	version := s.version
	current, fresh := s.snapshot, s.snapshot != nil && s.builtVersion == s.version
	s.mu.RUnlock()
	if fresh && !force {
		return current, nil
	}

	start := time.Now()
	posts, err := s.repo.ListPosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	snap := s.engine.Build(posts)
	took := time.Since(start)

	s.mu.Lock()
	s.snapshot = snap
	s.builtVersion = version
	s.builtAt = time.Now().UTC()
	s.mu.Unlock()

	counts := snap.Collections.Counts()
	s.recorder.RecordSnapshot(counts, took)
	s.logger.Debug("rebuilt snapshot", "posts", len(posts), "took", took)
	return snap, nil
}

// Summary returns the collection sizes of the current snapshot.
func (s *GraphService) Summary(ctx context.Context) (*Summary, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	stored, err := s.repo.CountPosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count posts: %w", err)
	}

	legacy := 0
	eachPost(snap.Collections, func(p scrutiny.ClassifiedPost) {
		if p.Legacy().Legacy {
			legacy++
		}
	})

	s.mu.RLock()
	builtAt := s.builtAt
	s.mu.RUnlock()

	return &Summary{
		StoredPosts: stored,
		Counts:      snap.Collections.Counts(),
		Legacy:      legacy,
		BuiltAt:     builtAt,
	}, nil
}

// PostDetails describes the post with the given id. Posts that were stored
// but not categorized (unknown or orphaned) are still described from the
// store.
func (s *GraphService) PostDetails(ctx context.Context, id string) (*PostDetails, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	stored, err := s.repo.GetPost(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("post %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get post: %w", err)
	}

	post, categorized := snap.Lookup(id)
	if !categorized {
		post = scrutiny.ClassifyPost(stored.RawPost)
	}

	details := &PostDetails{
		ID:         post.ID,
		Kind:       post.Kind,
		Author:     post.Author,
		CreatedAt:  post.CreatedAt,
		Legacy:     post.Legacy(),
		Identifier: post.Identifier(),
		Labels:     post.Labels(),
		Relay:      stored.Relay,
		SeenAt:     stored.SeenAt,
	}
	if root, ok := post.Root(); ok && post.Kind.IsReply() {
		details.Root = root
	}
	if evidence, ok := post.Evidence(); ok {
		details.Evidence = evidence
	}
	if !categorized {
		return details, nil
	}

	c, idx := snap.Collections, snap.Index
	details.Updates = len(c.UpdatesByRoot[id])
	details.Confirmations = len(c.ConfirmationsByRoot[id])
	details.Contestations = len(c.ContestationsByRoot[id])

	switch post.Kind {
	case scrutiny.KindProduct:
		details.Bindings = idx.ProductToBindings[id]
		rel := scrutiny.ExtractRelations(post)
		details.Relations = &rel
		details.ContainedIn = idx.ContainedIn[id]
		details.DependedBy = idx.DependedOnBy[id]
	case scrutiny.KindMetadata:
		details.Bindings = idx.MetadataToBindings[id]
	case scrutiny.KindBinding:
		details.Products = idx.BindingToProducts[id]
		details.Metadata = idx.BindingToMetadata[id]
	}
	return details, nil
}

// DisplayPost returns the version of id to show: the latest valid update by
// the same author, or the original when forceOriginal is set.
func (s *GraphService) DisplayPost(ctx context.Context, id string, forceOriginal bool) (*DisplayedPost, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	shown, ok := snap.Display(id, forceOriginal)
	if !ok {
		return nil, fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	return &DisplayedPost{
		OriginalID: id,
		Replaced:   shown.ID != id,
		Post:       shown,
	}, nil
}

// BindingGraph assembles the relationship graph rooted at a binding.
func (s *GraphService) BindingGraph(ctx context.Context, bindingID string) (*scrutiny.Graph, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	g, ok := s.engine.BindingGraph(snap, bindingID)
	if !ok {
		return nil, fmt.Errorf("binding %s: %w", bindingID, ErrNotFound)
	}
	return g, nil
}

// GetCursor retrieves the last-processed relay cursor for the given service.
func (s *GraphService) GetCursor(ctx context.Context, service string) (int64, error) {
	return s.cursors.GetCursor(ctx, service)
}

// UpdateCursor persists the relay cursor for the given service.
func (s *GraphService) UpdateCursor(ctx context.Context, service string, cursor int64) error {
	return s.cursors.UpdateCursor(ctx, service, cursor)
}

// StartRefreshJob keeps the snapshot warm so reads rarely pay for a rebuild.
// It runs immediately on start and then repeats at the given interval. It
// blocks until ctx is cancelled.
func (s *GraphService) StartRefreshJob(ctx context.Context, interval time.Duration) {
	s.runRefresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runRefresh(ctx)
		}
	}
}

func (s *GraphService) runRefresh(ctx context.Context) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("snapshot refresh failed", "error", err)
		}
		return
	}
	counts := snap.Collections.Counts()
	s.logger.Info("snapshot ready",
		"products", counts.Products,
		"metadata", counts.Metadata,
		"bindings", counts.Bindings,
		"unknown", counts.Unknown,
		"orphans", counts.Orphans,
	)
}

func eachPost(c *scrutiny.EntityCollections, fn func(scrutiny.ClassifiedPost)) {
	for _, m := range []map[string]scrutiny.ClassifiedPost{c.Products, c.Metadata, c.Bindings} {
		for _, p := range m {
			fn(p)
		}
	}
	for _, m := range []map[string][]scrutiny.ClassifiedPost{c.UpdatesByRoot, c.ConfirmationsByRoot, c.ContestationsByRoot} {
		for _, replies := range m {
			for _, p := range replies {
				fn(p)
			}
		}
	}
}
