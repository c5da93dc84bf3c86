package domain

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackmichael/scrutiny-graph/internal/scrutiny"
)

type memoryRepo struct {
	mu      sync.Mutex
	posts   map[string]*StoredPost
	cursors map[string]int64
	lists   int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{posts: map[string]*StoredPost{}, cursors: map[string]int64{}}
}

func (r *memoryRepo) SavePost(_ context.Context, p *StoredPost) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[p.ID]; ok {
		return false, nil
	}
	cp := *p
	r.posts[p.ID] = &cp
	return true, nil
}

func (r *memoryRepo) GetPost(_ context.Context, id string) (*StoredPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (r *memoryRepo) ListPosts(context.Context) ([]scrutiny.RawPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists++
	out := make([]scrutiny.RawPost, 0, len(r.posts))
	for _, p := range r.posts {
		out = append(out, p.RawPost)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepo) CountPosts(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.posts)), nil
}

func (r *memoryRepo) GetCursor(_ context.Context, service string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursors[service], nil
}

func (r *memoryRepo) UpdateCursor(_ context.Context, service string, cursor int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cursors[service] = cursor
	return nil
}

type countingRecorder struct {
	mu        sync.Mutex
	ingested  map[string]int
	snapshots int
}

func (r *countingRecorder) RecordIngest(kind scrutiny.Kind, inserted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ingested == nil {
		r.ingested = map[string]int{}
	}
	r.ingested[fmt.Sprintf("%s/%t", kind, inserted)]++
}

func (r *countingRecorder) RecordSnapshot(scrutiny.Counts, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots++
}

var author = fmt.Sprintf("%064x", 0xa11ce)

func id(n int) string { return fmt.Sprintf("%064x", n) }

func incoming(n int, createdAt int64, tags ...[]string) *IncomingPost {
	return &IncomingPost{
		Post: scrutiny.RawPost{
			ID:        id(n),
			Author:    author,
			CreatedAt: createdAt,
			Content:   fmt.Sprintf("post %d", n),
			Tags:      tags,
		},
		Relay: "wss://relay.example",
	}
}

func topics(bases ...string) [][]string {
	out := [][]string{{"t", scrutiny.TagNamespace}}
	for _, b := range bases {
		out = append(out, []string{"t", b})
	}
	return out
}

func ref(target, marker string) []string { return []string{"e", target, "", marker} }

func with(tags [][]string, extra ...[]string) [][]string { return append(tags, extra...) }

func newTestService(t *testing.T) (*GraphService, *memoryRepo, *countingRecorder) {
	t.Helper()
	repo := newMemoryRepo()
	rec := &countingRecorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := NewGraphService(scrutiny.New(), repo, repo, rec, logger)
	require.NoError(t, err)
	return svc, repo, rec
}

// seed stores product 1 (with an update), product 2 contained in 1,
// metadata 3, binding 4 linking 1 and 3, and an unknown post 5.
func seed(t *testing.T, svc *GraphService) {
	t.Helper()
	posts := []*IncomingPost{
		incoming(1, 100, with(topics(scrutiny.TagProduct), ref(id(2), "contains"), []string{"l", "JCOP 4", "product_name"})...),
		incoming(2, 100, topics(scrutiny.TagProduct)...),
		incoming(3, 100, topics(scrutiny.TagMetadata)...),
		incoming(4, 100, with(topics(scrutiny.TagBinding), ref(id(1), "mention"), ref(id(3), "mention"))...),
		incoming(5, 100, []string{"t", "nostr"}),
		incoming(6, 200, with(topics(scrutiny.TagUpdate, scrutiny.TagProduct), ref(id(1), "root"), ref(id(1), "reply"))...),
	}
	for _, p := range posts {
		inserted, err := svc.IngestPost(context.Background(), p)
		require.NoError(t, err)
		require.True(t, inserted)
	}
}

func TestNewGraphServiceRequiresDependencies(t *testing.T) {
	_, err := NewGraphService(nil, newMemoryRepo(), newMemoryRepo(), nil, slog.Default())
	assert.Error(t, err)
	_, err = NewGraphService(scrutiny.New(), nil, newMemoryRepo(), nil, slog.Default())
	assert.Error(t, err)
}

func TestIngestPostRejectsMalformedIDs(t *testing.T) {
	svc, repo, _ := newTestService(t)

	bad := incoming(1, 100)
	bad.Post.ID = "NOT-HEX"
	_, err := svc.IngestPost(context.Background(), bad)
	assert.ErrorIs(t, err, ErrInvalidPost)

	bad = incoming(1, 100)
	bad.Post.Author = id(1)[:10]
	_, err = svc.IngestPost(context.Background(), bad)
	assert.ErrorIs(t, err, ErrInvalidPost)

	upper := incoming(1, 100)
	upper.Post.ID = "ABCDEF" + id(1)[6:]
	_, err = svc.IngestPost(context.Background(), upper)
	assert.ErrorIs(t, err, ErrInvalidPost)

	assert.Empty(t, repo.posts)
}

func TestIngestPostIgnoresDuplicates(t *testing.T) {
	svc, _, rec := newTestService(t)
	ctx := context.Background()
	p := incoming(1, 100, topics(scrutiny.TagProduct)...)

	inserted, err := svc.IngestPost(ctx, p)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = svc.IngestPost(ctx, p)
	require.NoError(t, err)
	assert.False(t, inserted)

	assert.Equal(t, map[string]int{"product/true": 1, "product/false": 1}, rec.ingested)
}

func TestSnapshotRebuildsOnlyWhenStale(t *testing.T) {
	svc, repo, rec := newTestService(t)
	ctx := context.Background()
	seed(t, svc)

	first, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	second, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, repo.lists)

	// A duplicate does not invalidate.
	_, err = svc.IngestPost(ctx, incoming(2, 100, topics(scrutiny.TagProduct)...))
	require.NoError(t, err)
	third, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Same(t, first, third)

	_, err = svc.IngestPost(ctx, incoming(7, 100, topics(scrutiny.TagMetadata)...))
	require.NoError(t, err)
	fourth, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, fourth)
	assert.Len(t, fourth.Collections.Metadata, 2)
	assert.Equal(t, 2, rec.snapshots)

	rebuilt, err := svc.Rebuild(ctx)
	require.NoError(t, err)
	assert.NotSame(t, fourth, rebuilt)
}

func TestSummary(t *testing.T) {
	svc, _, _ := newTestService(t)
	seed(t, svc)
	_, err := svc.IngestPost(context.Background(), incoming(8, 100, []string{"t", "scrutiny-product-v0"}))
	require.NoError(t, err)

	sum, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 7, sum.StoredPosts)
	assert.Equal(t, scrutiny.Counts{Products: 3, Metadata: 1, Bindings: 1, Updates: 1, Unknown: 1}, sum.Counts)
	assert.Equal(t, 1, sum.Legacy)
	assert.False(t, sum.BuiltAt.IsZero())
}

func TestPostDetails(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	seed(t, svc)

	product, err := svc.PostDetails(ctx, id(1))
	require.NoError(t, err)
	assert.Equal(t, scrutiny.KindProduct, product.Kind)
	assert.Equal(t, 1, product.Updates)
	assert.Equal(t, []string{id(4)}, product.Bindings)
	require.NotNil(t, product.Relations)
	assert.Equal(t, []string{id(2)}, product.Relations.Contains)
	assert.Equal(t, map[string][]string{"product_name": {"JCOP 4"}}, product.Labels)
	assert.Equal(t, "wss://relay.example", product.Relay)

	contained, err := svc.PostDetails(ctx, id(2))
	require.NoError(t, err)
	assert.Equal(t, []string{id(1)}, contained.ContainedIn)

	binding, err := svc.PostDetails(ctx, id(4))
	require.NoError(t, err)
	assert.Equal(t, []string{id(1)}, binding.Products)
	assert.Equal(t, []string{id(3)}, binding.Metadata)

	update, err := svc.PostDetails(ctx, id(6))
	require.NoError(t, err)
	assert.Equal(t, scrutiny.KindUpdate, update.Kind)
	assert.Equal(t, id(1), update.Root)

	unknown, err := svc.PostDetails(ctx, id(5))
	require.NoError(t, err)
	assert.Equal(t, scrutiny.KindUnknown, unknown.Kind)

	_, err = svc.PostDetails(ctx, id(99))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDisplayPost(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	seed(t, svc)

	shown, err := svc.DisplayPost(ctx, id(1), false)
	require.NoError(t, err)
	assert.True(t, shown.Replaced)
	assert.Equal(t, id(6), shown.Post.ID)

	shown, err = svc.DisplayPost(ctx, id(1), true)
	require.NoError(t, err)
	assert.False(t, shown.Replaced)
	assert.Equal(t, id(1), shown.Post.ID)

	_, err = svc.DisplayPost(ctx, id(99), false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBindingGraph(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	seed(t, svc)

	g, err := svc.BindingGraph(ctx, id(4))
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 4)

	_, err = svc.BindingGraph(ctx, id(1))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCursorPassthrough(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.UpdateCursor(ctx, "relay:a", 42))
	got, err := svc.GetCursor(ctx, "relay:a")
	require.NoError(t, err)
	assert.EqualValues(t, 42, got)
}

func TestStartRefreshJobBuildsUntilCancelled(t *testing.T) {
	svc, _, rec := newTestService(t)
	seed(t, svc)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		svc.StartRefreshJob(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return rec.snapshots >= 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresh job did not stop")
	}
}

func TestValidateRejectsNegativeTimestamp(t *testing.T) {
	p := incoming(1, -1)
	assert.ErrorIs(t, p.Validate(), ErrInvalidPost)
	assert.NoError(t, incoming(1, 0).Validate())
}

func TestNewPostValidatorRegistersHexID(t *testing.T) {
	v, err := newPostValidator()
	require.NoError(t, err)

	good := postShape{ID: fmt.Sprintf("%064x", 1), Author: fmt.Sprintf("%064x", 2)}
	assert.NoError(t, v.Struct(good))

	bad := good
	bad.Author = strings.ToUpper(fmt.Sprintf("%064x", 0xabc))
	assert.Error(t, v.Struct(bad))
}
