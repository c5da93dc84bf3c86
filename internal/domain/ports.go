package domain

import (
	"context"
	"time"

	"github.com/blackmichael/scrutiny-graph/internal/scrutiny"
)

// PostRepository defines persistence operations for raw posts.
type PostRepository interface {
	// SavePost inserts a post unless one with the same id already exists.
	// Returns true if the row was new.
	SavePost(ctx context.Context, post *StoredPost) (bool, error)

	// GetPost retrieves a post by id. Returns ErrNotFound if absent.
	GetPost(ctx context.Context, id string) (*StoredPost, error)

	// ListPosts returns every stored post ordered by created_at, then id.
	ListPosts(ctx context.Context) ([]scrutiny.RawPost, error)

	// CountPosts returns the number of stored posts.
	CountPosts(ctx context.Context) (int64, error)
}

// CursorRepository defines persistence operations for relay cursors.
type CursorRepository interface {
	// GetCursor retrieves the last-processed cursor for the given service
	// name. Returns 0 if no cursor has been saved.
	GetCursor(ctx context.Context, service string) (int64, error)

	// UpdateCursor persists the cursor so we can resume on restart.
	UpdateCursor(ctx context.Context, service string, cursor int64) error
}

// Recorder receives service-level measurements.
type Recorder interface {
	// RecordIngest counts one ingested post of the given kind.
	RecordIngest(kind scrutiny.Kind, inserted bool)

	// RecordSnapshot reports the collection sizes of a freshly built snapshot
	// and how long the build took.
	RecordSnapshot(counts scrutiny.Counts, took time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordIngest(scrutiny.Kind, bool)              {}
func (nopRecorder) RecordSnapshot(scrutiny.Counts, time.Duration) {}
