package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/blackmichael/scrutiny-graph/internal/domain"
	"github.com/blackmichael/scrutiny-graph/internal/scrutiny"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS posts (
	id         TEXT PRIMARY KEY,
	pubkey     TEXT    NOT NULL,
	created_at INTEGER NOT NULL,
	content    TEXT    NOT NULL,
	tags       TEXT    NOT NULL,
	relay      TEXT    NOT NULL DEFAULT '',
	seen_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS posts_created_at ON posts (created_at, id);

CREATE TABLE IF NOT EXISTS cursors (
	service      TEXT PRIMARY KEY,
	cursor_value INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL
);`

// Repository implements domain.PostRepository and domain.CursorRepository
// using SQLite.
type Repository struct {
	db *sql.DB
}

// NewRepository opens the SQLite database at path, creates the schema if
// needed, and returns a new Repository. Use ":memory:" for a throwaway
// database. The caller should call Close when the repository is no longer
// needed.
func NewRepository(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps an in-memory
	// database alive and shared.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// SavePost inserts a post unless its id is already stored.
func (r *Repository) SavePost(ctx context.Context, post *domain.StoredPost) (bool, error) {
	tags := post.Tags
	if tags == nil {
		tags = [][]string{}
	}
	encoded, err := json.Marshal(tags)
	if err != nil {
		return false, fmt.Errorf("marshal tags: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO posts (id, pubkey, created_at, content, tags, relay, seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		post.ID,
		post.Author,
		post.CreatedAt,
		post.Content,
		string(encoded),
		post.Relay,
		post.SeenAt.UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("insert post %s: %w", post.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// GetPost retrieves a post by id.
func (r *Repository) GetPost(ctx context.Context, id string) (*domain.StoredPost, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, pubkey, created_at, content, tags, relay, seen_at
		FROM posts
		WHERE id = ?`, id)

	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return post, nil
}

// ListPosts returns every stored post, oldest first.
func (r *Repository) ListPosts(ctx context.Context) ([]scrutiny.RawPost, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, pubkey, created_at, content, tags, relay, seen_at
		FROM posts
		ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	var posts []scrutiny.RawPost
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p.RawPost)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

// CountPosts returns the number of stored posts.
func (r *Repository) CountPosts(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&n)
	return n, err
}

// GetCursor retrieves the saved relay cursor for a service.
func (r *Repository) GetCursor(ctx context.Context, service string) (int64, error) {
	var cursor int64
	err := r.db.QueryRowContext(ctx,
		`SELECT cursor_value FROM cursors WHERE service = ?`, service,
	).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return cursor, err
}

// UpdateCursor upserts the relay cursor for a service.
func (r *Repository) UpdateCursor(ctx context.Context, service string, cursor int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cursors (service, cursor_value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (service) DO UPDATE SET
			cursor_value = excluded.cursor_value,
			updated_at = excluded.updated_at`,
		service, cursor, time.Now().UTC().UnixMilli(),
	)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(s scanner) (*domain.StoredPost, error) {
	var (
		p      domain.StoredPost
		tags   string
		seenAt int64
	)
	err := s.Scan(
		&p.ID,
		&p.Author,
		&p.CreatedAt,
		&p.Content,
		&tags,
		&p.Relay,
		&seenAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan post: %w", err)
	}

	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags of %s: %w", p.ID, err)
	}
	p.SeenAt = time.UnixMilli(seenAt).UTC()
	return &p, nil
}
