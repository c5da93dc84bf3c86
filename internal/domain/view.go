package domain

import (
	"time"

	"github.com/blackmichael/scrutiny-graph/internal/scrutiny"
)

// Summary is the response body for the snapshot overview.
type Summary struct {
	// StoredPosts is the number of rows in the store, including unknown and
	// orphaned posts.
	StoredPosts int64           `json:"stored_posts"`
	Counts      scrutiny.Counts `json:"counts"`
	Legacy      int             `json:"legacy"`
	BuiltAt     time.Time       `json:"built_at"`
}

// PostDetails describes one categorized post and its neighbourhood.
type PostDetails struct {
	ID         string                `json:"id"`
	Kind       scrutiny.Kind         `json:"kind"`
	Author     string                `json:"pubkey"`
	CreatedAt  int64                 `json:"created_at"`
	Legacy     scrutiny.LegacyStatus `json:"legacy"`
	Identifier string                `json:"identifier,omitempty"`
	Labels     map[string][]string   `json:"labels,omitempty"`

	// Root is set for updates, confirmations and contestations.
	Root string `json:"root,omitempty"`

	// Evidence is the first mention of a confirmation or contestation.
	Evidence string `json:"evidence,omitempty"`

	Updates       int `json:"updates"`
	Confirmations int `json:"confirmations"`
	Contestations int `json:"contestations"`

	// Bindings lists the bindings that link this product or metadata post.
	Bindings []string `json:"bindings,omitempty"`

	// Products and Metadata are the resolved mentions of a binding.
	Products []string `json:"products,omitempty"`
	Metadata []string `json:"metadata,omitempty"`

	Relations   *scrutiny.ProductRelations `json:"relations,omitempty"`
	ContainedIn []string                   `json:"contained_in,omitempty"`
	DependedBy  []string                   `json:"depended_on_by,omitempty"`

	Relay  string    `json:"relay,omitempty"`
	SeenAt time.Time `json:"seen_at"`
}

// DisplayedPost is the version of a post chosen for display.
type DisplayedPost struct {
	// OriginalID is the id that was requested.
	OriginalID string `json:"original_id"`

	// Replaced is true when a later update from the same author is shown.
	Replaced bool             `json:"replaced"`
	Post     scrutiny.RawPost `json:"post"`
}
