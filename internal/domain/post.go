package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/blackmichael/scrutiny-graph/internal/scrutiny"
)

// ErrNotFound is returned when a post or binding is not known.
var ErrNotFound = errors.New("not found")

// ErrInvalidPost is returned when a post fails the shape checks applied at
// ingestion.
var ErrInvalidPost = errors.New("invalid post")

// StoredPost is a raw post as persisted in our database.
type StoredPost struct {
	scrutiny.RawPost

	// Relay is the relay URL the post was first seen on. Empty for imports.
	Relay string

	// SeenAt is when we first stored the post.
	SeenAt time.Time
}

// IncomingPost is a post received from a relay or an import that hasn't been
// persisted yet.
type IncomingPost struct {
	Post scrutiny.RawPost

	// Relay is the source relay URL, if any.
	Relay string
}

// postValidate checks the shape of incoming posts.
var postValidate = func() *validator.Validate {
	v, err := newPostValidator()
	if err != nil {
		panic(fmt.Sprintf("post validator: %v", err))
	}
	return v
}()

func newPostValidator() (*validator.Validate, error) {
	v := validator.New()
	err := v.RegisterValidation("hexid", func(fl validator.FieldLevel) bool {
		return isHexID(fl.Field().String())
	})
	if err != nil {
		return nil, fmt.Errorf("register hexid: %w", err)
	}
	return v, nil
}

// postShape is the subset of a post checked at ingestion.
type postShape struct {
	ID        string `validate:"hexid"`
	Author    string `validate:"hexid"`
	CreatedAt int64  `validate:"gte=0"`
}

// Validate checks the id and author are 32-byte lowercase hex strings and the
// timestamp is not negative.
func (p *IncomingPost) Validate() error {
	shape := postShape{ID: p.Post.ID, Author: p.Post.Author, CreatedAt: p.Post.CreatedAt}
	if err := postValidate.Struct(shape); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPost, p.Post.ID, err)
	}
	return nil
}

func isHexID(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
