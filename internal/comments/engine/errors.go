package engine

import (
	"errors"
	"fmt"

	"github.com/example/oblivion-comments/internal/comments/model"
)

var (
	ErrForbidden        = errors.New("comments: forbidden")
	ErrUnauthenticated  = errors.New("comments: authentication required")
	ErrEmptyContent     = errors.New("comments: content is empty")
	ErrNotFound         = errors.New("comments: comment not found")
	ErrEditWindowClosed = errors.New("comments: edit window closed")
	ErrInvalidAction    = errors.New("comments: invalid action")
	ErrEmptySelection   = errors.New("comments: nothing selected")
	ErrClosed           = errors.New("comments: view closed")
)

// FetchError is a failed page read. Its message is what State.Error shows.
type FetchError struct {
	Page int
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("could not load comments (page %d): %v", e.Page, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// RollbackError is returned when a submitted comment was rejected after it
// had been shown optimistically. The temporary entry is gone by the time the
// caller sees this error.
type RollbackError struct {
	TempID model.ID
	Err    error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("comment not posted: %v", e.Err)
}

func (e *RollbackError) Unwrap() error { return e.Err }
