package modapi

import (
	"context"

	"github.com/example/oblivion-comments/internal/comments/model"
)

// Provider is the port the comment engine uses to reach the moderation API.
type Provider interface {
	List(ctx context.Context, p ListParams) ([]model.Comment, error)
	Create(ctx context.Context, req CreateRequest) (model.Comment, error)
	Moderate(ctx context.Context, id model.ID, action model.ModerationAction) error
	Bulk(ctx context.Context, ids []model.ID, action model.BulkAction) error
	Vote(ctx context.Context, id model.ID, like bool) error
}

// ListParams selects one page of a discussion. TopLevel asks the backend for
// parentless comments only; otherwise a non-empty Parent narrows the listing
// to that comment's children.
type ListParams struct {
	DiscussionID string
	PerPage      int
	Page         int
	Status       string
	Parent       model.ID
	TopLevel     bool
}

// CreateRequest is the body of a new comment.
type CreateRequest struct {
	DiscussionID string   `json:"discussionId"`
	Content      string   `json:"content"`
	Parent       model.ID `json:"parent,omitempty"`
}
