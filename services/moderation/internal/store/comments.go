package store

import (
	"context"
	"errors"

	"github.com/example/oblivion-comments/internal/comments/model"
)

var (
	ErrNotFound        = errors.New("comment not found")
	ErrParentNotFound  = errors.New("parent comment not found in discussion")
	ErrDiscussionEmpty = errors.New("discussion id is required")
)

// ListQuery selects one page of a discussion, newest first.
type ListQuery struct {
	DiscussionID string
	// Statuses restricts the listing; empty means every status.
	Statuses []model.Status
	// Parent narrows the listing when non-nil. A pointer to the empty id
	// selects top-level comments.
	Parent  *model.ID
	PerPage int
	Page    int
	// ViewerID fills LikedByMe when set.
	ViewerID string
}

// CommentStore defines the contract for the dev backend's comment
// persistence.
type CommentStore interface {
	List(ctx context.Context, q ListQuery) ([]model.Comment, error)
	Get(ctx context.Context, id model.ID) (model.Comment, error)
	Create(ctx context.Context, c model.Comment) (model.Comment, error)
	SetStatus(ctx context.Context, id model.ID, status model.Status) error
	// Bulk applies action to every known id and reports how many matched.
	Bulk(ctx context.Context, ids []model.ID, action model.BulkAction) (int, error)
	// Vote records or withdraws userID's like and returns the new total.
	Vote(ctx context.Context, id model.ID, userID string, like bool) (int, error)
}

// BulkTarget is the status a bulk action moves comments to. Delete has no
// target status; it removes the comments.
func BulkTarget(a model.BulkAction) (model.Status, bool) {
	switch a {
	case model.BulkApprove, model.BulkRestore:
		return model.StatusApproved, true
	case model.BulkUnapprove:
		return model.StatusPending, true
	case model.BulkSpam:
		return model.StatusSpam, true
	case model.BulkTrash:
		return model.StatusTrashed, true
	default:
		return "", false
	}
}
