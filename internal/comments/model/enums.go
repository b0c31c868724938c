package model

import (
	"strings"
)

// Status is the moderation state of a comment.
type Status string

const (
	StatusApproved Status = "approved"
	StatusPending  Status = "pending"
	StatusSpam     Status = "spam"
	StatusTrashed  Status = "trashed"
	// StatusDeleted is a local soft-delete marker; the backend may not know it.
	StatusDeleted Status = "deleted"
)

// ParseStatus normalizes a wire status. The backend reports "approve", "hold"
// and "trash"; anything it does not spell differently passes through.
// Public listings omit the field, and only approved comments are public.
func ParseStatus(s string) Status {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "approve", "approved", "":
		return StatusApproved
	case "hold", "pending":
		return StatusPending
	case "trash", "trashed":
		return StatusTrashed
	default:
		return Status(s)
	}
}

// Wire returns the spelling the backend uses for s.
func (s Status) Wire() string {
	switch s {
	case StatusApproved:
		return "approve"
	case StatusPending:
		return "hold"
	case StatusTrashed:
		return "trash"
	default:
		return string(s)
	}
}

// VisibleTo reports whether a comment in this state is listed for a caller.
// Operators see pending comments; spam and trashed comments only show up in
// moderation views.
func (s Status) VisibleTo(operator, moderationView bool) bool {
	switch s {
	case StatusPending:
		return operator
	case StatusSpam, StatusTrashed:
		return operator && moderationView
	default:
		return true
	}
}

// ModerationAction is a single-comment moderation verb.
type ModerationAction int

const (
	Approve ModerationAction = iota + 1
	Unapprove
	Spam
	Restore
	Trash
)

// String returns the wire value sent to the moderation API.
func (a ModerationAction) String() string {
	switch a {
	case Approve:
		return "approve"
	case Unapprove:
		return "unapprove"
	case Spam:
		return "spam"
	case Restore:
		return "restore"
	case Trash:
		return "trash"
	default:
		return "unknown"
	}
}

func (a ModerationAction) Valid() bool { return a >= Approve && a <= Trash }

// Target is the status a comment holds once the action is confirmed.
func (a ModerationAction) Target() Status {
	switch a {
	case Approve, Restore:
		return StatusApproved
	case Unapprove:
		return StatusPending
	case Spam:
		return StatusSpam
	case Trash:
		return StatusTrashed
	default:
		return ""
	}
}

// ParseModerationAction maps a wire value back to its action.
func ParseModerationAction(s string) (ModerationAction, bool) {
	for a := Approve; a <= Trash; a++ {
		if a.String() == strings.ToLower(strings.TrimSpace(s)) {
			return a, true
		}
	}
	return 0, false
}

// BulkAction is a moderation verb applied to a selection of comments.
type BulkAction int

const (
	BulkApprove BulkAction = iota + 1
	BulkUnapprove
	BulkSpam
	BulkTrash
	BulkRestore
	BulkDelete
)

func (a BulkAction) String() string {
	switch a {
	case BulkApprove:
		return "approve"
	case BulkUnapprove:
		return "unapprove"
	case BulkSpam:
		return "spam"
	case BulkTrash:
		return "trash"
	case BulkRestore:
		return "restore"
	case BulkDelete:
		return "delete"
	default:
		return "unknown"
	}
}

func (a BulkAction) Valid() bool { return a >= BulkApprove && a <= BulkDelete }

// ParseBulkAction maps a wire value back to its action.
func ParseBulkAction(s string) (BulkAction, bool) {
	for a := BulkApprove; a <= BulkDelete; a++ {
		if a.String() == strings.ToLower(strings.TrimSpace(s)) {
			return a, true
		}
	}
	return 0, false
}

// SortMode orders the top-level listing.
type SortMode string

const (
	SortNewest      SortMode = "newest"
	SortOldest      SortMode = "oldest"
	SortMostLiked   SortMode = "mostLiked"
	SortMostReplied SortMode = "mostReplied"
)

// ParseSortMode falls back to newest-first for unknown values.
func ParseSortMode(s string) SortMode {
	switch SortMode(strings.TrimSpace(s)) {
	case SortOldest:
		return SortOldest
	case SortMostLiked:
		return SortMostLiked
	case SortMostReplied:
		return SortMostReplied
	default:
		return SortNewest
	}
}

// Viewer is the caller on whose behalf a view acts. The zero value is an
// anonymous reader.
type Viewer struct {
	UserID      string
	DisplayName string
	Operator    bool
}

func (v Viewer) Authenticated() bool { return strings.TrimSpace(v.UserID) != "" }

// OperatorRoles are the token roles that carry moderation authority.
var OperatorRoles = map[string]bool{
	"admin":     true,
	"editor":    true,
	"moderator": true,
}

// ViewerFor builds a Viewer from an authenticated subject and role.
func ViewerFor(userID, displayName, role string) Viewer {
	return Viewer{
		UserID:      strings.TrimSpace(userID),
		DisplayName: strings.TrimSpace(displayName),
		Operator:    OperatorRoles[strings.ToLower(strings.TrimSpace(role))],
	}
}
