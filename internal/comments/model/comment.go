// Package model holds the comment record and the closed enums shared by the
// engine, the moderation API client and the dev backend.
package model

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// TempPrefix marks ids generated locally for optimistic inserts.
const TempPrefix = "temp_"

// Tombstone replaces the body of a soft-deleted comment.
const Tombstone = "[deleted]"

// ID identifies a comment. Server ids are numeric on the wire but are kept as
// strings so that temporary ids share the same type.
type ID string

// NewTempID returns a fresh temporary id. The reserved prefix keeps it apart
// from every server-assigned id.
func NewTempID() ID {
	return ID(TempPrefix + uuid.NewString())
}

func (id ID) IsTemporary() bool { return strings.HasPrefix(string(id), TempPrefix) }

func (id ID) String() string { return string(id) }

// UnmarshalJSON accepts both numbers and strings. A zero or null value decodes
// to the empty id, which is how the backend spells "no parent".
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = normalizeID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = normalizeID(n.String())
	return nil
}

func normalizeID(s string) ID {
	s = strings.TrimSpace(s)
	if s == "0" {
		return ""
	}
	return ID(s)
}

// Author is the display identity attached to a comment.
type Author struct {
	ID          string `json:"id,omitempty"`
	DisplayName string `json:"displayName"`
	ProfileSlug string `json:"profileSlug,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// Comment is one node of a discussion thread. Replies is populated only after
// an explicit load; ReplyCount lets callers offer a "load replies" control
// before that.
type Comment struct {
	ID           ID        `json:"id"`
	DiscussionID string    `json:"discussionId"`
	ParentID     ID        `json:"parentId,omitempty"`
	Author       Author    `json:"author"`
	Content      string    `json:"content"`
	CreatedAt    string    `json:"createdAt"`
	Status       Status    `json:"status"`
	Replies      []Comment `json:"replies,omitempty"`
	ReplyCount   *int      `json:"replyCount,omitempty"`
	LikeCount    *int      `json:"likeCount,omitempty"`
	LikedByMe    *bool     `json:"likedByMe,omitempty"`
	Edited       bool      `json:"edited"`
}

// IsTopLevel reports whether c has no parent.
func (c Comment) IsTopLevel() bool { return c.ParentID == "" }

// Likes returns the like counter, treating an absent value as zero.
func (c Comment) Likes() int {
	if c.LikeCount == nil {
		return 0
	}
	return *c.LikeCount
}

// RepliesTotal prefers the server-reported count and falls back to the number
// of loaded children.
func (c Comment) RepliesTotal() int {
	if c.ReplyCount != nil {
		return *c.ReplyCount
	}
	return len(c.Replies)
}
