package modapi

import (
	"html"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/example/oblivion-comments/internal/comments/model"
)

// strict drops every tag; the engine stores plain text only.
var strict = bluemonday.StrictPolicy()

// RawComment is a comment as the moderation API serializes it.
type RawComment struct {
	ID               model.ID          `json:"id"`
	Post             model.ID          `json:"post"`
	Parent           model.ID          `json:"parent"`
	Author           model.ID          `json:"author,omitempty"`
	AuthorName       string            `json:"author_name"`
	AuthorSlug       string            `json:"author_slug,omitempty"`
	AuthorAvatarURLs map[string]string `json:"author_avatar_urls,omitempty"`
	Content          RenderedContent   `json:"content"`
	Date             string            `json:"date"`
	Status           string            `json:"status,omitempty"`
	RepliesCount     *int              `json:"replies_count,omitempty"`
	Likes            *int              `json:"likes,omitempty"`
	LikedByMe        *bool             `json:"likedByMe,omitempty"`
	Edited           bool              `json:"edited,omitempty"`
}

type RenderedContent struct {
	Rendered string `json:"rendered"`
}

// Decode converts a wire comment into the engine's record.
func Decode(r RawComment) model.Comment {
	return model.Comment{
		ID:           r.ID,
		DiscussionID: r.Post.String(),
		ParentID:     r.Parent,
		Author: model.Author{
			ID:          r.Author.String(),
			DisplayName: strings.TrimSpace(r.AuthorName),
			ProfileSlug: strings.TrimSpace(r.AuthorSlug),
			AvatarURL:   largestAvatar(r.AuthorAvatarURLs),
		},
		Content:    PlainText(r.Content.Rendered),
		CreatedAt:  strings.TrimSpace(r.Date),
		Status:     model.ParseStatus(r.Status),
		ReplyCount: r.RepliesCount,
		LikeCount:  r.Likes,
		LikedByMe:  r.LikedByMe,
		Edited:     r.Edited,
	}
}

// DecodeAll converts a page of wire comments, keeping order.
func DecodeAll(raw []RawComment) []model.Comment {
	out := make([]model.Comment, 0, len(raw))
	for _, r := range raw {
		out = append(out, Decode(r))
	}
	return out
}

// Encode is the inverse of Decode for the fields the wire carries. Content is
// rendered as a single escaped paragraph.
func Encode(c model.Comment) RawComment {
	r := RawComment{
		ID:           c.ID,
		Post:         model.ID(c.DiscussionID),
		Parent:       c.ParentID,
		Author:       model.ID(c.Author.ID),
		AuthorName:   c.Author.DisplayName,
		AuthorSlug:   c.Author.ProfileSlug,
		Content:      RenderedContent{Rendered: "<p>" + html.EscapeString(c.Content) + "</p>\n"},
		Date:         c.CreatedAt,
		Status:       c.Status.Wire(),
		RepliesCount: c.ReplyCount,
		Likes:        c.LikeCount,
		LikedByMe:    c.LikedByMe,
		Edited:       c.Edited,
	}
	if c.Author.AvatarURL != "" {
		r.AuthorAvatarURLs = map[string]string{"96": c.Author.AvatarURL}
	}
	return r
}

// PlainText strips markup from rendered HTML and decodes entities.
func PlainText(rendered string) string {
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(rendered)))
}

// largestAvatar picks the URL under the biggest numeric size key. Keys that
// are not sizes are only used when nothing else is available.
func largestAvatar(urls map[string]string) string {
	best, bestSize := "", -1
	fallback, fallbackKey := "", ""
	for k, v := range urls {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			if fallback == "" || k < fallbackKey {
				fallback, fallbackKey = v, k
			}
			continue
		}
		if n > bestSize {
			best, bestSize = v, n
		}
	}
	if best != "" {
		return best
	}
	return fallback
}
