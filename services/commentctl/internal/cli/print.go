package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/example/oblivion-comments/internal/comments/engine"
	"github.com/example/oblivion-comments/internal/comments/model"
)

type listing struct {
	DiscussionID string          `json:"discussionId"`
	Page         int             `json:"nextPage"`
	HasMore      bool            `json:"hasMore"`
	Sort         model.SortMode  `json:"sort"`
	Search       string          `json:"search,omitempty"`
	Items        []model.Comment `json:"items"`
}

func printListing(w io.Writer, s *engine.Store, asJSON bool) error {
	st := s.State()
	l := listing{
		DiscussionID: s.DiscussionID(),
		Page:         st.Page,
		HasMore:      st.HasMore,
		Sort:         st.SortMode,
		Search:       st.SearchQuery,
		Items:        s.Visible(),
	}
	if asJSON {
		return writeJSON(w, l)
	}
	for _, c := range l.Items {
		printComment(w, c, 0)
	}
	more := ""
	if l.HasMore {
		more = fmt.Sprintf(", more from page %d", l.Page)
	}
	_, err := fmt.Fprintf(w, "-- %d shown, sort %s%s\n", len(l.Items), l.Sort, more)
	return err
}

func printComment(w io.Writer, c model.Comment, depth int) {
	indent := strings.Repeat("  ", depth)
	flags := ""
	if c.Edited {
		flags += " edited"
	}
	if c.LikedByMe != nil && *c.LikedByMe {
		flags += " liked"
	}
	fmt.Fprintf(w, "%s#%s [%s] %s %s likes=%d replies=%d%s\n",
		indent, c.ID, c.Status, c.Author.DisplayName, c.CreatedAt, c.Likes(), c.RepliesTotal(), flags)
	for _, line := range strings.Split(c.Content, "\n") {
		fmt.Fprintf(w, "%s    %s\n", indent, line)
	}
	for _, r := range c.Replies {
		printComment(w, r, depth+1)
	}
}

func printOne(w io.Writer, c model.Comment, asJSON bool) error {
	if asJSON {
		return writeJSON(w, c)
	}
	printComment(w, c, 0)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
