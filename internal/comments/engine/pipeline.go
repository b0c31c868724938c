package engine

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/example/oblivion-comments/internal/comments/model"
	"github.com/example/oblivion-comments/internal/comments/tree"
)

// SetSort changes the listing order and saves it for the next visit.
func (s *Store) SetSort(ctx context.Context, mode model.SortMode) error {
	mode = model.ParseSortMode(string(mode))
	if !s.update(func(st *State) { st.SortMode = mode }) {
		return ErrClosed
	}
	s.persist(ctx)
	return nil
}

// SetSearchQuery filters the listing by author or content and saves the query
// for the next visit.
func (s *Store) SetSearchQuery(ctx context.Context, q string) error {
	if !s.update(func(st *State) { st.SearchQuery = q }) {
		return ErrClosed
	}
	s.persist(ctx)
	return nil
}

// Visible returns what the view should render: comments the viewer may see,
// at every depth, narrowed by the search query and ordered by the sort mode.
func (s *Store) Visible() []model.Comment {
	st := s.State()
	return Pipeline(st.Items, s.opts.Viewer.Operator, s.opts.ModerationView, st.SearchQuery, st.SortMode)
}

// Pipeline is the pure listing transform behind Visible. The input is not
// modified and equal inputs always produce equal outputs.
func Pipeline(items []model.Comment, operator, moderationView bool, query string, mode model.SortMode) []model.Comment {
	out := tree.Filter(items, func(c model.Comment) bool {
		return c.Status.VisibleTo(operator, moderationView)
	})
	out = search(out, query)
	return sortComments(out, mode)
}

// search matches the top level only; a hit keeps its whole thread.
func search(items []model.Comment, query string) []model.Comment {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return items
	}
	out := make([]model.Comment, 0, len(items))
	for _, c := range items {
		if strings.Contains(strings.ToLower(c.Author.DisplayName), q) ||
			strings.Contains(strings.ToLower(c.Content), q) {
			out = append(out, c)
		}
	}
	return out
}

func sortComments(items []model.Comment, mode model.SortMode) []model.Comment {
	out := slices.Clone(items)
	var less func(a, b model.Comment) bool
	switch mode {
	case model.SortOldest:
		less = func(a, b model.Comment) bool { return createdBefore(a, b) }
	case model.SortMostLiked:
		less = func(a, b model.Comment) bool { return a.Likes() > b.Likes() }
	case model.SortMostReplied:
		less = func(a, b model.Comment) bool { return a.RepliesTotal() > b.RepliesTotal() }
	default:
		less = func(a, b model.Comment) bool { return createdBefore(b, a) }
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// createdBefore orders by parsed time, falling back to the raw strings when
// either side does not parse.
func createdBefore(a, b model.Comment) bool {
	ta, okA := parseTime(a.CreatedAt)
	tb, okB := parseTime(b.CreatedAt)
	if okA && okB {
		return ta.Before(tb)
	}
	return a.CreatedAt < b.CreatedAt
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseTime reads the backend's timestamps. Values without a zone are UTC.
func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func sortedIDs(set map[model.ID]bool) []model.ID {
	out := make([]model.ID, 0, len(set))
	for id, ok := range set {
		if ok {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}
