package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/example/oblivion-comments/internal/comments/modapi"
	"github.com/example/oblivion-comments/internal/comments/model"
	"github.com/example/oblivion-comments/internal/comments/tree"
)

// LoadInitial (re)loads the first page. Unconfirmed top-level submissions
// survive the reload; loaded replies do not.
func (s *Store) LoadInitial(ctx context.Context) error {
	s.pageMu.Lock()
	defer s.pageMu.Unlock()

	if !s.update(func(st *State) {
		st.Loading = true
		st.Error = ""
	}) {
		return ErrClosed
	}
	s.loader.Reset()
	return s.fetchPage(ctx, 1)
}

// LoadMoreTop fetches the next page. It does nothing while a previous fetch
// error is pending or when the last page came back short.
func (s *Store) LoadMoreTop(ctx context.Context) error {
	s.pageMu.Lock()
	defer s.pageMu.Unlock()

	var page int
	proceed := false
	if !s.update(func(st *State) {
		if st.Error != "" || !st.HasMore {
			return
		}
		proceed = true
		page = st.Page
		st.Loading = true
	}) {
		return ErrClosed
	}
	if !proceed {
		return nil
	}
	return s.fetchPage(ctx, page)
}

// Retry repeats the fetch that failed: a reload of page 1 or the page that
// LoadMoreTop could not get. Error stays set until that fetch succeeds. With
// no failed fetch Retry does nothing.
func (s *Store) Retry(ctx context.Context) error {
	s.pageMu.Lock()
	defer s.pageMu.Unlock()

	var page int
	if !s.update(func(st *State) {
		page = s.failedPage
		if page > 0 {
			st.Loading = true
		}
	}) {
		return ErrClosed
	}
	if page == 0 {
		return nil
	}
	if page == 1 {
		s.loader.Reset()
	}
	return s.fetchPage(ctx, page)
}

// fetchPage must be called with pageMu held.
func (s *Store) fetchPage(ctx context.Context, page int) error {
	ctx, done := s.bind(ctx)
	defer done()

	got, err := s.api.List(ctx, modapi.ListParams{
		DiscussionID: s.opts.DiscussionID,
		PerPage:      s.opts.PageSize,
		Page:         page,
		Status:       s.opts.Status,
		TopLevel:     true,
	})
	pageFetches.WithLabelValues(outcome(err)).Inc()

	if err != nil {
		ferr := &FetchError{Page: page, Err: err}
		if !s.update(func(st *State) {
			st.Loading = false
			st.Error = ferr.Error()
			s.failedPage = page
		}) {
			return ErrClosed
		}
		s.log.Warn("comments page fetch failed", zap.Int("page", page), zap.Error(err))
		return ferr
	}

	fresh := s.topLevelOnly(got)
	var expanded []model.ID
	if !s.update(func(st *State) {
		if page == 1 {
			tmp := temporaries(st.Items)
			st.Items = append(tmp, dedupe(fresh, tmp)...)
		} else {
			st.Items = append(st.Items, dedupe(fresh, st.Items)...)
		}
		st.Page = page + 1
		st.HasMore = len(got) == s.opts.PageSize
		st.Loading = false
		st.Error = ""
		s.failedPage = 0
		for _, c := range fresh {
			if st.ExpandedIDs[c.ID] {
				expanded = append(expanded, c.ID)
			}
		}
	}) {
		return ErrClosed
	}

	s.log.Debug("comments page loaded",
		zap.Int("page", page),
		zap.Int("returned", len(got)),
		zap.Int("kept", len(fresh)),
	)
	for _, id := range expanded {
		s.PrefetchReplies(id)
	}
	return nil
}

// topLevelOnly drops records that belong under a parent or to another
// discussion.
func (s *Store) topLevelOnly(in []model.Comment) []model.Comment {
	out := make([]model.Comment, 0, len(in))
	for _, c := range in {
		if !c.IsTopLevel() || c.ID == "" || c.DiscussionID != s.opts.DiscussionID {
			continue
		}
		out = append(out, c)
	}
	return out
}

// dedupe keeps the records of fresh whose ids are not already in existing,
// and drops repeats within fresh itself.
func dedupe(fresh, existing []model.Comment) []model.Comment {
	seen := make(map[model.ID]struct{}, len(existing)+len(fresh))
	for _, c := range existing {
		seen[c.ID] = struct{}{}
	}
	out := make([]model.Comment, 0, len(fresh))
	for _, c := range fresh {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}

func temporaries(items []model.Comment) []model.Comment {
	var out []model.Comment
	for _, c := range items {
		if c.ID.IsTemporary() {
			out = append(out, c)
		}
	}
	return out
}

// ToggleExpand flips the expanded flag of id right away and, when it becomes
// expanded, loads its replies. The flag stays flipped if the load fails.
func (s *Store) ToggleExpand(ctx context.Context, id model.ID) error {
	var expanded bool
	if !s.update(func(st *State) {
		expanded = !st.ExpandedIDs[id]
		if expanded {
			st.ExpandedIDs[id] = true
		} else {
			delete(st.ExpandedIDs, id)
		}
	}) {
		return ErrClosed
	}
	s.persist(ctx)
	if !expanded {
		return nil
	}

	ctx, done := s.bind(ctx)
	defer done()
	return s.loadReplies(ctx, id, "expand")
}

// PrefetchReplies loads the replies of id in the background. Failures are
// logged and otherwise ignored.
func (s *Store) PrefetchReplies(id model.ID) {
	if id == "" || id.IsTemporary() || s.loader.Fetched(id) {
		return
	}
	s.goBackground(func(ctx context.Context) {
		if err := s.loadReplies(ctx, id, "prefetch"); err != nil {
			s.log.Debug("reply prefetch failed", zap.String("comment_id", id.String()), zap.Error(err))
		}
	})
}

func (s *Store) loadReplies(ctx context.Context, id model.ID, trigger string) error {
	got, loaded, err := s.loader.Load(ctx, id)
	switch {
	case err != nil:
		replyLoads.WithLabelValues(trigger, "error").Inc()
		return err
	case !loaded:
		replyLoads.WithLabelValues(trigger, "cached").Inc()
		return nil
	}
	replyLoads.WithLabelValues(trigger, "ok").Inc()

	if !s.update(func(st *State) {
		st.Items = tree.FindAndTransform(st.Items, id, func(c model.Comment) model.Comment {
			c.Replies = mergeReplies(c.Replies, got)
			return c
		})
	}) {
		return ErrClosed
	}
	return nil
}

// mergeReplies keeps locally added replies the server did not return yet
// ahead of the loaded ones.
func mergeReplies(local, loaded []model.Comment) []model.Comment {
	if len(local) == 0 {
		return loaded
	}
	out := dedupe(local, loaded)
	return append(out, loaded...)
}
