package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/oblivion-comments/internal/comments/modapi"
	"github.com/example/oblivion-comments/internal/comments/model"
	"github.com/example/oblivion-comments/internal/comments/tree"
	"github.com/example/oblivion-comments/internal/platform/events"
)

// SubmitComment posts a new comment. It appears immediately under a
// temporary id, at the head of the top level or of its parent's replies, and
// is swapped in place for the server's record once the backend confirms. If
// the backend rejects it, the temporary entry is removed and a
// *RollbackError is returned.
func (s *Store) SubmitComment(ctx context.Context, content string, parentID model.ID) (model.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return model.Comment{}, ErrEmptyContent
	}
	v := s.opts.Viewer
	if !v.Authenticated() {
		return model.Comment{}, ErrUnauthenticated
	}
	if parentID.IsTemporary() {
		return model.Comment{}, fmt.Errorf("%w: parent %s is not confirmed yet", ErrNotFound, parentID)
	}

	temp := model.Comment{
		ID:           model.NewTempID(),
		DiscussionID: s.opts.DiscussionID,
		ParentID:     parentID,
		Author:       model.Author{ID: v.UserID, DisplayName: v.DisplayName},
		Content:      content,
		CreatedAt:    s.now().UTC().Format(time.RFC3339),
		Status:       model.StatusPending,
	}

	parentMissing := false
	if !s.update(func(st *State) {
		if parentID != "" && !tree.Contains(st.Items, parentID) {
			parentMissing = true
			return
		}
		st.Items = tree.Prepend(st.Items, parentID, temp)
	}) {
		return model.Comment{}, ErrClosed
	}
	if parentMissing {
		return model.Comment{}, fmt.Errorf("%w: parent %s", ErrNotFound, parentID)
	}

	bctx, done := s.bind(ctx)
	defer done()
	created, err := s.api.Create(bctx, modapi.CreateRequest{
		DiscussionID: s.opts.DiscussionID,
		Content:      content,
		Parent:       parentID,
	})
	if err == nil && created.ID == "" {
		err = fmt.Errorf("create returned no id")
	}
	mutations.WithLabelValues("submit", outcome(err)).Inc()

	if err != nil {
		s.update(func(st *State) {
			st.Items = tree.Remove(st.Items, temp.ID)
		})
		s.log.Info("comment submit rolled back", zap.String("temp_id", temp.ID.String()), zap.Error(err))
		return model.Comment{}, &RollbackError{TempID: temp.ID, Err: err}
	}

	if created.DiscussionID == "" {
		created.DiscussionID = s.opts.DiscussionID
	}
	if created.ParentID == "" {
		created.ParentID = parentID
	}
	s.update(func(st *State) {
		if tree.Contains(st.Items, created.ID) {
			// A reload already brought the confirmed record in.
			st.Items = tree.Remove(st.Items, temp.ID)
			return
		}
		st.Items = tree.FindAndTransform(st.Items, temp.ID, func(old model.Comment) model.Comment {
			created.Replies = old.Replies
			return created
		})
	})
	s.publish(events.SubjectCommentCreated, "comment_created", map[string]any{
		"comment_id": created.ID.String(),
		"parent_id":  created.ParentID.String(),
		"status":     string(created.Status),
	})
	return created, nil
}

// Moderate applies an operator action. The backend is asked first; local
// state changes only after it succeeds.
func (s *Store) Moderate(ctx context.Context, id model.ID, action model.ModerationAction) error {
	if !action.Valid() {
		return ErrInvalidAction
	}
	v := s.opts.Viewer
	if !v.Authenticated() {
		return ErrUnauthenticated
	}
	if !v.Operator {
		return ErrForbidden
	}
	return s.setStatus(ctx, "moderate", id, action)
}

// MarkSpam reports a comment as spam. Any signed-in participant may do this.
func (s *Store) MarkSpam(ctx context.Context, id model.ID) error {
	if !s.opts.Viewer.Authenticated() {
		return ErrUnauthenticated
	}
	return s.setStatus(ctx, "spam", id, model.Spam)
}

func (s *Store) setStatus(ctx context.Context, op string, id model.ID, action model.ModerationAction) error {
	if id == "" || id.IsTemporary() {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if s.isClosed() {
		return ErrClosed
	}

	bctx, done := s.bind(ctx)
	defer done()
	err := s.api.Moderate(bctx, id, action)
	mutations.WithLabelValues(op, outcome(err)).Inc()
	if err != nil {
		return fmt.Errorf("%s %s: %w", action, id, err)
	}

	target := action.Target()
	if !s.update(func(st *State) {
		st.Items = tree.FindAndTransform(st.Items, id, func(c model.Comment) model.Comment {
			c.Status = target
			return c
		})
	}) {
		return ErrClosed
	}
	s.publish(events.SubjectCommentModerated, "comment_moderated", map[string]any{
		"comment_id": id.String(),
		"action":     action.String(),
		"status":     string(target),
	})
	return nil
}

// Vote records a like or an unlike. The counters change locally right away;
// the backend call runs in the background and its outcome is ignored.
func (s *Store) Vote(ctx context.Context, id model.ID, like bool) error {
	if !s.opts.Viewer.Authenticated() {
		return ErrUnauthenticated
	}
	if id == "" || id.IsTemporary() {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	found := false
	if !s.update(func(st *State) {
		st.Items = tree.FindAndTransform(st.Items, id, func(c model.Comment) model.Comment {
			found = true
			return applyVote(c, like)
		})
	}) {
		return ErrClosed
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	s.goBackground(func(scope context.Context) {
		err := s.api.Vote(scope, id, like)
		mutations.WithLabelValues("vote", outcome(err)).Inc()
		if err != nil {
			s.log.Debug("vote not confirmed", zap.String("comment_id", id.String()), zap.Error(err))
		}
	})
	return nil
}

func applyVote(c model.Comment, like bool) model.Comment {
	prev := c.LikedByMe != nil && *c.LikedByMe
	count := c.Likes()
	switch {
	case like && !prev:
		count++
	case !like && prev:
		count--
	}
	count = max(count, 0)
	c.LikeCount = &count
	c.LikedByMe = &like
	return c
}

// EditComment replaces the body of a comment. Authors may edit within the
// edit window; operators may always edit. The change is local only.
func (s *Store) EditComment(id model.ID, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyContent
	}
	return s.modifyOwn("edit", id, func(c model.Comment) model.Comment {
		c.Content = content
		c.Edited = true
		return c
	})
}

// DeleteOwnComment soft-deletes a comment: the body becomes a tombstone and
// the status turns to deleted. Replies are kept. The change is local only.
func (s *Store) DeleteOwnComment(id model.ID) error {
	return s.modifyOwn("delete", id, func(c model.Comment) model.Comment {
		c.Content = model.Tombstone
		c.Status = model.StatusDeleted
		return c
	})
}

func (s *Store) modifyOwn(op string, id model.ID, fn tree.Transform) error {
	v := s.opts.Viewer
	if !v.Authenticated() {
		return ErrUnauthenticated
	}
	var err error
	if !s.update(func(st *State) {
		c, ok := tree.Find(st.Items, id)
		if !ok || id.IsTemporary() {
			err = fmt.Errorf("%w: %s", ErrNotFound, id)
			return
		}
		if err = s.mayModify(c); err != nil {
			return
		}
		st.Items = tree.FindAndTransform(st.Items, id, fn)
	}) {
		return ErrClosed
	}
	mutations.WithLabelValues(op, outcome(err)).Inc()
	return err
}

// mayModify must be called with the state lock held.
func (s *Store) mayModify(c model.Comment) error {
	v := s.opts.Viewer
	if v.Operator {
		return nil
	}
	if c.Status == model.StatusDeleted || !isAuthor(v, c.Author) {
		return ErrForbidden
	}
	created, ok := parseTime(c.CreatedAt)
	if !ok || s.now().Sub(created) > s.opts.EditWindow {
		return ErrEditWindowClosed
	}
	return nil
}

// isAuthor matches on the author id when the record carries one and on the
// display name otherwise.
func isAuthor(v model.Viewer, a model.Author) bool {
	if a.ID != "" {
		return a.ID == v.UserID
	}
	return v.DisplayName != "" && strings.EqualFold(strings.TrimSpace(a.DisplayName), v.DisplayName)
}
