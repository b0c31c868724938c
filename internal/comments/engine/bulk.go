package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/oblivion-comments/internal/comments/model"
	"github.com/example/oblivion-comments/internal/platform/events"
)

// ToggleSelect flips the selection of id and reports whether it is now
// selected. Only operators can select.
func (s *Store) ToggleSelect(id model.ID) bool {
	if !s.opts.Viewer.Operator || id == "" {
		return false
	}
	var selected bool
	s.update(func(st *State) {
		selected = !st.SelectedIDs[id]
		if selected {
			st.SelectedIDs[id] = true
		} else {
			delete(st.SelectedIDs, id)
		}
	})
	return selected
}

func (s *Store) ClearSelection() {
	s.update(func(st *State) {
		st.SelectedIDs = map[model.ID]bool{}
	})
}

// BulkAction sends one request applying action to every id. After a
// successful delete the matching top-level comments leave the tree along
// with their replies; other actions change nothing locally and the caller is
// expected to reload. The selection is cleared only on success.
func (s *Store) BulkAction(ctx context.Context, ids []model.ID, action model.BulkAction) error {
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
	targets := confirmedIDs(ids)
	if len(targets) == 0 {
		return ErrEmptySelection
	}
	if s.isClosed() {
		return ErrClosed
	}

	bctx, done := s.bind(ctx)
	defer done()
	err := s.api.Bulk(bctx, targets, action)
	mutations.WithLabelValues("bulk_"+action.String(), outcome(err)).Inc()
	if err != nil {
		return fmt.Errorf("bulk %s of %d comments: %w", action, len(targets), err)
	}

	if !s.update(func(st *State) {
		if action == model.BulkDelete {
			drop := make(map[model.ID]bool, len(targets))
			for _, id := range targets {
				drop[id] = true
				delete(st.ExpandedIDs, id)
			}
			kept := make([]model.Comment, 0, len(st.Items))
			for _, c := range st.Items {
				if !drop[c.ID] {
					kept = append(kept, c)
				}
			}
			st.Items = kept
		}
		st.SelectedIDs = map[model.ID]bool{}
	}) {
		return ErrClosed
	}

	s.log.Info("bulk moderation applied", zap.String("action", action.String()), zap.Int("count", len(targets)))
	idStrings := make([]string, len(targets))
	for i, id := range targets {
		idStrings[i] = id.String()
	}
	s.publish(events.SubjectCommentsBulk, "comments_bulk", map[string]any{
		"action":      action.String(),
		"comment_ids": idStrings,
	})
	return nil
}

// confirmedIDs drops empty, temporary and repeated ids, keeping order.
func confirmedIDs(ids []model.ID) []model.ID {
	seen := make(map[model.ID]bool, len(ids))
	out := make([]model.ID, 0, len(ids))
	for _, id := range ids {
		if id == "" || id.IsTemporary() || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
