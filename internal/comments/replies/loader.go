// Package replies loads the children of a comment on demand.
package replies

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/example/oblivion-comments/internal/comments/modapi"
	"github.com/example/oblivion-comments/internal/comments/model"
)

// DefaultPageSize bounds how many children one load asks for.
const DefaultPageSize = 100

// Loader fetches replies for one discussion. A parent whose replies were
// fetched successfully is not fetched again until Reset.
type Loader struct {
	api          modapi.Provider
	discussionID string
	pageSize     int
	log          *zap.Logger

	group singleflight.Group

	mu      sync.Mutex
	fetched map[model.ID]struct{}
}

func New(api modapi.Provider, discussionID string, pageSize int, log *zap.Logger) *Loader {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{
		api:          api,
		discussionID: discussionID,
		pageSize:     pageSize,
		log:          log,
		fetched:      make(map[model.ID]struct{}),
	}
}

// Load returns the children of parentID. The boolean is false when the
// parent was already fetched and nothing was requested. Concurrent calls for
// the same parent share a single request.
func (l *Loader) Load(ctx context.Context, parentID model.ID) ([]model.Comment, bool, error) {
	if parentID == "" || parentID.IsTemporary() {
		return nil, false, nil
	}
	if l.Fetched(parentID) {
		return nil, false, nil
	}

	v, err, _ := l.group.Do(parentID.String(), func() (any, error) {
		if l.Fetched(parentID) {
			return nil, nil
		}
		raw, err := l.api.List(ctx, modapi.ListParams{
			DiscussionID: l.discussionID,
			PerPage:      l.pageSize,
			Page:         1,
			Parent:       parentID,
		})
		if err != nil {
			return nil, fmt.Errorf("load replies of %s: %w", parentID, err)
		}
		out := l.keep(parentID, raw)

		l.mu.Lock()
		l.fetched[parentID] = struct{}{}
		l.mu.Unlock()

		l.log.Debug("replies loaded",
			zap.String("discussion_id", l.discussionID),
			zap.String("parent_id", parentID.String()),
			zap.Int("count", len(out)),
			zap.Int("dropped", len(raw)-len(out)),
		)
		return out, nil
	})
	if err != nil {
		return nil, false, err
	}
	if v == nil {
		return nil, false, nil
	}
	return v.([]model.Comment), true, nil
}

// keep drops records the backend returned for another parent or discussion.
func (l *Loader) keep(parentID model.ID, raw []model.Comment) []model.Comment {
	out := make([]model.Comment, 0, len(raw))
	for _, c := range raw {
		if c.ParentID != parentID || c.DiscussionID != l.discussionID {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (l *Loader) Fetched(parentID model.ID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.fetched[parentID]
	return ok
}

// Reset forgets every fetched parent.
func (l *Loader) Reset() {
	l.mu.Lock()
	l.fetched = make(map[model.ID]struct{})
	l.mu.Unlock()
}
