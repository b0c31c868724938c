package store

import (
	"context"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/example/oblivion-comments/internal/comments/model"
)

// DateLayout is how the backend formats comment dates.
const DateLayout = "2006-01-02T15:04:05"

type row struct {
	c     model.Comment
	seq   int
	at    time.Time
	likes map[string]bool // userID -> liked
}

// InMemoryCommentStore is a development-only in-memory implementation.
// Ids are assigned from a counter so they look like the real backend's.
type InMemoryCommentStore struct {
	mu   sync.RWMutex
	rows map[model.ID]*row
	seq  int
	now  func() time.Time
}

func NewInMemoryCommentStore() *InMemoryCommentStore {
	return &InMemoryCommentStore{
		rows: make(map[model.ID]*row),
		now:  time.Now,
	}
}

func (s *InMemoryCommentStore) Create(_ context.Context, c model.Comment) (model.Comment, error) {
	if strings.TrimSpace(c.DiscussionID) == "" {
		return model.Comment{}, ErrDiscussionEmpty
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ParentID != "" {
		p, ok := s.rows[c.ParentID]
		if !ok || p.c.DiscussionID != c.DiscussionID {
			return model.Comment{}, ErrParentNotFound
		}
	}

	s.seq++
	at := s.now().UTC()
	c.ID = model.ID(strconv.Itoa(s.seq))
	c.CreatedAt = at.Format(DateLayout)
	c.Replies = nil
	c.ReplyCount, c.LikeCount, c.LikedByMe = nil, nil, nil
	c.Edited = false
	if c.Status == "" {
		c.Status = model.StatusPending
	}
	s.rows[c.ID] = &row{c: c, seq: s.seq, at: at, likes: make(map[string]bool)}
	return s.view(s.rows[c.ID], nil, ""), nil
}

func (s *InMemoryCommentStore) Get(_ context.Context, id model.ID) (model.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rows[id]
	if !ok {
		return model.Comment{}, ErrNotFound
	}
	return s.view(r, nil, ""), nil
}

func (s *InMemoryCommentStore) List(_ context.Context, q ListQuery) ([]model.Comment, error) {
	if strings.TrimSpace(q.DiscussionID) == "" {
		return nil, ErrDiscussionEmpty
	}
	if q.PerPage <= 0 || q.PerPage > 100 {
		q.PerPage = 10
	}
	if q.Page <= 0 {
		q.Page = 1
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*row
	for _, r := range s.rows {
		if r.c.DiscussionID != q.DiscussionID || !statusIn(r.c.Status, q.Statuses) {
			continue
		}
		if q.Parent != nil && r.c.ParentID != *q.Parent {
			continue
		}
		matched = append(matched, r)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].at.Equal(matched[j].at) {
			return matched[i].at.After(matched[j].at)
		}
		return matched[i].seq > matched[j].seq
	})

	start := (q.Page - 1) * q.PerPage
	if start >= len(matched) {
		return []model.Comment{}, nil
	}
	matched = matched[start:min(start+q.PerPage, len(matched))]

	out := make([]model.Comment, len(matched))
	for i, r := range matched {
		out[i] = s.view(r, q.Statuses, q.ViewerID)
	}
	return out, nil
}

func (s *InMemoryCommentStore) SetStatus(_ context.Context, id model.ID, status model.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[id]
	if !ok {
		return ErrNotFound
	}
	r.c.Status = status
	return nil
}

func (s *InMemoryCommentStore) Bulk(_ context.Context, ids []model.ID, action model.BulkAction) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, id := range ids {
		r, ok := s.rows[id]
		if !ok {
			continue
		}
		n++
		if action == model.BulkDelete {
			s.deleteLocked(r.c.ID)
			continue
		}
		if target, ok := BulkTarget(action); ok {
			r.c.Status = target
		}
	}
	return n, nil
}

// deleteLocked removes id and its whole subtree.
func (s *InMemoryCommentStore) deleteLocked(id model.ID) {
	delete(s.rows, id)
	for childID, r := range s.rows {
		if r.c.ParentID == id {
			s.deleteLocked(childID)
		}
	}
}

func (s *InMemoryCommentStore) Vote(_ context.Context, id model.ID, userID string, like bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[id]
	if !ok {
		return 0, ErrNotFound
	}
	if like {
		r.likes[userID] = true
	} else {
		delete(r.likes, userID)
	}
	return len(r.likes), nil
}

// view renders a row for a caller. Reply counts only include children the
// same listing would return. Callers hold at least the read lock.
func (s *InMemoryCommentStore) view(r *row, statuses []model.Status, viewerID string) model.Comment {
	c := r.c
	replies := 0
	for _, other := range s.rows {
		if other.c.ParentID == c.ID && statusIn(other.c.Status, statuses) {
			replies++
		}
	}
	likes := len(r.likes)
	c.ReplyCount = &replies
	c.LikeCount = &likes
	if viewerID != "" {
		liked := r.likes[viewerID]
		c.LikedByMe = &liked
	}
	return c
}

func statusIn(s model.Status, set []model.Status) bool {
	return len(set) == 0 || slices.Contains(set, s)
}
