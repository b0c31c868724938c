// Package engine owns the comment tree of one discussion view. It loads pages
// and replies, applies optimistic and confirmed mutations, and derives the
// filtered, sorted listing a view renders.
//
// A Store is safe for concurrent use. Network calls run without holding the
// state lock; each completion re-reads the current tree and applies a
// copy-on-write update, so the last completion to land wins.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/oblivion-comments/internal/comments/modapi"
	"github.com/example/oblivion-comments/internal/comments/model"
	"github.com/example/oblivion-comments/internal/comments/replies"
	"github.com/example/oblivion-comments/internal/comments/uistate"
)

const (
	DefaultPageSize   = 20
	DefaultEditWindow = 15 * time.Minute
)

// EventPublisher receives confirmed mutations. *events.Publisher satisfies it.
type EventPublisher interface {
	Publish(subject, eventName, userID string, props map[string]any)
}

// Deps are the collaborators a Store talks to. Only API is required.
type Deps struct {
	API    modapi.Provider
	Bridge *uistate.Bridge
	Events EventPublisher
	Logger *zap.Logger
	Now    func() time.Time
}

// Options describe the view.
type Options struct {
	DiscussionID string
	Viewer       model.Viewer
	PageSize     int
	// ReplyPageSize bounds a single reply load; zero means replies.DefaultPageSize.
	ReplyPageSize int
	EditWindow    time.Duration
	// ModerationView lets operators see spam and trashed comments.
	ModerationView bool
	// Status is forwarded to top-level listings when set.
	Status string
}

// State is a snapshot of a view. Items is shared with the store and must be
// treated as read-only; the maps are copies.
type State struct {
	Items       []model.Comment
	Loading     bool
	Error       string
	Page        int
	PageSize    int
	HasMore     bool
	ExpandedIDs map[model.ID]bool
	SelectedIDs map[model.ID]bool
	SortMode    model.SortMode
	SearchQuery string
}

type Store struct {
	api    modapi.Provider
	bridge *uistate.Bridge
	events EventPublisher
	log    *zap.Logger
	now    func() time.Time
	opts   Options
	loader *replies.Loader

	// scope is cancelled by Close; every network call is bound to it.
	scope  context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// pageMu serializes top-level page fetches.
	pageMu sync.Mutex

	mu     sync.Mutex
	st     State
	closed bool
	// failedPage is the page whose fetch last failed, 0 when none did.
	failedPage int
}

// New builds the store for one discussion view and restores its saved UI
// state. ctx bounds the restore only.
func New(ctx context.Context, deps Deps, opts Options) (*Store, error) {
	if deps.API == nil {
		return nil, errors.New("engine: API is required")
	}
	if opts.DiscussionID == "" {
		return nil, errors.New("engine: discussion id is required")
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.EditWindow <= 0 {
		opts.EditWindow = DefaultEditWindow
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	log := deps.Logger.With(zap.String("discussion_id", opts.DiscussionID))

	scope, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Store{
		api:    deps.API,
		bridge: deps.Bridge,
		events: deps.Events,
		log:    log,
		now:    deps.Now,
		opts:   opts,
		loader: replies.New(deps.API, opts.DiscussionID, opts.ReplyPageSize, log),
		scope:  scope,
		cancel: cancel,
		st: State{
			Page:        1,
			PageSize:    opts.PageSize,
			ExpandedIDs: map[model.ID]bool{},
			SelectedIDs: map[model.ID]bool{},
			SortMode:    model.SortNewest,
		},
	}

	if snap, ok := s.bridge.Restore(ctx, opts.DiscussionID); ok {
		s.st.SortMode = snap.SortMode
		s.st.SearchQuery = snap.SearchQuery
		for _, id := range snap.ExpandedIDs {
			s.st.ExpandedIDs[id] = true
		}
	}
	return s, nil
}

// Close tears the view down. In-flight calls are cancelled and any result
// that still arrives is discarded. Close waits for background work.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// Drain waits for background work already started (vote confirmations,
// reply prefetches) without cancelling it. It must not race with calls that
// start new background work.
func (s *Store) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) Viewer() model.Viewer { return s.opts.Viewer }

func (s *Store) DiscussionID() string { return s.opts.DiscussionID }

// State returns a snapshot of the view.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.st
	st.ExpandedIDs = copySet(s.st.ExpandedIDs)
	st.SelectedIDs = copySet(s.st.SelectedIDs)
	return st
}

func (s *Store) IsExpanded(id model.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ExpandedIDs[id]
}

func (s *Store) IsSelected(id model.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.SelectedIDs[id]
}

// update applies fn under the lock. It reports false, without calling fn,
// once the view is closed.
func (s *Store) update(fn func(st *State)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	fn(&s.st)
	return true
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// bind derives a context that is also cancelled when the view closes.
func (s *Store) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.scope, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// goBackground runs fn on the view scope and tracks it for Close.
func (s *Store) goBackground(fn func(ctx context.Context)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.scope)
	}()
	return true
}

// persist saves the restorable part of the view.
func (s *Store) persist(ctx context.Context) {
	if s.bridge == nil {
		return
	}
	s.mu.Lock()
	snap := uistate.Snapshot{
		SortMode:    s.st.SortMode,
		SearchQuery: s.st.SearchQuery,
		ExpandedIDs: sortedIDs(s.st.ExpandedIDs),
	}
	s.mu.Unlock()
	s.bridge.Save(ctx, s.opts.DiscussionID, snap)
}

func (s *Store) publish(subject, name string, props map[string]any) {
	if s.events == nil {
		return
	}
	props["discussion_id"] = s.opts.DiscussionID
	s.events.Publish(subject, name, s.opts.Viewer.UserID, props)
}

func copySet(in map[model.ID]bool) map[model.ID]bool {
	out := make(map[model.ID]bool, len(in))
	for k, v := range in {
		if v {
			out[k] = true
		}
	}
	return out
}
