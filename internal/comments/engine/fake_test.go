package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/oblivion-comments/internal/comments/modapi"
	"github.com/example/oblivion-comments/internal/comments/model"
)

const discussion = "100"

var (
	reader   = model.Viewer{UserID: "u1", DisplayName: "Reader"}
	operator = model.Viewer{UserID: "op", DisplayName: "Mod", Operator: true}
	fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

type moderateCall struct {
	id     model.ID
	action model.ModerationAction
}

type bulkCall struct {
	ids    []model.ID
	action model.BulkAction
}

type voteCall struct {
	id   model.ID
	like bool
}

// fakeAPI is an in-memory modapi.Provider. A non-nil gate blocks the
// matching call until the gate is closed or the call's context ends.
type fakeAPI struct {
	modapi.Provider

	mu        sync.Mutex
	pages     map[int][]model.Comment
	pageErrs  map[int]error
	listCalls []modapi.ListParams
	listGate  chan struct{}

	children   map[model.ID][]model.Comment
	replyCalls int
	replyGate  chan struct{}

	createResult model.Comment
	createErr    error
	createGate   chan struct{}

	moderateErr   error
	moderateCalls []moderateCall
	moderateGate  chan struct{}

	bulkErr   error
	bulkCalls []bulkCall

	voteErr error
	votes   chan voteCall
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		pages:    map[int][]model.Comment{},
		pageErrs: map[int]error{},
		children: map[model.ID][]model.Comment{},
		votes:    make(chan voteCall, 16),
	}
}

func wait(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeAPI) List(ctx context.Context, p modapi.ListParams) ([]model.Comment, error) {
	f.mu.Lock()
	if p.Parent != "" {
		f.replyCalls++
		gate, out := f.replyGate, f.children[p.Parent]
		f.mu.Unlock()
		if err := wait(ctx, gate); err != nil {
			return nil, err
		}
		return out, nil
	}
	f.listCalls = append(f.listCalls, p)
	gate, out, err := f.listGate, f.pages[p.Page], f.pageErrs[p.Page]
	f.mu.Unlock()
	if err := wait(ctx, gate); err != nil {
		return nil, err
	}
	return out, err
}

func (f *fakeAPI) Create(ctx context.Context, req modapi.CreateRequest) (model.Comment, error) {
	if err := wait(ctx, f.createGate); err != nil {
		return model.Comment{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return model.Comment{}, f.createErr
	}
	out := f.createResult
	if out.Content == "" {
		out.Content = req.Content
	}
	return out, nil
}

func (f *fakeAPI) Moderate(ctx context.Context, id model.ID, action model.ModerationAction) error {
	f.mu.Lock()
	f.moderateCalls = append(f.moderateCalls, moderateCall{id, action})
	gate, err := f.moderateGate, f.moderateErr
	f.mu.Unlock()
	if werr := wait(ctx, gate); werr != nil {
		return werr
	}
	return err
}

func (f *fakeAPI) Bulk(_ context.Context, ids []model.ID, action model.BulkAction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulkCalls = append(f.bulkCalls, bulkCall{ids, action})
	return f.bulkErr
}

func (f *fakeAPI) Vote(_ context.Context, id model.ID, like bool) error {
	f.votes <- voteCall{id, like}
	return f.voteErr
}

func (f *fakeAPI) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listCalls)
}

func (f *fakeAPI) moderateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.moderateCalls)
}

func (f *fakeAPI) replyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.replyCalls
}

type recordedEvent struct {
	subject, name, userID string
	props                 map[string]any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(subject, eventName, userID string, props map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{subject, eventName, userID, props})
}

func comment(id string, opts ...func(*model.Comment)) model.Comment {
	c := model.Comment{
		ID:           model.ID(id),
		DiscussionID: discussion,
		Author:       model.Author{ID: "a" + id, DisplayName: "Author " + id},
		Content:      "body " + id,
		CreatedAt:    fixedNow.Add(-time.Hour).Format(time.RFC3339),
		Status:       model.StatusApproved,
	}
	for _, o := range opts {
		o(&c)
	}
	return c
}

func withStatus(s model.Status) func(*model.Comment) {
	return func(c *model.Comment) { c.Status = s }
}

func withParent(p string) func(*model.Comment) {
	return func(c *model.Comment) { c.ParentID = model.ID(p) }
}

func withLikes(n int) func(*model.Comment) {
	return func(c *model.Comment) { c.LikeCount = &n }
}

func withReplies(r ...model.Comment) func(*model.Comment) {
	return func(c *model.Comment) { c.Replies = r }
}

func page(from, n int) []model.Comment {
	out := make([]model.Comment, 0, n)
	for i := from; i < from+n; i++ {
		out = append(out, comment(fmt.Sprint(i)))
	}
	return out
}

func newStore(t *testing.T, api *fakeAPI, viewer model.Viewer, mutate ...func(*Deps, *Options)) *Store {
	t.Helper()
	deps := Deps{API: api, Now: func() time.Time { return fixedNow }}
	opts := Options{DiscussionID: discussion, Viewer: viewer, PageSize: 2}
	for _, m := range mutate {
		m(&deps, &opts)
	}
	s, err := New(context.Background(), deps, opts)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

// seed loads items as the first page without going through pagination.
func seed(t *testing.T, s *Store, items ...model.Comment) {
	t.Helper()
	require.True(t, s.update(func(st *State) { st.Items = items }))
}

func ids(items []model.Comment) []model.ID {
	out := make([]model.ID, len(items))
	for i, c := range items {
		out[i] = c.ID
	}
	return out
}
