package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/oblivion-comments/internal/comments/model"
	"github.com/example/oblivion-comments/internal/comments/tree"
)

func TestToggleExpand_FlagFlipsBeforeLoad(t *testing.T) {
	api := newFakeAPI()
	api.replyGate = make(chan struct{})
	api.children["1"] = []model.Comment{
		comment("11", withParent("1")),
		comment("12", withParent("1")),
		comment("99", withParent("2")),
	}
	s := newStore(t, api, reader)
	seed(t, s, comment("1"), comment("2"))

	errc := make(chan error, 1)
	go func() { errc <- s.ToggleExpand(context.Background(), "1") }()
	require.Eventually(t, func() bool { return api.replyCount() == 1 }, time.Second, time.Millisecond)
	assert.True(t, s.IsExpanded("1"))
	assert.Empty(t, s.State().Items[0].Replies)

	close(api.replyGate)
	require.NoError(t, <-errc)
	parent, _ := tree.Find(s.State().Items, "1")
	assert.Equal(t, []model.ID{"11", "12"}, ids(parent.Replies))

	require.NoError(t, s.ToggleExpand(context.Background(), "1"))
	assert.False(t, s.IsExpanded("1"))
	require.NoError(t, s.ToggleExpand(context.Background(), "1"))
	assert.True(t, s.IsExpanded("1"))
	assert.Equal(t, 1, api.replyCount(), "replies are fetched once per parent")
}

func TestPrefetch_FoldsRepliesInBackground(t *testing.T) {
	api := newFakeAPI()
	api.children["2"] = []model.Comment{comment("21", withParent("2"))}
	s := newStore(t, api, reader)
	seed(t, s, comment("1"), comment("2"))

	s.PrefetchReplies("2")
	require.Eventually(t, func() bool {
		c, _ := tree.Find(s.State().Items, "2")
		return len(c.Replies) == 1
	}, time.Second, time.Millisecond)
	assert.False(t, s.IsExpanded("2"), "prefetch does not expand")

	s.PrefetchReplies("2")
	require.NoError(t, s.ToggleExpand(context.Background(), "2"))
	assert.Equal(t, 1, api.replyCount())
}

func TestNestedRepliesUseTheSamePath(t *testing.T) {
	api := newFakeAPI()
	api.children["11"] = []model.Comment{comment("111", withParent("11"))}
	s := newStore(t, api, reader)
	seed(t, s, comment("1", withReplies(comment("11", withParent("1")))))

	require.NoError(t, s.ToggleExpand(context.Background(), "11"))
	deep, ok := tree.Find(s.State().Items, "111")
	require.True(t, ok)
	assert.Equal(t, model.ID("11"), deep.ParentID)
}

func TestExpandedRepliesReloadAfterLoadInitial(t *testing.T) {
	api := newFakeAPI()
	api.pages[1] = []model.Comment{comment("1")}
	api.children["1"] = []model.Comment{comment("11", withParent("1"))}
	s := newStore(t, api, reader)
	ctx := context.Background()

	require.NoError(t, s.LoadInitial(ctx))
	require.NoError(t, s.ToggleExpand(ctx, "1"))
	require.NoError(t, s.LoadInitial(ctx))

	require.Eventually(t, func() bool {
		c, _ := tree.Find(s.State().Items, "1")
		return len(c.Replies) == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, 2, api.replyCount())
}

func TestLocalRepliesSurviveLoad(t *testing.T) {
	local := comment("temp", withParent("1"))
	local.ID = model.NewTempID()
	merged := mergeReplies([]model.Comment{local, comment("11")}, []model.Comment{comment("11"), comment("12")})
	assert.Equal(t, []model.ID{local.ID, "11", "12"}, ids(merged))
}

func TestDrain_WaitsForBackgroundWork(t *testing.T) {
	api := newFakeAPI()
	api.replyGate = make(chan struct{})
	api.children["1"] = []model.Comment{comment("11", withParent("1"))}
	s := newStore(t, api, reader)
	seed(t, s, comment("1"))

	s.PrefetchReplies("1")
	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Drain(short), context.DeadlineExceeded)

	close(api.replyGate)
	require.NoError(t, s.Drain(context.Background()))
	c, _ := tree.Find(s.State().Items, "1")
	assert.Len(t, c.Replies, 1)
}
