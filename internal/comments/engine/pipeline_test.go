package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/oblivion-comments/internal/comments/model"
)

func at(offset time.Duration) func(*model.Comment) {
	return func(c *model.Comment) { c.CreatedAt = fixedNow.Add(offset).Format(time.RFC3339) }
}

func TestVisibility_TopLevelAndNested(t *testing.T) {
	items := []model.Comment{
		comment("1", withReplies(
			comment("11", withParent("1")),
			comment("12", withParent("1"), withStatus(model.StatusPending)),
		)),
		comment("2", withStatus(model.StatusPending)),
		comment("3", withStatus(model.StatusSpam)),
		comment("4", withStatus(model.StatusTrashed)),
		comment("5", withStatus(model.StatusDeleted)),
	}

	forReader := Pipeline(items, false, false, "", model.SortOldest)
	assert.Equal(t, []model.ID{"1", "5"}, ids(forReader))
	assert.Equal(t, []model.ID{"11"}, ids(forReader[0].Replies))

	forOperator := Pipeline(items, true, false, "", model.SortOldest)
	assert.Equal(t, []model.ID{"1", "2", "5"}, ids(forOperator))
	assert.Equal(t, []model.ID{"11", "12"}, ids(forOperator[0].Replies))

	moderation := Pipeline(items, true, true, "", model.SortOldest)
	assert.Equal(t, []model.ID{"1", "2", "3", "4", "5"}, ids(moderation))

	assert.Equal(t, []model.ID{"1", "5"}, ids(Pipeline(items, false, true, "", model.SortOldest)),
		"moderation view needs operator authority")
	assert.Len(t, items[0].Replies, 2, "input untouched")
}

func TestVisible_UsesViewerAndOptions(t *testing.T) {
	s := newStore(t, newFakeAPI(), operator, func(_ *Deps, o *Options) { o.ModerationView = true })
	seed(t, s, comment("1", withStatus(model.StatusSpam)), comment("2", withStatus(model.StatusPending)))
	assert.Len(t, s.Visible(), 2)

	r := newStore(t, newFakeAPI(), reader)
	seed(t, r, comment("1", withStatus(model.StatusSpam)), comment("2", withStatus(model.StatusPending)))
	assert.Empty(t, r.Visible())
}

func TestPipeline_SearchIsCaseInsensitiveOverAuthorAndContent(t *testing.T) {
	items := []model.Comment{
		comment("1", func(c *model.Comment) { c.Content = "Golang tips" }),
		comment("2", func(c *model.Comment) { c.Author.DisplayName = "GOPHER" }),
		comment("3", withReplies(comment("31", withParent("3"), func(c *model.Comment) { c.Content = "go deeper" }))),
	}
	got := Pipeline(items, false, false, "  go ", model.SortOldest)
	assert.Equal(t, []model.ID{"1", "2"}, ids(got), "replies are not searched")
}

func TestPipeline_SortModes(t *testing.T) {
	items := []model.Comment{
		comment("a", at(-3*time.Hour), withLikes(1)),
		comment("b", at(-1*time.Hour), withLikes(5)),
		comment("c", at(-2*time.Hour), withLikes(5), withReplies(comment("c1"), comment("c2"))),
		comment("d", at(-4*time.Hour), func(c *model.Comment) { n := 3; c.ReplyCount = &n }),
	}

	assert.Equal(t, []model.ID{"b", "c", "a", "d"}, ids(Pipeline(items, false, false, "", model.SortNewest)))
	assert.Equal(t, []model.ID{"d", "a", "c", "b"}, ids(Pipeline(items, false, false, "", model.SortOldest)))
	assert.Equal(t, []model.ID{"b", "c", "a", "d"}, ids(Pipeline(items, false, false, "", model.SortMostLiked)))
	assert.Equal(t, []model.ID{"d", "c", "a", "b"}, ids(Pipeline(items, false, false, "", model.SortMostReplied)))
	assert.Equal(t, []model.ID{"a", "b", "c", "d"}, ids(items), "input order untouched")
}

func TestPipeline_Deterministic(t *testing.T) {
	items := []model.Comment{
		comment("1", withLikes(2)),
		comment("2", withLikes(7)),
		comment("3", withLikes(2)),
		comment("4"),
		comment("5", withLikes(7)),
	}
	first := Pipeline(items, false, false, "body", model.SortMostLiked)
	second := Pipeline(items, false, false, "body", model.SortMostLiked)
	assert.Equal(t, first, second)
	assert.Equal(t, []model.ID{"2", "5", "1", "3", "4"}, ids(first))
}

func TestParseTime(t *testing.T) {
	for _, s := range []string{"2024-05-01T10:00:00Z", "2024-05-01T10:00:00", "2024-05-01 10:00:00", "2024-05-01T12:00:00+02:00"} {
		got, ok := parseTime(s)
		require.True(t, ok, s)
		assert.True(t, got.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)), s)
	}
	_, ok := parseTime("yesterday")
	assert.False(t, ok)
}

func TestSetSort_UnknownFallsBack(t *testing.T) {
	s := newStore(t, newFakeAPI(), reader)
	require.NoError(t, s.SetSort(context.Background(), model.SortMode("random")))
	assert.Equal(t, model.SortNewest, s.State().SortMode)
}
