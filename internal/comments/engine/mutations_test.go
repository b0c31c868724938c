package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/oblivion-comments/internal/comments/model"
	"github.com/example/oblivion-comments/internal/comments/tree"
	"github.com/example/oblivion-comments/internal/platform/events"
)

func TestSubmit_ConfirmReplacesInPlace(t *testing.T) {
	api := newFakeAPI()
	api.createGate = make(chan struct{})
	api.createResult = comment("42", withStatus(model.StatusPending))
	pub := &recordingPublisher{}
	s := newStore(t, api, reader, func(d *Deps, _ *Options) { d.Events = pub })
	seed(t, s, comment("1"), comment("2"))

	type result struct {
		c   model.Comment
		err error
	}
	done := make(chan result, 1)
	go func() {
		c, err := s.SubmitComment(context.Background(), "  hello ", "")
		done <- result{c, err}
	}()

	require.Eventually(t, func() bool { return len(s.State().Items) == 3 }, time.Second, time.Millisecond)
	head := s.State().Items[0]
	assert.True(t, head.ID.IsTemporary())
	assert.Equal(t, model.StatusPending, head.Status)
	assert.Equal(t, "hello", head.Content)
	assert.Equal(t, "u1", head.Author.ID)
	assert.Equal(t, fixedNow.Format(time.RFC3339), head.CreatedAt)

	close(api.createGate)
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, model.ID("42"), res.c.ID)

	st := s.State()
	assert.Equal(t, []model.ID{"42", "1", "2"}, ids(st.Items))
	assert.Empty(t, st.Error)

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.SubjectCommentCreated, pub.events[0].subject)
	assert.Equal(t, "u1", pub.events[0].userID)
	assert.Equal(t, "42", pub.events[0].props["comment_id"])
	assert.Equal(t, discussion, pub.events[0].props["discussion_id"])
}

func TestSubmit_ReplyGoesUnderParent(t *testing.T) {
	api := newFakeAPI()
	api.createResult = comment("50")
	api.createResult.ParentID = ""
	s := newStore(t, api, reader)
	seed(t, s, comment("1", withReplies(comment("11", withParent("1")))), comment("2"))

	got, err := s.SubmitComment(context.Background(), "reply", "1")
	require.NoError(t, err)
	assert.Equal(t, model.ID("1"), got.ParentID, "parent filled in when the backend omits it")

	parent, ok := tree.Find(s.State().Items, "1")
	require.True(t, ok)
	assert.Equal(t, []model.ID{"50", "11"}, ids(parent.Replies))
	assert.Len(t, s.State().Items, 2)
}

func TestSubmit_RollbackRestoresList(t *testing.T) {
	api := newFakeAPI()
	api.createErr = errors.New("500 internal")
	s := newStore(t, api, reader)
	seed(t, s, comment("1"), comment("2", withReplies(comment("21", withParent("2")))))
	before := s.State().Items

	_, err := s.SubmitComment(context.Background(), "hello", "")
	var rb *RollbackError
	require.ErrorAs(t, err, &rb)
	assert.True(t, rb.TempID.IsTemporary())
	assert.Equal(t, before, s.State().Items)
	assert.Empty(t, s.State().Error, "rollbacks never land in shared error state")

	_, err = s.SubmitComment(context.Background(), "hello", "2")
	require.ErrorAs(t, err, &rb)
	assert.Equal(t, before, s.State().Items)
}

func TestSubmit_Preconditions(t *testing.T) {
	api := newFakeAPI()
	s := newStore(t, api, reader)
	seed(t, s, comment("1"))
	ctx := context.Background()

	_, err := s.SubmitComment(ctx, "   ", "")
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = s.SubmitComment(ctx, "hi", "404")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.SubmitComment(ctx, "hi", model.NewTempID())
	assert.ErrorIs(t, err, ErrNotFound)

	anon := newStore(t, api, model.Viewer{})
	_, err = anon.SubmitComment(ctx, "hi", "")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	assert.Len(t, s.State().Items, 1)
}

func TestSubmit_ConfirmedRecordAlreadyLoaded(t *testing.T) {
	api := newFakeAPI()
	api.createResult = comment("1")
	s := newStore(t, api, reader)
	seed(t, s, comment("1"))

	_, err := s.SubmitComment(context.Background(), "dup", "")
	require.NoError(t, err)
	assert.Equal(t, []model.ID{"1"}, ids(s.State().Items))
}

func TestModerate_TransitionTable(t *testing.T) {
	cases := []struct {
		action model.ModerationAction
		from   model.Status
		want   model.Status
	}{
		{model.Approve, model.StatusPending, model.StatusApproved},
		{model.Unapprove, model.StatusApproved, model.StatusPending},
		{model.Restore, model.StatusTrashed, model.StatusApproved},
		{model.Trash, model.StatusApproved, model.StatusTrashed},
		{model.Spam, model.StatusApproved, model.StatusSpam},
	}
	for _, tc := range cases {
		t.Run(tc.action.String(), func(t *testing.T) {
			api := newFakeAPI()
			api.moderateGate = make(chan struct{})
			pub := &recordingPublisher{}
			s := newStore(t, api, operator, func(d *Deps, _ *Options) { d.Events = pub })
			seed(t, s, comment("1", withReplies(comment("5", withParent("1"), withStatus(tc.from)))))

			errc := make(chan error, 1)
			go func() { errc <- s.Moderate(context.Background(), "5", tc.action) }()
			require.Eventually(t, func() bool { return api.moderateCount() == 1 }, time.Second, time.Millisecond)

			c, _ := tree.Find(s.State().Items, "5")
			assert.Equal(t, tc.from, c.Status, "no local change before the server answers")

			close(api.moderateGate)
			require.NoError(t, <-errc)
			c, _ = tree.Find(s.State().Items, "5")
			assert.Equal(t, tc.want, c.Status)

			require.Len(t, pub.events, 1)
			assert.Equal(t, events.SubjectCommentModerated, pub.events[0].subject)
			assert.Equal(t, tc.action.String(), pub.events[0].props["action"])
		})
	}
}

func TestModerate_FailureLeavesStateAlone(t *testing.T) {
	api := newFakeAPI()
	api.moderateErr = errors.New("403")
	s := newStore(t, api, operator)
	seed(t, s, comment("1", withStatus(model.StatusPending)))
	before := s.State().Items

	err := s.Moderate(context.Background(), "1", model.Approve)
	require.Error(t, err)
	assert.Equal(t, before, s.State().Items)
	assert.Empty(t, s.State().Error)
}

func TestModerate_Preconditions(t *testing.T) {
	api := newFakeAPI()
	ctx := context.Background()

	s := newStore(t, api, reader)
	seed(t, s, comment("1"))
	assert.ErrorIs(t, s.Moderate(ctx, "1", model.Approve), ErrForbidden)

	anon := newStore(t, api, model.Viewer{})
	assert.ErrorIs(t, anon.Moderate(ctx, "1", model.Approve), ErrUnauthenticated)
	assert.ErrorIs(t, anon.MarkSpam(ctx, "1"), ErrUnauthenticated)

	op := newStore(t, api, operator)
	assert.ErrorIs(t, op.Moderate(ctx, "1", model.ModerationAction(0)), ErrInvalidAction)
	assert.ErrorIs(t, op.Moderate(ctx, model.NewTempID(), model.Approve), ErrNotFound)

	assert.Zero(t, api.moderateCount(), "rejected before any network call")
}

func TestMarkSpam_AnyParticipant(t *testing.T) {
	api := newFakeAPI()
	s := newStore(t, api, reader)
	seed(t, s, comment("1"))

	require.NoError(t, s.MarkSpam(context.Background(), "1"))
	assert.Equal(t, model.StatusSpam, s.State().Items[0].Status)
	require.Len(t, api.moderateCalls, 1)
	assert.Equal(t, model.Spam, api.moderateCalls[0].action)
}

func TestVote_LocalFirstAndIgnoresFailure(t *testing.T) {
	api := newFakeAPI()
	api.voteErr = errors.New("offline")
	s := newStore(t, api, reader)
	seed(t, s, comment("1", withLikes(4)))
	ctx := context.Background()

	require.NoError(t, s.Vote(ctx, "1", true))
	c := s.State().Items[0]
	assert.Equal(t, 5, c.Likes())
	require.NotNil(t, c.LikedByMe)
	assert.True(t, *c.LikedByMe)

	select {
	case v := <-api.votes:
		assert.Equal(t, voteCall{"1", true}, v)
	case <-time.After(time.Second):
		t.Fatal("vote was never sent")
	}

	require.NoError(t, s.Vote(ctx, "1", true))
	assert.Equal(t, 5, s.State().Items[0].Likes(), "repeat like does not double count")

	require.NoError(t, s.Vote(ctx, "1", false))
	assert.Equal(t, 4, s.State().Items[0].Likes())
	assert.False(t, *s.State().Items[0].LikedByMe)

	assert.ErrorIs(t, s.Vote(ctx, "404", true), ErrNotFound)
	anon := newStore(t, api, model.Viewer{})
	assert.ErrorIs(t, anon.Vote(ctx, "1", true), ErrUnauthenticated)
}

func TestApplyVote_NeverNegative(t *testing.T) {
	liked := true
	c := applyVote(model.Comment{LikedByMe: &liked}, false)
	assert.Equal(t, 0, c.Likes())
}

func TestEditAndDelete_Window(t *testing.T) {
	api := newFakeAPI()
	s := newStore(t, api, reader)
	recent := comment("1")
	recent.Author = model.Author{ID: "u1", DisplayName: "Reader"}
	recent.CreatedAt = fixedNow.Add(-10 * time.Minute).Format(time.RFC3339)
	stale := recent
	stale.ID = "2"
	stale.CreatedAt = fixedNow.Add(-20 * time.Minute).Format("2006-01-02T15:04:05")
	foreign := comment("3")
	seed(t, s, recent, stale, foreign)

	require.NoError(t, s.EditComment("1", " updated "))
	c, _ := tree.Find(s.State().Items, "1")
	assert.Equal(t, "updated", c.Content)
	assert.True(t, c.Edited)

	assert.ErrorIs(t, s.EditComment("2", "late"), ErrEditWindowClosed)
	assert.ErrorIs(t, s.EditComment("3", "not mine"), ErrForbidden)
	assert.ErrorIs(t, s.EditComment("1", " "), ErrEmptyContent)
	assert.ErrorIs(t, s.EditComment("404", "x"), ErrNotFound)

	require.NoError(t, s.DeleteOwnComment("1"))
	c, _ = tree.Find(s.State().Items, "1")
	assert.Equal(t, model.Tombstone, c.Content)
	assert.Equal(t, model.StatusDeleted, c.Status)
	assert.ErrorIs(t, s.EditComment("1", "revive"), ErrForbidden)

	op := newStore(t, api, operator)
	seed(t, op, stale, foreign)
	require.NoError(t, op.DeleteOwnComment("3"))
	require.NoError(t, op.EditComment("2", "operator fix"))

	assert.Zero(t, api.moderateCount(), "edits and deletes stay local")
}

func TestEditComment_MatchesByNameWithoutAuthorID(t *testing.T) {
	s := newStore(t, newFakeAPI(), reader)
	c := comment("1")
	c.Author = model.Author{DisplayName: "reader"}
	c.CreatedAt = fixedNow.Format(time.RFC3339)
	seed(t, s, c)

	require.NoError(t, s.EditComment("1", "mine"))
}
