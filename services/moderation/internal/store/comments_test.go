package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/oblivion-comments/internal/comments/model"
)

func newClockedStore() *InMemoryCommentStore {
	s := NewInMemoryCommentStore()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	return s
}

func topLevel() *model.ID {
	var id model.ID
	return &id
}

func TestInMemoryCommentStore_Create(t *testing.T) {
	s := newClockedStore()
	ctx := context.Background()

	c, err := s.Create(ctx, model.Comment{DiscussionID: "7", Author: model.Author{ID: "u1", DisplayName: "Ana"}, Content: "hello"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.ID != "1" {
		t.Fatalf("expected id 1, got %q", c.ID)
	}
	if c.Status != model.StatusPending {
		t.Fatalf("expected pending by default, got %q", c.Status)
	}
	if c.CreatedAt != "2024-05-01T10:01:00" {
		t.Fatalf("unexpected date %q", c.CreatedAt)
	}
	if c.Likes() != 0 || c.RepliesTotal() != 0 {
		t.Fatalf("expected zero counters, got likes=%d replies=%d", c.Likes(), c.RepliesTotal())
	}
}

func TestInMemoryCommentStore_CreateValidatesParent(t *testing.T) {
	s := newClockedStore()
	ctx := context.Background()

	if _, err := s.Create(ctx, model.Comment{Content: "x"}); !errors.Is(err, ErrDiscussionEmpty) {
		t.Fatalf("expected ErrDiscussionEmpty, got %v", err)
	}
	if _, err := s.Create(ctx, model.Comment{DiscussionID: "7", ParentID: "99", Content: "x"}); !errors.Is(err, ErrParentNotFound) {
		t.Fatalf("expected ErrParentNotFound, got %v", err)
	}
	other, _ := s.Create(ctx, model.Comment{DiscussionID: "8", Content: "elsewhere"})
	if _, err := s.Create(ctx, model.Comment{DiscussionID: "7", ParentID: other.ID, Content: "x"}); !errors.Is(err, ErrParentNotFound) {
		t.Fatalf("expected parent from another discussion to be rejected, got %v", err)
	}
}

func TestInMemoryCommentStore_ListFiltersAndPages(t *testing.T) {
	s := newClockedStore()
	ctx := context.Background()

	a, _ := s.Create(ctx, model.Comment{DiscussionID: "7", Content: "a", Status: model.StatusApproved})
	b, _ := s.Create(ctx, model.Comment{DiscussionID: "7", Content: "b", Status: model.StatusApproved})
	_, _ = s.Create(ctx, model.Comment{DiscussionID: "7", Content: "c", Status: model.StatusSpam})
	_, _ = s.Create(ctx, model.Comment{DiscussionID: "7", ParentID: a.ID, Content: "reply", Status: model.StatusApproved})
	_, _ = s.Create(ctx, model.Comment{DiscussionID: "7", ParentID: a.ID, Content: "held", Status: model.StatusPending})
	_, _ = s.Create(ctx, model.Comment{DiscussionID: "8", Content: "other"})

	approved := []model.Status{model.StatusApproved}
	page1, err := s.List(ctx, ListQuery{DiscussionID: "7", Statuses: approved, Parent: topLevel(), PerPage: 1, Page: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page1) != 1 || page1[0].ID != b.ID {
		t.Fatalf("expected newest approved first, got %+v", page1)
	}
	page2, _ := s.List(ctx, ListQuery{DiscussionID: "7", Statuses: approved, Parent: topLevel(), PerPage: 1, Page: 2})
	if len(page2) != 1 || page2[0].ID != a.ID {
		t.Fatalf("expected a on page 2, got %+v", page2)
	}
	if page2[0].RepliesTotal() != 1 {
		t.Fatalf("expected 1 approved reply counted, got %d", page2[0].RepliesTotal())
	}
	page3, _ := s.List(ctx, ListQuery{DiscussionID: "7", Statuses: approved, Parent: topLevel(), PerPage: 1, Page: 3})
	if len(page3) != 0 {
		t.Fatalf("expected empty page, got %d", len(page3))
	}

	all, _ := s.List(ctx, ListQuery{DiscussionID: "7", Parent: topLevel(), PerPage: 10})
	if len(all) != 3 {
		t.Fatalf("expected 3 top-level comments of any status, got %d", len(all))
	}

	parent := a.ID
	children, _ := s.List(ctx, ListQuery{DiscussionID: "7", Parent: &parent, PerPage: 10})
	if len(children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(children))
	}
}

func TestInMemoryCommentStore_SetStatusAndBulk(t *testing.T) {
	s := newClockedStore()
	ctx := context.Background()

	a, _ := s.Create(ctx, model.Comment{DiscussionID: "7", Content: "a"})
	b, _ := s.Create(ctx, model.Comment{DiscussionID: "7", Content: "b"})
	_, _ = s.Create(ctx, model.Comment{DiscussionID: "7", ParentID: b.ID, Content: "child of b"})

	if err := s.SetStatus(ctx, "404", model.StatusSpam); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.SetStatus(ctx, a.ID, model.StatusSpam); err != nil {
		t.Fatalf("set status: %v", err)
	}
	got, _ := s.Get(ctx, a.ID)
	if got.Status != model.StatusSpam {
		t.Fatalf("expected spam, got %q", got.Status)
	}

	n, err := s.Bulk(ctx, []model.ID{a.ID, "404"}, model.BulkApprove)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 match, got %d (%v)", n, err)
	}
	got, _ = s.Get(ctx, a.ID)
	if got.Status != model.StatusApproved {
		t.Fatalf("expected approved, got %q", got.Status)
	}

	n, _ = s.Bulk(ctx, []model.ID{b.ID}, model.BulkDelete)
	if n != 1 {
		t.Fatalf("expected 1 deleted, got %d", n)
	}
	rest, _ := s.List(ctx, ListQuery{DiscussionID: "7", PerPage: 10})
	if len(rest) != 1 || rest[0].ID != a.ID {
		t.Fatalf("expected only a to remain, got %+v", rest)
	}
}

func TestInMemoryCommentStore_Vote(t *testing.T) {
	s := newClockedStore()
	ctx := context.Background()
	c, _ := s.Create(ctx, model.Comment{DiscussionID: "7", Content: "likeable", Status: model.StatusApproved})

	if n, _ := s.Vote(ctx, c.ID, "u1", true); n != 1 {
		t.Fatalf("expected 1 like, got %d", n)
	}
	if n, _ := s.Vote(ctx, c.ID, "u1", true); n != 1 {
		t.Fatalf("expected repeated like to be idempotent, got %d", n)
	}
	if n, _ := s.Vote(ctx, c.ID, "u2", true); n != 2 {
		t.Fatalf("expected 2 likes, got %d", n)
	}

	list, _ := s.List(ctx, ListQuery{DiscussionID: "7", ViewerID: "u1"})
	if list[0].LikedByMe == nil || !*list[0].LikedByMe {
		t.Fatal("expected likedByMe for u1")
	}

	if n, _ := s.Vote(ctx, c.ID, "u1", false); n != 1 {
		t.Fatalf("expected unlike to drop to 1, got %d", n)
	}
	if _, err := s.Vote(ctx, "404", "u1", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBulkTarget(t *testing.T) {
	cases := map[model.BulkAction]model.Status{
		model.BulkApprove:   model.StatusApproved,
		model.BulkRestore:   model.StatusApproved,
		model.BulkUnapprove: model.StatusPending,
		model.BulkSpam:      model.StatusSpam,
		model.BulkTrash:     model.StatusTrashed,
	}
	for action, want := range cases {
		got, ok := BulkTarget(action)
		if !ok || got != want {
			t.Fatalf("%s: expected %q, got %q", action, want, got)
		}
	}
	if _, ok := BulkTarget(model.BulkDelete); ok {
		t.Fatal("delete has no target status")
	}
}
