package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/example/oblivion-comments/internal/comments/modapi"
	"github.com/example/oblivion-comments/internal/comments/model"
	"github.com/example/oblivion-comments/internal/platform/api"
	"github.com/example/oblivion-comments/internal/platform/auth"
	"github.com/example/oblivion-comments/internal/platform/httpserver"
	"github.com/example/oblivion-comments/services/moderation/internal/store"
)

var moderationActions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_backend_actions_total",
	Help: "Moderation requests accepted by the dev backend, by route and action.",
}, []string{"route", "action"})

type moderateRequest struct {
	Action string `json:"action"`
}

type bulkRequest struct {
	CommentIDs []model.ID `json:"comment_ids"`
	Action     string     `json:"action"`
}

type voteRequest struct {
	ID   model.ID `json:"id"`
	Like bool     `json:"like"`
}

// Policy tunes how new comments enter moderation.
type Policy struct {
	// AutoApprove publishes reader comments immediately instead of holding
	// them for review.
	AutoApprove bool
}

// ListComments handles GET /api/comments.
func ListComments(cs store.CommentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		viewer := auth.ViewerFromContext(r.Context())
		qv := r.URL.Query()

		discussion := strings.TrimSpace(qv.Get("discussion"))
		if discussion == "" {
			api.BadRequest(w, "MISSING_DISCUSSION", "discussion is required", rid, nil)
			return
		}

		statuses, ok := statusFilter(qv.Get("status"), viewer.Operator)
		if !ok {
			api.Forbidden(w, "FORBIDDEN", "status filter requires moderation rights", rid)
			return
		}

		q := store.ListQuery{
			DiscussionID: discussion,
			Statuses:     statuses,
			PerPage:      intParam(qv.Get("per_page"), 10),
			Page:         intParam(qv.Get("page"), 1),
			ViewerID:     viewer.UserID,
		}
		if raw, present := qv["parent"]; present && len(raw) > 0 {
			parent := model.ID(strings.TrimSpace(raw[0]))
			if parent == "0" {
				parent = ""
			}
			q.Parent = &parent
		}

		items, err := cs.List(r.Context(), q)
		if err != nil {
			api.Internal(w, rid)
			return
		}
		out := make([]modapi.RawComment, len(items))
		for i, c := range items {
			out[i] = modapi.Encode(c)
		}
		api.WriteJSON(w, http.StatusOK, out)
	}
}

// CreateComment handles POST /api/comments.
func CreateComment(cs store.CommentStore, policy Policy, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		viewer := auth.ViewerFromContext(r.Context())
		if !viewer.Authenticated() {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", rid)
			return
		}

		var req modapi.CreateRequest
		if err := api.DecodeJSON(w, r, &req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", rid, nil)
			return
		}
		content := strings.TrimSpace(req.Content)
		if content == "" {
			api.BadRequest(w, "EMPTY_CONTENT", "content must not be empty", rid, nil)
			return
		}
		if strings.TrimSpace(req.DiscussionID) == "" {
			api.BadRequest(w, "MISSING_DISCUSSION", "discussionId is required", rid, nil)
			return
		}

		status := model.StatusPending
		if viewer.Operator || policy.AutoApprove {
			status = model.StatusApproved
		}
		name := viewer.DisplayName
		if name == "" {
			name = viewer.UserID
		}

		created, err := cs.Create(r.Context(), model.Comment{
			DiscussionID: strings.TrimSpace(req.DiscussionID),
			ParentID:     req.Parent,
			Author: model.Author{
				ID:          viewer.UserID,
				DisplayName: name,
				ProfileSlug: slug(name),
			},
			Content: content,
			Status:  status,
		})
		switch {
		case errors.Is(err, store.ErrParentNotFound):
			api.NotFound(w, "PARENT_NOT_FOUND", "parent comment not found", rid)
			return
		case err != nil:
			log.Error("create comment", zap.Error(err), zap.String("request_id", rid))
			api.Internal(w, rid)
			return
		}
		moderationActions.WithLabelValues("create", string(created.Status)).Inc()
		api.WriteJSON(w, http.StatusCreated, modapi.Encode(created))
	}
}

// ModerateComment handles PATCH /api/comments/{comment_id}.
func ModerateComment(cs store.CommentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id := model.ID(strings.TrimSpace(chi.URLParam(r, "comment_id")))
		if id == "" {
			api.BadRequest(w, "MISSING_ID", "comment_id is required", rid, nil)
			return
		}

		var req moderateRequest
		if err := api.DecodeJSON(w, r, &req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", rid, nil)
			return
		}
		action, ok := model.ParseModerationAction(req.Action)
		if !ok {
			api.Unprocessable(w, "INVALID_ACTION", "unknown moderation action", rid, map[string]any{"action": req.Action})
			return
		}

		if err := cs.SetStatus(r.Context(), id, action.Target()); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				api.NotFound(w, "NOT_FOUND", "comment not found", rid)
				return
			}
			api.Internal(w, rid)
			return
		}
		moderationActions.WithLabelValues("moderate", action.String()).Inc()
		w.WriteHeader(http.StatusNoContent)
	}
}

// BulkModerate handles POST /api/comments/bulk.
func BulkModerate(cs store.CommentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		var req bulkRequest
		if err := api.DecodeJSON(w, r, &req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", rid, nil)
			return
		}
		if len(req.CommentIDs) == 0 {
			api.BadRequest(w, "EMPTY_SELECTION", "comment_ids must not be empty", rid, nil)
			return
		}
		action, ok := model.ParseBulkAction(req.Action)
		if !ok {
			api.Unprocessable(w, "INVALID_ACTION", "unknown bulk action", rid, map[string]any{"action": req.Action})
			return
		}

		n, err := cs.Bulk(r.Context(), req.CommentIDs, action)
		if err != nil {
			api.Internal(w, rid)
			return
		}
		moderationActions.WithLabelValues("bulk", action.String()).Add(float64(n))
		api.WriteJSON(w, http.StatusOK, map[string]int{"updated": n})
	}
}

// VoteComment handles POST /api/comments/vote.
func VoteComment(cs store.CommentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		viewer := auth.ViewerFromContext(r.Context())
		if !viewer.Authenticated() {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", rid)
			return
		}

		var req voteRequest
		if err := api.DecodeJSON(w, r, &req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", rid, nil)
			return
		}
		if req.ID == "" {
			api.BadRequest(w, "MISSING_ID", "id is required", rid, nil)
			return
		}

		likes, err := cs.Vote(r.Context(), req.ID, viewer.UserID, req.Like)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				api.NotFound(w, "NOT_FOUND", "comment not found", rid)
				return
			}
			api.Internal(w, rid)
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"id": req.ID, "likes": likes, "likedByMe": req.Like})
	}
}

// statusFilter maps the status query value to the statuses a caller may
// list. Readers only ever see approved comments; operators also see held
// ones by default and may ask for any single status or "all".
func statusFilter(raw string, operator bool) ([]model.Status, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch {
	case raw == "" && operator:
		return []model.Status{model.StatusApproved, model.StatusPending}, true
	case raw == "":
		return []model.Status{model.StatusApproved}, true
	case raw == "all":
		return nil, operator
	}
	s := model.ParseStatus(raw)
	if s != model.StatusApproved && !operator {
		return nil, false
	}
	return []model.Status{s}, true
}

func intParam(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func slug(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}
