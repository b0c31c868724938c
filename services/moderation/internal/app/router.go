// Package app assembles the dev moderation backend's HTTP surface.
package app

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/oblivion-comments/internal/platform/auth"
	"github.com/example/oblivion-comments/internal/platform/httpserver"
	"github.com/example/oblivion-comments/services/moderation/internal/handlers"
	"github.com/example/oblivion-comments/services/moderation/internal/store"
)

// BasePath is where the comments collection is mounted.
const BasePath = "/api/comments"

type Deps struct {
	Comments    store.CommentStore
	Verifier    auth.JWTVerifier
	Policy      handlers.Policy
	Logger      *zap.Logger
	CORSOrigins string
	ReadyFunc   func() error
}

// NewRouter wires the moderation routes: reads are public, writes need a
// token, and moderation needs an operator role.
func NewRouter(d Deps) chi.Router {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{
		ReadyFunc:   d.ReadyFunc,
		CORSOrigins: d.CORSOrigins,
		Logger:      d.Logger,
		Metrics:     true,
	})

	r.Route(BasePath, func(r chi.Router) {
		r.With(auth.OptionalUser(d.Verifier)).Get("/", handlers.ListComments(d.Comments))

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser(d.Verifier))
			r.Post("/", handlers.CreateComment(d.Comments, d.Policy, d.Logger))
			r.Post("/vote", handlers.VoteComment(d.Comments))

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireOperator)
				r.Post("/bulk", handlers.BulkModerate(d.Comments))
				r.Patch("/{comment_id}", handlers.ModerateComment(d.Comments))
			})
		})
	})
	return r
}
