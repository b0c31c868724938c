// Package cli implements commentctl, a terminal front end that mounts one
// comment view against a moderation backend and drives it.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/oblivion-comments/internal/comments/engine"
	"github.com/example/oblivion-comments/internal/comments/modapi"
	"github.com/example/oblivion-comments/internal/comments/model"
	"github.com/example/oblivion-comments/internal/comments/uistate"
	"github.com/example/oblivion-comments/internal/platform/auth"
	"github.com/example/oblivion-comments/internal/platform/config"
	"github.com/example/oblivion-comments/internal/platform/httpserver"
)

// Env carries what the commands need from the process. Tests build it by
// hand; main fills it from config.
type Env struct {
	Config  config.AppConfig
	Logger  *zap.Logger
	Out     io.Writer
	UIState uistate.Store
	Events  engine.EventPublisher
	// HTTPClient overrides the moderation API client's transport.
	HTTPClient *http.Client
}

type flags struct {
	apiBase        string
	token          string
	discussion     string
	session        string
	status         string
	pageSize       int
	pages          int
	moderationView bool
	jsonOut        bool
	timeout        time.Duration
	metricsAddr    string
}

// NewRootCommand builds the command tree bound to env.
func NewRootCommand(env *Env) *cobra.Command {
	if env.Logger == nil {
		env.Logger = zap.NewNop()
	}
	if env.Out == nil {
		env.Out = os.Stdout
	}
	f := &flags{}

	root := &cobra.Command{
		Use:           "commentctl",
		Short:         "Browse and moderate threaded comments from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(f.discussion) == "" {
				return errors.New("--discussion is required")
			}
			if f.metricsAddr != "" {
				serveMetrics(cmd.Context(), f.metricsAddr, env.Logger)
			}
			return nil
		},
	}
	cfg := env.Config
	pf := root.PersistentFlags()
	pf.StringVar(&f.apiBase, "api-base", cfg.Comments.APIBase, "comments collection endpoint")
	pf.StringVar(&f.token, "token", cfg.Comments.APIToken, "bearer token for the moderation API")
	pf.StringVarP(&f.discussion, "discussion", "d", "", "discussion (post) id")
	pf.StringVar(&f.session, "session", "", "key for saved view state; defaults to the token subject")
	pf.StringVar(&f.status, "status", "", "status filter forwarded to top-level listings (operators)")
	pf.IntVar(&f.pageSize, "page-size", cfg.Comments.PageSize, "top-level comments per page")
	pf.IntVar(&f.pages, "pages", 1, "how many top-level pages to load")
	pf.BoolVar(&f.moderationView, "moderation-view", false, "show spam and trashed comments (operators)")
	pf.BoolVar(&f.jsonOut, "json", false, "print JSON instead of text")
	pf.DurationVar(&f.timeout, "timeout", 30*time.Second, "overall deadline for the command")
	pf.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")

	root.AddCommand(
		newListCmd(env, f),
		newWatchCmd(env, f),
		newRepliesCmd(env, f),
		newSubmitCmd(env, f),
		newModerateCmd(env, f),
		newSpamCmd(env, f),
		newBulkCmd(env, f),
		newVoteCmd(env, f),
	)
	return root
}

// Main runs commentctl with args and returns the process exit code.
func Main(ctx context.Context, env *Env, args []string) int {
	root := NewRootCommand(env)
	root.SetArgs(args)
	root.SetOut(env.Out)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "error:", err)
		return 1
	}
	return 0
}

// viewer maps the token to the caller it stands for. With a JWT secret
// configured the token is verified; otherwise it is only decoded and the
// backend stays the authority.
func viewer(env *Env, token string) (model.Viewer, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return model.Viewer{}, nil
	}
	var (
		claims *auth.Claims
		err    error
	)
	if secret := env.Config.JWTSecret; secret != "" {
		claims, err = auth.JWTVerifier{Secret: []byte(secret)}.Parse(token)
	} else {
		claims, err = auth.PeekClaims(token)
	}
	if err != nil {
		return model.Viewer{}, fmt.Errorf("token: %w", err)
	}
	return claims.Viewer(), nil
}

// openView mounts a view for the selected discussion. The caller closes it.
func openView(ctx context.Context, env *Env, f *flags) (*engine.Store, error) {
	v, err := viewer(env, f.token)
	if err != nil {
		return nil, err
	}

	client := modapi.New(f.apiBase)
	client.Token = f.token
	if env.Config.Comments.BulkPath != "" {
		client.BulkPath = env.Config.Comments.BulkPath
	}
	if env.Config.Comments.VotePath != "" {
		client.VotePath = env.Config.Comments.VotePath
	}
	if env.HTTPClient != nil {
		client.HTTPClient = env.HTTPClient
	} else if t := env.Config.Comments.HTTPTimeout; t > 0 {
		client.HTTPClient.Timeout = t
	}
	if n := env.Config.Comments.BreakerFailures; n > 0 {
		client.Breaker = modapi.NewBreaker("modapi", modapi.BreakerSettings{
			Failures: uint32(n),
			Timeout:  env.Config.Comments.BreakerTimeout,
		}, env.Logger)
	}

	session := f.session
	if session == "" {
		session = v.UserID
	}
	var bridge *uistate.Bridge
	if env.UIState != nil {
		bridge = uistate.NewBridge(env.UIState, session, env.Logger)
	}

	return engine.New(ctx, engine.Deps{
		API:    client,
		Bridge: bridge,
		Events: env.Events,
		Logger: env.Logger,
	}, engine.Options{
		DiscussionID:   strings.TrimSpace(f.discussion),
		Viewer:         v,
		PageSize:       f.pageSize,
		EditWindow:     env.Config.Comments.EditWindow,
		ModerationView: f.moderationView,
		Status:         f.status,
	})
}

// withView runs fn against a freshly mounted view and tears it down,
// letting background confirmations finish first.
func withView(cmd *cobra.Command, env *Env, f *flags, fn func(ctx context.Context, s *engine.Store) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), f.timeout)
	defer cancel()

	s, err := openView(ctx, env, f)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := fn(ctx, s); err != nil {
		return err
	}
	if err := s.Drain(ctx); err != nil {
		env.Logger.Debug("background work still running at exit", zap.Error(err))
	}
	return nil
}

// maxSearchPages bounds how far a command pages to find one comment.
const maxSearchPages = 20

// loadPages loads n top-level pages, or fewer when the discussion runs out.
// With found set it instead keeps paging until found reports true.
func loadPages(ctx context.Context, s *engine.Store, n int, found func() bool) error {
	limit := n
	if found != nil {
		limit = max(n, maxSearchPages)
	}
	if err := s.LoadInitial(ctx); err != nil {
		return err
	}
	for loaded := 1; loaded < limit && s.State().HasMore; loaded++ {
		if found != nil && found() {
			return nil
		}
		if err := s.LoadMoreTop(ctx); err != nil {
			return err
		}
	}
	return nil
}

// serveMetrics exposes /metrics until ctx ends.
func serveMetrics(ctx context.Context, addr string, log *zap.Logger) {
	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{Metrics: true})
	srv := httpserver.New(httpserver.Options{Addr: addr, ServiceName: "commentctl", Logger: log, Router: r})
	go func() {
		if err := srv.Serve(ctx, log); err != nil {
			log.Warn("metrics server", zap.Error(err))
		}
	}()
}
