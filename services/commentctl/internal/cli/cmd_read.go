package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/oblivion-comments/internal/comments/engine"
	"github.com/example/oblivion-comments/internal/comments/model"
	"github.com/example/oblivion-comments/internal/comments/tree"
)

func newListCmd(env *Env, f *flags) *cobra.Command {
	var sortMode, search string
	var expandSaved bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Load top-level comments and print the visible thread",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withView(cmd, env, f, func(ctx context.Context, s *engine.Store) error {
				if cmd.Flags().Changed("sort") {
					if err := s.SetSort(ctx, model.SortMode(sortMode)); err != nil {
						return err
					}
				}
				if cmd.Flags().Changed("search") {
					if err := s.SetSearchQuery(ctx, search); err != nil {
						return err
					}
				}
				if err := loadPages(ctx, s, f.pages, nil); err != nil {
					return err
				}
				if expandSaved {
					// Saved expansions are prefetched by the page load.
					if err := s.Drain(ctx); err != nil {
						return err
					}
				}
				return printListing(env.Out, s, f.jsonOut)
			})
		},
	}
	cmd.Flags().StringVar(&sortMode, "sort", string(model.SortNewest), "newest, oldest, mostLiked or mostReplied (remembered)")
	cmd.Flags().StringVar(&search, "search", "", "filter top-level comments by author or text (remembered)")
	cmd.Flags().BoolVar(&expandSaved, "with-replies", true, "wait for replies of threads expanded earlier")
	return cmd
}

func newRepliesCmd(env *Env, f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "replies <comment-id>",
		Short: "Expand a comment and print its replies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := model.ID(args[0])
			return withView(cmd, env, f, func(ctx context.Context, s *engine.Store) error {
				if err := findComment(ctx, s, f, id); err != nil {
					return err
				}
				if s.IsExpanded(id) {
					// Restored expansions load through the page prefetch.
					if err := s.Drain(ctx); err != nil {
						return err
					}
				} else if err := s.ToggleExpand(ctx, id); err != nil {
					return err
				}
				c, _ := tree.Find(s.State().Items, id)
				return printOne(env.Out, c, f.jsonOut)
			})
		},
	}
}

func newWatchCmd(env *Env, f *flags) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reload the first page periodically and report new comments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if interval <= 0 {
				return fmt.Errorf("--interval must be positive, got %s", interval)
			}
			ctx := cmd.Context()
			s, err := openView(ctx, env, f)
			if err != nil {
				return err
			}
			defer s.Close()

			seen := map[model.ID]bool{}
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for first := true; ; first = false {
				if err := s.LoadInitial(ctx); err != nil {
					env.Logger.Warn("watch reload failed", zap.Error(err))
				} else {
					for _, c := range s.Visible() {
						if seen[c.ID] {
							continue
						}
						seen[c.ID] = true
						if !first {
							printComment(env.Out, c, 0)
						}
					}
					if first {
						fmt.Fprintf(env.Out, "-- watching %s, %d comments on page 1\n", s.DiscussionID(), len(seen))
					}
				}
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "reload interval")
	return cmd
}

// findComment pages through the discussion until id is in the tree.
func findComment(ctx context.Context, s *engine.Store, f *flags, id model.ID) error {
	present := func() bool { return tree.Contains(s.State().Items, id) }
	if err := loadPages(ctx, s, f.pages, present); err != nil {
		return err
	}
	if !present() {
		return fmt.Errorf("%w: comment %s is not among the loaded pages", engine.ErrNotFound, id)
	}
	return nil
}
