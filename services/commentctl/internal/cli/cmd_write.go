package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/oblivion-comments/internal/comments/engine"
	"github.com/example/oblivion-comments/internal/comments/model"
	"github.com/example/oblivion-comments/internal/comments/tree"
)

func newSubmitCmd(env *Env, f *flags) *cobra.Command {
	var parent string
	cmd := &cobra.Command{
		Use:   "submit <text>...",
		Short: "Post a comment, or a reply with --parent",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.Join(args, " ")
			parentID := model.ID(strings.TrimSpace(parent))
			return withView(cmd, env, f, func(ctx context.Context, s *engine.Store) error {
				if parentID != "" {
					if err := findComment(ctx, s, f, parentID); err != nil {
						return err
					}
				}
				created, err := s.SubmitComment(ctx, content, parentID)
				if err != nil {
					return err
				}
				return printOne(env.Out, created, f.jsonOut)
			})
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "id of the comment to reply to")
	return cmd
}

func newModerateCmd(env *Env, f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "moderate <comment-id> <approve|unapprove|spam|restore|trash>",
		Short: "Apply a moderation action to one comment (operators)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, ok := model.ParseModerationAction(args[1])
			if !ok {
				return fmt.Errorf("%w: %q", engine.ErrInvalidAction, args[1])
			}
			id := model.ID(args[0])
			return withView(cmd, env, f, func(ctx context.Context, s *engine.Store) error {
				if err := s.Moderate(ctx, id, action); err != nil {
					return err
				}
				fmt.Fprintf(env.Out, "#%s -> %s\n", id, action.Target())
				return nil
			})
		},
	}
}

func newSpamCmd(env *Env, f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "spam <comment-id>",
		Short: "Report a comment as spam",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := model.ID(args[0])
			return withView(cmd, env, f, func(ctx context.Context, s *engine.Store) error {
				if err := s.MarkSpam(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(env.Out, "#%s -> %s\n", id, model.StatusSpam)
				return nil
			})
		},
	}
}

func newBulkCmd(env *Env, f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "bulk <approve|unapprove|spam|trash|restore|delete> <comment-id>...",
		Short: "Apply one action to many comments in a single request (operators)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, ok := model.ParseBulkAction(args[0])
			if !ok {
				return fmt.Errorf("%w: %q", engine.ErrInvalidAction, args[0])
			}
			ids := make([]model.ID, 0, len(args)-1)
			for _, a := range args[1:] {
				for _, part := range strings.Split(a, ",") {
					if part = strings.TrimSpace(part); part != "" {
						ids = append(ids, model.ID(part))
					}
				}
			}
			return withView(cmd, env, f, func(ctx context.Context, s *engine.Store) error {
				chosen := make([]model.ID, 0, len(ids))
				for _, id := range ids {
					if !s.IsSelected(id) && s.ToggleSelect(id) {
						chosen = append(chosen, id)
					}
				}
				if len(chosen) == 0 {
					// ToggleSelect refuses non-operators; let the engine say why.
					chosen = ids
				}
				if err := s.BulkAction(ctx, chosen, action); err != nil {
					return err
				}
				fmt.Fprintf(env.Out, "%s applied to %d comments\n", action, len(chosen))
				return nil
			})
		},
	}
}

func newVoteCmd(env *Env, f *flags) *cobra.Command {
	var unlike bool
	cmd := &cobra.Command{
		Use:   "vote <comment-id>",
		Short: "Like a comment, or withdraw the like with --unlike",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := model.ID(args[0])
			return withView(cmd, env, f, func(ctx context.Context, s *engine.Store) error {
				if err := findComment(ctx, s, f, id); err != nil {
					return err
				}
				if err := s.Vote(ctx, id, !unlike); err != nil {
					return err
				}
				c, _ := tree.Find(s.State().Items, id)
				fmt.Fprintf(env.Out, "#%s likes=%d\n", id, c.Likes())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&unlike, "unlike", false, "withdraw a like")
	return cmd
}
