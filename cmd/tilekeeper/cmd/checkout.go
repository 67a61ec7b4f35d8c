// Copyright © 2018 One Concern

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oneconcern/tilekeeper/pkg/errors"
	"github.com/oneconcern/tilekeeper/pkg/model"
	"github.com/oneconcern/tilekeeper/pkg/odb"
	"github.com/oneconcern/tilekeeper/pkg/repo"
	"github.com/oneconcern/tilekeeper/pkg/workingcopy"
	"github.com/oneconcern/tilekeeper/pkg/workingcopy/status"
)

// ErrUncommittedChanges indicates an operation which would lose uncommitted changes
var ErrUncommittedChanges = errors.New("You have uncommitted changes in your working copy. " +
	"Commit these changes first, or use --discard-changes").WithCode(status.ExitInvalidOperation)

// revision is a resolved revision: a commit and its tree, or a bare tree
type revision struct {
	commit model.CommitID
	tree   model.TreeID
}

func resolve(ctx context.Context, r *repo.Repo, rev string) (revision, error) {
	if commit, err := r.Objects().ResolveCommit(ctx, rev); err == nil {
		cd, err := r.Objects().ReadCommit(ctx, commit)
		if err != nil {
			return revision{}, err
		}
		return revision{commit: commit, tree: cd.Tree}, nil
	}
	tree, err := r.Objects().ResolveTree(ctx, rev)
	if err != nil {
		return revision{}, errors.New(err.Error()).Wrap(status.ErrUsage)
	}
	return revision{tree: tree}, nil
}

// splitRevision separates an optional leading revision from dataset filters
func splitRevision(ctx context.Context, r *repo.Repo, args []string) (revision, []string, error) {
	if len(args) > 0 {
		if rev, err := resolve(ctx, r, args[0]); err == nil {
			return rev, args[1:], nil
		}
	}
	head, err := resolve(ctx, r, odb.HEAD)
	if err != nil && len(args) > 0 {
		return revision{}, nil, errors.New("unknown revision " + args[0]).Wrap(status.ErrUsage)
	}
	return head, args, err
}

// workingCopyForUpdate gets the working copy, creating its parts when needed
func workingCopyForUpdate(ctx context.Context, r *repo.Repo) (*workingcopy.WorkingCopy, error) {
	wc, err := r.WorkingCopy(ctx, repo.AllowUncreated(true))
	if err != nil {
		return nil, err
	}
	for _, p := range wc.Parts() {
		st, err := p.Status(ctx)
		if err != nil {
			_ = wc.Close()
			return nil, err
		}
		if st == workingcopy.Uncreated {
			if err = p.Create(ctx); err != nil {
				_ = wc.Close()
				return nil, err
			}
		}
	}
	return wc, nil
}

var checkoutCmd = &cobra.Command{
	Use:   "checkout [REVISION] [FILTER...]",
	Short: "Check out a revision in the working copy",
	Long: `Update the working copy to a revision, which defaults to HEAD. When the revision is a commit,
HEAD moves to that commit.

Filters restrict the update to some datasets, or tiles of datasets: a filter is a dataset path,
or DATASET:TILE. Checking out a subset of the repository cannot add or remove datasets.

Uncommitted changes are kept: the checkout fails if it would lose them, unless --discard-changes is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		r, err := openRepo(ctx)
		if err != nil {
			return err
		}
		rev, rest, err := splitRevision(ctx, r, args)
		if err != nil {
			return err
		}
		filter, err := parseFilter(rest)
		if err != nil {
			return err
		}

		wc, err := workingCopyForUpdate(ctx, r)
		if err != nil {
			return err
		}
		defer func() {
			_ = wc.Close()
		}()

		if !tkFlags.checkout.discardChanges {
			dirty, err := wc.IsDirty(ctx)
			if err != nil {
				return err
			}
			if dirty {
				return ErrUncommittedChanges
			}
		}

		opts := []workingcopy.ResetOption{
			workingcopy.KeyFilter(filter),
			printWarnings(cmd.ErrOrStderr()),
		}
		if tkFlags.checkout.rewriteFull {
			if !filter.MatchAll() {
				return errors.New("--rewrite-full cannot be used with filters").Wrap(status.ErrUsage)
			}
			opts = append(opts, workingcopy.RewriteFull(true))
		}
		if err = wc.Reset(ctx, rev.tree, opts...); err != nil {
			return err
		}
		if rev.commit != "" {
			if err = r.Objects().SetHead(ctx, rev.commit); err != nil {
				return err
			}
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Checked out tree %s\n", rev.tree)
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset REVISION",
	Short: "Reset the working copy to a revision",
	Long: `Reset the working copy to a revision, discarding uncommitted changes. When the revision is a
commit, HEAD moves to that commit.

With --track-dirty, tiles are updated but the working copy keeps its base tree: the differences
with the revision show as uncommitted changes, and HEAD does not move.`,
	Args: usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		r, err := openRepo(ctx)
		if err != nil {
			return err
		}
		rev, err := resolve(ctx, r, args[0])
		if err != nil {
			return err
		}
		wc, err := workingCopyForUpdate(ctx, r)
		if err != nil {
			return err
		}
		defer func() {
			_ = wc.Close()
		}()

		track := tkFlags.reset.trackDirty
		if err = wc.Reset(ctx, rev.tree, workingcopy.TrackChangesAsDirty(track), printWarnings(cmd.ErrOrStderr())); err != nil {
			return err
		}
		if rev.commit != "" && !track {
			return r.Objects().SetHead(ctx, rev.commit)
		}
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore [FILTER...]",
	Short: "Discard uncommitted changes",
	Long:  `Discard uncommitted changes of the working copy, restricted to some datasets or tiles when filters are given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		r, err := openRepo(ctx)
		if err != nil {
			return err
		}
		filter, err := parseFilter(args)
		if err != nil {
			return err
		}
		wc, err := r.WorkingCopy(ctx)
		if err != nil {
			return err
		}
		defer func() {
			_ = wc.Close()
		}()
		fs, ok := repo.FileSystemPart(wc)
		if !ok {
			return errors.New("no file system working copy").Wrap(status.ErrNotCreated)
		}
		tree, err := fs.Tree(ctx)
		if err != nil {
			return err
		}
		return wc.Reset(ctx, tree, workingcopy.KeyFilter(filter), printWarnings(cmd.ErrOrStderr()))
	},
}

func init() {
	addDiscardChangesFlag(checkoutCmd)
	addRewriteFullFlag(checkoutCmd)
	addTrackDirtyFlag(resetCmd)

	rootCmd.AddCommand(checkoutCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(restoreCmd)
}
