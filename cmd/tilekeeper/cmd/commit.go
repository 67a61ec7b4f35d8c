package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oneconcern/tilekeeper/pkg/commit"
	"github.com/oneconcern/tilekeeper/pkg/diff"
	"github.com/oneconcern/tilekeeper/pkg/errors"
	"github.com/oneconcern/tilekeeper/pkg/workingcopy/status"
)

var commitCmd = &cobra.Command{
	Use:   "commit -m MESSAGE [FILTER...]",
	Short: "Record the changes of the working copy",
	Long: `Record the uncommitted changes of the working copy as a new commit, and move HEAD to it.

Filters restrict the commit to some datasets, or tiles of datasets: changes outside of the filters
remain uncommitted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if tkFlags.commit.message == "" {
			return errors.New("a commit message is required").Wrap(status.ErrUsage)
		}
		ctx := context.Background()
		r, err := openRepo(ctx)
		if err != nil {
			return err
		}
		filter, err := parseFilter(args)
		if err != nil {
			return err
		}
		res, err := commit.FromWorkingCopy(ctx, r, tkFlags.commit.message, tkFlags.author(), filter)
		if err != nil {
			return err
		}

		var inserts, updates, deletes int
		for _, dd := range res.Diff {
			counts := dd.Counts()
			inserts += counts[diff.Insert]
			updates += counts[diff.Update]
			deletes += counts[diff.Delete]
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Commit %s\n%d datasets changed: %d inserts, %d updates, %d deletes\n",
			res.Commit, len(res.Diff), inserts, updates, deletes)
		return nil
	},
}

func init() {
	addMessageFlag(commitCmd)
	addAuthorFlags(commitCmd)
	rootCmd.AddCommand(commitCmd)
}
