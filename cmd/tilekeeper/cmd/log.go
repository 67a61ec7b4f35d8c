// Copyright © 2018 One Concern

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/oneconcern/tilekeeper/pkg/odb"
)

var logCmd = &cobra.Command{
	Use:   "log [REVISION]",
	Short: "Show commit history",
	Long:  `Show the commits reachable from a revision, which defaults to HEAD, most recent first.`,
	Args:  usageArgs(cobra.MaximumNArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		r, err := openRepo(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		rev := odb.HEAD
		if len(args) > 0 {
			rev = args[0]
		} else {
			head, err := r.Objects().Head(ctx)
			if err != nil {
				return err
			}
			if head == "" {
				_, _ = fmt.Fprintln(out, "No commits yet")
				return nil
			}
		}
		from, err := resolve(ctx, r, rev)
		if err != nil {
			return err
		}
		if from.commit == "" {
			return usageError(rev + " is not a commit")
		}

		entries, err := r.Objects().Log(ctx, from.commit, tkFlags.log.limit)
		if err != nil {
			return err
		}
		for _, e := range entries {
			_, _ = fmt.Fprintln(out, color.MagentaString("commit %s", e.ID))
			if author := e.Contributor.String(); author != "" {
				_, _ = fmt.Fprintf(out, "Author: %s\n", color.YellowString(author))
			}
			_, _ = fmt.Fprintf(out, "Date:   %s\n", e.Timestamp.Local().Format(time.RFC1123Z))
			_, _ = fmt.Fprintf(out, "Tree:   %s\n\n    %s\n\n", e.Tree, e.Message)
		}
		return nil
	},
}

func init() {
	addLimitFlag(logCmd)
	rootCmd.AddCommand(logCmd)
}
