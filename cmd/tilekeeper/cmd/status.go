// Copyright © 2018 One Concern

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/oneconcern/tilekeeper/pkg/diff"
	"github.com/oneconcern/tilekeeper/pkg/model"
	"github.com/oneconcern/tilekeeper/pkg/repo"
	"github.com/oneconcern/tilekeeper/pkg/workingcopy"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of the working copy",
	Long: `Show the commit at HEAD, the parts of the working copy with their status,
and the uncommitted changes of each dataset.`,
	Args: usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		r, err := openRepo(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		head, err := r.Objects().Head(ctx)
		if err != nil {
			return err
		}
		if head == "" {
			_, _ = fmt.Fprintln(out, "No commits yet")
		} else {
			_, _ = fmt.Fprintf(out, "HEAD is commit %s\n", head)
		}

		wc, err := r.WorkingCopy(ctx, repo.AllowUncreated(true), repo.AllowInvalidState(true))
		if err != nil {
			return err
		}
		defer func() {
			_ = wc.Close()
		}()

		created, err := printParts(ctx, out, wc)
		if err != nil || !created {
			return err
		}

		fs, _ := repo.FileSystemPart(wc)
		changes, err := fs.Diff(ctx, model.MatchAll)
		if err != nil {
			return err
		}
		printChangeCounts(out, changes)
		return nil
	},
}

// printParts lists the parts of a working copy. The result is true when all parts are created.
func printParts(ctx context.Context, out io.Writer, wc *workingcopy.WorkingCopy) (bool, error) {
	table := uitable.New()
	table.MaxColWidth = 80
	table.AddRow("TYPE", "LOCATION", "STATUS", "TREE")
	allCreated := true
	for _, p := range wc.Parts() {
		st, err := p.Status(ctx)
		if err != nil {
			return false, err
		}
		tree := ""
		if st == workingcopy.Created {
			id, err := p.Tree(ctx)
			if err != nil {
				return false, err
			}
			tree = shortID(string(id))
		} else {
			allCreated = false
		}
		table.AddRow(p.Type(), p.String(), st.String(), tree)
	}
	_, _ = fmt.Fprintln(out, table)
	return allCreated, nil
}

func printChangeCounts(out io.Writer, changes diff.RepoDiff) {
	changes = changes.Prune()
	if len(changes) == 0 {
		_, _ = fmt.Fprintln(out, "Nothing to commit, working copy clean")
		return
	}
	_, _ = fmt.Fprintln(out, "Changes in working copy:")
	table := uitable.New()
	table.AddRow("DATASET", "INSERTS", "UPDATES", "DELETES")
	for _, p := range changes.Paths() {
		counts := changes[p].Counts()
		table.AddRow(
			color.CyanString(p),
			color.GreenString("%d", counts[diff.Insert]),
			color.YellowString("%d", counts[diff.Update]),
			color.RedString("%d", counts[diff.Delete]),
		)
	}
	_, _ = fmt.Fprintln(out, table)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
