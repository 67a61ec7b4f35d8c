package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/oneconcern/tilekeeper/pkg/diff"
	"github.com/oneconcern/tilekeeper/pkg/repo"
)

var diffCmd = &cobra.Command{
	Use:   "diff [FILTER...]",
	Short: "Show uncommitted changes",
	Long: `Show the uncommitted changes of the working copy, tile by tile.

Filters restrict the output to some datasets, or tiles of datasets: a filter is a dataset path,
or DATASET:TILE.`,
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
		fs, _ := repo.FileSystemPart(wc)
		changes, err := fs.Diff(ctx, filter)
		if err != nil {
			return err
		}
		printDiff(cmd.OutOrStdout(), changes)
		return nil
	},
}

func printDiff(out io.Writer, changes diff.RepoDiff) {
	for _, p := range changes.Paths() {
		_, _ = fmt.Fprintln(out, color.CyanString("--- %s", p))
		for _, d := range changes[p].Sorted() {
			var line string
			switch d.Type {
			case diff.Insert:
				line = color.GreenString("+ %s (%s)", d.NewKey, d.NewValue.OID)
			case diff.Delete:
				line = color.RedString("- %s (%s)", d.OldKey, d.OldValue.OID)
			default:
				line = color.YellowString("~ %s (%s -> %s)", renamed(d), d.OldValue.OID, d.NewValue.OID)
			}
			_, _ = fmt.Fprintln(out, line)
		}
	}
}

func renamed(d diff.Delta) string {
	if d.IsRename() {
		return d.OldKey + " -> " + d.NewKey
	}
	return d.NewKey
}

func init() {
	rootCmd.AddCommand(diffCmd)
}
