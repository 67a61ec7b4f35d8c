package cmd

import (
	"context"
	"fmt"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/oneconcern/tilekeeper/pkg/importer"
)

var importCmd = &cobra.Command{
	Use:   "import SOURCE...",
	Short: "Import tiles as a dataset",
	Long: `Import tile files, or directories of tile files, as a dataset, and commit the result.

By default, the dataset must not exist yet. Use --replace to replace all the tiles of an existing
dataset, --update to add or replace some of its tiles, or --delete to remove some of its tiles.

Example:

% tilekeeper import --dataset nz/auckland /data/lidar/auckland/*.laz
`,
	Args: usageArgs(cobra.ArbitraryArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		r, err := openRepo(ctx)
		if err != nil {
			return err
		}

		res, err := importer.Import(ctx, r, importer.Options{
			DatasetPath: tkFlags.importer.datasetPath,
			Sources:     args,
			Message:     tkFlags.commit.message,
			Author:      tkFlags.author(),
			Replace:     tkFlags.importer.replace,
			Update:      tkFlags.importer.update,
			Delete:      tkFlags.importer.delete,
			Workers:     tkFlags.root.workers,
			Checkout:    tkFlags.importer.checkout,
		})
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d files (%s) into %s: %d tiles\nCommit %s\n",
			res.Imported, units.HumanSize(float64(res.Bytes)), res.Dataset.Path, len(res.Dataset.Tiles), res.Commit)
		return nil
	},
}

func init() {
	requiredFlags := []string{addDatasetFlag(importCmd)}
	addMessageFlag(importCmd)
	addAuthorFlags(importCmd)
	addImportModeFlags(importCmd)
	addImportCheckoutFlag(importCmd)

	for _, flag := range requiredFlags {
		err := importCmd.MarkFlagRequired(flag)
		if err != nil {
			logFatalln(err)
		}
	}

	rootCmd.AddCommand(importCmd)
}
