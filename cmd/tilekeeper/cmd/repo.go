package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/oneconcern/tilekeeper/pkg/errors"
	"github.com/oneconcern/tilekeeper/pkg/model"
	"github.com/oneconcern/tilekeeper/pkg/repo"
	"github.com/oneconcern/tilekeeper/pkg/workingcopy"
	"github.com/oneconcern/tilekeeper/pkg/workingcopy/status"
)

func repoPath() string {
	if tkFlags.root.repoPath == "" {
		return "."
	}
	return tkFlags.root.repoPath
}

func repoOptions() []repo.Option {
	return []repo.Option{
		repo.Logger(logger),
		repo.Remote(tkFlags.root.remote),
		repo.DefaultRemote(config.Remote),
		repo.Workers(tkFlags.root.workers),
	}
}

func openRepo(ctx context.Context) (*repo.Repo, error) {
	return repo.Open(ctx, repoPath(), repoOptions()...)
}

// printWarnings reports non fatal errors met while updating the working copy
func printWarnings(out io.Writer) workingcopy.ResetOption {
	return workingcopy.Warnings(func(err error) {
		_, _ = fmt.Fprintln(out, color.YellowString("Warning:"), err)
	})
}

// parseFilter reads dataset filters from positional arguments
func parseFilter(args []string) (model.RepoKeyFilter, error) {
	if len(args) == 0 {
		return model.MatchAll, nil
	}
	filter, err := model.ParseRepoKeyFilter(args)
	if err != nil {
		return filter, errors.New(err.Error()).Wrap(status.ErrUsage)
	}
	return filter, nil
}

var initCmd = &cobra.Command{
	Use:   "init [DIRECTORY]",
	Short: "Create a repository",
	Long: `Create an empty repository in a directory, which defaults to the current directory.

The file system working copy is the directory itself. A database server working copy may be
configured with --workingcopy-location, in addition to the file system one.`,
	Args: usageArgs(cobra.MaximumNArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		dir := repoPath()
		if len(args) > 0 {
			dir = args[0]
		}
		cfg := repo.Config{WorkingCopy: repo.WorkingCopyConfig{Location: tkFlags.workingCopy.location}}
		cfg.Remote = tkFlags.root.remote
		r, err := repo.Init(ctx, dir, cfg, repoOptions()...)
		if err != nil {
			return err
		}

		wc, err := r.WorkingCopy(ctx, repo.AllowUncreated(true))
		if err != nil {
			return err
		}
		defer func() {
			_ = wc.Close()
		}()
		for _, p := range wc.Parts() {
			if err = p.Create(ctx); err != nil {
				return err
			}
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Initialized empty repository in %s\n", r.Root())
		return nil
	},
}

func init() {
	addWorkingCopyLocationFlag(initCmd)
	rootCmd.AddCommand(initCmd)
}
