package cmd

import (
	"context"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/oneconcern/tilekeeper/pkg/repo"
	"github.com/oneconcern/tilekeeper/pkg/workingcopy"
	"github.com/oneconcern/tilekeeper/pkg/workingcopy/dbserver"
)

var workingCopyCmd = &cobra.Command{
	Use:     "workingcopy",
	Aliases: []string{"wc"},
	Short:   "Commands to manage the working copy",
	Long: `The working copy is made of the file system part, which is the repository directory,
and of an optional database server part, which is a schema of a PostgreSQL or MySQL database.`,
}

var workingCopyStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the parts of the working copy",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		r, err := openRepo(ctx)
		if err != nil {
			return err
		}
		wc, err := r.WorkingCopy(ctx, repo.AllowUncreated(true), repo.AllowInvalidState(true))
		if err != nil {
			return err
		}
		defer func() {
			_ = wc.Close()
		}()
		_, err = printParts(ctx, cmd.OutOrStdout(), wc)
		return err
	},
}

var workingCopyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the parts of the working copy which do not exist yet",
	Long: `Create the parts of the working copy which do not exist yet, and check out HEAD in them.

A database schema may only be created when it does not hold any table yet.`,
	Args: usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		r, err := openRepo(ctx)
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

		head, err := r.Objects().HeadTree(ctx)
		if err != nil {
			return err
		}
		for _, p := range wc.Parts() {
			st, err := p.Status(ctx)
			if err != nil {
				return err
			}
			if st != workingcopy.Uncreated {
				continue
			}
			if err = p.Create(ctx); err != nil {
				return err
			}
			if !head.IsEmpty() {
				if err = p.Reset(ctx, head, printWarnings(cmd.ErrOrStderr())); err != nil {
					return err
				}
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created %s working copy at %s\n", p.Type(), p)
		}
		return nil
	},
}

var workingCopyDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the working copy",
	Long: `Delete the datasets checked out in the file system working copy with its bookkeeping, and the
database schema of the database server working copy, if any. Files outside of datasets are left in place.`,
	Args: usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		r, err := openRepo(ctx)
		if err != nil {
			return err
		}
		wc, err := r.WorkingCopy(ctx, repo.AllowUncreated(true), repo.AllowInvalidState(true))
		if err != nil {
			return err
		}
		defer func() {
			_ = wc.Close()
		}()
		for _, p := range wc.Parts() {
			if db, ok := p.(*dbserver.WorkingCopy); ok {
				err = db.Drop(ctx, tkFlags.workingCopy.keepSchema)
			} else {
				err = p.Delete(ctx)
			}
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s working copy at %s\n", p.Type(), p)
		}
		return nil
	},
}

var workingCopySetLocationCmd = &cobra.Command{
	Use:   "set-location [URI]",
	Short: "Configure the database server working copy",
	Long: `Configure the location of the database server working copy, as scheme://[HOST]/DBNAME/DBSCHEMA.
Without URI, the database server working copy is removed from the configuration.

The new part is not created: run "tilekeeper workingcopy create" next.`,
	Args: usageArgs(cobra.MaximumNArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		r, err := openRepo(ctx)
		if err != nil {
			return err
		}
		cfg := r.Config()
		cfg.WorkingCopy.Location = ""
		if len(args) > 0 {
			cfg.WorkingCopy.Location = args[0]
		}
		return r.SetConfig(cfg)
	},
}

var workingCopyCheckURICmd = &cobra.Command{
	Use:   "check-uri URI",
	Short: "Check the location of a database server working copy",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := url.Parse(args[0])
		if err != nil {
			return usageError("invalid URI " + args[0])
		}
		d, ok := dbserver.DialectFor(u.Scheme)
		if !ok {
			return usageError("unsupported working copy URI scheme " + u.Scheme)
		}
		// the suggestion uses the repository directory when there is one
		var workdirPath string
		if r, err := openRepo(context.Background()); err == nil {
			workdirPath = r.Root()
		}
		if err = dbserver.CheckValidURI(args[0], d, workdirPath); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Valid %s working copy URI\n", d.TypeName)
		return nil
	},
}

func init() {
	addKeepSchemaFlag(workingCopyDeleteCmd)

	workingCopyCmd.AddCommand(workingCopyStatusCmd)
	workingCopyCmd.AddCommand(workingCopyCreateCmd)
	workingCopyCmd.AddCommand(workingCopyDeleteCmd)
	workingCopyCmd.AddCommand(workingCopySetLocationCmd)
	workingCopyCmd.AddCommand(workingCopyCheckURICmd)
	rootCmd.AddCommand(workingCopyCmd)
}
