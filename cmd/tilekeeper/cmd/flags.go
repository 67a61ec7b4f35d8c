// Copyright © 2018 One Concern

package cmd

import (
	"github.com/spf13/cobra"
)

type flagsT struct {
	root struct {
		logLevel string
		repoPath string
		remote   string
		workers  int

		cpuProfile string
		memProfile string
	}
	checkout struct {
		discardChanges bool
		rewriteFull    bool
	}
	reset struct {
		trackDirty bool
	}
	commit struct {
		message     string
		authorName  string
		authorEmail string
	}
	importer struct {
		datasetPath string
		replace     bool
		update      bool
		delete      []string
		checkout    bool
	}
	log struct {
		limit int
	}
	workingCopy struct {
		location   string
		keepSchema bool
	}
}

var tkFlags = flagsT{}

func addLogLevel(cmd *cobra.Command) string {
	loglevel := "loglevel"
	cmd.PersistentFlags().StringVar(&tkFlags.root.logLevel, loglevel, "",
		`The logging level. Levels by increasing order of verbosity: none, error, warn, info, debug (defaults to "warn")`)
	return loglevel
}

func addRepoFlag(cmd *cobra.Command) string {
	repo := "repo"
	cmd.PersistentFlags().StringVar(&tkFlags.root.repoPath, repo, "", "The path to the repository (defaults to the current directory)")
	return repo
}

func addRemoteFlag(cmd *cobra.Command) string {
	remote := "remote"
	cmd.PersistentFlags().StringVar(&tkFlags.root.remote, remote, "",
		"The remote blob store to fetch missing tiles from: file:///path, s3://bucket/prefix or gs://bucket/prefix")
	return remote
}

func addWorkersFlag(cmd *cobra.Command) string {
	workers := "workers"
	cmd.PersistentFlags().IntVar(&tkFlags.root.workers, workers, 0,
		"The number of concurrent transfers (defaults to the number of CPUs)")
	return workers
}

func addProfileFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&tkFlags.root.cpuProfile, "cpuprofile", "", "Write a CPU profile to this file")
	cmd.PersistentFlags().StringVar(&tkFlags.root.memProfile, "memprofile", "", "Write a heap profile to this file on exit")
	for _, name := range []string{"cpuprofile", "memprofile"} {
		if err := cmd.PersistentFlags().MarkHidden(name); err != nil {
			logFatalln(err)
		}
	}
}

func addDiscardChangesFlag(cmd *cobra.Command) string {
	discard := "discard-changes"
	cmd.Flags().BoolVar(&tkFlags.checkout.discardChanges, discard, false, "Discard uncommitted changes of the working copy")
	return discard
}

func addRewriteFullFlag(cmd *cobra.Command) string {
	rewrite := "rewrite-full"
	cmd.Flags().BoolVar(&tkFlags.checkout.rewriteFull, rewrite, false,
		"Rewrite every dataset from scratch, instead of applying the differences")
	return rewrite
}

func addTrackDirtyFlag(cmd *cobra.Command) string {
	track := "track-dirty"
	cmd.Flags().BoolVar(&tkFlags.reset.trackDirty, track, false,
		"Update the working copy without recording the new tree: the differences show as uncommitted changes")
	return track
}

func addMessageFlag(cmd *cobra.Command) string {
	message := "message"
	cmd.Flags().StringVarP(&tkFlags.commit.message, message, "m", "", "The message describing the commit")
	return message
}

func addAuthorFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&tkFlags.commit.authorName, "author-name", "", "The name of the author of the commit")
	cmd.Flags().StringVar(&tkFlags.commit.authorEmail, "author-email", "", "The email of the author of the commit")
}

func addDatasetFlag(cmd *cobra.Command) string {
	dataset := "dataset"
	cmd.Flags().StringVar(&tkFlags.importer.datasetPath, dataset, "", "The path of the dataset in the repository, e.g. nz/auckland")
	return dataset
}

func addImportModeFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&tkFlags.importer.replace, "replace", false, "Replace the tiles of an existing dataset")
	cmd.Flags().BoolVar(&tkFlags.importer.update, "update", false, "Add or replace tiles of an existing dataset")
	cmd.Flags().StringSliceVar(&tkFlags.importer.delete, "delete", nil, "Delete tiles from an existing dataset")
}

func addImportCheckoutFlag(cmd *cobra.Command) string {
	checkout := "checkout"
	cmd.Flags().BoolVar(&tkFlags.importer.checkout, checkout, true, "Check out the imported dataset in the working copy")
	return checkout
}

func addLimitFlag(cmd *cobra.Command) string {
	limit := "limit"
	cmd.Flags().IntVarP(&tkFlags.log.limit, limit, "n", 0, "The maximum number of commits to show")
	return limit
}

func addWorkingCopyLocationFlag(cmd *cobra.Command) string {
	location := "workingcopy-location"
	cmd.Flags().StringVar(&tkFlags.workingCopy.location, location, "",
		"A database server working copy, in addition to the file system one: postgresql://[HOST]/DBNAME/DBSCHEMA or mysql://[HOST]/DBNAME/DBSCHEMA")
	return location
}

func addKeepSchemaFlag(cmd *cobra.Command) string {
	keep := "keep-schema"
	cmd.Flags().BoolVar(&tkFlags.workingCopy.keepSchema, keep, false, "Drop the tables and functions of the schema, but keep the schema itself")
	return keep
}
