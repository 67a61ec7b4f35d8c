// Copyright © 2018 One Concern

package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/oneconcern/tilekeeper/internal"
	"github.com/oneconcern/tilekeeper/pkg/dlogger"
	"github.com/oneconcern/tilekeeper/pkg/errors"
	"github.com/oneconcern/tilekeeper/pkg/workingcopy/status"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tilekeeper",
	Short: "Tilekeeper versions datasets of map tiles",
	Long: `Tilekeeper versions datasets of map tiles, with a git like interface.

Tiles are imported into datasets, and committed. A working copy holds the tiles of the
checked out datasets on the file system, and may extend to a schema of a database server.

Missing tile content is fetched from a remote blob store on checkout.
`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.setDefaults(&tkFlags)
		var err error
		logger, err = dlogger.GetConsoleLogger(tkFlags.root.logLevel)
		if err != nil {
			return errors.New("invalid log level " + tkFlags.root.logLevel + ": " + err.Error()).Wrap(status.ErrUsage)
		}
		if tkFlags.root.cpuProfile != "" {
			if stopProfile, err = internal.StartCPUProfile(tkFlags.root.cpuProfile); err != nil {
				return err
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if stopProfile != nil {
			if err := stopProfile(); err != nil {
				logger.Warn("failed to write CPU profile", zap.Error(err))
			}
			stopProfile = nil
		}
		if tkFlags.root.memProfile != "" {
			if err := internal.WriteHeapProfile(tkFlags.root.memProfile); err != nil {
				logger.Warn("failed to write heap profile", zap.Error(err))
			}
		}
		_ = logger.Sync()
	},
}

var (
	config = &CLIConfig{}
	logger = zap.NewNop()

	stopProfile func() error
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		wrapFatalWithCode(err)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return errors.New(err.Error()).Wrap(status.ErrUsage)
	})

	addLogLevel(rootCmd)
	addRepoFlag(rootCmd)
	addRemoteFlag(rootCmd)
	addWorkersFlag(rootCmd)
	addProfileFlags(rootCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// known keys, so that environment variables are unmarshalled
	viper.SetDefault("loglevel", "")
	viper.SetDefault("remote", "")
	viper.SetDefault("workers", 0)
	viper.SetDefault("author.name", "")
	viper.SetDefault("author.email", "")

	if os.Getenv("TILEKEEPER_CONFIG") != "" {
		// Use config file from the environment.
		viper.SetConfigFile(os.Getenv("TILEKEEPER_CONFIG"))
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.tilekeeper")
		viper.AddConfigPath("/etc/tilekeeper")
		viper.SetConfigName("tilekeeper")
	}

	viper.SetEnvPrefix("TILEKEEPER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	_ = viper.ReadInConfig()

	var err error
	config, err = newConfig()
	if err != nil {
		logFatalln(err)
	}
}

// usageArgs wraps the validation of positional arguments, so that errors translate to a usage exit code
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return errors.New(err.Error()).Wrap(status.ErrUsage)
		}
		return nil
	}
}

func usageError(msg string) error {
	return errors.New(msg).Wrap(status.ErrUsage)
}
