package cmd

import (
	"github.com/spf13/viper"

	"github.com/oneconcern/tilekeeper/pkg/dlogger"
	"github.com/oneconcern/tilekeeper/pkg/model"
)

// CLIConfig describes the CLI configuration.
type CLIConfig struct {
	// bug in viper? Need to keep names of fields the same as the serialized names..
	LogLevel string `json:"loglevel" yaml:"loglevel"` // Default logging level
	Remote   string `json:"remote" yaml:"remote"`     // Default remote blob store to fetch tiles from
	Workers  int    `json:"workers" yaml:"workers"`   // Default number of concurrent transfers
	Author   struct {
		Name  string `json:"name" yaml:"name"`
		Email string `json:"email" yaml:"email"`
	} `json:"author" yaml:"author"`
}

func newConfig() (*CLIConfig, error) {
	var config CLIConfig
	err := viper.Unmarshal(&config)
	if err != nil {
		return nil, err
	}
	return &config, nil
}

// setDefaults fills in flags left unset from the configuration
func (c *CLIConfig) setDefaults(flags *flagsT) {
	if flags.root.logLevel == "" {
		flags.root.logLevel = c.LogLevel
	}
	if flags.root.logLevel == "" {
		flags.root.logLevel = dlogger.LogLevelWarn
	}
	if flags.root.workers == 0 {
		flags.root.workers = c.Workers
	}
	if flags.commit.authorName == "" {
		flags.commit.authorName = c.Author.Name
	}
	if flags.commit.authorEmail == "" {
		flags.commit.authorEmail = c.Author.Email
	}
}

func (flags *flagsT) author() model.Contributor {
	return model.Contributor{
		Name:  flags.commit.authorName,
		Email: flags.commit.authorEmail,
	}
}
