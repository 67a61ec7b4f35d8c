package repo

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"

	"github.com/oneconcern/tilekeeper/pkg/errors"
	"github.com/oneconcern/tilekeeper/pkg/workingcopy/dbserver"
)

// Config of a repository, stored as yaml in the metadata directory
type Config struct {
	// Remote blob store to fetch tiles from, e.g. s3://bucket/prefix
	Remote string `json:"remote,omitempty" yaml:"remote,omitempty"`

	WorkingCopy WorkingCopyConfig `json:"workingcopy,omitempty" yaml:"workingcopy,omitempty"`
}

// WorkingCopyConfig describes where the working copy lives
type WorkingCopyConfig struct {
	// Location of a database server working copy, in addition to the file system one.
	// Empty when tiles are only checked out to the file system.
	Location string `json:"location,omitempty" yaml:"location,omitempty"`
}

func readConfig(pth string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(pth)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err = yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, errors.New("invalid repository config " + pth + ": " + err.Error()).Wrap(ErrInvalidConfig)
	}
	return cfg, nil
}

func writeConfig(pth string, cfg Config) error {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(pth), 0755); err != nil {
		return err
	}
	return os.WriteFile(pth, b, 0644)
}

// validate the working copy location
func (c Config) validate(root string) error {
	loc := c.WorkingCopy.Location
	if loc == "" {
		return nil
	}
	if !dbserver.IsDatabaseURI(loc) {
		return errors.New("unsupported working copy location " + loc).Wrap(ErrInvalidConfig)
	}
	_, err := dbserver.New(loc, dbserver.WorkdirPath(root))
	return err
}
