package cmd

import (
	"fmt"
	"runtime"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

// Build information, set with -ldflags "-X github.com/oneconcern/tilekeeper/cmd/tilekeeper/cmd.Version=..."
var (
	Version   string
	BuildDate string
	GitCommit string
	GitState  string
)

// VersionInfo describes the build of the binary
type VersionInfo struct {
	Version   string
	BuildDate string
	GitCommit string
	GitState  string
	GoVersion string
}

// NewVersionInfo gathers the build information. Binaries built without ldflags are "dev" builds.
func NewVersionInfo() VersionInfo {
	info := VersionInfo{
		Version:   Version,
		BuildDate: BuildDate,
		GitCommit: GitCommit,
		GitState:  GitState,
		GoVersion: runtime.Version(),
	}
	if info.Version == "" {
		info.Version = "dev"
	} else if info.GitState == "" {
		info.GitState = "clean"
	}
	return info
}

func (v VersionInfo) String() string {
	table := uitable.New()
	table.AddRow("Version:", v.Version)
	table.AddRow("Build date:", v.BuildDate)
	table.AddRow("Commit:", v.GitCommit)
	table.AddRow("Working tree:", v.GitState)
	table.AddRow("Go:", v.GoVersion)
	return table.String()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of tilekeeper",
	Long: `Print the version of tilekeeper:
	* Semver (output of git describe --tags)
	* Build date
	* Git commit the binary was built from
	* Git state (dirty when there were uncommitted changes during the build)
	* Go version`,
	Args: usageArgs(cobra.NoArgs),
	Run: func(cmd *cobra.Command, args []string) {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), NewVersionInfo())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
