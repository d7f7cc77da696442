package cli

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/getmockd/kongreg/pkg/cli/internal/output"
	"github.com/spf13/cobra"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version  string `json:"version"`
	Commit   string `json:"commit"`
	Date     string `json:"date"`
	Go       string `json:"go"`
	Platform string `json:"platform"`
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("kongreg %s (commit %s, built %s, %s %s)",
		b.Version, shortCommit(b.Commit), b.Date, b.Go, b.Platform)
}

// UserAgent identifies kongreg in the gateway's admin access log.
func (b BuildInfo) UserAgent() string {
	return "kongreg/" + b.Version
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show kongreg version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := currentBuild()
		if jsonOutput {
			return output.JSON(cmd.OutOrStdout(), info)
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), info)
		return err
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func currentBuild() BuildInfo {
	info, _ := debug.ReadBuildInfo()
	return buildFrom(info)
}

// buildFrom fills the values not injected with -ldflags from the module
// build info.
func buildFrom(info *debug.BuildInfo) BuildInfo {
	b := BuildInfo{
		Version:  Version,
		Commit:   Commit,
		Date:     BuildDate,
		Go:       runtime.Version(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info == nil {
		return b
	}

	if v := info.Main.Version; b.Version == "dev" && v != "" && v != "(devel)" {
		b.Version = v
	}
	vcs := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		vcs[s.Key] = s.Value
	}
	if rev := vcs["vcs.revision"]; b.Commit == "none" && rev != "" {
		b.Commit = rev
		if vcs["vcs.modified"] == "true" {
			b.Commit += "-dirty"
		}
	}
	if t := vcs["vcs.time"]; b.Date == "unknown" && t != "" {
		b.Date = t
	}
	return b
}

func shortCommit(commit string) string {
	hash, dirty := strings.CutSuffix(commit, "-dirty")
	if len(hash) > 12 {
		hash = hash[:12]
	}
	if dirty {
		hash += "-dirty"
	}
	return hash
}
