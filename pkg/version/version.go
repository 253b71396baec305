// Package version reports build metadata injected at link time, e.g.
//
//	go build -ldflags "-X github.com/toozej/venue2spotify/pkg/version.Version=v1.2.3"
package version

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Build metadata, overridden with -ldflags -X
var (
	Version = "local"
	Commit  = ""
	Branch  = ""
	BuiltAt = ""
	Builder = ""
)

// Info is the build metadata of the running binary
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Branch    string `json:"branch"`
	BuiltAt   string `json:"built_at"`
	Builder   string `json:"builder"`
	GoVersion string `json:"go_version"`
}

// Get returns the current build metadata
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Branch:    Branch,
		BuiltAt:   BuiltAt,
		Builder:   Builder,
		GoVersion: runtime.Version(),
	}
}

// Command returns the "version" command, which prints Info as JSON
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := json.MarshalIndent(Get(), "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal version info: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
}
