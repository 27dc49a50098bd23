package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// version is stamped by the release build via -ldflags.
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sheep %s\n", version)
		if IsVerbose() {
			fmt.Printf("  go:    %s\n", runtime.Version())
			fmt.Printf("  agent: %s\n", resolveAgentID())
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
