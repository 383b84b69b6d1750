// Command ntfsscan is a thin Cobra CLI over pkg/ntfsscan: a scan
// subcommand and global output flags. It is not a full forensic
// toolkit surface; see pkg/ntfsscan for the library API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	verbose      bool
	quiet        bool
	outputFormat string
	configFile   string
)

var rootCmd = &cobra.Command{
	Use:   "ntfsscan",
	Short: "Read-only NTFS volume scanner",
	Long: `ntfsscan builds an in-memory file tree of an NTFS volume by reading
the Master File Table directly, optionally bootstrapped from the USN
change journal for fast incremental rebuilds.

Works directly against a drive letter's raw volume handle. No files are
written to the target volume.`,
	Version: "0.1.0-dev",
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output except errors")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, json)")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a YAML scan config file")
}
