package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "dev"

	logLevel string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tbl",
		Short: "Render and inspect TBL form definitions",
		Long: `tbl works on tree definition files offline: it validates them, lists the
shared references reachable from a node and renders the form for a set of values.`,
		SilenceUsage: true,
		Version:      Version,
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error, dev)")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(refsCmd)
	rootCmd.AddCommand(renderCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
