package main

import (
	"github.com/spf13/cobra"

	"github.com/joshuapare/memkit/mem/vmem"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printInfo("memctl %s\n", version)
		printInfo("  commit: %s\n", commit)
		printInfo("  built: %s\n", date)
	},
}

var pageSizeCmd = &cobra.Command{
	Use:   "pagesize",
	Short: "Print the virtual memory commit granularity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOut {
			return printJSON(map[string]int{"page_size": vmem.PageSize()})
		}
		printInfo("%d\n", vmem.PageSize())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(pageSizeCmd)
}
