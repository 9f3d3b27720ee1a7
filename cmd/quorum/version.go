package main

import (
	"fmt"

	"github.com/ShayCichocki/quorum/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "quorum version %s\n", version.String())
	},
}
