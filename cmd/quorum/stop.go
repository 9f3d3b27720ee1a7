package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/quorum/internal/signals"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Cancel the run in progress in this directory",
	Long: `Cancel a running 'quorum run' or 'quorum exec' started in this directory.

This writes .quorum/signals/stop. The running process cancels its plan and
records the partial result; the next run clears the file before it starts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
		if err := signals.SendStop(dir); err != nil {
			return fmt.Errorf("send stop signal: %w", err)
		}
		printStatus("✓", "Stop signal sent", color.FgGreen)
		return nil
	},
}
