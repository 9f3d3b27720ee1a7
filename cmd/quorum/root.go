package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "quorum",
	Short: "Multi-agent plan compiler and scheduler",
	Long: `Quorum compiles a task into a plan of agent steps and runs it.

A plan is a small dependency graph: each step sends a prompt to one agent
(claude, codex, gemini, openai, ollama, or auto) and may publish its output
for later steps to reference as {{name}}. Independent steps run in parallel
up to the configured concurrency; a failed step cancels everything that
depends on it.

Modes:
  single     One agent answers the task
  compare    Several agents answer independently, optionally with a pick step
  pipeline   Agents work in sequence (analyze, code, review, ...)
  consensus  Agents propose, optionally over several rounds, then one aggregates
  pickbuild  Agents propose, one picks the best, one builds it
  puzzle     Decompose, solve in parallel, assemble, verify, refine
  refine     Iterate on an answer with feedback between drafts
  supervise  Plan, implement, review, finalize

With no --mode, quorum chooses one from the profile and the task.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}
