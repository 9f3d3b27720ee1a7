package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/quorum/internal/config"
	"github.com/ShayCichocki/quorum/internal/state"
	"github.com/ShayCichocki/quorum/pkg/models"
)

var (
	historyLimit int
	historyPurge time.Duration
	showOutput   bool
	showJSON     bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs",
	Long: `List runs recorded in .quorum/state.db, newest first.

Runs that were still marked running when quorum last started are shown as
failed with "interrupted before completion".

With --purge, runs that started longer ago than the given age are deleted
together with their step results, e.g. "quorum history --purge 720h".`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var showCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a recorded run",
	Long: `Show the plan, step results and final output of a recorded run.

A unique prefix of the run ID is enough.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to list (0 for all)")
	historyCmd.Flags().DurationVar(&historyPurge, "purge", 0, "Delete runs older than this age instead of listing")
	showCmd.Flags().BoolVar(&showOutput, "output", false, "Print only the final output")
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Print the run as JSON")
}

// openHistory opens the state database for reading.
func openHistory() (*state.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	dir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	path := statePath(cfg, dir)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("no run history at %s", path)
	}
	db, err := state.Open(path, cfg.State.Driver)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	db, err := openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	out := cmd.OutOrStdout()
	if cmd.Flags().Changed("purge") {
		return purgeRuns(db, out, historyPurge)
	}

	runs, err := db.ListRuns(historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tMODE\tSTATUS\tDURATION\tPROMPT")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Mode,
			colorStatus(r.Status),
			roundDuration(r.Duration),
			preview(firstLine(r.Prompt), 50),
		)
	}
	return tw.Flush()
}

// purgeRuns deletes runs older than age and reports how many went.
func purgeRuns(db *state.DB, out io.Writer, age time.Duration) error {
	if age <= 0 {
		return fmt.Errorf("--purge needs a positive age, got %s", age)
	}
	n, err := db.PurgeOldRuns(age)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Purged %d run(s) older than %s.\n", n, age)
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	db, err := openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	id, err := resolveRunID(db, args[0])
	if err != nil {
		return err
	}
	run, err := db.GetRun(id)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", args[0])
	}

	out := cmd.OutOrStdout()
	switch {
	case showJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	case showOutput:
		fmt.Fprintln(out, strings.TrimRight(run.FinalOutput, "\n"))
		return nil
	}

	fmt.Fprintf(out, "Run:      %s\n", run.ID)
	fmt.Fprintf(out, "Plan:     %s (%s, %d steps)\n", run.Plan.ID, run.Plan.Mode, len(run.Plan.Steps))
	fmt.Fprintf(out, "Started:  %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Status:   %s in %s\n", colorStatus(run.Status), roundDuration(run.Duration))
	if run.Error != "" {
		fmt.Fprintf(out, "Error:    %s\n", run.Error)
	}
	fmt.Fprintf(out, "Prompt:   %s\n\n", firstLine(run.Plan.Prompt))

	for _, r := range run.Results {
		line := fmt.Sprintf("%-24s %-10s %s", r.StepID, r.Agent, r.Status)
		if r.Error != "" {
			line += ": " + r.Error
		}
		fmt.Fprintln(out, line)
	}

	if run.FinalOutput != "" {
		fmt.Fprintf(out, "\n%s\n", color.New(color.Bold).Sprint("--- Final output ---"))
		fmt.Fprintln(out, strings.TrimRight(run.FinalOutput, "\n"))
	}
	return nil
}

// resolveRunID expands a unique prefix to a full run ID.
func resolveRunID(db *state.DB, prefix string) (string, error) {
	runs, err := db.ListRuns(0)
	if err != nil {
		return "", err
	}
	var matches []string
	for _, r := range runs {
		if r.ID == prefix {
			return r.ID, nil
		}
		if strings.HasPrefix(r.ID, prefix) {
			matches = append(matches, r.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("run %s not found", prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("run ID prefix %q is ambiguous (%d runs)", prefix, len(matches))
	}
}

func colorStatus(s models.RunStatus) string {
	switch s {
	case models.RunStatusCompleted:
		return color.GreenString(string(s))
	case models.RunStatusPartial:
		return color.YellowString(string(s))
	case models.RunStatusFailed:
		return color.RedString(string(s))
	default:
		return string(s)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
