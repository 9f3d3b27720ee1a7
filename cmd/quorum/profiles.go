package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/quorum/internal/config"
	"github.com/ShayCichocki/quorum/internal/orchestrator/policy"
	"github.com/ShayCichocki/quorum/pkg/models"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List policy profiles",
	Long: `List the built-in and configured policy profiles.

A profile restricts which modes 'quorum run' may choose, how many steps run
at once, how many consensus rounds to use, whether review is required and
which agents auto steps may be routed to. Configured profiles with a built-in
name replace the built-in one.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		out := cmd.OutOrStdout()
		for _, name := range policy.ProfileNames(cfg.Profiles) {
			p, err := policy.LookupProfile(name, cfg.Profiles)
			if err != nil {
				fmt.Fprintf(out, "%s: invalid: %v\n", name, err)
				continue
			}
			marker := " "
			if name == cfg.Defaults.Profile {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %-10s modes=%s concurrency=%d rounds=%d review=%t",
				marker, p.Name, joinModes(p.PreferredModes), p.MaxConcurrency, p.ConsensusRounds, p.RequireReview)
			if len(p.AllowAgents) > 0 {
				fmt.Fprintf(out, " agents=%s", joinAgents(p.AllowAgents))
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

func joinModes(modes []models.Mode) string {
	if len(modes) == 0 {
		return "any"
	}
	s := make([]string, len(modes))
	for i, m := range modes {
		s[i] = string(m)
	}
	return strings.Join(s, ",")
}

func joinAgents(agents []models.AgentID) string {
	s := make([]string, len(agents))
	for i, a := range agents {
		s[i] = string(a)
	}
	return strings.Join(s, ",")
}
