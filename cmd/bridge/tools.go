package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"cascadebridge/internal/config"
	"cascadebridge/internal/models"
	"cascadebridge/internal/usage"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	nameStyle    = lipgloss.NewStyle().Bold(true).Width(32)
	idStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#8a8f98"))
	defaultStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#2ecc71"))
)

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Find the language server and print its endpoint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ep, err := newLocator(cfg).Locate(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", ep.Redacted())
		return nil
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the selectable models",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		current := cfg.DefaultModel()
		for _, m := range models.Catalog {
			line := nameStyle.Render(m.Display) + idStyle.Render(m.ID)
			if m.ID == current.ID {
				line += defaultStyle.Render("  (default)")
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	},
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show turn totals recorded by serve",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tracker, err := usage.NewTracker(usagePath())
		if err != nil {
			return err
		}
		stats := tracker.Stats()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Since %s: %d turns over %d cascades (avg %s)\n",
			tracker.Since().Format("2006-01-02"), stats.Total.Turns, stats.Cascades, stats.Total.Average().Round(time.Second))

		names := make([]string, 0, len(stats.ByModel))
		for name := range stats.ByModel {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			c := stats.ByModel[name]
			fmt.Fprintln(out, nameStyle.Render(name)+idStyle.Render(fmt.Sprintf("%d turns, %d polls, %d flushes", c.Turns, c.Polls, c.Flushes)))
		}
		for _, o := range []usage.Outcome{usage.OutcomeOK, usage.OutcomeFailed, usage.OutcomeTimedOut, usage.OutcomeCanceled} {
			if n := stats.ByOutcome[string(o)]; n > 0 {
				fmt.Fprintf(out, "%s: %d\n", o, n)
			}
		}
		return nil
	},
}

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := resolvedConfigPath()
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.DefaultConfig().Save(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}
