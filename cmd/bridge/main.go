package main

import (
	"fmt"
	"os"
	"path/filepath"

	"cascadebridge/internal/config"
	"cascadebridge/internal/logging"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// Loaded in PersistentPreRunE
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "bridge",
	Short: "cascadebridge - drive Antigravity cascades from Discord",
	Long: `cascadebridge connects a Discord bot to the Antigravity language server.

A message in a channel opens a task thread bound to a new cascade; messages in
that thread continue it. The agent's replies are streamed back as edits, and
plans it asks to have reviewed are posted with approve/reject buttons.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(resolvedConfigPath())
		if err != nil {
			return err
		}
		opts, err := cfg.Logging.Options()
		if err != nil {
			return err
		}
		if verbose {
			opts.DebugMode = true
		}
		if err := logging.Initialize(opts); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}

// usagePath keeps turn totals next to the config file.
func usagePath() string {
	return filepath.Join(filepath.Dir(resolvedConfigPath()), "usage.json")
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ~/.cascadebridge/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	askCmd.Flags().StringVar(&askMode, "mode", "", "Mode for this turn: planning or fast")
	askCmd.Flags().BoolVar(&askAuto, "auto", false, "Enable auto-approve for this turn")
	askCmd.Flags().BoolVar(&askRaw, "raw", false, "Print the answer without markdown rendering")

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(locateCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(usageCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
