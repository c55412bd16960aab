package main

import (
	"os"
	"os/signal"
	"syscall"

	"cascadebridge/internal/bridge"
	"cascadebridge/internal/config"
	"cascadebridge/internal/discord"
	"cascadebridge/internal/logging"
	"cascadebridge/internal/usage"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Discord bot",
	Long: `Connects to Discord and the language server and bridges them until
interrupted. Edits to the config file are picked up without a restart
(allowed user, GitHub credentials, default settings).`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateForDiscord(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := connectBackend(ctx, cfg)
	if err != nil {
		return err
	}
	adapter, err := discord.New(cfg.Discord.BotToken)
	if err != nil {
		return err
	}
	tracker, err := usage.NewTracker(usagePath())
	if err != nil {
		return err
	}
	defer func() {
		if err := tracker.Flush(); err != nil {
			logging.BootWarn("usage not saved: %v", err)
		}
	}()

	opts := bridge.OptionsFromConfig(cfg)
	opts.Usage = tracker
	b := bridge.New(backend, adapter, bridge.DefaultSettings(cfg), opts)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return adapter.Run(gctx, b)
	})

	path := resolvedConfigPath()
	if _, statErr := os.Stat(path); statErr == nil {
		watcher, err := config.NewWatcher(path, b.Reload)
		if err != nil {
			logging.ConfigWarn("config hot reload disabled: %v", err)
		} else {
			g.Go(func() error {
				return watcher.Run(gctx)
			})
		}
	}

	logging.Boot("bridge running, press Ctrl+C to stop")
	err = g.Wait()
	b.Wait()
	logging.Boot("bridge stopped")
	return err
}
