package main

import (
	"fmt"
	"strings"

	"cascadebridge/internal/bridge"
	"cascadebridge/internal/chat"
	"cascadebridge/internal/chat/console"
	"cascadebridge/internal/models"

	"github.com/spf13/cobra"
)

// askChannel stands in for a task thread on the console.
const askChannel = "console"

var (
	askMode string
	askAuto bool
	askRaw  bool
)

var askCmd = &cobra.Command{
	Use:   "ask [prompt]",
	Short: "Run one cascade turn from the terminal",
	Long: `Sends a prompt to a new cascade and streams progress to stderr, the same
way a Discord thread would see it. The final answer is printed to stdout.

Example:
  bridge ask --mode fast "summarize the README in this workspace"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	defaults := bridge.DefaultSettings(cfg)
	if askMode != "" {
		mode, ok := models.ParseMode(askMode)
		if !ok {
			return fmt.Errorf("invalid mode %q (valid: planning, fast)", askMode)
		}
		defaults.Mode = mode
		defaults.Model = models.ModelFor(mode)
	}
	if askAuto {
		defaults.AutoApprove = true
	}

	backend, err := connectBackend(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	msgr := console.New(cmd.ErrOrStderr(), false)
	opts := bridge.OptionsFromConfig(cfg)
	opts.AllowedUserID = "console"
	b := bridge.New(backend, msgr, defaults, opts)

	err = b.HandleMessage(cmd.Context(), chat.Incoming{
		ID:         "prompt",
		ChannelID:  askChannel,
		InThread:   true,
		AuthorID:   "console",
		AuthorName: "console",
		Content:    strings.Join(args, " "),
	})
	b.Wait()
	if err != nil {
		return err
	}

	transcript := msgr.Transcript(askChannel)
	if len(transcript) == 0 {
		return nil
	}
	answer := strings.Join(transcript, "\n\n")
	if askRaw {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), answer)
		return err
	}
	return console.RenderMarkdown(cmd.OutOrStdout(), answer)
}
