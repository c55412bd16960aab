package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"cascadebridge/internal/cascade/cascadetest"
	"cascadebridge/internal/config"
	"cascadebridge/internal/locator"
	"cascadebridge/internal/models"
	"cascadebridge/internal/usage"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCommand() (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetContext(context.Background())
	return cmd, &out, &errOut
}

func TestNewLocator(t *testing.T) {
	c := config.DefaultConfig()
	_, ok := newLocator(c).(*locator.ProcessLocator)
	assert.True(t, ok, "discovery without a configured endpoint")

	c.Backend.Port = 4242
	c.Backend.Token = "tok"
	static, ok := newLocator(c).(locator.Static)
	require.True(t, ok)
	assert.Equal(t, 4242, static.Endpoint.Port)
}

func TestRunAsk(t *testing.T) {
	backend := cascadetest.New(t)
	ep := backend.Server.Endpoint()

	cfg = config.DefaultConfig()
	cfg.Backend.Host = ep.Host
	cfg.Backend.Port = ep.Port
	cfg.Backend.Token = ep.Token
	cfg.Bridge.PollInterval = "5ms"
	cfg.Bridge.EditInterval = "5ms"

	askMode, askAuto, askRaw = "fast", false, true
	t.Cleanup(func() { askMode, askRaw = "", false })

	cmd, out, progress := testCommand()
	require.NoError(t, runAsk(cmd, []string{"summarize", "the", "readme"}))

	assert.Equal(t, "reply 1\n", out.String())
	assert.Contains(t, progress.String(), "Thinking")

	turns := backend.Turns()
	require.Len(t, turns, 1)
	assert.Equal(t, models.ModelFor(models.ModeFast).ID, turns[0].Model)
	assert.True(t, strings.HasPrefix(turns[0].Items[0].Text, "summarize the readme"))
}

func TestRunAsk_InvalidMode(t *testing.T) {
	cfg = config.DefaultConfig()
	askMode = "turbo"
	t.Cleanup(func() { askMode = "" })

	cmd, _, _ := testCommand()
	assert.ErrorContains(t, runAsk(cmd, []string{"hi"}), "invalid mode")
}

func TestConfigInit(t *testing.T) {
	configPath = filepath.Join(t.TempDir(), "config.yaml")
	t.Cleanup(func() { configPath, configForce = "", false })

	cmd, out, _ := testCommand()
	require.NoError(t, configInitCmd.RunE(cmd, nil))
	assert.Contains(t, out.String(), "Wrote ")

	assert.ErrorContains(t, configInitCmd.RunE(cmd, nil), "already exists")

	configForce = true
	require.NoError(t, configInitCmd.RunE(cmd, nil))

	loaded, err := config.Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Bridge, loaded.Bridge)
}

func TestModelsCommand(t *testing.T) {
	cfg = config.DefaultConfig()
	cmd, out, _ := testCommand()
	require.NoError(t, modelsCmd.RunE(cmd, nil))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, len(models.Catalog))
	assert.Contains(t, lines[0], "(default)")
	assert.NotContains(t, lines[1], "(default)")
}

func TestLocateCommand(t *testing.T) {
	cfg = config.DefaultConfig()
	cfg.Backend.Port = 4242
	cfg.Backend.Token = "supersecrettoken"

	cmd, out, _ := testCommand()
	require.NoError(t, locateCmd.RunE(cmd, nil))
	assert.Contains(t, out.String(), "4242")
	assert.NotContains(t, out.String(), "supersecrettoken")
}

func TestUsageCommand(t *testing.T) {
	configPath = filepath.Join(t.TempDir(), "config.yaml")
	t.Cleanup(func() { configPath = "" })

	tracker, err := usage.NewTracker(usagePath())
	require.NoError(t, err)
	tracker.Track(usage.Record{Model: "Gemini 3 Flash", CascadeID: "c1", Outcome: usage.OutcomeOK, Polls: 3})
	require.NoError(t, tracker.Flush())

	cmd, out, _ := testCommand()
	require.NoError(t, usageCmd.RunE(cmd, nil))
	assert.Contains(t, out.String(), "1 turns over 1 cascades")
	assert.Contains(t, out.String(), "Gemini 3 Flash")
	assert.Contains(t, out.String(), "ok: 1")
}
