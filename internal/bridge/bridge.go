// Package bridge routes chat messages and button presses to cascades.
//
// A plain message in a channel opens a task thread bound to a new cascade; a
// message inside a thread continues that thread's cascade. Commands change the
// conversation's settings. Every turn sends the user's text (plus images) into
// the cascade and hands the tracking message to the reconciler.
package bridge

import (
	"context"
	"net/http"
	"sync"
	"time"

	"cascadebridge/internal/approval"
	"cascadebridge/internal/chat"
	"cascadebridge/internal/config"
	"cascadebridge/internal/logging"
	"cascadebridge/internal/models"
	"cascadebridge/internal/reconcile"
	"cascadebridge/internal/session"
	"cascadebridge/internal/settings"
	"cascadebridge/internal/usage"
)

// Backend is the cascade surface the bridge drives. *cascade.Client satisfies it.
type Backend interface {
	session.Backend
	reconcile.Poller
}

// Options are the parts of the config the bridge reads at runtime.
type Options struct {
	AllowedUserID     string // empty lets everyone through
	ThreadAutoArchive time.Duration
	GitHub            GitHub
	Reconcile         reconcile.Options
	HTTPClient        *http.Client // image downloads
	Usage             *usage.Tracker
}

// GitHub credentials are only used in the auto-approve prompt.
type GitHub struct {
	Username string
	Token    string
}

// OptionsFromConfig maps a loaded config onto bridge options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		AllowedUserID:     cfg.Discord.AllowedUserID,
		ThreadAutoArchive: time.Duration(cfg.Discord.ThreadAutoArchive) * time.Minute,
		GitHub:            GitHub{Username: cfg.GitHub.Username, Token: cfg.GitHub.Token},
		Reconcile: reconcile.Options{
			PollInterval: cfg.GetPollInterval(),
			EditInterval: cfg.GetEditInterval(),
			ChunkSize:    cfg.Bridge.ChunkSize,
			TurnTimeout:  cfg.GetTurnTimeout(),
		},
	}
}

// DefaultSettings returns the settings a conversation starts with.
func DefaultSettings(cfg *config.Config) settings.Settings {
	mode := cfg.DefaultMode()
	model := cfg.DefaultModel()
	if cfg.Defaults.Model == "" {
		model = models.ModelFor(mode)
	}
	return settings.Settings{Model: model, Mode: mode, AutoApprove: cfg.Defaults.AutoApprove}
}

// Bridge wires sessions, the reconciler and the approval gate to a messenger.
type Bridge struct {
	messenger  chat.Messenger
	sessions   *session.Manager
	reconciler *reconcile.Reconciler
	gate       *approval.Gate
	settings   *settings.Store
	http       *http.Client
	usage      *usage.Tracker

	mu   sync.RWMutex
	opts Options

	turns sync.WaitGroup
}

// New builds a bridge. defaults seeds the settings store.
func New(backend Backend, messenger chat.Messenger, defaults settings.Settings, opts Options) *Bridge {
	if opts.ThreadAutoArchive <= 0 {
		opts.ThreadAutoArchive = time.Hour
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	b := &Bridge{
		messenger: messenger,
		sessions:  session.NewManager(backend),
		settings:  settings.NewStore(defaults),
		http:      client,
		usage:     opts.Usage,
		opts:      opts,
	}
	b.gate = approval.New(messenger, b, b)
	b.reconciler = reconcile.New(backend, messenger, b.gate, opts.Reconcile)
	if opts.AllowedUserID == "" {
		logging.BridgeWarn("no allowed user configured, every user can drive the bridge")
	}
	return b
}

// Sessions exposes the session manager, mainly for status output.
func (b *Bridge) Sessions() *session.Manager {
	return b.sessions
}

// Settings exposes the per-conversation settings store.
func (b *Bridge) Settings() *settings.Store {
	return b.settings
}

// Reload applies a reloaded config. Loop timings are fixed at start-up;
// authorization, GitHub credentials and default settings change live.
func (b *Bridge) Reload(cfg *config.Config) {
	next := OptionsFromConfig(cfg)
	b.mu.Lock()
	b.opts.AllowedUserID = next.AllowedUserID
	b.opts.GitHub = next.GitHub
	if next.ThreadAutoArchive > 0 {
		b.opts.ThreadAutoArchive = next.ThreadAutoArchive
	}
	b.mu.Unlock()
	b.settings.SetDefaults(DefaultSettings(cfg))
	logging.Bridge("config reloaded")
}

func (b *Bridge) options() Options {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.opts
}

// Authorized implements approval.Authorizer.
func (b *Bridge) Authorized(userID string) bool {
	allowed := b.options().AllowedUserID
	return allowed == "" || userID == allowed
}

// Wait blocks until every turn started by the bridge has returned, including
// auto-approve calls still in flight.
func (b *Bridge) Wait() {
	b.turns.Wait()
	b.reconciler.Wait()
}

// track runs fn as a tracked turn.
func (b *Bridge) track(fn func()) {
	b.turns.Add(1)
	defer b.turns.Done()
	fn()
}

// HandleInteraction answers a button press.
func (b *Bridge) HandleInteraction(ctx context.Context, in chat.Interaction, resp chat.Responder) error {
	if handled, err := b.gate.HandleInteraction(ctx, in, resp); handled {
		return err
	}
	if isModelButton(in.CustomID) {
		return b.selectModel(ctx, in, resp)
	}
	logging.BridgeDebug("ignoring interaction %q", in.CustomID)
	return resp.Ack(ctx)
}
