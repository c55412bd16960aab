// Package reconcile turns a cascade's polled step snapshots into chat messages.
//
// Each poll returns the complete trajectory, so state is re-derived from the
// latest snapshot every cycle. The newest planner response of the current turn
// is reduced to its reply text, split into message-sized chunks and written
// over an ordered list of message handles that only ever grows. Non-final
// updates are rate limited; the final update always goes out.
package reconcile

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"cascadebridge/internal/cascade"
	"cascadebridge/internal/chat"
	"cascadebridge/internal/directive"
	"cascadebridge/internal/logging"
	"cascadebridge/internal/settings"
)

const (
	indicatorBlue  = " 🔵"
	indicatorGreen = " 🟢"
	continuation   = "..."
)

// Poller is the cascade surface the loop needs. *cascade.Client satisfies it.
type Poller interface {
	Steps(ctx context.Context, cascadeID string) ([]cascade.Step, error)
	AcceptInteraction(ctx context.Context, cascadeID string) error
}

// ReviewRaiser receives review requests found in a finished turn.
type ReviewRaiser interface {
	Raise(ctx context.Context, replyTo chat.MessageRef, cascadeID, path string) error
}

// Options tunes the loop. Zero values take the defaults.
type Options struct {
	PollInterval  time.Duration // default 800ms
	EditInterval  time.Duration // default 1500ms
	ChunkSize     int           // default 1900
	TurnTimeout   time.Duration // 0 = no deadline
	AcceptTimeout time.Duration // bound on one auto-approve call, default 10s

	// Now and Sleep replace the clock in tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error

	// Exists checks review paths; defaults to directive.FileExists.
	Exists directive.Exists
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = 800 * time.Millisecond
	}
	if o.EditInterval <= 0 {
		o.EditInterval = 1500 * time.Millisecond
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = 1900
	}
	if o.AcceptTimeout <= 0 {
		o.AcceptTimeout = 10 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Sleep == nil {
		o.Sleep = sleepCtx
	}
	if o.Exists == nil {
		o.Exists = directive.FileExists
	}
	return o
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Turn is one request/response exchange to reconcile.
type Turn struct {
	CascadeID string
	Handle    chat.MessageRef   // tracking message the reply is written into
	Settings  settings.Settings // snapshot taken when the turn was sent
	// Baseline is the step count before the turn was sent. Planner steps
	// below it belong to earlier turns.
	Baseline int
}

// Result describes what a turn displayed.
type Result struct {
	Handles []chat.MessageRef
	Text    string   // last flushed reply text
	Reviews []string // review paths raised after the final flush
	Polls   int
	Flushes int
}

// Reconciler runs turns. One Reconciler serves any number of concurrent turns.
type Reconciler struct {
	poller    Poller
	messenger chat.Messenger
	reviews   ReviewRaiser
	opts      Options

	approvals sync.WaitGroup
}

// New returns a reconciler. reviews may be nil, in which case markers are
// detected and reported in the Result but nothing is raised.
func New(poller Poller, messenger chat.Messenger, reviews ReviewRaiser, opts Options) *Reconciler {
	return &Reconciler{
		poller:    poller,
		messenger: messenger,
		reviews:   reviews,
		opts:      opts.withDefaults(),
	}
}

// Placeholder is shown while the model has produced no reply text yet.
func Placeholder(s settings.Settings) string {
	return "🤔 Processing task... (" + s.Label() + ")"
}

// Baseline returns the current step count of a cascade, used as Turn.Baseline
// for the next turn.
func (r *Reconciler) Baseline(ctx context.Context, cascadeID string) (int, error) {
	steps, err := r.poller.Steps(ctx, cascadeID)
	if err != nil {
		return 0, err
	}
	return len(steps), nil
}

type displayState struct {
	lastSeen  string
	flushed   bool
	lastFlush time.Time
	indicator string
	handles   []chat.MessageRef
	text      string
}

func (d *displayState) nextIndicator() string {
	if d.indicator == indicatorBlue {
		d.indicator = indicatorGreen
	} else {
		d.indicator = indicatorBlue
	}
	return d.indicator
}

// Run polls until the turn's planner step is done, then raises any review
// panels. Poll failures and the turn deadline replace the newest handle's
// text with a failure notice and are returned. Cancelling ctx stops the loop
// quietly with ctx.Err().
func (r *Reconciler) Run(ctx context.Context, turn Turn) (*Result, error) {
	st := &displayState{
		indicator: indicatorBlue,
		handles:   []chat.MessageRef{turn.Handle},
	}
	res := &Result{}
	defer func() { res.Handles = st.handles; res.Text = st.text }()

	timer := logging.StartTimer(logging.CategoryReconcile, "turn "+turn.CascadeID)
	defer timer.Stop()

	turnCtx := ctx
	if r.opts.TurnTimeout > 0 {
		var cancel context.CancelFunc
		turnCtx, cancel = context.WithTimeout(ctx, r.opts.TurnTimeout)
		defer cancel()
	}

	for {
		steps, err := r.poller.Steps(turnCtx, turn.CascadeID)
		res.Polls++
		if err != nil {
			return res, r.abort(ctx, turnCtx, turn, st, err)
		}

		step, found := cascade.LatestPlannerResponse(steps, turn.Baseline)
		terminal := found && step.Done()

		if found {
			raw := step.Text()
			if raw != st.lastSeen || terminal {
				st.lastSeen = raw
				now := r.opts.Now()
				if terminal || !st.flushed || now.Sub(st.lastFlush) >= r.opts.EditInterval {
					if err := r.flush(turnCtx, turn, st, raw, terminal); err != nil {
						logging.ReconcileWarn("flush for %s aborted: %v", turn.CascadeID, err)
					} else {
						st.flushed = true
						st.lastFlush = now
						res.Flushes++
					}
				} else {
					logging.ReconcileDebug("edit for %s throttled", turn.CascadeID)
				}
			}
		}

		if terminal {
			res.Reviews = r.raiseReviews(ctx, turn, st, step.Text())
			logging.Reconcile("cascade %s complete after %d polls", turn.CascadeID, res.Polls)
			return res, nil
		}

		if turn.Settings.AutoApprove {
			r.autoApprove(turnCtx, turn.CascadeID)
		}

		if err := r.opts.Sleep(turnCtx, r.opts.PollInterval); err != nil {
			return res, r.abort(ctx, turnCtx, turn, st, err)
		}
	}
}

// abort classifies a loop failure and writes the failure notice when the
// user should see one.
func (r *Reconciler) abort(ctx, turnCtx context.Context, turn Turn, st *displayState, err error) error {
	if ctx.Err() != nil {
		logging.ReconcileDebug("turn %s cancelled", turn.CascadeID)
		return ctx.Err()
	}
	if errors.Is(turnCtx.Err(), context.DeadlineExceeded) {
		err = &TimeoutError{CascadeID: turn.CascadeID, After: r.opts.TurnTimeout}
	}
	logging.ReconcileError("turn %s failed: %v", turn.CascadeID, err)
	last := st.handles[len(st.handles)-1]
	if editErr := r.messenger.Edit(ctx, last, FailureNotice(err)); editErr != nil {
		logging.ReconcileWarn("failure notice for %s not shown: %v", turn.CascadeID, editErr)
	}
	return err
}

func (r *Reconciler) flush(ctx context.Context, turn Turn, st *displayState, raw string, terminal bool) error {
	text := directive.ExtractReply(raw, terminal)
	if strings.TrimSpace(text) == "" {
		text = Placeholder(turn.Settings)
	}
	chunks := Chunk(text, r.opts.ChunkSize)

	for len(st.handles) < len(chunks) {
		prev := st.handles[len(st.handles)-1]
		ref, err := r.messenger.Send(ctx, prev.Reply(), chat.Text(continuation))
		if err != nil {
			return err
		}
		st.handles = append(st.handles, ref)
	}

	for i, c := range chunks {
		if i == len(chunks)-1 && !terminal {
			c += st.nextIndicator()
		}
		if err := r.messenger.Edit(ctx, st.handles[i], c); err != nil {
			logging.ReconcileDebug("edit %s failed: %v", st.handles[i], err)
		}
	}
	st.text = text
	return nil
}

func (r *Reconciler) raiseReviews(ctx context.Context, turn Turn, st *displayState, raw string) []string {
	paths := directive.ScanReviews(raw, r.opts.Exists)
	if len(paths) == 0 || r.reviews == nil {
		return paths
	}
	last := st.handles[len(st.handles)-1]
	for _, p := range paths {
		if err := r.reviews.Raise(ctx, last, turn.CascadeID, p); err != nil {
			logging.ReconcileWarn("review panel for %s not raised: %v", p, err)
		}
	}
	return paths
}

// autoApprove accepts pending interactions without waiting for the result.
func (r *Reconciler) autoApprove(ctx context.Context, cascadeID string) {
	r.approvals.Add(1)
	go func() {
		defer r.approvals.Done()
		actx, cancel := context.WithTimeout(ctx, r.opts.AcceptTimeout)
		defer cancel()
		if err := r.poller.AcceptInteraction(actx, cascadeID); err != nil {
			logging.ReconcileDebug("auto-approve for %s: %v", cascadeID, err)
		}
	}()
}

// Wait blocks until in-flight auto-approve calls have returned.
func (r *Reconciler) Wait() {
	r.approvals.Wait()
}
