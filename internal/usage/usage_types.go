package usage

import "time"

// Outcome is how a turn ended.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeFailed   Outcome = "failed"
	OutcomeTimedOut Outcome = "timed_out"
	OutcomeCanceled Outcome = "canceled"
)

// Record describes one finished turn.
type Record struct {
	Model     string // display name
	CascadeID string
	Outcome   Outcome
	Polls     int
	Flushes   int
	Duration  time.Duration
}

// UsageData is the persisted file.
type UsageData struct {
	Version   string          `json:"version"`
	Since     time.Time       `json:"since"`
	Aggregate AggregatedStats `json:"aggregate"`
}

// AggregatedStats holds counters broken down by dimension.
type AggregatedStats struct {
	Total     TurnCounts            `json:"total"`
	ByModel   map[string]TurnCounts `json:"by_model"`
	ByOutcome map[string]int64      `json:"by_outcome"`
	Cascades  int64                 `json:"cascades"` // distinct cascades seen
}

// TurnCounts holds per-dimension sums.
type TurnCounts struct {
	Turns      int64 `json:"turns"`
	Polls      int64 `json:"polls"`
	Flushes    int64 `json:"flushes"`
	DurationMS int64 `json:"duration_ms"`
}

func (tc *TurnCounts) Add(r Record) {
	tc.Turns++
	tc.Polls += int64(r.Polls)
	tc.Flushes += int64(r.Flushes)
	tc.DurationMS += r.Duration.Milliseconds()
}

// Average is the mean turn duration.
func (tc TurnCounts) Average() time.Duration {
	if tc.Turns == 0 {
		return 0
	}
	return time.Duration(tc.DurationMS/tc.Turns) * time.Millisecond
}
