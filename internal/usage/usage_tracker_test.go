package usage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_TrackAggregatesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	tracker, err := NewTracker(path)
	require.NoError(t, err)

	tracker.Track(Record{Model: "Gemini 3 Flash", CascadeID: "c1", Outcome: OutcomeOK, Polls: 4, Flushes: 2, Duration: 3 * time.Second})
	tracker.Track(Record{Model: "Gemini 3 Flash", CascadeID: "c1", Outcome: OutcomeTimedOut, Polls: 6, Flushes: 1, Duration: time.Second})
	tracker.Track(Record{Model: "GPT-OSS 120B (Medium)", CascadeID: "c2", Outcome: OutcomeFailed})

	stats := tracker.Stats()
	assert.Equal(t, int64(3), stats.Total.Turns)
	assert.Equal(t, int64(10), stats.Total.Polls)
	assert.Equal(t, int64(2), stats.Cascades)
	assert.Equal(t, int64(2), stats.ByModel["Gemini 3 Flash"].Turns)
	assert.Equal(t, 2*time.Second, stats.ByModel["Gemini 3 Flash"].Average())
	assert.Equal(t, int64(1), stats.ByOutcome["timed_out"])

	require.NoError(t, tracker.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var persisted UsageData
	require.NoError(t, json.Unmarshal(data, &persisted))
	assert.Equal(t, int64(3), persisted.Aggregate.Total.Turns)

	reloaded, err := NewTracker(path)
	require.NoError(t, err)
	assert.Equal(t, stats.Total, reloaded.Stats().Total)
	assert.Equal(t, tracker.Since().Unix(), reloaded.Since().Unix())
}

func TestTracker_StatsIsACopy(t *testing.T) {
	tracker, err := NewTracker("")
	require.NoError(t, err)
	tracker.Track(Record{Model: "m", Outcome: OutcomeOK})

	stats := tracker.Stats()
	stats.ByModel["m"] = TurnCounts{Turns: 99}
	assert.Equal(t, int64(1), tracker.Stats().ByModel["m"].Turns)
	assert.NoError(t, tracker.Flush(), "memory-only trackers have nothing to write")
}

func TestTracker_CorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	tracker, err := NewTracker(path)
	require.NoError(t, err)
	assert.Zero(t, tracker.Stats().Total.Turns)
}

func TestTracker_NilIsSafe(t *testing.T) {
	var tracker *Tracker
	tracker.Track(Record{})
	assert.Zero(t, tracker.Stats().Total.Turns)
	assert.NoError(t, tracker.Flush())
}

func TestTurnCounts_AverageWithoutTurns(t *testing.T) {
	assert.Zero(t, TurnCounts{}.Average())
}
