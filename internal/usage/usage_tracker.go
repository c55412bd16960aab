// Package usage keeps running totals of bridged turns, optionally persisted
// to a JSON file next to the config.
package usage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"cascadebridge/internal/logging"
)

const saveDelay = 5 * time.Second

// Tracker records finished turns. A nil *Tracker ignores every call.
type Tracker struct {
	mu       sync.Mutex
	data     UsageData
	seen     map[string]bool
	filePath string
	timer    *time.Timer
}

// NewTracker loads filePath if it exists. An empty path keeps the totals in memory.
func NewTracker(filePath string) (*Tracker, error) {
	t := &Tracker{
		filePath: filePath,
		seen:     make(map[string]bool),
		data:     UsageData{Version: "1", Since: time.Now().UTC()},
	}
	t.initMaps()
	if filePath == "" {
		return t, nil
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create usage dir: %w", err)
	}
	if err := t.load(); err != nil {
		logging.BridgeWarn("usage file %s unreadable, starting fresh: %v", filePath, err)
	}
	return t, nil
}

func (t *Tracker) initMaps() {
	if t.data.Aggregate.ByModel == nil {
		t.data.Aggregate.ByModel = make(map[string]TurnCounts)
	}
	if t.data.Aggregate.ByOutcome == nil {
		t.data.Aggregate.ByOutcome = make(map[string]int64)
	}
}

func (t *Tracker) load() error {
	data, err := os.ReadFile(t.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var loaded UsageData
	if err := json.Unmarshal(data, &loaded); err != nil {
		return err
	}
	t.data = loaded
	t.initMaps()
	return nil
}

// Track adds a finished turn and schedules a save.
func (t *Tracker) Track(r Record) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	agg := &t.data.Aggregate
	agg.Total.Add(r)
	byModel := agg.ByModel[r.Model]
	byModel.Add(r)
	agg.ByModel[r.Model] = byModel
	agg.ByOutcome[string(r.Outcome)]++
	if r.CascadeID != "" && !t.seen[r.CascadeID] {
		t.seen[r.CascadeID] = true
		agg.Cascades++
	}

	if t.filePath != "" && t.timer == nil {
		t.timer = time.AfterFunc(saveDelay, func() {
			if err := t.Flush(); err != nil {
				logging.BridgeWarn("usage not saved: %v", err)
			}
		})
	}
}

// Stats returns a copy of the aggregated stats.
func (t *Tracker) Stats() AggregatedStats {
	if t == nil {
		return AggregatedStats{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	stats := t.data.Aggregate
	stats.ByModel = make(map[string]TurnCounts, len(t.data.Aggregate.ByModel))
	for k, v := range t.data.Aggregate.ByModel {
		stats.ByModel[k] = v
	}
	stats.ByOutcome = make(map[string]int64, len(t.data.Aggregate.ByOutcome))
	for k, v := range t.data.Aggregate.ByOutcome {
		stats.ByOutcome[k] = v
	}
	return stats
}

// Since is when the totals started.
func (t *Tracker) Since() time.Time {
	if t == nil {
		return time.Time{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.data.Since
}

// Flush cancels a pending save and writes the file now.
func (t *Tracker) Flush() error {
	if t == nil || t.filePath == "" {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	data, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(t.filePath, data, 0600)
}
