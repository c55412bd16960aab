// Package settings holds the model, mode and auto-approve choice per conversation.
//
// A conversation is a channel or a thread. A thread without its own settings
// inherits its parent channel's, and a channel without settings uses the
// configured defaults. Turns take a copy at send time, so a /mode issued while
// a turn is running only affects the next turn.
package settings

import (
	"fmt"
	"sync"

	"cascadebridge/internal/models"
)

// Settings is one conversation's configuration.
type Settings struct {
	Model       models.Model
	Mode        models.Mode
	AutoApprove bool
}

// Label renders "`model` / `mode`" for status lines.
func (s Settings) Label() string {
	return fmt.Sprintf("`%s` / `%s`", s.Model.Display, s.Mode)
}

// Store is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	defaults Settings
	byKey    map[string]Settings
}

// NewStore returns a store falling back to defaults.
func NewStore(defaults Settings) *Store {
	return &Store{defaults: defaults, byKey: make(map[string]Settings)}
}

// Get resolves key, then parent, then the defaults. parent may be empty.
func (s *Store) Get(key, parent string) Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(key, parent)
}

func (s *Store) get(key, parent string) Settings {
	if v, ok := s.byKey[key]; ok {
		return v
	}
	if parent != "" {
		if v, ok := s.byKey[parent]; ok {
			return v
		}
	}
	return s.defaults
}

// Update applies fn to the resolved settings of key and stores the result under key.
func (s *Store) Update(key, parent string, fn func(*Settings)) Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.get(key, parent)
	fn(&v)
	s.byKey[key] = v
	return v
}

// Reset drops key's own settings so it inherits again.
func (s *Store) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byKey, key)
}

// Defaults returns the fallback settings.
func (s *Store) Defaults() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaults
}

// SetDefaults replaces the fallback, e.g. after a config reload. Conversations
// with their own settings keep them.
func (s *Store) SetDefaults(d Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults = d
}
