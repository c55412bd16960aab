// Package chattest provides an in-memory chat.Messenger for tests.
package chattest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cascadebridge/internal/chat"
)

// Sent is a recorded Send.
type Sent struct {
	Ref chat.MessageRef
	To  chat.Target
	Msg chat.Outgoing
}

// Edited is a recorded Edit.
type Edited struct {
	Ref     chat.MessageRef
	Content string
	At      time.Time
}

// Thread is a recorded StartThread.
type Thread struct {
	ID          string
	On          chat.MessageRef
	Name        string
	AutoArchive time.Duration
}

// Messenger records every call. Failure hooks make individual calls fail.
type Messenger struct {
	// Now stamps edits; defaults to time.Now.
	Now func() time.Time
	// FailSend, when set, is consulted before each Send.
	FailSend func(to chat.Target, msg chat.Outgoing) error
	// FailEdit, when set, is consulted before each Edit.
	FailEdit func(ref chat.MessageRef, content string) error

	mu       sync.Mutex
	next     int
	sent     []Sent
	edits    []Edited
	threads  []Thread
	contents map[chat.MessageRef]string
}

// New returns an empty messenger.
func New() *Messenger {
	return &Messenger{contents: make(map[chat.MessageRef]string)}
}

var _ chat.Messenger = (*Messenger)(nil)

func (m *Messenger) Send(ctx context.Context, to chat.Target, msg chat.Outgoing) (chat.MessageRef, error) {
	if m.FailSend != nil {
		if err := m.FailSend(to, msg); err != nil {
			return chat.MessageRef{}, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	ref := chat.MessageRef{ChannelID: to.ChannelID, MessageID: fmt.Sprintf("m%d", m.next)}
	m.sent = append(m.sent, Sent{Ref: ref, To: to, Msg: msg})
	m.contents[ref] = msg.Content
	return ref, nil
}

func (m *Messenger) Edit(ctx context.Context, ref chat.MessageRef, content string) error {
	if m.FailEdit != nil {
		if err := m.FailEdit(ref, content); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contents[ref]; !ok {
		return errors.New("unknown message " + ref.String())
	}
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	m.edits = append(m.edits, Edited{Ref: ref, Content: content, At: now()})
	m.contents[ref] = content
	return nil
}

func (m *Messenger) StartThread(ctx context.Context, ref chat.MessageRef, name string, autoArchive time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	id := fmt.Sprintf("thread%d", m.next)
	m.threads = append(m.threads, Thread{ID: id, On: ref, Name: name, AutoArchive: autoArchive})
	return id, nil
}

// Sent returns every Send in order.
func (m *Messenger) Sent() []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Sent(nil), m.sent...)
}

// Edits returns every Edit in order.
func (m *Messenger) Edits() []Edited {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Edited(nil), m.edits...)
}

// EditsTo returns the edits applied to ref.
func (m *Messenger) EditsTo(ref chat.MessageRef) []Edited {
	var out []Edited
	for _, e := range m.Edits() {
		if e.Ref == ref {
			out = append(out, e)
		}
	}
	return out
}

// Threads returns every StartThread in order.
func (m *Messenger) Threads() []Thread {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Thread(nil), m.threads...)
}

// Content returns the current content of ref.
func (m *Messenger) Content(ref chat.MessageRef) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.contents[ref]
}

// Responder records how an interaction was answered.
type Responder struct {
	mu      sync.Mutex
	Updates []chat.Outgoing
	Notices []string // ephemeral replies
	Acks    int
}

var _ chat.Responder = (*Responder)(nil)

func (r *Responder) Update(ctx context.Context, msg chat.Outgoing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Updates = append(r.Updates, msg)
	return nil
}

func (r *Responder) Ephemeral(ctx context.Context, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Notices = append(r.Notices, content)
	return nil
}

func (r *Responder) Ack(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Acks++
	return nil
}
