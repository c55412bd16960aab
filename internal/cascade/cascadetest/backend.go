// Package cascadetest provides a scripted AidaService backend for tests.
package cascadetest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"cascadebridge/internal/cascade"
	"cascadebridge/internal/rpc/rpctest"
)

// Turn is a recorded SendUserCascadeMessage call.
type Turn struct {
	CascadeID string
	Model     string
	Items     []cascade.Item
}

// Script returns a cascade's snapshot. turn is the number of turns the cascade
// has received and poll counts polls since the latest of them (0-based).
type Script func(cascadeID string, turn, poll int) []cascade.Step

// Backend answers the four AidaService methods from in-memory state.
type Backend struct {
	Server *rpctest.Server

	mu        sync.Mutex
	next      int
	started   []string
	turns     []Turn
	turnsBy   map[string]int
	polls     map[string]int
	sincePoll map[string]int
	accepts   map[string]int
	script    Script
	failPoll  error
	failSend  error
}

// New starts a backend whose cascades are named cascade-1, cascade-2, ...
// The default script is Answered.
func New(t testing.TB) *Backend {
	b := &Backend{
		turnsBy:   make(map[string]int),
		polls:     make(map[string]int),
		sincePoll: make(map[string]int),
		accepts:   make(map[string]int),
		script:    Answered,
	}
	b.Server = rpctest.NewServer(t, b.handle)
	return b
}

// Client returns a cascade client bound to the backend.
func (b *Backend) Client(t testing.TB) *cascade.Client {
	return cascade.New(b.Server.Client(t), "")
}

// SetScript replaces the poll script.
func (b *Backend) SetScript(s Script) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.script = s
}

// FailPolls makes every poll answer HTTP 500 with err's text; nil restores.
func (b *Backend) FailPolls(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failPoll = err
}

// FailSends makes every SendUserCascadeMessage answer HTTP 500; nil restores.
func (b *Backend) FailSends(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failSend = err
}

// Started returns the ids handed out so far.
func (b *Backend) Started() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.started...)
}

// Turns returns every recorded turn.
func (b *Backend) Turns() []Turn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Turn(nil), b.turns...)
}

// Polls returns how many times a cascade was polled.
func (b *Backend) Polls(cascadeID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.polls[cascadeID]
}

// Accepts returns how many accept interactions a cascade received.
func (b *Backend) Accepts(cascadeID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accepts[cascadeID]
}

func (b *Backend) handle(method string, body []byte) (int, []byte) {
	var req struct {
		CascadeID     string `json:"cascadeId"`
		CascadeConfig struct {
			PlannerConfig struct {
				PlanModel string `json:"planModel"`
			} `json:"plannerConfig"`
		} `json:"cascadeConfig"`
		Items []cascade.Item `json:"items"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return http.StatusBadRequest, []byte(err.Error())
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch method {
	case cascade.MethodStartCascade:
		b.next++
		id := fmt.Sprintf("cascade-%d", b.next)
		b.started = append(b.started, id)
		return http.StatusOK, rpctest.JSON(map[string]string{"cascadeId": id})
	case cascade.MethodSendUserMessage:
		if b.failSend != nil {
			return http.StatusInternalServerError, []byte(b.failSend.Error())
		}
		b.turnsBy[req.CascadeID]++
		b.sincePoll[req.CascadeID] = 0
		b.turns = append(b.turns, Turn{
			CascadeID: req.CascadeID,
			Model:     req.CascadeConfig.PlannerConfig.PlanModel,
			Items:     req.Items,
		})
		return http.StatusOK, []byte("{}")
	case cascade.MethodGetTrajectorySteps:
		if b.failPoll != nil {
			return http.StatusInternalServerError, []byte(b.failPoll.Error())
		}
		b.polls[req.CascadeID]++
		n := b.sincePoll[req.CascadeID]
		b.sincePoll[req.CascadeID] = n + 1
		steps := b.script(req.CascadeID, b.turnsBy[req.CascadeID], n)
		return http.StatusOK, rpctest.JSON(map[string]interface{}{"steps": steps})
	case cascade.MethodHandleUserInteraction:
		b.accepts[req.CascadeID]++
		return http.StatusOK, []byte("{}")
	}
	return http.StatusNotFound, []byte("unknown method " + method)
}

// Answered is a cascade that answers every turn immediately: the snapshot
// holds one finished planner step per turn, replying "reply N".
func Answered(_ string, turn, _ int) []cascade.Step {
	steps := make([]cascade.Step, 0, turn)
	for i := 1; i <= turn; i++ {
		steps = append(steps, Planner(fmt.Sprintf("<discord_reply>reply %d</discord_reply>", i), true))
	}
	return steps
}

// Planner builds a planner-response step.
func Planner(text string, done bool) cascade.Step {
	status := "CORTEX_STEP_STATUS_RUNNING"
	if done {
		status = cascade.StepStatusDone
	}
	return cascade.Step{
		Type:            cascade.StepTypePlannerResponse,
		Status:          status,
		PlannerResponse: &cascade.PlannerResponse{Response: text},
	}
}

// Other builds a step the bridge ignores.
func Other() cascade.Step {
	return cascade.Step{Type: "CORTEX_STEP_TYPE_RUN_COMMAND", Status: cascade.StepStatusDone}
}
