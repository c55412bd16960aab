package cascade

import "fmt"

// SessionStartError means StartCascade failed or returned no cascade id.
type SessionStartError struct {
	Body string // reply body when the call succeeded without an id
	Err  error
}

func (e *SessionStartError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to start cascade: %v", e.Err)
	}
	return fmt.Sprintf("failed to start cascade: no cascadeId in response: %s", e.Body)
}

func (e *SessionStartError) Unwrap() error {
	return e.Err
}

// SendError means a user turn could not be delivered.
type SendError struct {
	CascadeID string
	Err       error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("failed to send message to cascade %s: %v", e.CascadeID, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// PollError means a trajectory snapshot could not be fetched.
type PollError struct {
	CascadeID string
	Err       error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("failed to poll cascade %s: %v", e.CascadeID, e.Err)
}

func (e *PollError) Unwrap() error {
	return e.Err
}
