package reconcile

import (
	"fmt"
	"time"
)

// TimeoutError means a turn did not reach a terminal step within its deadline.
type TimeoutError struct {
	CascadeID string
	After     time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("cascade %s did not finish within %s", e.CascadeID, e.After)
}

// FailureNotice is the text a tracking message is replaced with when a turn fails.
func FailureNotice(err error) string {
	return "❌ Error communicating with IDE: " + err.Error()
}
