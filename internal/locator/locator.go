// Package locator resolves where the language server that runs cascades is listening
// and which token it expects. Discovery happens once per process; the result is immutable.
package locator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
)

// Endpoint is a discovered backend address plus its auth token.
type Endpoint struct {
	Host  string
	Port  int
	Token string
}

// Addr returns host:port.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// BaseURL returns the cleartext base URL calls are made against.
func (e Endpoint) BaseURL() string {
	return "http://" + e.Addr()
}

// Redacted is safe to log.
func (e Endpoint) Redacted() string {
	tok := "<none>"
	if len(e.Token) > 4 {
		tok = e.Token[:4] + "…"
	} else if e.Token != "" {
		tok = "…"
	}
	return fmt.Sprintf("%s token=%s", e.Addr(), tok)
}

// BackendLocator finds the backend endpoint.
type BackendLocator interface {
	Locate(ctx context.Context) (Endpoint, error)
}

// DiscoveryError reports that the backend endpoint or token could not be found.
type DiscoveryError struct {
	Stage string // "process", "token", "port"
	Err   error
}

func (e *DiscoveryError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("backend discovery failed at %s", e.Stage)
	}
	return fmt.Sprintf("backend discovery failed at %s: %v", e.Stage, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// IsDiscoveryError reports whether err is (or wraps) a DiscoveryError.
func IsDiscoveryError(err error) bool {
	var target *DiscoveryError
	return errors.As(err, &target)
}

// Static returns a fixed endpoint. Used when port and token are configured
// explicitly, and by tests.
type Static struct {
	Endpoint Endpoint
}

func (s Static) Locate(ctx context.Context) (Endpoint, error) {
	if s.Endpoint.Port <= 0 {
		return Endpoint{}, &DiscoveryError{Stage: "port", Err: errors.New("no port configured")}
	}
	if s.Endpoint.Token == "" {
		return Endpoint{}, &DiscoveryError{Stage: "token", Err: errors.New("no token configured")}
	}
	ep := s.Endpoint
	if ep.Host == "" {
		ep.Host = "127.0.0.1"
	}
	return ep, nil
}
