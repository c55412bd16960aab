// Package rpctest runs an in-process h2c backend for tests.
package rpctest

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path"
	"strconv"
	"sync"
	"testing"

	"cascadebridge/internal/locator"
	"cascadebridge/internal/rpc"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Token is the auth token every test server expects.
const Token = "test-csrf-token"

// HandlerFunc answers one call. method is the last path segment.
type HandlerFunc func(method string, body []byte) (status int, reply []byte)

// Call is a recorded request.
type Call struct {
	Service string
	Method  string
	Header  http.Header
	Body    []byte
	Proto   int
}

// Server is an h2c test backend that records every call.
type Server struct {
	srv *httptest.Server

	mu    sync.Mutex
	calls []Call
}

// NewServer starts a server that is closed with the test.
func NewServer(t testing.TB, h HandlerFunc) *Server {
	t.Helper()
	s := &Server{}
	mux := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.calls = append(s.calls, Call{
			Service: path.Base(path.Dir(r.URL.Path)),
			Method:  path.Base(r.URL.Path),
			Header:  r.Header.Clone(),
			Body:    body,
			Proto:   r.ProtoMajor,
		})
		s.mu.Unlock()

		status, reply := h(path.Base(r.URL.Path), body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write(reply)
	})
	s.srv = httptest.NewServer(h2c.NewHandler(mux, &http2.Server{}))
	t.Cleanup(s.srv.Close)
	return s
}

// Endpoint returns the server's address with Token.
func (s *Server) Endpoint() locator.Endpoint {
	host, port, _ := net.SplitHostPort(s.srv.Listener.Addr().String())
	p, _ := strconv.Atoi(port)
	return locator.Endpoint{Host: host, Port: p, Token: Token}
}

// Client returns an initialized client pointed at the server.
func (s *Server) Client(t testing.TB) *rpc.Client {
	t.Helper()
	c := rpc.New(locator.Static{Endpoint: s.Endpoint()}, rpc.Options{})
	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("init rpc client: %v", err)
	}
	return c
}

// Calls returns a copy of the recorded calls.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Count returns how many calls hit method.
func (s *Server) Count(method string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

// JSON marshals v, panicking on error; for handler replies.
func JSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
