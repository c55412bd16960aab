// Package rpc issues authenticated unary Connect-JSON calls to the language server.
//
// The server only speaks HTTP/2 over cleartext (h2c). Every call dials a fresh
// connection and closes it once the single response has been read, so a call is
// sent exactly once and never shares connection state with another call.
package rpc

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"cascadebridge/internal/locator"
	"cascadebridge/internal/logging"

	"golang.org/x/net/http2"
)

const (
	contentType           = "application/json"
	protocolVersionHeader = "connect-protocol-version"
	protocolVersion       = "1"
)

// Options configures a Client.
type Options struct {
	AuthHeader string        // header carrying the discovered token
	Timeout    time.Duration // per call, 0 = none beyond ctx
}

// Reply is a successful (HTTP 200) response body.
type Reply struct {
	Method string
	Body   []byte
}

// JSON reports whether the body parses as JSON. Some methods legitimately
// return other content; callers that don't need a structure can ignore it.
func (r *Reply) JSON() bool {
	return json.Valid(r.Body)
}

// Decode unmarshals the body into v.
func (r *Reply) Decode(v interface{}) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &DecodeError{Method: r.Method, Body: r.Body, Err: err}
	}
	return nil
}

// Client calls methods on the discovered backend.
type Client struct {
	loc  locator.BackendLocator
	opts Options

	mu       sync.RWMutex
	endpoint *locator.Endpoint
}

// New creates a client. Init must succeed before Call can be used.
func New(loc locator.BackendLocator, opts Options) *Client {
	if opts.AuthHeader == "" {
		opts.AuthHeader = "x-cursor-csrf-token"
	}
	return &Client{loc: loc, opts: opts}
}

// Init resolves the endpoint once. Later calls are no-ops.
func (c *Client) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.endpoint != nil {
		return nil
	}
	ep, err := c.loc.Locate(ctx)
	if err != nil {
		return err
	}
	c.endpoint = &ep
	logging.Boot("backend endpoint %s", ep.Redacted())
	return nil
}

// Endpoint returns the resolved endpoint, if any.
func (c *Client) Endpoint() (locator.Endpoint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.endpoint == nil {
		return locator.Endpoint{}, false
	}
	return *c.endpoint, true
}

// Call POSTs payload as JSON to /{service}/{method}.
func (c *Client) Call(ctx context.Context, service, method string, payload interface{}) (*Reply, error) {
	ep, ok := c.Endpoint()
	if !ok {
		return nil, ErrNotInitialized
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", method, err)
	}

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	url := fmt.Sprintf("%s/%s/%s", ep.BaseURL(), service, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", method, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(protocolVersionHeader, protocolVersion)
	req.Header.Set(c.opts.AuthHeader, ep.Token)

	timer := logging.StartTimer(logging.CategoryRPC, method)
	defer timer.StopWithThreshold(5 * time.Second)

	tr := newTransport()
	defer tr.CloseIdleConnections()

	resp, err := tr.RoundTrip(req)
	if err != nil {
		return nil, &TransportError{Method: method, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: method, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		logging.RPCWarn("%s returned HTTP %d", method, resp.StatusCode)
		return nil, &ProtocolError{Method: method, Status: resp.StatusCode, Body: string(data)}
	}

	reply := &Reply{Method: method, Body: data}
	if !reply.JSON() {
		logging.RPCDebug("%s returned a non-JSON body (%d bytes)", method, len(data))
	}
	return reply, nil
}

// newTransport returns a single-use h2c transport.
func newTransport() *http2.Transport {
	return &http2.Transport{
		AllowHTTP: true,
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	}
}
