package rpc_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"

	"cascadebridge/internal/locator"
	"cascadebridge/internal/rpc"
	"cascadebridge/internal/rpc/rpctest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCall_HeadersAndBody(t *testing.T) {
	srv := rpctest.NewServer(t, func(method string, body []byte) (int, []byte) {
		return http.StatusOK, []byte(`{"cascadeId":"c-1"}`)
	})
	client := srv.Client(t)

	reply, err := client.Call(context.Background(), "aida.v1.AidaService", "StartCascade", map[string]string{"k": "v"})
	require.NoError(t, err)

	var out struct {
		CascadeID string `json:"cascadeId"`
	}
	require.NoError(t, reply.Decode(&out))
	assert.Equal(t, "c-1", out.CascadeID)

	calls := srv.Calls()
	require.Len(t, calls, 1)
	c := calls[0]
	assert.Equal(t, 2, c.Proto, "calls must be made over h2c")
	assert.Equal(t, "aida.v1.AidaService", c.Service)
	assert.Equal(t, "StartCascade", c.Method)
	assert.Equal(t, "application/json", c.Header.Get("Content-Type"))
	assert.Equal(t, "1", c.Header.Get("Connect-Protocol-Version"))
	assert.Equal(t, rpctest.Token, c.Header.Get("X-Cursor-Csrf-Token"))
	assert.JSONEq(t, `{"k":"v"}`, string(c.Body))
}

func TestCall_ProtocolError(t *testing.T) {
	srv := rpctest.NewServer(t, func(method string, body []byte) (int, []byte) {
		return http.StatusUnauthorized, []byte(`{"code":"unauthenticated"}`)
	})

	_, err := srv.Client(t).Call(context.Background(), "svc", "M", struct{}{})

	var pe *rpc.ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusUnauthorized, pe.Status)
	assert.Contains(t, pe.Error(), "HTTP 401")
	assert.Contains(t, pe.Error(), "unauthenticated")
	assert.True(t, rpc.IsProtocolError(err))
}

func TestCall_NonJSONBodyIsNotAFailure(t *testing.T) {
	srv := rpctest.NewServer(t, func(method string, body []byte) (int, []byte) {
		return http.StatusOK, []byte("ok")
	})

	reply, err := srv.Client(t).Call(context.Background(), "svc", "Ping", nil)
	require.NoError(t, err)
	assert.False(t, reply.JSON())
	assert.Equal(t, "ok", string(reply.Body))

	var v map[string]interface{}
	err = reply.Decode(&v)
	var de *rpc.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, []byte("ok"), de.Body)
}

func TestCall_TransportError(t *testing.T) {
	// Port 1 on loopback refuses connections.
	c := rpc.New(locator.Static{Endpoint: locator.Endpoint{Host: "127.0.0.1", Port: 1, Token: "t"}}, rpc.Options{})
	require.NoError(t, c.Init(context.Background()))

	_, err := c.Call(context.Background(), "svc", "M", nil)
	assert.True(t, rpc.IsTransportError(err), "got %v", err)
}

func TestCall_NotInitialized(t *testing.T) {
	c := rpc.New(locator.Static{}, rpc.Options{})
	_, err := c.Call(context.Background(), "svc", "M", nil)
	assert.ErrorIs(t, err, rpc.ErrNotInitialized)

	err = c.Init(context.Background())
	assert.True(t, locator.IsDiscoveryError(err))
	_, ok := c.Endpoint()
	assert.False(t, ok)
}

func TestCall_ConcurrentCallsAreIndependent(t *testing.T) {
	srv := rpctest.NewServer(t, func(method string, body []byte) (int, []byte) {
		return http.StatusOK, body
	})
	client := srv.Client(t)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reply, err := client.Call(context.Background(), "svc", "Echo", map[string]int{"n": i})
			if err != nil {
				errs <- err
				return
			}
			var got map[string]int
			if err := json.Unmarshal(reply.Body, &got); err != nil || got["n"] != i {
				errs <- errors.New("reply crossed between calls")
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	assert.Equal(t, 20, srv.Count("Echo"))
}
