package cascade_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"cascadebridge/internal/cascade"
	"cascadebridge/internal/cascade/cascadetest"
	"cascadebridge/internal/rpc"
	"cascadebridge/internal/rpc/rpctest"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartCascade_SendsMetadata(t *testing.T) {
	srv := rpctest.NewServer(t, func(method string, body []byte) (int, []byte) {
		return http.StatusOK, []byte(`{"cascadeId":"abc"}`)
	})
	c := cascade.New(srv.Client(t), "")

	id, err := c.StartCascade(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	var req struct {
		Metadata cascade.Metadata `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(srv.Calls()[0].Body, &req))
	assert.NotEmpty(t, req.Metadata.RequestID)
	assert.Equal(t, cascade.DefaultSessionLabel, req.Metadata.SessionID)
	assert.Equal(t, 0, req.Metadata.RequestType)
	assert.Equal(t, "ACTION_CHAT", req.Metadata.Action)
}

func TestStartCascade_MissingID(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty object", `{}`},
		{"not json", `Service Unavailable`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := rpctest.NewServer(t, func(string, []byte) (int, []byte) {
				return http.StatusOK, []byte(tt.body)
			})
			_, err := cascade.New(srv.Client(t), "").StartCascade(context.Background())

			var se *cascade.SessionStartError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.body, se.Body)
		})
	}
}

func TestStartCascade_WrapsRPCError(t *testing.T) {
	srv := rpctest.NewServer(t, func(string, []byte) (int, []byte) {
		return http.StatusForbidden, []byte("bad token")
	})
	_, err := cascade.New(srv.Client(t), "").StartCascade(context.Background())

	var se *cascade.SessionStartError
	require.ErrorAs(t, err, &se)
	assert.True(t, rpc.IsProtocolError(err))
}

func TestSendUserMessage_Payload(t *testing.T) {
	srv := rpctest.NewServer(t, func(string, []byte) (int, []byte) {
		return http.StatusOK, []byte(`{}`)
	})
	c := cascade.New(srv.Client(t), "")

	items := []cascade.Item{cascade.TextItem("hello"), cascade.ImageItem([]byte{0xff, 0x00})}
	require.NoError(t, c.SendUserMessage(context.Background(), "c1", items, "MODEL_X"))

	want := `{
		"cascadeId": "c1",
		"cascadeConfig": {"plannerConfig": {"planModel": "MODEL_X", "requestedModel": {"model": "MODEL_X"}}},
		"turnConfig": {},
		"items": [{"text": "hello"}, {"image": {"data": "/wA="}}]
	}`
	assert.JSONEq(t, want, string(srv.Calls()[0].Body))
}

func TestSendUserMessage_Error(t *testing.T) {
	srv := rpctest.NewServer(t, func(string, []byte) (int, []byte) {
		return http.StatusInternalServerError, []byte("boom")
	})
	err := cascade.New(srv.Client(t), "").SendUserMessage(context.Background(), "c1", nil, "m")

	var se *cascade.SendError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "c1", se.CascadeID)
	assert.Contains(t, err.Error(), "boom")
}

func TestSteps(t *testing.T) {
	b := cascadetest.New(t)
	b.SetScript(func(string, int, int) []cascade.Step {
		return []cascade.Step{cascadetest.Other(), cascadetest.Planner("partial", false)}
	})

	steps, err := b.Client(t).Steps(context.Background(), "c1")
	require.NoError(t, err)

	want := []cascade.Step{cascadetest.Other(), cascadetest.Planner("partial", false)}
	if diff := cmp.Diff(want, steps); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, b.Polls("c1"))
}

func TestSteps_NonJSONIsEmpty(t *testing.T) {
	srv := rpctest.NewServer(t, func(string, []byte) (int, []byte) {
		return http.StatusOK, []byte("pending")
	})
	steps, err := cascade.New(srv.Client(t), "").Steps(context.Background(), "c1")
	require.NoError(t, err)
	assert.Empty(t, steps)
}

func TestSteps_PollError(t *testing.T) {
	b := cascadetest.New(t)
	b.FailPolls(errors.New("backend restarting"))

	_, err := b.Client(t).Steps(context.Background(), "c9")
	var pe *cascade.PollError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "c9", pe.CascadeID)
	assert.Contains(t, err.Error(), "backend restarting")
}

func TestAcceptInteraction(t *testing.T) {
	srv := rpctest.NewServer(t, func(string, []byte) (int, []byte) {
		return http.StatusOK, []byte(`{}`)
	})
	require.NoError(t, cascade.New(srv.Client(t), "").AcceptInteraction(context.Background(), "c1"))

	call := srv.Calls()[0]
	assert.Equal(t, cascade.MethodHandleUserInteraction, call.Method)
	assert.JSONEq(t, `{"cascadeId":"c1","interaction":{"accept":{}}}`, string(call.Body))
}

func TestLatestPlannerResponse(t *testing.T) {
	steps := []cascade.Step{
		cascadetest.Planner("old turn", true),
		cascadetest.Other(),
		cascadetest.Planner("first", true),
		cascadetest.Other(),
	}

	got, ok := cascade.LatestPlannerResponse(steps, 0)
	require.True(t, ok)
	assert.Equal(t, "first", got.Text())

	_, ok = cascade.LatestPlannerResponse(steps, 3)
	assert.False(t, ok, "steps before the baseline belong to earlier turns")

	_, ok = cascade.LatestPlannerResponse(nil, 0)
	assert.False(t, ok)
}
