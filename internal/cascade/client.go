package cascade

import (
	"context"
	"strings"

	"cascadebridge/internal/logging"
	"cascadebridge/internal/rpc"

	"github.com/google/uuid"
)

// Caller is the transport the client needs. *rpc.Client satisfies it.
type Caller interface {
	Call(ctx context.Context, service, method string, payload interface{}) (*rpc.Reply, error)
}

// Client issues typed AidaService calls.
type Client struct {
	caller Caller
	label  string
}

// New returns a client that tags requests with sessionLabel.
func New(caller Caller, sessionLabel string) *Client {
	if sessionLabel == "" {
		sessionLabel = DefaultSessionLabel
	}
	return &Client{caller: caller, label: sessionLabel}
}

func (c *Client) metadata() Metadata {
	return Metadata{
		RequestID: strings.ReplaceAll(uuid.NewString(), "-", ""),
		SessionID: c.label,
		Action:    actionChat,
	}
}

// StartCascade opens a new cascade and returns its id.
func (c *Client) StartCascade(ctx context.Context) (string, error) {
	reply, err := c.caller.Call(ctx, Service, MethodStartCascade, startRequest{Metadata: c.metadata()})
	if err != nil {
		return "", &SessionStartError{Err: err}
	}
	var res startResponse
	if !reply.JSON() {
		return "", &SessionStartError{Body: string(reply.Body)}
	}
	if err := reply.Decode(&res); err != nil {
		return "", &SessionStartError{Body: string(reply.Body), Err: err}
	}
	if res.CascadeID == "" {
		return "", &SessionStartError{Body: string(reply.Body)}
	}
	logging.SessionDebug("started cascade %s", res.CascadeID)
	return res.CascadeID, nil
}

// SendUserMessage delivers one turn. model is used as both the plan model and
// the requested model.
func (c *Client) SendUserMessage(ctx context.Context, cascadeID string, items []Item, model string) error {
	req := sendRequest{
		CascadeID: cascadeID,
		CascadeConfig: cascadeConfig{PlannerConfig: plannerConfig{
			PlanModel:      model,
			RequestedModel: requestedModel{Model: model},
		}},
		Items: items,
	}
	if _, err := c.caller.Call(ctx, Service, MethodSendUserMessage, req); err != nil {
		return &SendError{CascadeID: cascadeID, Err: err}
	}
	return nil
}

// Steps returns the full trajectory snapshot. A reply without a steps field,
// or one that is not JSON at all, is an empty snapshot.
func (c *Client) Steps(ctx context.Context, cascadeID string) ([]Step, error) {
	reply, err := c.caller.Call(ctx, Service, MethodGetTrajectorySteps, stepsRequest{
		CascadeID: cascadeID,
		Metadata:  c.metadata(),
	})
	if err != nil {
		return nil, &PollError{CascadeID: cascadeID, Err: err}
	}
	if !reply.JSON() {
		logging.RPCDebug("steps reply for %s is not JSON, treating as empty", cascadeID)
		return nil, nil
	}
	var res stepsResponse
	if err := reply.Decode(&res); err != nil {
		return nil, &PollError{CascadeID: cascadeID, Err: err}
	}
	return res.Steps, nil
}

// AcceptInteraction answers whatever the cascade is waiting on with "accept".
func (c *Client) AcceptInteraction(ctx context.Context, cascadeID string) error {
	_, err := c.caller.Call(ctx, Service, MethodHandleUserInteraction, interactionRequest{
		CascadeID:   cascadeID,
		Interaction: interaction{Accept: &struct{}{}},
	})
	return err
}
