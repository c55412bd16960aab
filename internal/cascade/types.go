// Package cascade wraps the AidaService methods the bridge uses: starting a
// cascade, sending a turn, polling trajectory steps and accepting pending
// user interactions.
package cascade

import "encoding/base64"

// Service is the Connect service path prefix.
const Service = "aida.v1.AidaService"

// Method names.
const (
	MethodStartCascade          = "StartCascade"
	MethodSendUserMessage       = "SendUserCascadeMessage"
	MethodGetTrajectorySteps    = "GetCascadeTrajectorySteps"
	MethodHandleUserInteraction = "HandleCascadeUserInteraction"
)

// Step types and statuses the bridge understands. Anything else is ignored.
const (
	StepTypePlannerResponse = "CORTEX_STEP_TYPE_PLANNER_RESPONSE"
	StepStatusDone          = "CORTEX_STEP_STATUS_DONE"
)

// DefaultSessionLabel is the session id sent in request metadata.
const DefaultSessionLabel = "discord-bridge-session"

const actionChat = "ACTION_CHAT"

// Metadata accompanies StartCascade and GetCascadeTrajectorySteps.
type Metadata struct {
	RequestID   string `json:"requestId"`
	SessionID   string `json:"sessionId"`
	RequestType int    `json:"requestType"`
	Action      string `json:"action"`
}

// Item is one part of a user turn: text or an inline image.
type Item struct {
	Text  string `json:"text,omitempty"`
	Image *Image `json:"image,omitempty"`
}

// Image carries base64-encoded image bytes.
type Image struct {
	Data string `json:"data"`
}

// TextItem returns a text item.
func TextItem(text string) Item {
	return Item{Text: text}
}

// ImageItem base64-encodes raw image bytes into an item.
func ImageItem(raw []byte) Item {
	return Item{Image: &Image{Data: base64.StdEncoding.EncodeToString(raw)}}
}

// Step is one entry of a trajectory snapshot.
type Step struct {
	Type            string           `json:"type"`
	Status          string           `json:"status"`
	PlannerResponse *PlannerResponse `json:"plannerResponse,omitempty"`
}

// PlannerResponse holds the model's accumulated text for a planner step.
type PlannerResponse struct {
	Response string `json:"response"`
}

// IsPlannerResponse reports whether the step is surfaced to the user.
func (s Step) IsPlannerResponse() bool {
	return s.Type == StepTypePlannerResponse
}

// Done reports whether the step reached its terminal status.
func (s Step) Done() bool {
	return s.Status == StepStatusDone
}

// Text returns the planner response, or "" for steps without one.
func (s Step) Text() string {
	if s.PlannerResponse == nil {
		return ""
	}
	return s.PlannerResponse.Response
}

// LatestPlannerResponse returns the last planner-response step at index >= from.
func LatestPlannerResponse(steps []Step, from int) (Step, bool) {
	if from < 0 {
		from = 0
	}
	for i := len(steps) - 1; i >= from; i-- {
		if steps[i].IsPlannerResponse() {
			return steps[i], true
		}
	}
	return Step{}, false
}

type startRequest struct {
	Metadata Metadata `json:"metadata"`
}

type startResponse struct {
	CascadeID string `json:"cascadeId"`
}

type sendRequest struct {
	CascadeID     string        `json:"cascadeId"`
	CascadeConfig cascadeConfig `json:"cascadeConfig"`
	TurnConfig    struct{}      `json:"turnConfig"`
	Items         []Item        `json:"items"`
}

type cascadeConfig struct {
	PlannerConfig plannerConfig `json:"plannerConfig"`
}

type plannerConfig struct {
	PlanModel      string         `json:"planModel"`
	RequestedModel requestedModel `json:"requestedModel"`
}

type requestedModel struct {
	Model string `json:"model"`
}

type stepsRequest struct {
	CascadeID string   `json:"cascadeId"`
	Metadata  Metadata `json:"metadata"`
}

type stepsResponse struct {
	Steps []Step `json:"steps"`
}

type interactionRequest struct {
	CascadeID   string      `json:"cascadeId"`
	Interaction interaction `json:"interaction"`
}

type interaction struct {
	Accept *struct{} `json:"accept,omitempty"`
}
