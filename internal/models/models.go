// Package models holds the catalog of backend model identifiers the bridge can select.
package models

import "strings"

// Model pairs the name shown to users with the identifier the backend expects.
type Model struct {
	Display string
	ID      string
}

// Catalog is ordered the way model panels render it.
var Catalog = []Model{
	{Display: "Gemini 3.1 Pro (High)", ID: "MODEL_PLACEHOLDER_M37"},
	{Display: "Gemini 3.1 Pro (Low)", ID: "MODEL_PLACEHOLDER_M36"},
	{Display: "Gemini 3 Pro (High)", ID: "MODEL_GOOGLE_GEMINI_2_5_FLASH_THINKING"},
	{Display: "Gemini 3 Pro (Low)", ID: "MODEL_GOOGLE_GEMINI_2_5_FLASH_LITE"},
	{Display: "Gemini 3 Flash", ID: "MODEL_PLACEHOLDER_M18"},
	{Display: "Claude Sonnet 4.6 (Thinking)", ID: "MODEL_PLACEHOLDER_M35"},
	{Display: "Claude Opus 4.6 (Thinking)", ID: "MODEL_PLACEHOLDER_M26"},
	{Display: "GPT-OSS 120B (Medium)", ID: "MODEL_OPENAI_GPT_OSS_120B_MEDIUM"},
}

// UnknownDisplay is shown for identifiers missing from the catalog.
const UnknownDisplay = "Unknown Model"

// ByID looks a model up by backend identifier.
func ByID(id string) (Model, bool) {
	for _, m := range Catalog {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// ByDisplay looks a model up by display name, case-insensitively.
func ByDisplay(name string) (Model, bool) {
	for _, m := range Catalog {
		if strings.EqualFold(m.Display, strings.TrimSpace(name)) {
			return m, true
		}
	}
	return Model{}, false
}

// DisplayFor returns the display name for id, or UnknownDisplay.
func DisplayFor(id string) string {
	if m, ok := ByID(id); ok {
		return m.Display
	}
	return UnknownDisplay
}

// Mode is the working style selected with /mode.
type Mode string

const (
	ModePlanning Mode = "Planning"
	ModeFast     Mode = "Fast"
)

// ParseMode accepts the lowercase command argument form.
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "planning":
		return ModePlanning, true
	case "fast":
		return ModeFast, true
	}
	return "", false
}

// ModelFor returns the model a mode switches to.
func ModelFor(mode Mode) Model {
	if mode == ModeFast {
		m, _ := ByDisplay("Gemini 3 Flash")
		return m
	}
	return Default()
}

// Default is the model used until a conversation selects another.
func Default() Model {
	return Catalog[0]
}
