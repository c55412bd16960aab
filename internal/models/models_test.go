package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatalogIDsAreUnique(t *testing.T) {
	seen := make(map[string]string)
	for _, m := range Catalog {
		if prev, ok := seen[m.ID]; ok {
			t.Fatalf("id %s used by %q and %q", m.ID, prev, m.Display)
		}
		seen[m.ID] = m.Display
	}
}

func TestLookups(t *testing.T) {
	m, ok := ByID("MODEL_PLACEHOLDER_M18")
	assert.True(t, ok)
	assert.Equal(t, "Gemini 3 Flash", m.Display)

	m, ok = ByDisplay("claude opus 4.6 (thinking)")
	assert.True(t, ok)
	assert.Equal(t, "MODEL_PLACEHOLDER_M26", m.ID)

	assert.Equal(t, UnknownDisplay, DisplayFor("nope"))
}

func TestModes(t *testing.T) {
	mode, ok := ParseMode(" FAST ")
	assert.True(t, ok)
	assert.Equal(t, ModeFast, mode)
	assert.Equal(t, "Gemini 3 Flash", ModelFor(mode).Display)
	assert.Equal(t, "Gemini 3.1 Pro (High)", ModelFor(ModePlanning).Display)

	_, ok = ParseMode("auto")
	assert.False(t, ok, "auto toggles approval, it is not a mode")
}
