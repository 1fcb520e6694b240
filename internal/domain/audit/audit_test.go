package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiff(t *testing.T) {
	oldState := map[string]any{"name": "Gloves", "minStock": int64(10), "unit": "box"}
	newState := map[string]any{"name": "Nitrile gloves", "minStock": int64(10), "category": "ppe"}

	changes := Diff(oldState, newState)

	assert.Len(t, changes, 3)
	assert.Equal(t, map[string]any{"old": "Gloves", "new": "Nitrile gloves"}, changes["name"])
	assert.Equal(t, map[string]any{"old": nil, "new": "ppe"}, changes["category"])
	assert.Equal(t, map[string]any{"old": "box", "new": nil}, changes["unit"])
	assert.NotContains(t, changes, "minStock")
}
