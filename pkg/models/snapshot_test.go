package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneFields_DeepCopiesNestedStructures(t *testing.T) {
	now := time.Now().UTC()
	original := map[string]any{
		"name":  "Acme Corp",
		"value": 50000.0,
		"tags":  []any{"hot", "inbound"},
		"address": map[string]any{
			"city": "Lisbon",
		},
		"updated_at": now,
	}

	clone, err := CloneFields(original)
	require.NoError(t, err)
	assert.Equal(t, original, clone)

	// Mutating the clone must not leak back into the original.
	clone["name"] = "Globex"
	clone["tags"].([]any)[0] = "cold"
	clone["address"].(map[string]any)["city"] = "Porto"

	assert.Equal(t, "Acme Corp", original["name"])
	assert.Equal(t, "hot", original["tags"].([]any)[0])
	assert.Equal(t, "Lisbon", original["address"].(map[string]any)["city"])
}

func TestCloneFields_NilMap(t *testing.T) {
	clone, err := CloneFields(nil)
	require.NoError(t, err)
	assert.Nil(t, clone)
}

func TestCloneFields_RejectsUnsnapshottableValues(t *testing.T) {
	_, err := CloneFields(map[string]any{"callback": func() {}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "callback")

	_, err = CloneFields(map[string]any{"nested": map[string]any{"ch": make(chan int)}})
	require.Error(t, err)
}
