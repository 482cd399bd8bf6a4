// Copyright (c) 2026 TOC Simulator. All rights reserved.
// Author: dev@tocsimulator.com

package simulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tocsimulator/tocsim/internal/platform/apperr"
)

func validPayload() map[string]any {
	return map[string]any{
		"states":      []any{"q0", "q1"},
		"transitions": []any{},
		"alphabet":    []any{"0", "1"},
	}
}

func TestValidatePayload_Create(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(payload map[string]any)
		isValid bool
	}{
		{"complete_payload", func(map[string]any) {}, true},
		{"missing_states", func(p map[string]any) { delete(p, "states") }, false},
		{"empty_states", func(p map[string]any) { p["states"] = []any{} }, false},
		{"states_not_a_list", func(p map[string]any) { p["states"] = "q0" }, false},
		{"missing_transitions", func(p map[string]any) { delete(p, "transitions") }, false},
		{"missing_alphabet", func(p map[string]any) { delete(p, "alphabet") }, false},
		// Empty collections are fine, absent keys are not.
		{"empty_transitions_and_alphabet", func(p map[string]any) {
			p["transitions"] = []any{}
			p["alphabet"] = []any{}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := validPayload()
			tt.mutate(payload)

			err := ValidatePayload(payload, true)
			if tt.isValid {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, "VALIDATION_ERROR", apperr.As(err).Code)
			}
		})
	}
}

func TestValidatePayload_Update(t *testing.T) {
	// A partial update may omit transitions and alphabet entirely.
	payload := map[string]any{"states": []any{"q0"}}
	assert.NoError(t, ValidatePayload(payload, false))

	// States stay mandatory on update.
	assert.Error(t, ValidatePayload(map[string]any{"states": []any{}}, false))
	assert.Error(t, ValidatePayload(map[string]any{}, false))
}

func TestCountElements(t *testing.T) {
	assert.Equal(t, 2, countElements([]any{"a", "b"}))
	assert.Equal(t, 0, countElements([]any{}))
	assert.Equal(t, 0, countElements("not a list"))
	assert.Equal(t, 0, countElements(nil))
}
