package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecord_IsNewerThan(t *testing.T) {
	tests := []struct {
		other    *Record
		self     *Record
		name     string
		expected bool
	}{
		{
			name:     "self timestamp greater",
			self:     &Record{Timestamp: 101},
			other:    &Record{Timestamp: 100},
			expected: true,
		},
		{
			name:     "self timestamp smaller",
			self:     &Record{Timestamp: 90},
			other:    &Record{Timestamp: 100},
			expected: false,
		},
		{
			name:     "timestamps equal is not newer",
			self:     &Record{Timestamp: 100},
			other:    &Record{Timestamp: 100},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.self.IsNewerThan(tt.other)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestRecord_Clone(t *testing.T) {
	original := &Record{
		ID:        "rec-1",
		Timestamp: 42,
		Payload: map[string]any{
			"x":     10.0,
			"y":     20.0,
			"color": "red",
		},
	}

	clone := original.Clone()

	assert.Equal(t, original.ID, clone.ID)
	assert.Equal(t, original.Timestamp, clone.Timestamp)
	assert.Equal(t, original.Payload, clone.Payload)

	// Изменение клона не должно затрагивать оригинал
	clone.Payload["color"] = "blue"
	clone.Timestamp = 100

	assert.Equal(t, "red", original.Payload["color"])
	assert.Equal(t, int64(42), original.Timestamp)
}
