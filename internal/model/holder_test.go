package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHolder_ZeroValueIsPlaceholder(t *testing.T) {
	var h Holder
	assert.True(t, h.IsPlaceholder())
	assert.Equal(t, PlaceholderHolderID, h.ID())
	assert.Equal(t, Placeholder(), h)
}

func TestParseHolder(t *testing.T) {
	tests := []struct {
		in          string
		placeholder bool
		id          string
	}{
		{"", true, PlaceholderHolderID},
		{PlaceholderHolderID, true, PlaceholderHolderID},
		{"order-42", false, "order-42"},
	}
	for _, tt := range tests {
		h := ParseHolder(tt.in)
		assert.Equal(t, tt.placeholder, h.IsPlaceholder(), tt.in)
		assert.Equal(t, tt.id, h.ID(), tt.in)
	}
	assert.Equal(t, "order-42", ParseHolder("order-42").OrderID())
	assert.Equal(t, "order:order-42", ParseHolder("order-42").String())
}

func TestHolder_Validate(t *testing.T) {
	assert.NoError(t, Placeholder().Validate())
	assert.NoError(t, Order("order-1").Validate())
	assert.ErrorIs(t, Order("").Validate(), ErrInvalidHolder)
	assert.ErrorIs(t, Order(PlaceholderHolderID).Validate(), ErrInvalidHolder)
}
