package main

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type fakeCleaner struct {
	removed int
	err     error
}

func (c fakeCleaner) CleanupExpired(context.Context) (int, error) {
	return c.removed, c.err
}

func TestCleanupOnce_FlushesOnSuccessAndFailure(t *testing.T) {
	tests := []struct {
		name    string
		cleaner fakeCleaner
		code    int
	}{
		{"success", fakeCleaner{removed: 3}, 0},
		{"failure", fakeCleaner{removed: 1, err: errors.New("connection refused")}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flushed := false
			code := cleanupOnce(context.Background(), tt.cleaner, func() error {
				flushed = true
				return nil
			}, zerolog.Nop())
			assert.Equal(t, tt.code, code)
			assert.True(t, flushed)
		})
	}
}
