package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"clean stop", nil, 0},
		{"signal", context.Canceled, 0},
		{"wrapped cancel", fmt.Errorf("outbox: %w", context.Canceled), 0},
		{"server failure", fmt.Errorf("http server failed: %w", errors.New("address already in use")), 1},
		{"deadline", context.DeadlineExceeded, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
