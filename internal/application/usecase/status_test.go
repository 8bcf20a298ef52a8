package usecase

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bnema/ealain/internal/application/port"
	"github.com/bnema/ealain/internal/domain/entity"
)

func TestDescribeProgress(t *testing.T) {
	tests := []struct {
		name   string
		status entity.GenerationStatus
		want   string
	}{
		{"queued", entity.GenerationStatus{Possible: true, QueuePosition: 5}, "Waiting (#5 in queue)"},
		{"processing wins over queue", entity.GenerationStatus{Possible: true, Processing: 3, QueuePosition: 2}, "Generating 3 images..."},
		{"single image", entity.GenerationStatus{Possible: true, Processing: 1}, "Generating 1 image..."},
		{"not possible", entity.GenerationStatus{Possible: false, QueuePosition: 4}, StatusNoCapacity},
		{"idle", entity.GenerationStatus{Possible: true}, StatusWaitingWorker},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DescribeProgress(tt.status))
		})
	}
}

func TestDescribeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"timeout", fmt.Errorf("submit: %w", port.ErrTimeout), StatusTimedOut},
		{"transport", port.ErrTransport, StatusConnection},
		{"rate limited", &port.ProtocolError{StatusCode: 429}, StatusOverloaded},
		{"server error", &port.ProtocolError{StatusCode: 500}, StatusServiceError},
		{"decoding", port.ErrDecoding, StatusServiceError},
		{"capacity", port.ErrCapacity, StatusNoCapacity},
		{"faulted", port.ErrFaulted, StatusFaulted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DescribeError(tt.err))
		})
	}
}
