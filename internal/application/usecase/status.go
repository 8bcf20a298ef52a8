package usecase

import (
	"errors"
	"fmt"

	"github.com/bnema/ealain/internal/application/port"
	"github.com/bnema/ealain/internal/domain/entity"
)

// Status texts shown to the user.
const (
	StatusRequesting    = "Requesting new images..."
	StatusSubmitted     = "Request submitted..."
	StatusNoCapacity    = "No worker can take this request right now, retrying..."
	StatusWaitingWorker = "Waiting for an available worker..."
	StatusDownloading   = "Downloading new images..."
	StatusOverloaded    = "Service overloaded, retrying..."
	StatusConnection    = "Connection problem, retrying..."
	StatusTimedOut      = "Request timed out, retrying..."
	StatusServiceError  = "Image service error, retrying..."
	StatusFaulted       = "Generation failed on the worker, retrying..."
	StatusAllCensored   = "All new images were filtered, retrying..."
	StatusStopped       = "Reached maximum failures. Check your connection and style setting."
)

// DescribeProgress turns a poll result into a status line.
func DescribeProgress(s entity.GenerationStatus) string {
	switch {
	case !s.Possible:
		return StatusNoCapacity
	case s.Processing > 0:
		if s.Processing == 1 {
			return "Generating 1 image..."
		}
		return fmt.Sprintf("Generating %d images...", s.Processing)
	case s.QueuePosition > 0:
		return fmt.Sprintf("Waiting (#%d in queue)", s.QueuePosition)
	default:
		return StatusWaitingWorker
	}
}

// DescribeError turns a failed call into a status line.
func DescribeError(err error) string {
	var protoErr *port.ProtocolError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, port.ErrTimeout):
		return StatusTimedOut
	case errors.Is(err, port.ErrTransport):
		return StatusConnection
	case errors.Is(err, port.ErrCapacity):
		return StatusNoCapacity
	case errors.Is(err, port.ErrFaulted):
		return StatusFaulted
	case errors.As(err, &protoErr) && protoErr.RateLimited():
		return StatusOverloaded
	default:
		return StatusServiceError
	}
}

func savedStatus(n int) string {
	if n == 1 {
		return "Saved 1 new image"
	}
	return fmt.Sprintf("Saved %d new images", n)
}
