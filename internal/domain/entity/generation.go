// Package entity defines domain entities for ealain.
package entity

import (
	"github.com/google/uuid"
)

// GenerationParams holds the sampler settings sent with a generation request.
type GenerationParams struct {
	Steps          int
	CFGScale       float64
	Sampler        string
	Karras         bool
	PostProcessing []string
}

// GenerationRequest describes one batch of images to generate.
// It is a value type and must not be modified once submitted.
type GenerationRequest struct {
	Prompt string
	// Style is a remote style identifier. When set it takes precedence over Models.
	Style  string
	Models []string
	Count  int
	Width  int
	Height int
	Params GenerationParams

	NSFW              bool
	CensorNSFW        bool
	TrustedWorkers    bool
	SlowWorkers       bool
	Shared            bool
	R2                bool
	ReplacementFilter bool
}

// GenerationHandle correlates a submitted request with its later polls and fetch.
type GenerationHandle struct {
	ID uuid.UUID
	// Kudos is the cost the remote service charged for the request.
	Kudos float64
}

// String returns the handle identifier.
func (h GenerationHandle) String() string {
	return h.ID.String()
}

// IsZero reports whether the handle was never assigned.
func (h GenerationHandle) IsZero() bool {
	return h.ID == uuid.Nil
}

// GenerationStatus is the result of polling a submitted request.
type GenerationStatus struct {
	Done          bool
	Faulted       bool
	Possible      bool
	Processing    int
	Waiting       int
	Finished      int
	Restarted     int
	QueuePosition int
	WaitTime      int
	Kudos         float64
}

// GeneratedImage is one result of a finished request.
// Exactly one of URL or Data is set.
type GeneratedImage struct {
	ID         string
	URL        string
	Data       []byte
	Censored   bool
	WorkerName string
	Model      string
}

// JobState is the lifecycle state of a generation job.
type JobState int

const (
	JobStateIdle JobState = iota
	JobStateSubmitting
	JobStatePolling
	JobStateDownloading
	JobStateCompleted
	JobStateFailed
	JobStateAbandoned
)

// String returns a human-readable string for the job state.
func (s JobState) String() string {
	switch s {
	case JobStateIdle:
		return "idle"
	case JobStateSubmitting:
		return "submitting"
	case JobStatePolling:
		return "polling"
	case JobStateDownloading:
		return "downloading"
	case JobStateCompleted:
		return "completed"
	case JobStateFailed:
		return "failed"
	case JobStateAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen from this state.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateFailed || s == JobStateAbandoned
}
