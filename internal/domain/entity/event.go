package entity

import "time"

// Event is a notification from the engine to its presentation collaborators.
// The set of implementations is closed.
type Event interface {
	isEvent()
}

// StatusChanged carries a short human-readable description of engine activity.
type StatusChanged struct {
	Text string
	At   time.Time
}

// ImageSwapped is emitted once a crossfade has completed.
type ImageSwapped struct {
	Layer Layer
	Entry CachedImageEntry
	At    time.Time
}

// GenerationFailed is emitted when a generation job ends without new images.
type GenerationFailed struct {
	Err      error
	Failures float64
	Stopped  bool
	At       time.Time
}

// ImagePreloaded tells the renderer to load an image into a hidden layer.
type ImagePreloaded struct {
	Layer Layer
	Entry CachedImageEntry
	At    time.Time
}

// CrossfadeStarted tells the renderer to animate both layers.
type CrossfadeStarted struct {
	In       Layer
	Out      Layer
	Duration time.Duration
	At       time.Time
}

// PoolChanged reports the occupancy of a partition after images were added or removed.
type PoolChanged struct {
	Partition Partition
	Count     int
	Pruned    int
	At        time.Time
}

// PartitionChanged is emitted when the engine starts refilling and showing
// another partition.
type PartitionChanged struct {
	From Partition
	To   Partition
	At   time.Time
}

// JobFinished is emitted for every generation job, successful or not.
type JobFinished struct {
	Partition Partition
	State     JobState
	Saved     int
	Censored  int
	Duration  time.Duration
	At        time.Time
}

func (StatusChanged) isEvent()    {}
func (ImageSwapped) isEvent()     {}
func (GenerationFailed) isEvent() {}
func (ImagePreloaded) isEvent()   {}
func (CrossfadeStarted) isEvent() {}
func (PoolChanged) isEvent()      {}
func (JobFinished) isEvent()      {}
func (PartitionChanged) isEvent() {}
