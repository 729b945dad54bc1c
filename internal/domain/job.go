package domain

import (
	"encoding/json"
	"time"
)

// JobType enumerates supported generation job categories.
type JobType string

const (
	JobTypeStorybook       JobType = "storybook"
	JobTypeAutoStory       JobType = "auto-story"
	JobTypeScenes          JobType = "scenes"
	JobTypeCartoonize      JobType = "cartoonize"
	JobTypeImageGeneration JobType = "image-generation"
)

// JobTypes lists every known job type in declaration order.
func JobTypes() []JobType {
	return []JobType{
		JobTypeStorybook,
		JobTypeAutoStory,
		JobTypeScenes,
		JobTypeCartoonize,
		JobTypeImageGeneration,
	}
}

// ParseJobType validates a raw type string.
func ParseJobType(raw string) (JobType, bool) {
	t := JobType(raw)
	for _, known := range JobTypes() {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the status ends the lifecycle. A job in a
// terminal status is never mutated again except by retention cleanup.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Job encapsulates one unit of asynchronous generation work tracked
// through the pending/processing/completed/failed/cancelled lifecycle.
type Job struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	Type         JobType         `json:"type"`
	Status       JobStatus       `json:"status"`
	Progress     int             `json:"progress"`
	CurrentStep  string          `json:"current_step,omitempty"`
	InputData    json.RawMessage `json:"input_data,omitempty"`
	ResultData   json.RawMessage `json:"result_data,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	RetryCount   int             `json:"retry_count"`
	MaxRetries   int             `json:"max_retries"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// ClampProgress maps arbitrary caller-supplied progress into [0,100].
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// JobFilter narrows job queries. Zero values mean "no constraint".
type JobFilter struct {
	UserID string
	Type   JobType
	Status JobStatus
	Limit  int
	Offset int
}

// JobStats holds per-status counts for a slice of the job table.
type JobStats struct {
	Total      int64 `json:"total"`
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
	Cancelled  int64 `json:"cancelled"`
}

// QueueDepth is the number of jobs not yet settled.
func (s JobStats) QueueDepth() int64 {
	return s.Pending + s.Processing
}

// SuccessRate returns completed/(completed+failed) as a percentage, or
// 100 when nothing has settled yet.
func (s JobStats) SuccessRate() float64 {
	settled := s.Completed + s.Failed
	if settled == 0 {
		return 100
	}
	return float64(s.Completed) / float64(settled) * 100
}
