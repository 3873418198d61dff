package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	JobTypeEloUpdate       = "elo-update"
	JobTypeAlgorithmSwitch = "algorithm-switch"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

type Job struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	Type         string          `json:"type"` // "elo-update" | "algorithm-switch"
	ReferenceID  uuid.UUID       `json:"reference_id"`
	ConfigJSON   json.RawMessage `json:"config"`
	Status       string          `json:"status"` // "pending" | "processing" | "completed" | "failed"
	RetryCount   int             `json:"retry_count"`
	MaxRetries   int             `json:"max_retries"`
	ErrorMessage *string         `json:"error_message"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at"`
}

// AlgorithmSwitchConfig is the payload of an algorithm-switch job.
type AlgorithmSwitchConfig struct {
	DeckID    uuid.UUID `json:"deck_id"`
	Algorithm string    `json:"algorithm"`
}

// WebSocket message types
const (
	WSReviewScheduled = "review_scheduled"
	WSReviewsDue      = "reviews_due"
	WSCompetence      = "competence_updated"
	WSJobCompleted    = "job_completed"
	WSJobFailed       = "job_failed"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type ReviewScheduledEvent struct {
	ItemKey
	Algorithm string    `json:"algorithm"`
	Interval  int       `json:"interval"`
	Mastery   float64   `json:"mastery"`
	DueAt     time.Time `json:"due_at"`
}

type ReviewsDueEvent struct {
	DueCount int       `json:"due_count"`
	NextDue  time.Time `json:"next_due"`
}

type CompletedEvent struct {
	JobID      uuid.UUID `json:"job_id"`
	ResultID   uuid.UUID `json:"result_id"`
	ResultType string    `json:"result_type"`
}

type ErrorEvent struct {
	JobID        uuid.UUID `json:"job_id"`
	ErrorCode    string    `json:"error_code"`
	ErrorMessage string    `json:"error_message"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
