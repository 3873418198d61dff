package models

import (
	"time"

	"github.com/google/uuid"

	"tutorly-backend/internal/srs"
)

const (
	ItemTypeFlashcard = "flashcard"
	ItemTypeQuiz      = "quiz"
)

// ItemKey identifies one schedulable item. Quiz questions share the quiz ID
// and are told apart by SubIndex; flashcards always use SubIndex 0.
type ItemKey struct {
	UserID   uuid.UUID `json:"user_id"`
	ItemType string    `json:"item_type"`
	ItemID   uuid.UUID `json:"item_id"`
	SubIndex int       `json:"sub_index"`
}

func ValidItemType(t string) bool {
	return t == ItemTypeFlashcard || t == ItemTypeQuiz
}

type ReviewProgress struct {
	ID        uuid.UUID     `json:"id"`
	UserID    uuid.UUID     `json:"user_id"`
	ItemType  string        `json:"item_type"`
	ItemID    uuid.UUID     `json:"item_id"`
	SubIndex  int           `json:"sub_index"`
	Algorithm srs.Algorithm `json:"algorithm"`
	State     srs.State     `json:"state"`
	Mastery   float64       `json:"mastery"`
	DueAt     time.Time     `json:"due_at"`
	Version   int           `json:"version"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (p *ReviewProgress) Key() ItemKey {
	return ItemKey{UserID: p.UserID, ItemType: p.ItemType, ItemID: p.ItemID, SubIndex: p.SubIndex}
}

// ReviewRequest is one review event as submitted by a client.
type ReviewRequest struct {
	ItemType   string     `json:"item_type"`
	ItemID     uuid.UUID  `json:"item_id"`
	SubIndex   int        `json:"sub_index"`
	Confidence int        `json:"confidence"`
	Correct    bool       `json:"correct"`
	TimeSpent  int        `json:"time_spent"`
	Algorithm  string     `json:"algorithm,omitempty"`
	SessionID  *uuid.UUID `json:"session_id,omitempty"`
	Scope      string     `json:"scope,omitempty"`
}

func (r ReviewRequest) Result() srs.ReviewResult {
	return srs.ReviewResult{Confidence: r.Confidence, Correct: r.Correct, TimeSpent: r.TimeSpent}
}

type ReviewResponse struct {
	Progress *ReviewProgress `json:"progress"`
	Interval int             `json:"interval"`
	DueAt    time.Time       `json:"due_at"`
	Mastery  float64         `json:"mastery"`
}

type SwitchAlgorithmRequest struct {
	Algorithm string `json:"algorithm"`
}

// MasteryDistribution buckets a user's items by mastery.
type MasteryDistribution struct {
	Total          int            `json:"total"`
	New            int            `json:"new"`      // no successful recall yet
	Learning       int            `json:"learning"` // mastery < 0.8
	Mastered       int            `json:"mastered"` // mastery >= 0.8
	DueNow         int            `json:"due_now"`
	AverageMastery float64        `json:"average_mastery"`
	ByAlgorithm    map[string]int `json:"by_algorithm"`
}

type ReviewOverview struct {
	Distribution MasteryDistribution `json:"distribution"`
	Next         *ReviewProgress     `json:"next"`
	Competence   *CompetenceSummary  `json:"competence"`
}
