package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type FlashcardDeck struct {
	ID         uuid.UUID       `json:"id"`
	UserID     uuid.UUID       `json:"user_id"`
	Title      string          `json:"title"`
	Algorithm  string          `json:"algorithm"` // "fsrs" | "sm2" | "leitner"
	ConfigJSON json.RawMessage `json:"config"`
	CardCount  int             `json:"card_count"`
	IsFavorite bool            `json:"is_favorite"`
	CreatedAt  time.Time       `json:"created_at"`
}

// FlashcardCard carries a denormalized copy of the card's schedule so deck
// listings don't need to join review_progress.
type FlashcardCard struct {
	ID             uuid.UUID  `json:"id"`
	DeckID         uuid.UUID  `json:"deck_id"`
	Front          string     `json:"front"`
	Back           string     `json:"back"`
	Mnemonic       *string    `json:"mnemonic"`
	Example        *string    `json:"example"`
	Topic          string     `json:"topic"`
	Difficulty     int        `json:"difficulty"` // 1=easy, 2=medium, 3=hard
	IntervalDays   int        `json:"interval_days"`
	EaseFactor     float64    `json:"ease_factor"`
	Repetitions    int        `json:"repetitions"`
	Mastery        float64    `json:"mastery"`
	NextReviewAt   time.Time  `json:"next_review_at"`
	LastReviewedAt *time.Time `json:"last_reviewed_at"`
}

// CardReviewRequest accepts either a full review event or the legacy
// four-button rating.
type CardReviewRequest struct {
	Confidence *int       `json:"confidence"`
	Correct    *bool      `json:"correct"`
	TimeSpent  int        `json:"time_spent"`
	Rating     *int       `json:"rating"` // 0=Again, 1=Hard, 2=Good, 3=Easy
	SessionID  *uuid.UUID `json:"session_id"`
}

// legacyRatings maps the old button rating onto (confidence, correct).
var legacyRatings = [...]struct {
	confidence int
	correct    bool
}{
	{1, false},
	{3, true},
	{4, true},
	{5, true},
}

// Event resolves the request to a confidence/correct pair. ok is false when
// neither form is complete.
func (r CardReviewRequest) Event() (confidence int, correct bool, ok bool) {
	if r.Confidence != nil && r.Correct != nil {
		return *r.Confidence, *r.Correct, true
	}
	if r.Rating != nil && *r.Rating >= 0 && *r.Rating < len(legacyRatings) {
		lr := legacyRatings[*r.Rating]
		return lr.confidence, lr.correct, true
	}
	return 0, false, false
}

type DeckAlgorithmRequest struct {
	Algorithm string `json:"algorithm"`
}

type DeckStats struct {
	TotalCards     int     `json:"total_cards"`
	Mastered       int     `json:"mastered"`
	Learning       int     `json:"learning"`
	New            int     `json:"new"`
	DueToday       int     `json:"due_today"`
	MasteryRate    float64 `json:"mastery_rate"`
	AverageMastery float64 `json:"average_mastery"`
}
