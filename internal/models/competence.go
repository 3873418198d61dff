package models

import (
	"time"

	"github.com/google/uuid"

	"tutorly-backend/internal/srs"
)

// ScopeGlobal is the competence scope used when a review names none.
const ScopeGlobal = "global"

type CompetenceRating struct {
	UserID    uuid.UUID    `json:"user_id"`
	Scope     string       `json:"scope"`
	Elo       srs.EloState `json:"elo"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// ItemRating is the difficulty rating of an item, moved by every answer
// against it.
type ItemRating struct {
	ItemType  string    `json:"item_type"`
	ItemID    uuid.UUID `json:"item_id"`
	SubIndex  int       `json:"sub_index"`
	Rating    float64   `json:"rating"`
	Reviews   int       `json:"reviews"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CompetenceSummary struct {
	Scope    string          `json:"scope"`
	Rating   float64         `json:"rating"`
	Trend    float64         `json:"trend"`
	Category srs.EloCategory `json:"category"`
	Reviews  int             `json:"reviews"`
	Recent   []srs.EloEntry  `json:"recent"`
}

// EloUpdateConfig is the payload of an elo-update job.
type EloUpdateConfig struct {
	UserID     uuid.UUID `json:"user_id"`
	Scope      string    `json:"scope"`
	ItemType   string    `json:"item_type"`
	ItemID     uuid.UUID `json:"item_id"`
	SubIndex   int       `json:"sub_index"`
	Confidence int       `json:"confidence"`
	Correct    bool      `json:"correct"`
	ReviewedAt time.Time `json:"reviewed_at"`
}
