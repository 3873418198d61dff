package srs

import (
	"math"
	"slices"
	"time"
)

const (
	InitialEloRating = 1500.0
	MinEloRating     = 0.0
	MaxEloRating     = 3000.0
	DefaultKFactor   = 32.0

	// DefaultTrendWindow is the number of history entries CalculateEloTrend
	// looks at when no window is given.
	DefaultTrendWindow = 10
)

// EloEntry is one point of a competence history.
type EloEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Rating     float64   `json:"rating"`
	Confidence int       `json:"confidence"`
	Correct    bool      `json:"correct"`
}

// EloState tracks a competence rating and its append-only history.
type EloState struct {
	Rating  float64    `json:"rating"`
	History []EloEntry `json:"history"`
}

// EloCategory is the display band for a rating.
type EloCategory struct {
	Level string `json:"level"`
	Color string `json:"color"`
}

// InitializeElo returns the starting rating.
func InitializeElo() float64 {
	return InitialEloRating
}

// NewEloState returns a state at the starting rating with empty history.
func NewEloState() EloState {
	return EloState{Rating: InitialEloRating, History: []EloEntry{}}
}

// ExpectedScore is the logistic win probability of rating against opponent.
func ExpectedScore(rating, opponent float64) float64 {
	return 1 / (1 + math.Pow(10, (opponent-rating)/400))
}

// ConfidenceExpectation derives the expected score from self-reported
// confidence: 1 → 0.1 … 5 → 0.9.
func ConfidenceExpectation(confidence int) float64 {
	confidence = clampInt(confidence, MinConfidence, MaxConfidence)
	return 0.1 + float64(confidence-1)*0.2
}

// DynamicKFactor moves weak ratings faster and damps strong ones.
func DynamicKFactor(rating, kFactor float64) float64 {
	switch {
	case rating < 1200:
		return kFactor * 1.5
	case rating > 2000:
		return kFactor * 0.5
	default:
		return kFactor
	}
}

// UpdateElo applies one review to rating using the confidence-derived
// expectation. A non-positive kFactor uses DefaultKFactor.
func UpdateElo(rating float64, confidence int, correct bool, kFactor float64) float64 {
	return applyElo(rating, ConfidenceExpectation(confidence), correct, kFactor)
}

// UpdateEloAgainst applies one outcome against an opponent rating.
func UpdateEloAgainst(rating, opponent float64, correct bool, kFactor float64) float64 {
	return applyElo(rating, ExpectedScore(rating, opponent), correct, kFactor)
}

// Match rates a learner against an item: the item wins whenever the learner
// answers incorrectly.
func Match(user, item float64, correct bool, kFactor float64) (newUser, newItem float64) {
	newUser = UpdateEloAgainst(user, item, correct, kFactor)
	newItem = UpdateEloAgainst(item, user, !correct, kFactor)
	return newUser, newItem
}

func applyElo(rating, expected float64, correct bool, kFactor float64) float64 {
	if kFactor <= 0 {
		kFactor = DefaultKFactor
	}
	actual := 0.0
	if correct {
		actual = 1
	}
	next := rating + kFactor*(actual-expected)
	return math.Round(clampFloat(next, MinEloRating, MaxEloRating))
}

// Record applies a review with the dynamic K policy and adds the result to a
// copy of the history. Entries stay ordered by timestamp, so a review applied
// late lands before any entry that happened after it.
func (s EloState) Record(confidence int, correct bool, kFactor float64, now time.Time) EloState {
	if kFactor <= 0 {
		kFactor = DefaultKFactor
	}
	rating := s.Rating
	if rating == 0 && len(s.History) == 0 {
		rating = InitialEloRating
	}
	rating = UpdateElo(rating, confidence, correct, DynamicKFactor(rating, kFactor))

	history := make([]EloEntry, len(s.History), len(s.History)+1)
	copy(history, s.History)
	at := slices.IndexFunc(history, func(e EloEntry) bool { return e.Timestamp.After(now) })
	if at < 0 {
		at = len(history)
	}
	history = slices.Insert(history, at, EloEntry{
		Timestamp:  now,
		Rating:     rating,
		Confidence: clampInt(confidence, MinConfidence, MaxConfidence),
		Correct:    correct,
	})
	return EloState{Rating: rating, History: history}
}

// CalculateEloTrend summarises the last window entries as a value in [-1, 1].
func CalculateEloTrend(history []EloEntry, window int) float64 {
	if window <= 0 {
		window = DefaultTrendWindow
	}
	if len(history) > window {
		history = history[len(history)-window:]
	}
	if len(history) < 2 {
		return 0
	}
	delta := history[len(history)-1].Rating - history[0].Rating
	return clampFloat(delta/500, -1, 1)
}

var eloBands = []struct {
	below    float64
	category EloCategory
}{
	{1000, EloCategory{Level: "Beginner", Color: "#9ca3af"}},
	{1400, EloCategory{Level: "Novice", Color: "#60a5fa"}},
	{1600, EloCategory{Level: "Intermediate", Color: "#34d399"}},
	{1800, EloCategory{Level: "Advanced", Color: "#fbbf24"}},
	{2000, EloCategory{Level: "Expert", Color: "#f97316"}},
}

var masterCategory = EloCategory{Level: "Master", Color: "#a855f7"}

// GetEloCategory returns the display band for rating.
func GetEloCategory(rating float64) EloCategory {
	for _, band := range eloBands {
		if rating < band.below {
			return band.category
		}
	}
	return masterCategory
}
