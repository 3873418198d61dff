package srs

import (
	"encoding"
	"encoding/json"
	"fmt"
	"time"
)

// Algorithm selects the scheduling policy for an item.
type Algorithm string

const (
	AlgorithmFSRS    Algorithm = "fsrs"
	AlgorithmSM2     Algorithm = "sm2"
	AlgorithmLeitner Algorithm = "leitner"
)

// DefaultAlgorithm is used whenever a tag is empty or unknown.
const DefaultAlgorithm = AlgorithmFSRS

var (
	_ encoding.TextMarshaler   = Algorithm("")
	_ encoding.TextUnmarshaler = (*Algorithm)(nil)
)

// ParseAlgorithm maps a stored tag to an Algorithm, falling back to FSRS.
func ParseAlgorithm(s string) Algorithm {
	switch Algorithm(s) {
	case AlgorithmFSRS, AlgorithmSM2, AlgorithmLeitner:
		return Algorithm(s)
	}
	return DefaultAlgorithm
}

// IsKnown reports whether a is one of the three supported tags.
func (a Algorithm) IsKnown() bool {
	switch a {
	case AlgorithmFSRS, AlgorithmSM2, AlgorithmLeitner:
		return true
	}
	return false
}

func (a Algorithm) String() string { return string(a) }

func (a Algorithm) MarshalText() ([]byte, error) {
	return []byte(ParseAlgorithm(string(a))), nil
}

func (a *Algorithm) UnmarshalText(text []byte) error {
	*a = ParseAlgorithm(string(text))
	return nil
}

// Phase is the FSRS learning stage of an item.
type Phase int

const (
	PhaseNew Phase = iota
	PhaseLearning
	PhaseReview
	PhaseRelearning
)

var phaseNames = [...]string{
	PhaseNew:        "New",
	PhaseLearning:   "Learning",
	PhaseReview:     "Review",
	PhaseRelearning: "Relearning",
}

func (p Phase) String() string {
	if p >= PhaseNew && p <= PhaseRelearning {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// FSRSState is the memory-model substate carried by FSRS items.
type FSRSState struct {
	Stability  float64   `json:"stability"`  // days
	Difficulty float64   `json:"difficulty"` // [0.1, 1.0]
	LastReview time.Time `json:"lastReview"`
	Reps       int       `json:"reps"`
	Lapses     int       `json:"lapses"`
	Phase      Phase     `json:"state"`
}

// State is the per-item scheduling state. Substates belonging to other
// algorithms are carried along untouched so switching back restores them.
type State struct {
	Interval        int        `json:"interval"`
	EaseFactor      float64    `json:"easeFactor"`
	RepetitionCount int        `json:"repetitionCount"`
	DueDate         time.Time  `json:"dueDate"`
	LastStudied     *time.Time `json:"lastStudied,omitempty"`
	LeitnerBox      *int       `json:"leitnerBox,omitempty"`
	FSRS            *FSRSState `json:"fsrsState,omitempty"`
}

// Clone returns a deep copy; pointer fields are copied by value.
func (s State) Clone() State {
	out := s
	if s.LastStudied != nil {
		v := *s.LastStudied
		out.LastStudied = &v
	}
	if s.LeitnerBox != nil {
		v := *s.LeitnerBox
		out.LeitnerBox = &v
	}
	if s.FSRS != nil {
		v := *s.FSRS
		out.FSRS = &v
	}
	return out
}

// IsDue reports whether the item may be shown at now.
func (s State) IsDue(now time.Time) bool {
	return !s.DueDate.After(now)
}

// Marshal encodes the state for JSON column storage.
func (s State) Marshal() (json.RawMessage, error) {
	return json.Marshal(s)
}

// UnmarshalState decodes a stored state column.
func UnmarshalState(data []byte) (State, error) {
	var s State
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("srs: decode state: %w", err)
	}
	return s, nil
}

// ReviewResult is a single review event.
type ReviewResult struct {
	Confidence int  `json:"confidence"` // 1-5 self-reported certainty
	Correct    bool `json:"correct"`
	TimeSpent  int  `json:"timeSpent"` // seconds, telemetry only
}

const (
	MinConfidence = 1
	MaxConfidence = 5
)

// Validate checks the review against its input contract. Engines never call
// it; they clamp instead.
func (r ReviewResult) Validate() error {
	fields := map[string]string{}
	if r.Confidence < MinConfidence || r.Confidence > MaxConfidence {
		fields["confidence"] = "must be between 1 and 5"
	}
	if r.TimeSpent < 0 {
		fields["time_spent"] = "must not be negative"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Normalize clamps confidence into 1-5 and time spent to ≥ 0.
func (r ReviewResult) Normalize() ReviewResult {
	r.Confidence = clampInt(r.Confidence, MinConfidence, MaxConfidence)
	if r.TimeSpent < 0 {
		r.TimeSpent = 0
	}
	return r
}

// ValidationError lists the offending review fields.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("srs: invalid review result: %v", e.Fields)
}

// Scheduler is implemented by each scheduling policy.
type Scheduler interface {
	Algorithm() Algorithm
	Initialize(now time.Time) State
	Update(state State, result ReviewResult, now time.Time) State
}

// Compile-time interface checks.
var (
	_ Scheduler = SM2{}
	_ Scheduler = Leitner{}
	_ Scheduler = FSRS{}
)

func addDays(t time.Time, days int) time.Time {
	return t.AddDate(0, 0, days)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
