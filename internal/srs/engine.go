package srs

import (
	"math"
	"slices"
	"time"
)

// EngineConfig configures an Engine. Zero values use the defaults.
type EngineConfig struct {
	DefaultAlgorithm Algorithm     `json:"default_algorithm"` // empty → fsrs
	SM2              SM2Params     `json:"sm2"`
	Leitner          LeitnerParams `json:"leitner"`
	FSRS             FSRSParams    `json:"fsrs"`
}

// Engine routes initialize/update calls to the scheduler selected by an
// item's algorithm tag.
type Engine struct {
	schedulers map[Algorithm]Scheduler
	fallback   Algorithm
	now        func() time.Time
}

// NewEngine validates the parameter tables and builds the three schedulers.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	sm2 := cfg.SM2
	if sm2 == (SM2Params{}) {
		sm2 = DefaultSM2Params
	}
	if err := sm2.Validate(); err != nil {
		return nil, err
	}

	leitner := cfg.Leitner
	if leitner == (LeitnerParams{}) {
		leitner = DefaultLeitnerParams
	}
	if err := leitner.Validate(); err != nil {
		return nil, err
	}

	fsrs := cfg.FSRS
	if fsrs == (FSRSParams{}) {
		fsrs = DefaultFSRSParams
	}
	if err := fsrs.Validate(); err != nil {
		return nil, err
	}

	return &Engine{
		schedulers: map[Algorithm]Scheduler{
			AlgorithmSM2:     SM2{Params: sm2},
			AlgorithmLeitner: Leitner{Params: leitner},
			AlgorithmFSRS:    FSRS{Params: fsrs},
		},
		fallback: ParseAlgorithm(string(cfg.DefaultAlgorithm)),
		now:      time.Now,
	}, nil
}

var defaultEngine = &Engine{
	schedulers: map[Algorithm]Scheduler{
		AlgorithmSM2:     NewSM2(),
		AlgorithmLeitner: NewLeitner(),
		AlgorithmFSRS:    NewFSRS(),
	},
	fallback: DefaultAlgorithm,
	now:      time.Now,
}

// DefaultEngine returns the engine backing the package-level helpers.
func DefaultEngine() *Engine {
	return defaultEngine
}

// Resolve maps a tag onto a known algorithm using the engine's fallback.
func (e *Engine) Resolve(alg Algorithm) Algorithm {
	if alg.IsKnown() {
		return alg
	}
	return e.fallback
}

// Scheduler returns the scheduler for alg.
func (e *Engine) Scheduler(alg Algorithm) Scheduler {
	return e.schedulers[e.Resolve(alg)]
}

// InitializeState creates the first state for an item scheduled under alg.
func (e *Engine) InitializeState(alg Algorithm) State {
	return e.InitializeStateAt(alg, e.now())
}

// InitializeStateAt is InitializeState with an explicit clock.
func (e *Engine) InitializeStateAt(alg Algorithm, now time.Time) State {
	return e.Scheduler(alg).Initialize(now)
}

// UpdateSpacedRepetition applies a review under alg.
func (e *Engine) UpdateSpacedRepetition(state State, result ReviewResult, alg Algorithm) State {
	return e.UpdateSpacedRepetitionAt(state, result, alg, e.now())
}

// UpdateSpacedRepetitionAt is UpdateSpacedRepetition with an explicit clock.
func (e *Engine) UpdateSpacedRepetitionAt(state State, result ReviewResult, alg Algorithm, now time.Time) State {
	return e.Scheduler(alg).Update(state, result, now)
}

// InitializeState uses the default engine.
func InitializeState(alg Algorithm) State {
	return defaultEngine.InitializeState(alg)
}

// UpdateSpacedRepetition uses the default engine.
func UpdateSpacedRepetition(state State, result ReviewResult, alg Algorithm) State {
	return defaultEngine.UpdateSpacedRepetition(state, result, alg)
}

// CalculateMastery scores retention in [0, 1]. FSRS items are scored from
// stability and difficulty, everything else from repetitions and ease.
func CalculateMastery(state State) float64 {
	var mastery float64
	if mem := state.FSRS; mem != nil {
		mastery = 0.7*math.Min(mem.Stability/365, 1) + 0.3*(1-mem.Difficulty)
	} else {
		mastery = 0.6*math.Min(float64(state.RepetitionCount)/10, 1) +
			0.4*math.Min((state.EaseFactor-DefaultSM2Params.MinimumEase)/1.2, 1)
	}
	if math.IsNaN(mastery) {
		return 0
	}
	return clampFloat(mastery, 0, 1)
}

// CalculateDueDate returns now plus interval days, never less than one day.
func CalculateDueDate(interval int, now time.Time) time.Time {
	return addDays(now, max(1, interval))
}

// GetNextReview picks the earliest overdue item, or if nothing is due the
// item with the nearest future due date. ok is false only for empty input.
func GetNextReview[T any](items []T, due func(T) time.Time, now time.Time) (next T, ok bool) {
	var (
		bestDue    T
		bestDueAt  time.Time
		haveDue    bool
		bestSoon   T
		bestSoonAt time.Time
		haveSoon   bool
	)
	for _, item := range items {
		at := due(item)
		if !at.After(now) {
			if !haveDue || at.Before(bestDueAt) {
				bestDue, bestDueAt, haveDue = item, at, true
			}
			continue
		}
		if !haveSoon || at.Before(bestSoonAt) {
			bestSoon, bestSoonAt, haveSoon = item, at, true
		}
	}
	if haveDue {
		return bestDue, true
	}
	if haveSoon {
		return bestSoon, true
	}
	return next, false
}

// DueItems returns the items due at now, earliest first.
func DueItems[T any](items []T, due func(T) time.Time, now time.Time) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if !due(item).After(now) {
			out = append(out, item)
		}
	}
	slices.SortStableFunc(out, func(a, b T) int {
		return due(a).Compare(due(b))
	})
	return out
}
