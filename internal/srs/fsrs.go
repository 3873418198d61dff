package srs

import (
	"math"
	"time"
)

// MaxIntervalDays caps every scheduled interval so due dates stay
// representable in time.Time and timestamptz.
const MaxIntervalDays = 36500

// FSRS schedules with a stability/difficulty memory model.
type FSRS struct {
	Params FSRSParams
}

// NewFSRS returns an FSRS scheduler with the default coefficients.
func NewFSRS() FSRS {
	return FSRS{Params: DefaultFSRSParams}
}

func (FSRS) Algorithm() Algorithm { return AlgorithmFSRS }

func (e FSRS) Initialize(now time.Time) State {
	studied := now
	return State{
		Interval:        1,
		EaseFactor:      DefaultSM2Params.InitialEase,
		RepetitionCount: 0,
		DueDate:         addDays(now, 1),
		LastStudied:     &studied,
		FSRS:            e.initialSubstate(now),
	}
}

func (e FSRS) initialSubstate(now time.Time) *FSRSState {
	p := e.params()
	return &FSRSState{
		Stability:  p.InitialStability,
		Difficulty: p.InitialDifficulty,
		LastReview: now,
		Phase:      PhaseNew,
	}
}

// Recall converts a review into a 0-1 recall score.
func (e FSRS) Recall(result ReviewResult) float64 {
	if !result.Correct {
		return 0
	}
	p := e.params()
	return p.RecallBase + float64(result.Confidence-1)*p.RecallPerConfident
}

func (e FSRS) Update(state State, result ReviewResult, now time.Time) State {
	p := e.params()
	next := state.Clone()
	result = result.Normalize()

	mem := next.FSRS
	if mem == nil {
		mem = e.initialSubstate(now)
		next.FSRS = mem
	}

	recall := e.Recall(result)
	mem.Difficulty = e.nextDifficulty(mem.Difficulty, recall)

	if recall >= p.SuccessThreshold {
		growth := (1 + math.Exp(p.GrowthIntercept+p.GrowthDifficulty*mem.Difficulty+p.GrowthRecall*recall)) *
			(1 + math.Exp(p.GrowthScaleExp))
		mem.Stability *= growth
		mem.Reps++

		if mem.Phase == PhaseNew {
			mem.Phase = PhaseLearning
			mem.Stability = p.InitialStability
		} else {
			mem.Phase = PhaseReview
		}
	} else {
		mem.Lapses++
		switch mem.Phase {
		case PhaseNew, PhaseLearning:
			mem.Stability = p.RelearnStability
		default:
			mem.Stability *= p.LapseMultiplier
		}
		mem.Phase = PhaseRelearning
	}

	if mem.Stability < p.MinStability || math.IsNaN(mem.Stability) {
		mem.Stability = p.MinStability
	}
	if mem.Stability > MaxIntervalDays {
		mem.Stability = MaxIntervalDays
	}
	mem.LastReview = now

	studied := now
	next.Interval = max(1, int(math.Round(mem.Stability)))
	next.RepetitionCount = mem.Reps
	next.DueDate = addDays(now, next.Interval)
	next.LastStudied = &studied
	return next
}

func (e FSRS) nextDifficulty(d, recall float64) float64 {
	p := e.params()
	if recall >= p.SuccessThreshold {
		d -= (recall - p.SuccessThreshold) * (1 - d) * p.DifficultyRate
	} else {
		d += (p.SuccessThreshold - recall) * d * p.DifficultyRate
	}
	return clampFloat(d, p.MinDifficulty, p.MaxDifficulty)
}

func (e FSRS) params() FSRSParams {
	if e.Params == (FSRSParams{}) {
		return DefaultFSRSParams
	}
	return e.Params
}
