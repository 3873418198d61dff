package srs

import (
	"math"
	"time"
)

// SM2 schedules with the SuperMemo-2 ease-factor algorithm.
type SM2 struct {
	Params SM2Params
}

// NewSM2 returns an SM-2 scheduler with the default coefficients.
func NewSM2() SM2 {
	return SM2{Params: DefaultSM2Params}
}

func (SM2) Algorithm() Algorithm { return AlgorithmSM2 }

func (e SM2) Initialize(now time.Time) State {
	p := e.params()
	studied := now
	return State{
		Interval:        p.FirstStep,
		EaseFactor:      p.InitialEase,
		RepetitionCount: 0,
		DueDate:         addDays(now, p.FirstStep),
		LastStudied:     &studied,
	}
}

// Quality maps a review onto the 0-5 SuperMemo grade.
func Quality(result ReviewResult) int {
	if !result.Correct {
		return 0
	}
	switch result.Confidence {
	case 3:
		return 2
	case 4:
		return 4
	case 5:
		return 5
	default:
		return 3
	}
}

// EaseFactor applies the SM-2 ease update for grade q, floored at the minimum.
func (e SM2) EaseFactor(ef float64, q int) float64 {
	p := e.params()
	fiveMinusQ := float64(5 - q)
	ef += p.EaseBase - fiveMinusQ*(p.EaseLinear+fiveMinusQ*p.EaseQuadrant)
	return math.Max(ef, p.MinimumEase)
}

func (e SM2) Update(state State, result ReviewResult, now time.Time) State {
	p := e.params()
	next := state.Clone()
	result = result.Normalize()

	ef := next.EaseFactor
	if ef < p.MinimumEase {
		ef = p.MinimumEase
	}

	q := Quality(result)
	next.EaseFactor = e.EaseFactor(ef, q)

	if q < p.PassingGrade {
		next.Interval = p.FirstStep
		next.RepetitionCount = 0
	} else {
		next.RepetitionCount++
		switch next.RepetitionCount {
		case 1:
			next.Interval = p.FirstStep
		case 2:
			next.Interval = p.SecondStep
		default:
			prev := clampInt(next.Interval, 1, p.MaxInterval)
			grown := math.Round(float64(prev) * next.EaseFactor)
			next.Interval = int(math.Min(grown, float64(p.MaxInterval)))
		}
	}
	next.Interval = clampInt(next.Interval, 1, p.MaxInterval)

	studied := now
	next.DueDate = addDays(now, next.Interval)
	next.LastStudied = &studied
	return next
}

func (e SM2) params() SM2Params {
	if e.Params == (SM2Params{}) {
		return DefaultSM2Params
	}
	p := e.Params
	if p.MaxInterval < 1 {
		p.MaxInterval = MaxIntervalDays
	}
	return p
}
