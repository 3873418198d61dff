package srs

import "time"

const (
	MinLeitnerBox = 1
	MaxLeitnerBox = 5
)

// Leitner schedules by promoting items through fixed-interval boxes.
type Leitner struct {
	Params LeitnerParams
}

// NewLeitner returns a Leitner scheduler with the 1/2/4/8/16 day table.
func NewLeitner() Leitner {
	return Leitner{Params: DefaultLeitnerParams}
}

func (Leitner) Algorithm() Algorithm { return AlgorithmLeitner }

func (e Leitner) Initialize(now time.Time) State {
	p := e.params()
	box := MinLeitnerBox
	studied := now
	return State{
		Interval:        p.Intervals[0],
		EaseFactor:      DefaultSM2Params.InitialEase,
		RepetitionCount: 0,
		DueDate:         addDays(now, p.Intervals[0]),
		LastStudied:     &studied,
		LeitnerBox:      &box,
	}
}

// Box returns the item's current box, defaulting to 1.
func Box(state State) int {
	if state.LeitnerBox == nil {
		return MinLeitnerBox
	}
	return clampInt(*state.LeitnerBox, MinLeitnerBox, MaxLeitnerBox)
}

func (e Leitner) Update(state State, result ReviewResult, now time.Time) State {
	p := e.params()
	next := state.Clone()
	result = result.Normalize()

	box := Box(state)
	if result.Correct && result.Confidence >= p.MinConfidence {
		box = min(box+1, MaxLeitnerBox)
		next.RepetitionCount++
	} else {
		box = MinLeitnerBox
		next.RepetitionCount = 0
	}

	studied := now
	next.LeitnerBox = &box
	next.Interval = p.Intervals[box-1]
	next.DueDate = addDays(now, next.Interval)
	next.LastStudied = &studied
	return next
}

func (e Leitner) params() LeitnerParams {
	if e.Params == (LeitnerParams{}) {
		return DefaultLeitnerParams
	}
	return e.Params
}
