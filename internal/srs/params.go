package srs

import (
	"errors"
	"fmt"
)

// ErrInvalidParameters is returned by NewEngine when a parameter table is
// out of bounds.
var ErrInvalidParameters = errors.New("srs: parameters out of bounds")

// SM2Params holds the SuperMemo-2 coefficients.
type SM2Params struct {
	InitialEase  float64 `json:"initial_ease"`  // 2.5
	MinimumEase  float64 `json:"minimum_ease"`  // 1.3
	EaseBase     float64 `json:"ease_base"`     // 0.1
	EaseLinear   float64 `json:"ease_linear"`   // 0.08
	EaseQuadrant float64 `json:"ease_quadrant"` // 0.02
	FirstStep    int     `json:"first_step"`    // 1 day
	SecondStep   int     `json:"second_step"`   // 6 days
	PassingGrade int     `json:"passing_grade"` // 3
	MaxInterval  int     `json:"max_interval"`  // days
}

// DefaultSM2Params are the classic SuperMemo-2 values.
var DefaultSM2Params = SM2Params{
	InitialEase:  2.5,
	MinimumEase:  1.3,
	EaseBase:     0.1,
	EaseLinear:   0.08,
	EaseQuadrant: 0.02,
	FirstStep:    1,
	SecondStep:   6,
	PassingGrade: 3,
	MaxInterval:  MaxIntervalDays,
}

// LeitnerParams holds the box interval table in days, indexed by box-1.
type LeitnerParams struct {
	Intervals     [5]int `json:"intervals"`
	MinConfidence int    `json:"min_confidence"` // promotion threshold
}

// DefaultLeitnerParams doubles the interval per box.
var DefaultLeitnerParams = LeitnerParams{
	Intervals:     [5]int{1, 2, 4, 8, 16},
	MinConfidence: 3,
}

// FSRSParams holds the memory-model coefficients. Any table satisfying the
// scheduling properties may be substituted.
type FSRSParams struct {
	InitialStability   float64 `json:"initial_stability"`    // 0.4
	InitialDifficulty  float64 `json:"initial_difficulty"`   // 0.3
	RelearnStability   float64 `json:"relearn_stability"`    // 0.2, new/learning lapse
	LapseMultiplier    float64 `json:"lapse_multiplier"`     // 0.15, review lapse
	MinStability       float64 `json:"min_stability"`        // 0.1
	DifficultyRate     float64 `json:"difficulty_rate"`      // 0.15
	GrowthIntercept    float64 `json:"growth_intercept"`     // -8
	GrowthDifficulty   float64 `json:"growth_difficulty"`    // 12
	GrowthRecall       float64 `json:"growth_recall"`        // -3
	GrowthScaleExp     float64 `json:"growth_scale_exp"`     // -6
	SuccessThreshold   float64 `json:"success_threshold"`    // 0.5
	MinDifficulty      float64 `json:"min_difficulty"`       // 0.1
	MaxDifficulty      float64 `json:"max_difficulty"`       // 1.0
	RecallBase         float64 `json:"recall_base"`          // 0.1
	RecallPerConfident float64 `json:"recall_per_confident"` // 0.2
}

// DefaultFSRSParams reproduces the reference stability/difficulty model.
var DefaultFSRSParams = FSRSParams{
	InitialStability:   0.4,
	InitialDifficulty:  0.3,
	RelearnStability:   0.2,
	LapseMultiplier:    0.15,
	MinStability:       0.1,
	DifficultyRate:     0.15,
	GrowthIntercept:    -8,
	GrowthDifficulty:   12,
	GrowthRecall:       -3,
	GrowthScaleExp:     -6,
	SuccessThreshold:   0.5,
	MinDifficulty:      0.1,
	MaxDifficulty:      1.0,
	RecallBase:         0.1,
	RecallPerConfident: 0.2,
}

// Validate checks the SM-2 table.
func (p SM2Params) Validate() error {
	switch {
	case p.MinimumEase <= 0:
		return fmt.Errorf("%w: sm2 minimum ease %f must be positive", ErrInvalidParameters, p.MinimumEase)
	case p.InitialEase < p.MinimumEase:
		return fmt.Errorf("%w: sm2 initial ease %f below minimum %f", ErrInvalidParameters, p.InitialEase, p.MinimumEase)
	case p.FirstStep < 1 || p.SecondStep < 1:
		return fmt.Errorf("%w: sm2 steps must be at least one day", ErrInvalidParameters)
	case p.PassingGrade < 0 || p.PassingGrade > 5:
		return fmt.Errorf("%w: sm2 passing grade %d outside 0-5", ErrInvalidParameters, p.PassingGrade)
	case p.MaxInterval < p.SecondStep || p.MaxInterval > MaxIntervalDays:
		return fmt.Errorf("%w: sm2 max interval %d outside [%d, %d]", ErrInvalidParameters, p.MaxInterval, p.SecondStep, MaxIntervalDays)
	}
	return nil
}

// Validate checks the Leitner table.
func (p LeitnerParams) Validate() error {
	for i, days := range p.Intervals {
		if days < 1 {
			return fmt.Errorf("%w: leitner box %d interval %d must be at least one day", ErrInvalidParameters, i+1, days)
		}
	}
	if p.MinConfidence < MinConfidence || p.MinConfidence > MaxConfidence {
		return fmt.Errorf("%w: leitner min confidence %d outside 1-5", ErrInvalidParameters, p.MinConfidence)
	}
	return nil
}

// Validate checks the FSRS table.
func (p FSRSParams) Validate() error {
	switch {
	case p.MinStability <= 0:
		return fmt.Errorf("%w: fsrs min stability %f must be positive", ErrInvalidParameters, p.MinStability)
	case p.InitialStability < p.MinStability || p.RelearnStability < p.MinStability:
		return fmt.Errorf("%w: fsrs reset stabilities must not fall below %f", ErrInvalidParameters, p.MinStability)
	case p.LapseMultiplier <= 0 || p.LapseMultiplier > 1:
		return fmt.Errorf("%w: fsrs lapse multiplier %f outside (0, 1]", ErrInvalidParameters, p.LapseMultiplier)
	case p.MinDifficulty <= 0 || p.MaxDifficulty > 1 || p.MinDifficulty > p.MaxDifficulty:
		return fmt.Errorf("%w: fsrs difficulty bounds [%f, %f]", ErrInvalidParameters, p.MinDifficulty, p.MaxDifficulty)
	case p.InitialDifficulty < p.MinDifficulty || p.InitialDifficulty > p.MaxDifficulty:
		return fmt.Errorf("%w: fsrs initial difficulty %f outside bounds", ErrInvalidParameters, p.InitialDifficulty)
	case p.DifficultyRate < 0 || p.DifficultyRate > 1:
		return fmt.Errorf("%w: fsrs difficulty rate %f outside [0, 1]", ErrInvalidParameters, p.DifficultyRate)
	case p.SuccessThreshold <= 0 || p.SuccessThreshold >= 1:
		return fmt.Errorf("%w: fsrs success threshold %f outside (0, 1)", ErrInvalidParameters, p.SuccessThreshold)
	}
	return nil
}
