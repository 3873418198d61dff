package srs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeitnerInitialize(t *testing.T) {
	s := NewLeitner().Initialize(t0)

	require.NotNil(t, s.LeitnerBox)
	assert.Equal(t, 1, *s.LeitnerBox)
	assert.Equal(t, 1, s.Interval)
	assert.Equal(t, t0.AddDate(0, 0, 1), s.DueDate)
}

func TestLeitnerMonotonicPromotion(t *testing.T) {
	intervals := []int{1, 2, 4, 8, 16}

	for n := 1; n <= 7; n++ {
		e := NewLeitner()
		s := e.Initialize(t0)
		for i := 0; i < n; i++ {
			s = e.Update(s, ReviewResult{Confidence: 3, Correct: true}, t0)
		}

		wantBox := min(1+n, 5)
		assert.Equal(t, wantBox, Box(s), "after %d correct reviews", n)
		assert.Equal(t, intervals[wantBox-1], s.Interval)
		assert.Equal(t, n, s.RepetitionCount)
	}
}

func TestLeitnerResetOnFailure(t *testing.T) {
	tests := []struct {
		name   string
		result ReviewResult
	}{
		{"incorrect", ReviewResult{Confidence: 5, Correct: false}},
		{"correct but unsure", ReviewResult{Confidence: 2, Correct: true}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := NewLeitner()
			box := 5
			s := State{Interval: 16, RepetitionCount: 9, LeitnerBox: &box}

			s = e.Update(s, tc.result, t0)
			assert.Equal(t, 1, Box(s))
			assert.Equal(t, 1, s.Interval)
			assert.Equal(t, 0, s.RepetitionCount)
			assert.Equal(t, t0.AddDate(0, 0, 1), s.DueDate)
		})
	}
}

func TestLeitnerMissingBoxDefaultsToOne(t *testing.T) {
	e := NewLeitner()
	s := e.Update(State{EaseFactor: 2.5}, ReviewResult{Confidence: 4, Correct: true}, t0)

	assert.Equal(t, 2, Box(s))
	assert.Equal(t, 2, s.Interval)
}

func TestLeitnerClampsCorruptBox(t *testing.T) {
	box := 42
	assert.Equal(t, 5, Box(State{LeitnerBox: &box}))
	box = -1
	assert.Equal(t, 1, Box(State{LeitnerBox: &box}))
}
