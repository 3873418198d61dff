package srs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateElo(t *testing.T) {
	tests := []struct {
		name       string
		rating     float64
		confidence int
		correct    bool
		k          float64
		want       float64
	}{
		{"even confidence correct", 1500, 3, true, 32, 1516},
		{"default k", 1500, 3, true, 0, 1516},
		{"confident miss", 1500, 5, false, 32, 1471},
		{"unsure hit", 1500, 1, true, 32, 1529},
		{"ceiling", 2995, 1, true, 100, 3000},
		{"floor", 10, 5, false, 32, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, UpdateElo(tc.rating, tc.confidence, tc.correct, tc.k))
		})
	}
}

func TestExpectedScore(t *testing.T) {
	assert.InDelta(t, 0.5, ExpectedScore(1500, 1500), 1e-9)
	assert.InDelta(t, 1.0/11.0, ExpectedScore(1500, 1900), 1e-9)
	assert.InDelta(t, 1.0, ExpectedScore(1500, 1900)+ExpectedScore(1900, 1500), 1e-9)
}

func TestConfidenceExpectation(t *testing.T) {
	assert.InDelta(t, 0.5, ConfidenceExpectation(3), 1e-9)
	assert.InDelta(t, 0.1, ConfidenceExpectation(-2), 1e-9)
	assert.InDelta(t, 0.9, ConfidenceExpectation(12), 1e-9)
}

func TestDynamicKFactor(t *testing.T) {
	assert.Equal(t, 48.0, DynamicKFactor(1000, 32))
	assert.Equal(t, 32.0, DynamicKFactor(1200, 32))
	assert.Equal(t, 32.0, DynamicKFactor(2000, 32))
	assert.Equal(t, 16.0, DynamicKFactor(2400, 32))
}

func TestMatch(t *testing.T) {
	user, item := Match(1500, 1500, true, 32)
	assert.Equal(t, 1516.0, user)
	assert.Equal(t, 1484.0, item)

	user, item = Match(1500, 1500, false, 32)
	assert.Equal(t, 1484.0, user)
	assert.Equal(t, 1516.0, item)
}

func TestEloStateRecord(t *testing.T) {
	start := EloState{Rating: 1000, History: []EloEntry{}}

	next := start.Record(3, true, 32, t0)
	assert.Equal(t, 1024.0, next.Rating)
	require.Len(t, next.History, 1)
	assert.Equal(t, 1024.0, next.History[0].Rating)
	assert.Equal(t, t0, next.History[0].Timestamp)
	assert.Empty(t, start.History)

	again := next.Record(5, false, 32, t0.Add(time.Minute))
	require.Len(t, again.History, 2)
	assert.Len(t, next.History, 1)

	zero := EloState{}.Record(3, true, 32, t0)
	assert.Equal(t, 1516.0, zero.Rating)
}

func TestEloStateRecordKeepsTimestampOrder(t *testing.T) {
	s := NewEloState().
		Record(3, true, 32, t0).
		Record(3, true, 32, t0.Add(2*time.Minute))

	late := s.Record(1, false, 32, t0.Add(time.Minute))
	require.Len(t, late.History, 3)
	assert.Equal(t, t0, late.History[0].Timestamp)
	assert.Equal(t, t0.Add(time.Minute), late.History[1].Timestamp)
	assert.False(t, late.History[1].Correct)
	assert.Equal(t, t0.Add(2*time.Minute), late.History[2].Timestamp)
	assert.Equal(t, late.Rating, late.History[1].Rating)

	same := s.Record(5, true, 32, t0.Add(2*time.Minute))
	require.Len(t, same.History, 3)
	assert.Equal(t, 3, same.History[1].Confidence)
	assert.Equal(t, 5, same.History[2].Confidence)
}

func TestCalculateEloTrend(t *testing.T) {
	var history []EloEntry
	for i := 0; i < 12; i++ {
		history = append(history, EloEntry{Rating: 1000 + float64(i)*50})
	}

	// last ten entries span 1100 → 1550
	assert.InDelta(t, 450.0/500.0, CalculateEloTrend(history, 0), 1e-9)
	assert.InDelta(t, 100.0/500.0, CalculateEloTrend(history, 3), 1e-9)
	assert.Equal(t, 1.0, CalculateEloTrend(history, 12))

	falling := []EloEntry{{Rating: 2000}, {Rating: 1200}}
	assert.Equal(t, -1.0, CalculateEloTrend(falling, 10))

	assert.Equal(t, 0.0, CalculateEloTrend(history[:1], 10))
	assert.Equal(t, 0.0, CalculateEloTrend(nil, 10))
}

func TestGetEloCategory(t *testing.T) {
	tests := []struct {
		rating float64
		level  string
	}{
		{0, "Beginner"},
		{999, "Beginner"},
		{1000, "Novice"},
		{1399, "Novice"},
		{1500, "Intermediate"},
		{1700, "Advanced"},
		{1999, "Expert"},
		{2000, "Master"},
		{3000, "Master"},
	}

	for _, tc := range tests {
		got := GetEloCategory(tc.rating)
		assert.Equal(t, tc.level, got.Level, "rating %.0f", tc.rating)
		assert.NotEmpty(t, got.Color)
	}
}

func TestInitializeElo(t *testing.T) {
	assert.Equal(t, 1500.0, InitializeElo())
	s := NewEloState()
	assert.Equal(t, 1500.0, s.Rating)
	assert.NotNil(t, s.History)
}
