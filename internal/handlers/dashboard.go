package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"tutorly-backend/internal/middleware"
	"tutorly-backend/internal/repository"
)

const streakLookback = 90 * 24 * time.Hour

type dashboardStore interface {
	Counts(ctx context.Context, userID uuid.UUID) (*repository.DashboardCounts, error)
	ActiveDays(ctx context.Context, userID uuid.UUID, since time.Time) ([]time.Time, error)
	WeeklyReviews(ctx context.Context, userID uuid.UUID) ([7]int, error)
}

type DashboardHandler struct {
	repo dashboardStore
	now  func() time.Time
}

func NewDashboardHandler(repo dashboardStore) *DashboardHandler {
	return &DashboardHandler{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.repo.Counts(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch stats", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"flashcard_decks": counts.Decks,
		"quizzes":         counts.Quizzes,
		"quizzes_taken":   counts.QuizAttempts,
		"reviews_today":   counts.ReviewsToday,
		"study_hours":     float64(counts.StudySeconds) / 3600,
	})
}

func (h *DashboardHandler) Streak(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	days, err := h.repo.ActiveDays(r.Context(), middleware.GetUserID(r.Context()), now.Add(-streakLookback))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch streak", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"streak":      streak(days, now),
		"active_days": len(days),
	})
}

func (h *DashboardHandler) Activity(w http.ResponseWriter, r *http.Request) {
	activity, err := h.repo.WeeklyReviews(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch activity", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"activity": activity})
}

// streak counts consecutive active days ending today, or yesterday when the
// user hasn't studied yet today. days must be newest first.
func streak(days []time.Time, now time.Time) int {
	day := truncateDay(now)
	if len(days) > 0 && truncateDay(days[0]).Before(day) {
		day = day.AddDate(0, 0, -1)
	}

	n := 0
	for _, d := range days {
		d = truncateDay(d)
		if d.After(day) {
			continue
		}
		if !d.Equal(day) {
			break
		}
		n++
		day = day.AddDate(0, 0, -1)
	}
	return n
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
