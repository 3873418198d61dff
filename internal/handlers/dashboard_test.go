package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"tutorly-backend/internal/models"
	"tutorly-backend/internal/repository"
)

func TestStreak(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	day := func(offset int) time.Time { return now.AddDate(0, 0, -offset) }

	tests := []struct {
		name string
		days []time.Time
		want int
	}{
		{"no activity", nil, 0},
		{"today only", []time.Time{day(0)}, 1},
		{"three days running", []time.Time{day(0), day(1), day(2)}, 3},
		{"not yet today", []time.Time{day(1), day(2)}, 2},
		{"broken run", []time.Time{day(0), day(1), day(3), day(4)}, 2},
		{"lapsed", []time.Time{day(2), day(3)}, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := streak(tc.days, now); got != tc.want {
				t.Errorf("Expected streak %d, got %d", tc.want, got)
			}
		})
	}
}

type stubDashboard struct {
	counts *repository.DashboardCounts
	days   []time.Time
	week   [7]int
	err    error
}

func (s *stubDashboard) Counts(context.Context, uuid.UUID) (*repository.DashboardCounts, error) {
	return s.counts, s.err
}

func (s *stubDashboard) ActiveDays(context.Context, uuid.UUID, time.Time) ([]time.Time, error) {
	return s.days, s.err
}

func (s *stubDashboard) WeeklyReviews(context.Context, uuid.UUID) ([7]int, error) {
	return s.week, s.err
}

func TestDashboardHandler(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	repo := &stubDashboard{
		counts: &repository.DashboardCounts{Decks: 2, StudySeconds: 5400},
		days:   []time.Time{now, now.AddDate(0, 0, -1)},
		week:   [7]int{0, 4, 0, 0, 0, 0, 1},
	}
	h := NewDashboardHandler(repo)
	h.now = func() time.Time { return now }

	rr := httptest.NewRecorder()
	h.Stats(rr, newRequest(http.MethodGet, "/", nil, uuid.New(), nil))
	var stats map[string]float64
	json.Unmarshal(rr.Body.Bytes(), &stats)
	if stats["flashcard_decks"] != 2 || stats["study_hours"] != 1.5 {
		t.Fatalf("unexpected stats: %s", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.Streak(rr, newRequest(http.MethodGet, "/", nil, uuid.New(), nil))
	var streakResp map[string]int
	json.Unmarshal(rr.Body.Bytes(), &streakResp)
	if streakResp["streak"] != 2 {
		t.Fatalf("unexpected streak: %s", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.Activity(rr, newRequest(http.MethodGet, "/", nil, uuid.New(), nil))
	var activity map[string][]int
	json.Unmarshal(rr.Body.Bytes(), &activity)
	if len(activity["activity"]) != 7 || activity["activity"][1] != 4 {
		t.Fatalf("unexpected activity: %s", rr.Body.String())
	}

	repo.err = errors.New("db down")
	rr = httptest.NewRecorder()
	h.Stats(rr, newRequest(http.MethodGet, "/", nil, uuid.New(), nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

type stubJobReader map[uuid.UUID]*models.Job

func (s stubJobReader) GetByID(_ context.Context, id uuid.UUID) (*models.Job, error) {
	if j, ok := s[id]; ok {
		return j, nil
	}
	return nil, repository.ErrNotFound
}

func TestJobHandler_HidesOtherUsersJobs(t *testing.T) {
	ownerID := uuid.New()
	job := &models.Job{ID: uuid.New(), UserID: ownerID, Type: models.JobTypeAlgorithmSwitch, Status: models.JobStatusCompleted}
	h := NewJobHandler(stubJobReader{job.ID: job})

	rr := httptest.NewRecorder()
	h.Get(rr, newRequest(http.MethodGet, "/", nil, ownerID, map[string]string{"id": job.ID.String()}))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.Get(rr, newRequest(http.MethodGet, "/", nil, uuid.New(), map[string]string{"id": job.ID.String()}))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another user's job, got %d", rr.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	ok := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("connection refused") })

	rr := httptest.NewRecorder()
	NewHealthHandler(map[string]Pinger{"postgres": ok, "redis": ok}).Check(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	NewHealthHandler(map[string]Pinger{"postgres": ok, "redis": down}).Check(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	var body struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	json.Unmarshal(rr.Body.Bytes(), &body)
	if rr.Code != http.StatusServiceUnavailable || body.Status != "degraded" || body.Dependencies["redis"] != "down" {
		t.Fatalf("unexpected health response %d: %s", rr.Code, rr.Body.String())
	}
}

func TestStudySessionHandler_StartValidation(t *testing.T) {
	h := NewStudySessionHandler(nil)

	tests := []struct {
		name string
		body models.StartSessionRequest
	}{
		{"unknown activity", models.StartSessionRequest{ActivityType: "summary", ResourceID: uuid.New()}},
		{"quiz without resource", models.StartSessionRequest{ActivityType: "quiz"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.Start(rr, newRequest(http.MethodPost, "/", tc.body, uuid.New(), nil))
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
		})
	}
}
