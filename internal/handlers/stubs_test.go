package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tutorly-backend/internal/middleware"
	"tutorly-backend/internal/models"
	"tutorly-backend/internal/repository"
	"tutorly-backend/internal/services"
)

// newRequest builds an authenticated request with chi route params.
func newRequest(method, target string, body interface{}, userID uuid.UUID, params map[string]string) *http.Request {
	var rdr io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rdr)

	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	return req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, userID))
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) models.APIError {
	t.Helper()
	var resp models.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error body %q: %v", rr.Body.String(), err)
	}
	return resp.Error
}

type stubReviews struct {
	reviewReq  models.ReviewRequest
	reviewErr  error
	next       *models.ReviewProgress
	nextErr    error
	due        []*models.ReviewProgress
	dueLimit   int
	dist       *models.MasteryDistribution
	distErr    error
	progress   *models.ReviewProgress
	key        models.ItemKey
	algorithm  string
	job        *models.Job
	switchErr  error
	quizEvents []services.QuizAnswerEvent
	sessionID  *uuid.UUID
	items      []*models.ReviewProgress
}

func (s *stubReviews) Review(_ context.Context, userID uuid.UUID, req models.ReviewRequest) (*models.ReviewResponse, error) {
	s.reviewReq = req
	if s.reviewErr != nil {
		return nil, s.reviewErr
	}
	p := &models.ReviewProgress{UserID: userID, ItemType: req.ItemType, ItemID: req.ItemID, Mastery: 0.5}
	return &models.ReviewResponse{Progress: p, Interval: 3, Mastery: 0.5}, nil
}

func (s *stubReviews) NextReview(context.Context, uuid.UUID) (*models.ReviewProgress, error) {
	return s.next, s.nextErr
}

func (s *stubReviews) DueQueue(_ context.Context, _ uuid.UUID, limit int) ([]*models.ReviewProgress, error) {
	s.dueLimit = limit
	return s.due, nil
}

func (s *stubReviews) Distribution(context.Context, uuid.UUID) (*models.MasteryDistribution, error) {
	if s.distErr != nil {
		return nil, s.distErr
	}
	if s.dist == nil {
		return &models.MasteryDistribution{}, nil
	}
	return s.dist, nil
}

func (s *stubReviews) Progress(_ context.Context, key models.ItemKey) (*models.ReviewProgress, error) {
	s.key = key
	if s.progress == nil {
		return nil, &services.NotFoundError{Message: "No review progress for this item"}
	}
	return s.progress, nil
}

func (s *stubReviews) SwitchAlgorithm(_ context.Context, key models.ItemKey, algorithm string) (*models.ReviewProgress, error) {
	s.key = key
	s.algorithm = algorithm
	if s.switchErr != nil {
		return nil, s.switchErr
	}
	return &models.ReviewProgress{UserID: key.UserID, ItemID: key.ItemID}, nil
}

func (s *stubReviews) SwitchDeckAlgorithm(_ context.Context, _ uuid.UUID, _ uuid.UUID, algorithm string) (*models.Job, error) {
	s.algorithm = algorithm
	if s.switchErr != nil {
		return nil, s.switchErr
	}
	return s.job, nil
}

func (s *stubReviews) ReviewQuizAnswers(_ context.Context, _ *models.Quiz, _ uuid.UUID, answers []services.QuizAnswerEvent, sessionID *uuid.UUID) []models.QuestionResult {
	s.quizEvents = answers
	s.sessionID = sessionID
	out := make([]models.QuestionResult, 0, len(answers))
	for _, a := range answers {
		out = append(out, models.QuestionResult{QuestionIndex: a.QuestionIndex, Correct: a.Correct})
	}
	return out
}

func (s *stubReviews) ItemProgress(context.Context, uuid.UUID, string, uuid.UUID) ([]*models.ReviewProgress, error) {
	return s.items, nil
}

type stubCompetence struct {
	summary *models.CompetenceSummary
	err     error
	scope   string
}

func (s *stubCompetence) Summary(_ context.Context, _ uuid.UUID, scope string) (*models.CompetenceSummary, error) {
	s.scope = scope
	if s.err != nil {
		return nil, s.err
	}
	if s.summary == nil {
		return &models.CompetenceSummary{Scope: models.ScopeGlobal, Rating: 1500}, nil
	}
	return s.summary, nil
}

func (s *stubCompetence) ItemDifficulty(_ context.Context, itemType string, itemID uuid.UUID, subIndex int) (*models.ItemRating, error) {
	return &models.ItemRating{ItemType: itemType, ItemID: itemID, SubIndex: subIndex, Rating: 1500}, nil
}

type stubDecks struct {
	deck    *models.FlashcardDeck
	toggled bool
	deleted bool
}

func (s *stubDecks) ListDecksByUser(context.Context, uuid.UUID) ([]*models.FlashcardDeck, error) {
	if s.deck == nil {
		return nil, nil
	}
	return []*models.FlashcardDeck{s.deck}, nil
}

func (s *stubDecks) GetDeckByID(_ context.Context, id uuid.UUID) (*models.FlashcardDeck, error) {
	if s.deck == nil || s.deck.ID != id {
		return nil, repository.ErrNotFound
	}
	return s.deck, nil
}

func (s *stubDecks) GetCardsByDeck(context.Context, uuid.UUID) ([]models.FlashcardCard, error) {
	return nil, nil
}

func (s *stubDecks) GetDeckStats(context.Context, uuid.UUID) (*models.DeckStats, error) {
	return &models.DeckStats{TotalCards: 2}, nil
}

func (s *stubDecks) ToggleFavorite(context.Context, uuid.UUID) error {
	s.toggled = true
	return nil
}

func (s *stubDecks) DeleteDeck(context.Context, uuid.UUID) error {
	s.deleted = true
	return nil
}

type stubQuizRepo struct {
	quiz      *models.Quiz
	attempt   *models.QuizAttempt
	saved     json.RawMessage
	submitted bool
	score     float64
	correct   int
	timeTaken int
}

func (s *stubQuizRepo) ListByUser(context.Context, uuid.UUID) ([]*models.Quiz, error) {
	return nil, nil
}

func (s *stubQuizRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Quiz, error) {
	if s.quiz == nil || s.quiz.ID != id {
		return nil, repository.ErrNotFound
	}
	return s.quiz, nil
}

func (s *stubQuizRepo) ToggleFavorite(context.Context, uuid.UUID) error { return nil }

func (s *stubQuizRepo) Delete(context.Context, uuid.UUID) error { return nil }

func (s *stubQuizRepo) CreateAttempt(_ context.Context, a *models.QuizAttempt) error {
	a.ID = uuid.New()
	a.StartedAt = time.Now()
	s.attempt = a
	return nil
}

func (s *stubQuizRepo) GetAttemptByID(_ context.Context, id uuid.UUID) (*models.QuizAttempt, error) {
	if s.attempt == nil || s.attempt.ID != id {
		return nil, repository.ErrNotFound
	}
	return s.attempt, nil
}

func (s *stubQuizRepo) SaveProgress(_ context.Context, _ uuid.UUID, answers json.RawMessage) error {
	s.saved = answers
	return nil
}

func (s *stubQuizRepo) SubmitAttempt(_ context.Context, _ uuid.UUID, score float64, correct int, _ json.RawMessage, timeTaken int) error {
	if s.submitted {
		return repository.ErrVersionConflict
	}
	s.submitted = true
	s.score = score
	s.correct = correct
	s.timeTaken = timeTaken
	return nil
}
