package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"tutorly-backend/internal/models"
	"tutorly-backend/internal/services"
)

func newQuizFixture(userID uuid.UUID, answers []models.QuizAnswer) *stubQuizRepo {
	questions, _ := json.Marshal([]models.QuizQuestion{
		{Question: "2+2", Options: []string{"3", "4"}, CorrectIndex: 1},
		{Question: "capital of France", Options: []string{"Paris", "Rome"}, CorrectIndex: 0},
		{Question: "H2O", Options: []string{"water", "salt"}, CorrectIndex: 0},
		{Question: "pi", Options: []string{"3.14", "2.71"}, CorrectIndex: 0},
	})
	quiz := &models.Quiz{ID: uuid.New(), UserID: userID, Algorithm: "sm2", QuestionsJSON: questions, QuestionCount: 4}
	raw, _ := json.Marshal(answers)
	return &stubQuizRepo{
		quiz:    quiz,
		attempt: &models.QuizAttempt{ID: uuid.New(), QuizID: quiz.ID, UserID: userID, AnswersJSON: raw},
	}
}

func TestQuizHandler_SubmitAttemptSchedulesAnswers(t *testing.T) {
	userID := uuid.New()
	sessionID := uuid.New()
	repo := newQuizFixture(userID, []models.QuizAnswer{
		{QuestionIndex: 0, AnswerIndex: 1, Confidence: 5, TimeSpent: 4},
		{QuestionIndex: 1, AnswerIndex: 1},
		{QuestionIndex: 2, AnswerIndex: 0},
		{QuestionIndex: 9, AnswerIndex: 0},
	})
	reviews := &stubReviews{}
	h := NewQuizHandler(repo, reviews)

	rr := httptest.NewRecorder()
	body := models.SubmitAttemptRequest{TimeTakenSeconds: 95, SessionID: &sessionID}
	h.SubmitAttempt(rr, newRequest(http.MethodPost, "/", body, userID, map[string]string{"id": repo.attempt.ID.String()}))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if repo.correct != 2 || repo.score != 50 || repo.timeTaken != 95 {
		t.Fatalf("unexpected grade: correct=%d score=%v time=%d", repo.correct, repo.score, repo.timeTaken)
	}

	want := []services.QuizAnswerEvent{
		{QuestionIndex: 0, Confidence: 5, Correct: true, TimeSpent: 4},
		{QuestionIndex: 1, Confidence: defaultAnswerConfidence, Correct: false},
		{QuestionIndex: 2, Confidence: defaultAnswerConfidence, Correct: true},
	}
	if len(reviews.quizEvents) != len(want) {
		t.Fatalf("expected %d review events, got %+v", len(want), reviews.quizEvents)
	}
	for i := range want {
		if reviews.quizEvents[i] != want[i] {
			t.Fatalf("event %d: expected %+v, got %+v", i, want[i], reviews.quizEvents[i])
		}
	}
	if reviews.sessionID == nil || *reviews.sessionID != sessionID {
		t.Fatalf("session not passed through")
	}

	var resp struct {
		Results []models.QuestionResult `json:"results"`
		Total   int                     `json:"total"`
	}
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Total != 4 || len(resp.Results) != 3 {
		t.Fatalf("unexpected response: %s", rr.Body.String())
	}
}

func TestQuizHandler_SubmitTwiceConflicts(t *testing.T) {
	userID := uuid.New()
	repo := newQuizFixture(userID, []models.QuizAnswer{{QuestionIndex: 0, AnswerIndex: 1}})
	reviews := &stubReviews{}
	h := NewQuizHandler(repo, reviews)
	params := map[string]string{"id": repo.attempt.ID.String()}

	rr := httptest.NewRecorder()
	h.SubmitAttempt(rr, newRequest(http.MethodPost, "/", nil, userID, params))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	reviews.quizEvents = nil
	rr = httptest.NewRecorder()
	h.SubmitAttempt(rr, newRequest(http.MethodPost, "/", nil, userID, params))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if reviews.quizEvents != nil {
		t.Fatal("a repeated submit must not reschedule questions")
	}
}

func TestQuizHandler_SaveProgressMergesAnswers(t *testing.T) {
	userID := uuid.New()
	repo := newQuizFixture(userID, []models.QuizAnswer{{QuestionIndex: 0, AnswerIndex: 0}})
	h := NewQuizHandler(repo, &stubReviews{})
	params := map[string]string{"id": repo.attempt.ID.String()}

	rr := httptest.NewRecorder()
	h.SaveProgress(rr, newRequest(http.MethodPost, "/", models.SaveProgressRequest{QuestionIndex: 0, AnswerIndex: 1, Confidence: 3}, userID, params))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var saved []models.QuizAnswer
	json.Unmarshal(repo.saved, &saved)
	if len(saved) != 1 || saved[0].AnswerIndex != 1 || saved[0].Confidence != 3 {
		t.Fatalf("expected the answer to be replaced, got %+v", saved)
	}

	repo.attempt.AnswersJSON = repo.saved
	rr = httptest.NewRecorder()
	h.SaveProgress(rr, newRequest(http.MethodPost, "/", models.SaveProgressRequest{QuestionIndex: 2, AnswerIndex: 0}, userID, params))
	json.Unmarshal(repo.saved, &saved)
	if len(saved) != 2 {
		t.Fatalf("expected a second answer, got %+v", saved)
	}

	rr = httptest.NewRecorder()
	h.SaveProgress(rr, newRequest(http.MethodPost, "/", models.SaveProgressRequest{QuestionIndex: 1, Confidence: 7}, userID, params))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for confidence 7, got %d", rr.Code)
	}
}

func TestQuizHandler_SaveProgressAfterSubmit(t *testing.T) {
	userID := uuid.New()
	repo := newQuizFixture(userID, nil)
	done := time.Now()
	repo.attempt.CompletedAt = &done
	h := NewQuizHandler(repo, &stubReviews{})

	rr := httptest.NewRecorder()
	h.SaveProgress(rr, newRequest(http.MethodPost, "/", models.SaveProgressRequest{}, userID, map[string]string{"id": repo.attempt.ID.String()}))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestQuizHandler_AttemptOwnership(t *testing.T) {
	repo := newQuizFixture(uuid.New(), nil)
	h := NewQuizHandler(repo, &stubReviews{})

	rr := httptest.NewRecorder()
	h.GetAttempt(rr, newRequest(http.MethodGet, "/", nil, uuid.New(), map[string]string{"id": repo.attempt.ID.String()}))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.StartAttempt(rr, newRequest(http.MethodPost, "/", nil, uuid.New(), map[string]string{"id": repo.quiz.ID.String()}))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 starting another user's quiz, got %d", rr.Code)
	}
}

func TestQuizHandler_GetAttemptIncludesProgress(t *testing.T) {
	userID := uuid.New()
	repo := newQuizFixture(userID, nil)
	reviews := &stubReviews{items: []*models.ReviewProgress{{ItemType: models.ItemTypeQuiz, ItemID: repo.quiz.ID, SubIndex: 1}}}
	h := NewQuizHandler(repo, reviews)

	rr := httptest.NewRecorder()
	h.GetAttempt(rr, newRequest(http.MethodGet, "/", nil, userID, map[string]string{"id": repo.attempt.ID.String()}))

	var body struct {
		Progress []models.ReviewProgress `json:"progress"`
	}
	json.Unmarshal(rr.Body.Bytes(), &body)
	if rr.Code != http.StatusOK || len(body.Progress) != 1 || body.Progress[0].SubIndex != 1 {
		t.Fatalf("unexpected response %d: %s", rr.Code, rr.Body.String())
	}
}
