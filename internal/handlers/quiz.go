package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tutorly-backend/internal/middleware"
	"tutorly-backend/internal/models"
	"tutorly-backend/internal/repository"
	"tutorly-backend/internal/services"
)

// defaultAnswerConfidence stands in for answers submitted without a
// confidence rating.
const defaultAnswerConfidence = 4

type quizStore interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Quiz, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Quiz, error)
	ToggleFavorite(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	CreateAttempt(ctx context.Context, a *models.QuizAttempt) error
	GetAttemptByID(ctx context.Context, id uuid.UUID) (*models.QuizAttempt, error)
	SaveProgress(ctx context.Context, attemptID uuid.UUID, answers json.RawMessage) error
	SubmitAttempt(ctx context.Context, attemptID uuid.UUID, score float64, correct int, answers json.RawMessage, timeTaken int) error
}

type quizReviewer interface {
	ReviewQuizAnswers(ctx context.Context, quiz *models.Quiz, userID uuid.UUID, answers []services.QuizAnswerEvent, sessionID *uuid.UUID) []models.QuestionResult
	ItemProgress(ctx context.Context, userID uuid.UUID, itemType string, itemID uuid.UUID) ([]*models.ReviewProgress, error)
}

type QuizHandler struct {
	quizRepo quizStore
	reviews  quizReviewer
}

func NewQuizHandler(quizRepo quizStore, reviews quizReviewer) *QuizHandler {
	return &QuizHandler{quizRepo: quizRepo, reviews: reviews}
}

func (h *QuizHandler) ownedQuiz(w http.ResponseWriter, r *http.Request, id uuid.UUID) (*models.Quiz, bool) {
	quiz, err := h.quizRepo.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Quiz not found", r))
		return nil, false
	}
	if quiz.UserID != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return nil, false
	}
	return quiz, true
}

func (h *QuizHandler) ownedAttempt(w http.ResponseWriter, r *http.Request) (*models.QuizAttempt, bool) {
	attemptID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid attempt ID", r))
		return nil, false
	}

	attempt, err := h.quizRepo.GetAttemptByID(r.Context(), attemptID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Attempt not found", r))
		return nil, false
	}
	if attempt.UserID != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return nil, false
	}
	return attempt, true
}

func (h *QuizHandler) quizParam(w http.ResponseWriter, r *http.Request) (*models.Quiz, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid quiz ID", r))
		return nil, false
	}
	return h.ownedQuiz(w, r, id)
}

func (h *QuizHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	quizzes, err := h.quizRepo.ListByUser(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch quizzes", r))
		return
	}
	if quizzes == nil {
		quizzes = []*models.Quiz{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"quizzes": quizzes})
}

func (h *QuizHandler) Get(w http.ResponseWriter, r *http.Request) {
	quiz, ok := h.quizParam(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, quiz)
}

func (h *QuizHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	quiz, ok := h.quizParam(w, r)
	if !ok {
		return
	}

	if err := h.quizRepo.ToggleFavorite(r.Context(), quiz.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to update favorite", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Favorite toggled"})
}

func (h *QuizHandler) Delete(w http.ResponseWriter, r *http.Request) {
	quiz, ok := h.quizParam(w, r)
	if !ok {
		return
	}

	if err := h.quizRepo.Delete(r.Context(), quiz.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete quiz", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Quiz deleted"})
}

func (h *QuizHandler) StartAttempt(w http.ResponseWriter, r *http.Request) {
	quiz, ok := h.quizParam(w, r)
	if !ok {
		return
	}

	attempt := &models.QuizAttempt{
		QuizID: quiz.ID,
		UserID: quiz.UserID,
	}

	if err := h.quizRepo.CreateAttempt(r.Context(), attempt); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to start quiz", r))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"attempt_id": attempt.ID,
		"started_at": attempt.StartedAt,
	})
}

func (h *QuizHandler) SaveProgress(w http.ResponseWriter, r *http.Request) {
	attempt, ok := h.ownedAttempt(w, r)
	if !ok {
		return
	}
	if attempt.CompletedAt != nil {
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "Attempt already submitted", r))
		return
	}

	var progress models.SaveProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&progress); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	fields := map[string]string{}
	if progress.QuestionIndex < 0 {
		fields["question_index"] = "must not be negative"
	}
	if progress.Confidence != 0 && (progress.Confidence < 1 || progress.Confidence > 5) {
		fields["confidence"] = "must be between 1 and 5"
	}
	if progress.TimeSpent < 0 {
		fields["time_spent"] = "must not be negative"
	}
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	answers := decodeAnswers(attempt.AnswersJSON)
	answer := models.QuizAnswer{
		QuestionIndex: progress.QuestionIndex,
		AnswerIndex:   progress.AnswerIndex,
		Confidence:    progress.Confidence,
		TimeSpent:     progress.TimeSpent,
	}
	i := slices.IndexFunc(answers, func(a models.QuizAnswer) bool { return a.QuestionIndex == answer.QuestionIndex })
	if i >= 0 {
		answers[i] = answer
	} else {
		answers = append(answers, answer)
	}

	answersJSON, _ := json.Marshal(answers)
	if err := h.quizRepo.SaveProgress(r.Context(), attempt.ID, answersJSON); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to save progress", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Progress saved"})
}

// SubmitAttempt grades the attempt and schedules every answered question for
// review.
func (h *QuizHandler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	attempt, ok := h.ownedAttempt(w, r)
	if !ok {
		return
	}

	var req models.SubmitAttemptRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
			return
		}
	}

	quiz, err := h.quizRepo.GetByID(r.Context(), attempt.QuizID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch quiz", r))
		return
	}

	var questions []models.QuizQuestion
	if err := json.Unmarshal(quiz.QuestionsJSON, &questions); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Quiz questions are unreadable", r))
		return
	}

	answers := decodeAnswers(attempt.AnswersJSON)
	events, correct := grade(questions, answers)

	total := len(questions)
	score := 0.0
	if total > 0 {
		score = float64(correct) / float64(total) * 100
	}

	answersJSON, _ := json.Marshal(answers)
	err = h.quizRepo.SubmitAttempt(r.Context(), attempt.ID, score, correct, answersJSON, max(0, req.TimeTakenSeconds))
	if errors.Is(err, repository.ErrVersionConflict) {
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "Attempt already submitted", r))
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to submit attempt", r))
		return
	}

	results := h.reviews.ReviewQuizAnswers(r.Context(), quiz, attempt.UserID, events, req.SessionID)
	if len(results) < len(events) {
		log.Printf("quiz attempt %s: %d of %d answers scheduled", attempt.ID, len(results), len(events))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"score_percent": score,
		"correct_count": correct,
		"total":         total,
		"attempt_id":    attempt.ID,
		"results":       results,
	})
}

func (h *QuizHandler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	attempt, ok := h.ownedAttempt(w, r)
	if !ok {
		return
	}

	quiz, err := h.quizRepo.GetByID(r.Context(), attempt.QuizID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Quiz not found", r))
		return
	}

	progress, err := h.reviews.ItemProgress(r.Context(), attempt.UserID, models.ItemTypeQuiz, quiz.ID)
	if err != nil {
		log.Printf("quiz attempt %s: failed to load progress: %v", attempt.ID, err)
	}
	if progress == nil {
		progress = []*models.ReviewProgress{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"attempt":   attempt,
		"questions": quiz.QuestionsJSON,
		"quiz":      quiz,
		"progress":  progress,
	})
}

func decodeAnswers(raw json.RawMessage) []models.QuizAnswer {
	var answers []models.QuizAnswer
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &answers); err != nil {
			log.Printf("quiz: discarding unreadable answers: %v", err)
			return nil
		}
	}
	return answers
}

// grade marks each answer against its question. Answers to questions the
// quiz doesn't have are ignored.
func grade(questions []models.QuizQuestion, answers []models.QuizAnswer) ([]services.QuizAnswerEvent, int) {
	events := make([]services.QuizAnswerEvent, 0, len(answers))
	correct := 0
	for _, a := range answers {
		if a.QuestionIndex < 0 || a.QuestionIndex >= len(questions) {
			continue
		}
		ok := questions[a.QuestionIndex].CorrectIndex == a.AnswerIndex
		if ok {
			correct++
		}
		confidence := a.Confidence
		if confidence == 0 {
			confidence = defaultAnswerConfidence
		}
		events = append(events, services.QuizAnswerEvent{
			QuestionIndex: a.QuestionIndex,
			Confidence:    confidence,
			Correct:       ok,
			TimeSpent:     a.TimeSpent,
		})
	}
	return events, correct
}
