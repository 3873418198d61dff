package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tutorly-backend/internal/middleware"
	"tutorly-backend/internal/models"
)

type sessionStore interface {
	Start(ctx context.Context, s *models.StudySession) error
	Heartbeat(ctx context.Context, sessionID, userID uuid.UUID) error
	Stop(ctx context.Context, sessionID, userID uuid.UUID) error
	GetByID(ctx context.Context, sessionID uuid.UUID) (*models.StudySession, error)
}

type StudySessionHandler struct {
	repo sessionStore
}

func NewStudySessionHandler(repo sessionStore) *StudySessionHandler {
	return &StudySessionHandler{repo: repo}
}

// Start opens a session. A "review" session covers the mixed due queue and
// has no resource.
func (h *StudySessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req models.StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	switch req.ActivityType {
	case "flashcard", "quiz":
		if req.ResourceID == uuid.Nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "resource_id is required", r))
			return
		}
	case "review":
	default:
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "activity_type must be flashcard, quiz, or review", r))
		return
	}

	session := &models.StudySession{
		UserID:         userID,
		ActivityType:   req.ActivityType,
		ResourceID:     req.ResourceID,
		ClientMetaJSON: req.ClientMeta,
	}

	if err := h.repo.Start(r.Context(), session); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to start study session", r))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"session": session,
	})
}

func (h *StudySessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid session ID", r))
		return
	}

	session, err := h.repo.GetByID(r.Context(), sessionID)
	if err != nil || session.UserID != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Study session not found", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"session": session})
}

func (h *StudySessionHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid session ID", r))
		return
	}

	if err := h.repo.Heartbeat(r.Context(), sessionID, userID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to update study session", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Heartbeat recorded"})
}

func (h *StudySessionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid session ID", r))
		return
	}

	if err := h.repo.Stop(r.Context(), sessionID, userID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to stop study session", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Study session stopped"})
}
