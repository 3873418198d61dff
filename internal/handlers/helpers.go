package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tutorly-backend/internal/middleware"
	"tutorly-backend/internal/models"
	"tutorly-backend/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get(middleware.RequestIDHeader),
		},
	}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	resp := errorResp(code, message, r)
	resp.Error.Fields = fields
	return resp
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch e := err.(type) {
	case *services.ValidationError:
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", e.Fields, r))
	case *services.ConflictError:
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", e.Message, r))
	case *services.NotFoundError:
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", e.Message, r))
	case *services.UnauthorizedError:
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", e.Message, r))
	case *services.ForbiddenError:
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", e.Message, r))
	case *services.RateLimitError:
		writeJSON(w, http.StatusTooManyRequests, errorResp("RATE_LIMITED", e.Message, r))
	default:
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}

// itemKeyParam reads the {type}/{id}/{sub} route params.
func itemKeyParam(r *http.Request) (models.ItemKey, map[string]string) {
	fields := map[string]string{}
	key := models.ItemKey{
		UserID:   middleware.GetUserID(r.Context()),
		ItemType: chi.URLParam(r, "type"),
	}
	if !models.ValidItemType(key.ItemType) {
		fields["type"] = "must be flashcard or quiz"
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		fields["id"] = "must be a UUID"
	}
	key.ItemID = id
	sub, err := strconv.Atoi(chi.URLParam(r, "sub"))
	if err != nil || sub < 0 {
		fields["sub"] = "must be a non-negative integer"
	}
	key.SubIndex = sub
	return key, fields
}
