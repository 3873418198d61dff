package handlers

import (
	"net/http"

	"tutorly-backend/internal/middleware"
)

type CompetenceHandler struct {
	competence competenceReader
}

func NewCompetenceHandler(competence competenceReader) *CompetenceHandler {
	return &CompetenceHandler{competence: competence}
}

// Get reports the caller's rating for ?scope= (global when empty).
func (h *CompetenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")

	summary, err := h.competence.Summary(r.Context(), middleware.GetUserID(r.Context()), scope)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (h *CompetenceHandler) ItemDifficulty(w http.ResponseWriter, r *http.Request) {
	key, fields := itemKeyParam(r)
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Invalid item", fields, r))
		return
	}

	rating, err := h.competence.ItemDifficulty(r.Context(), key.ItemType, key.ItemID, key.SubIndex)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, rating)
}
