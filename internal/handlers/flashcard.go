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

type deckStore interface {
	ListDecksByUser(ctx context.Context, userID uuid.UUID) ([]*models.FlashcardDeck, error)
	GetDeckByID(ctx context.Context, id uuid.UUID) (*models.FlashcardDeck, error)
	GetCardsByDeck(ctx context.Context, deckID uuid.UUID) ([]models.FlashcardCard, error)
	GetDeckStats(ctx context.Context, deckID uuid.UUID) (*models.DeckStats, error)
	ToggleFavorite(ctx context.Context, id uuid.UUID) error
	DeleteDeck(ctx context.Context, id uuid.UUID) error
}

type cardReviewer interface {
	Review(ctx context.Context, userID uuid.UUID, req models.ReviewRequest) (*models.ReviewResponse, error)
	SwitchDeckAlgorithm(ctx context.Context, userID, deckID uuid.UUID, algorithm string) (*models.Job, error)
}

type FlashcardHandler struct {
	flashRepo deckStore
	reviews   cardReviewer
}

func NewFlashcardHandler(flashRepo deckStore, reviews cardReviewer) *FlashcardHandler {
	return &FlashcardHandler{flashRepo: flashRepo, reviews: reviews}
}

// ownedDeck loads the {id} deck and writes the error response when it is
// missing or belongs to someone else.
func (h *FlashcardHandler) ownedDeck(w http.ResponseWriter, r *http.Request) (*models.FlashcardDeck, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid deck ID", r))
		return nil, false
	}

	deck, err := h.flashRepo.GetDeckByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Deck not found", r))
		return nil, false
	}

	if deck.UserID != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return nil, false
	}
	return deck, true
}

func (h *FlashcardHandler) ListDecks(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	decks, err := h.flashRepo.ListDecksByUser(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch decks", r))
		return
	}
	if decks == nil {
		decks = []*models.FlashcardDeck{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"decks": decks})
}

func (h *FlashcardHandler) GetDeck(w http.ResponseWriter, r *http.Request) {
	deck, ok := h.ownedDeck(w, r)
	if !ok {
		return
	}

	cards, err := h.flashRepo.GetCardsByDeck(r.Context(), deck.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch cards", r))
		return
	}
	if cards == nil {
		cards = []models.FlashcardCard{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deck":  deck,
		"cards": cards,
	})
}

func (h *FlashcardHandler) GetDeckStats(w http.ResponseWriter, r *http.Request) {
	deck, ok := h.ownedDeck(w, r)
	if !ok {
		return
	}

	stats, err := h.flashRepo.GetDeckStats(r.Context(), deck.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch stats", r))
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *FlashcardHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	deck, ok := h.ownedDeck(w, r)
	if !ok {
		return
	}

	if err := h.flashRepo.ToggleFavorite(r.Context(), deck.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to update favorite", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Favorite toggled"})
}

func (h *FlashcardHandler) DeleteDeck(w http.ResponseWriter, r *http.Request) {
	deck, ok := h.ownedDeck(w, r)
	if !ok {
		return
	}

	if err := h.flashRepo.DeleteDeck(r.Context(), deck.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete deck", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Deck deleted"})
}

// SetAlgorithm switches the deck's scheduler. Cards already in review are
// retagged by a background job.
func (h *FlashcardHandler) SetAlgorithm(w http.ResponseWriter, r *http.Request) {
	deckID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid deck ID", r))
		return
	}

	var req models.DeckAlgorithmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	job, err := h.reviews.SwitchDeckAlgorithm(r.Context(), middleware.GetUserID(r.Context()), deckID, req.Algorithm)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":    job.ID,
		"deck_id":   deckID,
		"algorithm": req.Algorithm,
	})
}

func (h *FlashcardHandler) ReviewCard(w http.ResponseWriter, r *http.Request) {
	cardID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid card ID", r))
		return
	}

	var req models.CardReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	confidence, correct, ok := req.Event()
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", map[string]string{
			"confidence": "confidence and correct, or a rating of 0-3, are required",
		}, r))
		return
	}

	resp, err := h.reviews.Review(r.Context(), middleware.GetUserID(r.Context()), models.ReviewRequest{
		ItemType:   models.ItemTypeFlashcard,
		ItemID:     cardID,
		Confidence: confidence,
		Correct:    correct,
		TimeSpent:  req.TimeSpent,
		SessionID:  req.SessionID,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
