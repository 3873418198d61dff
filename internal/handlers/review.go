package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"tutorly-backend/internal/middleware"
	"tutorly-backend/internal/models"
	"tutorly-backend/internal/services"
)

type reviewService interface {
	Review(ctx context.Context, userID uuid.UUID, req models.ReviewRequest) (*models.ReviewResponse, error)
	NextReview(ctx context.Context, userID uuid.UUID) (*models.ReviewProgress, error)
	DueQueue(ctx context.Context, userID uuid.UUID, limit int) ([]*models.ReviewProgress, error)
	Distribution(ctx context.Context, userID uuid.UUID) (*models.MasteryDistribution, error)
	Progress(ctx context.Context, key models.ItemKey) (*models.ReviewProgress, error)
	SwitchAlgorithm(ctx context.Context, key models.ItemKey, algorithm string) (*models.ReviewProgress, error)
}

type competenceReader interface {
	Summary(ctx context.Context, userID uuid.UUID, scope string) (*models.CompetenceSummary, error)
	ItemDifficulty(ctx context.Context, itemType string, itemID uuid.UUID, subIndex int) (*models.ItemRating, error)
}

type ReviewHandler struct {
	reviews    reviewService
	competence competenceReader
}

func NewReviewHandler(reviews reviewService, competence competenceReader) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, competence: competence}
}

func (h *ReviewHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req models.ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	resp, err := h.reviews.Review(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *ReviewHandler) Next(w http.ResponseWriter, r *http.Request) {
	next, err := h.reviews.NextReview(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, next)
}

func (h *ReviewHandler) Due(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "limit must be a positive integer", r))
			return
		}
		limit = n
	}

	items, err := h.reviews.DueQueue(r.Context(), middleware.GetUserID(r.Context()), limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []*models.ReviewProgress{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"count": len(items),
	})
}

// Overview loads the dashboard numbers in parallel.
func (h *ReviewHandler) Overview(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	var overview models.ReviewOverview

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		d, err := h.reviews.Distribution(ctx, userID)
		if err != nil {
			return err
		}
		overview.Distribution = *d
		return nil
	})
	g.Go(func() error {
		next, err := h.reviews.NextReview(ctx, userID)
		var nf *services.NotFoundError
		if errors.As(err, &nf) {
			return nil
		}
		overview.Next = next
		return err
	})
	g.Go(func() error {
		c, err := h.competence.Summary(ctx, userID, models.ScopeGlobal)
		overview.Competence = c
		return err
	})
	if err := g.Wait(); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, overview)
}

func (h *ReviewHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	key, fields := itemKeyParam(r)
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Invalid item", fields, r))
		return
	}

	p, err := h.reviews.Progress(r.Context(), key)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *ReviewHandler) SwitchAlgorithm(w http.ResponseWriter, r *http.Request) {
	key, fields := itemKeyParam(r)
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Invalid item", fields, r))
		return
	}

	var req models.SwitchAlgorithmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	p, err := h.reviews.SwitchAlgorithm(r.Context(), key, req.Algorithm)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}
