package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"tutorly-backend/internal/models"
	"tutorly-backend/internal/services"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func TestFlashcardHandler_ReviewCard(t *testing.T) {
	cardID := uuid.New()

	tests := []struct {
		name       string
		body       models.CardReviewRequest
		status     int
		confidence int
		correct    bool
	}{
		{"explicit event", models.CardReviewRequest{Confidence: intPtr(2), Correct: boolPtr(true), TimeSpent: 8}, http.StatusOK, 2, true},
		{"legacy again", models.CardReviewRequest{Rating: intPtr(0)}, http.StatusOK, 1, false},
		{"legacy good", models.CardReviewRequest{Rating: intPtr(2)}, http.StatusOK, 4, true},
		{"legacy easy", models.CardReviewRequest{Rating: intPtr(3)}, http.StatusOK, 5, true},
		{"rating out of range", models.CardReviewRequest{Rating: intPtr(4)}, http.StatusBadRequest, 0, false},
		{"confidence without correct", models.CardReviewRequest{Confidence: intPtr(3)}, http.StatusBadRequest, 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reviews := &stubReviews{}
			h := NewFlashcardHandler(&stubDecks{}, reviews)

			rr := httptest.NewRecorder()
			h.ReviewCard(rr, newRequest(http.MethodPost, "/", tc.body, uuid.New(), map[string]string{"id": cardID.String()}))

			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d: %s", tc.status, rr.Code, rr.Body.String())
			}
			if tc.status != http.StatusOK {
				if reviews.reviewReq.ItemID != uuid.Nil {
					t.Fatal("service should not be called for an incomplete request")
				}
				return
			}
			got := reviews.reviewReq
			if got.ItemType != models.ItemTypeFlashcard || got.ItemID != cardID || got.SubIndex != 0 {
				t.Fatalf("unexpected item: %+v", got)
			}
			if got.Confidence != tc.confidence || got.Correct != tc.correct || got.TimeSpent != tc.body.TimeSpent {
				t.Fatalf("expected (%d, %v), got (%d, %v)", tc.confidence, tc.correct, got.Confidence, got.Correct)
			}
		})
	}
}

func TestFlashcardHandler_DeckOwnership(t *testing.T) {
	ownerID := uuid.New()
	deck := &models.FlashcardDeck{ID: uuid.New(), UserID: ownerID, Algorithm: "fsrs"}

	t.Run("other user is forbidden", func(t *testing.T) {
		repo := &stubDecks{deck: deck}
		h := NewFlashcardHandler(repo, &stubReviews{})

		rr := httptest.NewRecorder()
		h.DeleteDeck(rr, newRequest(http.MethodDelete, "/", nil, uuid.New(), map[string]string{"id": deck.ID.String()}))

		if rr.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rr.Code)
		}
		if repo.deleted {
			t.Fatal("deck should not be deleted by another user")
		}
	})

	t.Run("owner can toggle favorite", func(t *testing.T) {
		repo := &stubDecks{deck: deck}
		h := NewFlashcardHandler(repo, &stubReviews{})

		rr := httptest.NewRecorder()
		h.ToggleFavorite(rr, newRequest(http.MethodPut, "/", nil, ownerID, map[string]string{"id": deck.ID.String()}))

		if rr.Code != http.StatusOK || !repo.toggled {
			t.Fatalf("expected toggle, got %d", rr.Code)
		}
	})

	t.Run("missing deck", func(t *testing.T) {
		h := NewFlashcardHandler(&stubDecks{deck: deck}, &stubReviews{})

		rr := httptest.NewRecorder()
		h.GetDeckStats(rr, newRequest(http.MethodGet, "/", nil, ownerID, map[string]string{"id": uuid.NewString()}))

		if rr.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rr.Code)
		}
	})

	t.Run("get deck returns empty card list", func(t *testing.T) {
		h := NewFlashcardHandler(&stubDecks{deck: deck}, &stubReviews{})

		rr := httptest.NewRecorder()
		h.GetDeck(rr, newRequest(http.MethodGet, "/", nil, ownerID, map[string]string{"id": deck.ID.String()}))

		var body struct {
			Cards []models.FlashcardCard `json:"cards"`
		}
		json.Unmarshal(rr.Body.Bytes(), &body)
		if rr.Code != http.StatusOK || body.Cards == nil {
			t.Fatalf("unexpected response %d: %s", rr.Code, rr.Body.String())
		}
	})
}

func TestFlashcardHandler_SetAlgorithm(t *testing.T) {
	deckID := uuid.New()
	job := &models.Job{ID: uuid.New(), Type: models.JobTypeAlgorithmSwitch}

	reviews := &stubReviews{job: job}
	h := NewFlashcardHandler(&stubDecks{}, reviews)

	rr := httptest.NewRecorder()
	h.SetAlgorithm(rr, newRequest(http.MethodPut, "/", models.DeckAlgorithmRequest{Algorithm: "sm2"}, uuid.New(), map[string]string{"id": deckID.String()}))

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
	var body map[string]string
	json.Unmarshal(rr.Body.Bytes(), &body)
	if body["job_id"] != job.ID.String() || body["algorithm"] != "sm2" {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}

	reviews.switchErr = &services.ValidationError{Fields: map[string]string{"algorithm": "must be fsrs, sm2 or leitner"}}
	rr = httptest.NewRecorder()
	h.SetAlgorithm(rr, newRequest(http.MethodPut, "/", models.DeckAlgorithmRequest{Algorithm: "anki"}, uuid.New(), map[string]string{"id": deckID.String()}))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}
