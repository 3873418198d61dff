package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveReview(t *testing.T) {
	m := New()
	m.ObserveReview("fsrs", "flashcard", true, 0.4)
	m.ObserveReview("fsrs", "flashcard", true, 0.6)
	m.ObserveReview("sm2", "quiz", false, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.reviews.WithLabelValues("fsrs", "flashcard", "correct")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reviews.WithLabelValues("sm2", "quiz", "incorrect")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.mastery))
}

func TestObserveJob(t *testing.T) {
	m := New()
	m.ObserveJob("elo-update", "completed")
	m.ObserveJob("elo-update", "completed")
	m.ObserveJob("algorithm-switch", "failed")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.jobs.WithLabelValues("elo-update", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobs.WithLabelValues("algorithm-switch", "failed")))
}

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/decks/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"a", "b", "c"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/decks/"+id, nil))
		require.Equal(t, http.StatusTeapot, rr.Code)
	}

	// one series for all three ids
	assert.Equal(t, 1, testutil.CollectAndCount(m.httpRequests))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.ObserveJob("elo-update", "completed")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), `tutorly_jobs_total{status="completed",type="elo-update"} 1`))
}
