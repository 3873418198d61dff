package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DashboardCounts struct {
	Decks        int `json:"flashcard_decks"`
	Quizzes      int `json:"quizzes"`
	QuizAttempts int `json:"quiz_attempts"`
	ReviewsToday int `json:"reviews_today"`
	StudySeconds int `json:"study_seconds"`
}

type DashboardRepo struct {
	pool *pgxpool.Pool
}

func NewDashboardRepo(pool *pgxpool.Pool) *DashboardRepo {
	return &DashboardRepo{pool: pool}
}

func (r *DashboardRepo) Counts(ctx context.Context, userID uuid.UUID) (*DashboardCounts, error) {
	c := &DashboardCounts{}
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM flashcard_decks WHERE user_id = $1),
			(SELECT COUNT(*) FROM quizzes WHERE user_id = $1),
			(SELECT COUNT(*) FROM quiz_attempts WHERE user_id = $1 AND completed_at IS NOT NULL),
			(SELECT COUNT(*) FROM review_progress WHERE user_id = $1 AND updated_at >= CURRENT_DATE),
			(SELECT COALESCE(SUM(time_spent_seconds), 0) FROM study_sessions WHERE user_id = $1)
	`, userID).Scan(&c.Decks, &c.Quizzes, &c.QuizAttempts, &c.ReviewsToday, &c.StudySeconds)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ActiveDays lists the distinct UTC days since `since` on which the user
// reviewed anything, newest first.
func (r *DashboardRepo) ActiveDays(ctx context.Context, userID uuid.UUID, since time.Time) ([]time.Time, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT d FROM (
			SELECT DISTINCT DATE(started_at AT TIME ZONE 'UTC') AS d
			FROM study_sessions
			WHERE user_id = $1 AND reviews_count > 0 AND started_at >= $2
			UNION
			SELECT DISTINCT DATE(completed_at AT TIME ZONE 'UTC')
			FROM quiz_attempts
			WHERE user_id = $1 AND completed_at >= $2
			UNION
			SELECT DISTINCT DATE(updated_at AT TIME ZONE 'UTC')
			FROM review_progress
			WHERE user_id = $1 AND updated_at >= $2
		) days
		ORDER BY d DESC
	`, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// WeeklyReviews counts reviews logged against study sessions over the last
// seven days, indexed by day of week (0 = Sunday).
func (r *DashboardRepo) WeeklyReviews(ctx context.Context, userID uuid.UUID) ([7]int, error) {
	var out [7]int
	rows, err := r.pool.Query(ctx, `
		SELECT EXTRACT(DOW FROM started_at)::int AS dow, COALESCE(SUM(reviews_count), 0)
		FROM study_sessions
		WHERE user_id = $1 AND started_at >= CURRENT_DATE - INTERVAL '6 days'
		GROUP BY dow
	`, userID)
	if err != nil {
		return out, err
	}
	defer rows.Close()

	for rows.Next() {
		var dow, count int
		if err := rows.Scan(&dow, &count); err != nil {
			return out, err
		}
		if dow >= 0 && dow < 7 {
			out[dow] = count
		}
	}
	return out, rows.Err()
}
