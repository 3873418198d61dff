package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"tutorly-backend/internal/models"
)

type StudySessionRepo struct {
	pool *pgxpool.Pool
}

func NewStudySessionRepo(pool *pgxpool.Pool) *StudySessionRepo {
	return &StudySessionRepo{pool: pool}
}

func (r *StudySessionRepo) Start(ctx context.Context, s *models.StudySession) error {
	if len(s.ClientMetaJSON) == 0 {
		s.ClientMetaJSON = json.RawMessage("{}")
	}

	// Close previous active session for same user/activity/resource (idempotent behavior)
	_, _ = r.pool.Exec(ctx, `
		UPDATE study_sessions
		SET ended_at = NOW(),
			duration_seconds = GREATEST(0, LEAST(43200, EXTRACT(EPOCH FROM (NOW() - started_at))::INT)),
			last_heartbeat_at = NOW()
		WHERE user_id = $1
		  AND activity_type = $2
		  AND resource_id = $3
		  AND ended_at IS NULL
	`, s.UserID, s.ActivityType, s.ResourceID)

	query := `
		INSERT INTO study_sessions (user_id, activity_type, resource_id, client_meta_json)
		VALUES ($1, $2, $3, $4)
		RETURNING id, started_at, last_heartbeat_at, reviews_count, time_spent_seconds, created_at
	`

	return r.pool.QueryRow(ctx, query, s.UserID, s.ActivityType, s.ResourceID, s.ClientMetaJSON).Scan(
		&s.ID,
		&s.StartedAt,
		&s.LastHeartbeatAt,
		&s.ReviewsCount,
		&s.TimeSpentSeconds,
		&s.CreatedAt,
	)
}

func (r *StudySessionRepo) Heartbeat(ctx context.Context, sessionID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE study_sessions
		SET last_heartbeat_at = NOW()
		WHERE id = $1
		  AND user_id = $2
		  AND ended_at IS NULL
	`, sessionID, userID)
	return err
}

func (r *StudySessionRepo) Stop(ctx context.Context, sessionID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE study_sessions
		SET ended_at = CASE WHEN ended_at IS NULL THEN NOW() ELSE ended_at END,
			last_heartbeat_at = NOW(),
			duration_seconds = CASE
				WHEN ended_at IS NULL THEN GREATEST(0, LEAST(43200, EXTRACT(EPOCH FROM (NOW() - started_at))::INT))
				ELSE duration_seconds
			END
		WHERE id = $1
		  AND user_id = $2
	`, sessionID, userID)
	return err
}

func (r *StudySessionRepo) GetByID(ctx context.Context, sessionID uuid.UUID) (*models.StudySession, error) {
	s := &models.StudySession{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, activity_type, resource_id, started_at, last_heartbeat_at, ended_at,
			duration_seconds, reviews_count, time_spent_seconds, client_meta_json, created_at
		FROM study_sessions
		WHERE id = $1
	`, sessionID).Scan(
		&s.ID, &s.UserID, &s.ActivityType, &s.ResourceID, &s.StartedAt, &s.LastHeartbeatAt, &s.EndedAt,
		&s.DurationSeconds, &s.ReviewsCount, &s.TimeSpentSeconds, &s.ClientMetaJSON, &s.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// AddReview records one review's telemetry against an open session. It also
// counts as a heartbeat.
func (r *StudySessionRepo) AddReview(ctx context.Context, sessionID, userID uuid.UUID, timeSpent int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE study_sessions
		SET reviews_count = reviews_count + 1,
			time_spent_seconds = time_spent_seconds + $3,
			last_heartbeat_at = NOW()
		WHERE id = $1
		  AND user_id = $2
		  AND ended_at IS NULL
	`, sessionID, userID, max(0, timeSpent))
	return err
}
