package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"tutorly-backend/internal/models"
	"tutorly-backend/internal/srs"
)

type QuizRepo struct {
	pool *pgxpool.Pool
}

func NewQuizRepo(pool *pgxpool.Pool) *QuizRepo {
	return &QuizRepo{pool: pool}
}

func (r *QuizRepo) Create(ctx context.Context, q *models.Quiz) error {
	q.ID = uuid.New()
	if len(q.ConfigJSON) == 0 {
		q.ConfigJSON = json.RawMessage("{}")
	}
	if len(q.QuestionsJSON) == 0 {
		q.QuestionsJSON = json.RawMessage("[]")
	}
	q.Algorithm = string(srs.ParseAlgorithm(q.Algorithm))

	query := `INSERT INTO quizzes (id, user_id, title, algorithm, config_json, questions_json, question_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		q.ID, q.UserID, q.Title, q.Algorithm, q.ConfigJSON, q.QuestionsJSON, q.QuestionCount,
	).Scan(&q.CreatedAt)
}

const quizColumns = `id, user_id, title, algorithm, config_json, questions_json, question_count, is_favorite, created_at`

func (r *QuizRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	q := &models.Quiz{}
	err := r.pool.QueryRow(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE id = $1`, id).Scan(
		&q.ID, &q.UserID, &q.Title, &q.Algorithm, &q.ConfigJSON, &q.QuestionsJSON, &q.QuestionCount, &q.IsFavorite, &q.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return q, nil
}

func (r *QuizRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Quiz, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+quizColumns+` FROM quizzes WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quizzes []*models.Quiz
	for rows.Next() {
		q := &models.Quiz{}
		err := rows.Scan(&q.ID, &q.UserID, &q.Title, &q.Algorithm, &q.ConfigJSON, &q.QuestionsJSON, &q.QuestionCount, &q.IsFavorite, &q.CreatedAt)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, q)
	}
	return quizzes, rows.Err()
}

func (r *QuizRepo) ToggleFavorite(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "UPDATE quizzes SET is_favorite = NOT is_favorite WHERE id = $1", id)
	return err
}

func (r *QuizRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM quizzes WHERE id = $1", id)
	return err
}

// Quiz Attempts

func (r *QuizRepo) CreateAttempt(ctx context.Context, a *models.QuizAttempt) error {
	a.ID = uuid.New()
	a.StartedAt = time.Now()
	query := `INSERT INTO quiz_attempts (id, quiz_id, user_id, started_at)
		VALUES ($1, $2, $3, $4)`

	_, err := r.pool.Exec(ctx, query, a.ID, a.QuizID, a.UserID, a.StartedAt)
	return err
}

func (r *QuizRepo) GetAttemptByID(ctx context.Context, id uuid.UUID) (*models.QuizAttempt, error) {
	a := &models.QuizAttempt{}
	query := `SELECT id, quiz_id, user_id, answers_json, score_percent, correct_count, started_at, completed_at, time_taken_seconds
		FROM quiz_attempts WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.QuizID, &a.UserID, &a.AnswersJSON, &a.ScorePercent, &a.CorrectCount,
		&a.StartedAt, &a.CompletedAt, &a.TimeTakenSeconds,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func (r *QuizRepo) SaveProgress(ctx context.Context, attemptID uuid.UUID, answers json.RawMessage) error {
	_, err := r.pool.Exec(ctx, "UPDATE quiz_attempts SET answers_json = $1 WHERE id = $2", answers, attemptID)
	return err
}

// SubmitAttempt completes an attempt once; a second submit returns
// ErrVersionConflict. A zero timeTaken falls back to the wall-clock duration.
func (r *QuizRepo) SubmitAttempt(ctx context.Context, attemptID uuid.UUID, score float64, correct int, answers json.RawMessage, timeTaken int) error {
	now := time.Now()
	tag, err := r.pool.Exec(ctx,
		`UPDATE quiz_attempts SET answers_json = $1, score_percent = $2, correct_count = $3,
		 completed_at = $4,
		 time_taken_seconds = COALESCE(NULLIF($6, 0), EXTRACT(EPOCH FROM ($4 - started_at))::INTEGER)
		 WHERE id = $5 AND completed_at IS NULL`,
		answers, score, correct, now, attemptID, timeTaken,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}
