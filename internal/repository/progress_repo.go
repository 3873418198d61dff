package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tutorly-backend/internal/models"
	"tutorly-backend/internal/srs"
)

type ProgressRepo struct {
	pool *pgxpool.Pool
}

func NewProgressRepo(pool *pgxpool.Pool) *ProgressRepo {
	return &ProgressRepo{pool: pool}
}

const progressColumns = `id, user_id, item_type, item_id, sub_index, algorithm, state_json,
	mastery, due_at, version, created_at, updated_at`

func scanProgress(row pgx.Row) (*models.ReviewProgress, error) {
	p := &models.ReviewProgress{}
	var (
		algorithm string
		stateJSON []byte
	)
	err := row.Scan(
		&p.ID, &p.UserID, &p.ItemType, &p.ItemID, &p.SubIndex, &algorithm, &stateJSON,
		&p.Mastery, &p.DueAt, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Algorithm = srs.ParseAlgorithm(algorithm)
	if p.State, err = srs.UnmarshalState(stateJSON); err != nil {
		return nil, fmt.Errorf("progress %s: %w", p.ID, err)
	}
	return p, nil
}

func collectProgress(rows pgx.Rows) ([]*models.ReviewProgress, error) {
	defer rows.Close()

	var out []*models.ReviewProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ProgressRepo) Get(ctx context.Context, key models.ItemKey) (*models.ReviewProgress, error) {
	query := `SELECT ` + progressColumns + ` FROM review_progress
		WHERE user_id = $1 AND item_type = $2 AND item_id = $3 AND sub_index = $4`

	p, err := scanProgress(r.pool.QueryRow(ctx, query, key.UserID, key.ItemType, key.ItemID, key.SubIndex))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

// Create inserts a new row. A concurrent insert of the same key surfaces as
// ErrVersionConflict.
func (r *ProgressRepo) Create(ctx context.Context, p *models.ReviewProgress) error {
	stateJSON, err := p.State.Marshal()
	if err != nil {
		return err
	}
	p.ID = uuid.New()
	p.Version = 1

	query := `INSERT INTO review_progress (id, user_id, item_type, item_id, sub_index, algorithm, state_json, mastery, due_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, item_type, item_id, sub_index) DO NOTHING
		RETURNING created_at, updated_at`

	err = r.pool.QueryRow(ctx, query,
		p.ID, p.UserID, p.ItemType, p.ItemID, p.SubIndex, string(p.Algorithm), stateJSON, p.Mastery, p.DueAt, p.Version,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrVersionConflict
	}
	return err
}

// Save writes p if nobody else has since it was read, bumping its version.
func (r *ProgressRepo) Save(ctx context.Context, p *models.ReviewProgress) error {
	stateJSON, err := p.State.Marshal()
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE review_progress SET algorithm = $1, state_json = $2, mastery = $3, due_at = $4,
		 version = version + 1, updated_at = NOW()
		 WHERE id = $5 AND version = $6`,
		string(p.Algorithm), stateJSON, p.Mastery, p.DueAt, p.ID, p.Version,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	p.Version++
	p.UpdatedAt = time.Now()
	return nil
}

func (r *ProgressRepo) ListDue(ctx context.Context, userID uuid.UUID, now time.Time, limit int) ([]*models.ReviewProgress, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+progressColumns+` FROM review_progress
		 WHERE user_id = $1 AND due_at <= $2 ORDER BY due_at ASC LIMIT $3`,
		userID, now, limit,
	)
	if err != nil {
		return nil, err
	}
	return collectProgress(rows)
}

func (r *ProgressRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.ReviewProgress, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+progressColumns+` FROM review_progress WHERE user_id = $1 ORDER BY due_at ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	return collectProgress(rows)
}

// ListByItem returns every sub-item row a user has for one item.
func (r *ProgressRepo) ListByItem(ctx context.Context, userID uuid.UUID, itemType string, itemID uuid.UUID) ([]*models.ReviewProgress, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+progressColumns+` FROM review_progress
		 WHERE user_id = $1 AND item_type = $2 AND item_id = $3 ORDER BY sub_index ASC`,
		userID, itemType, itemID,
	)
	if err != nil {
		return nil, err
	}
	return collectProgress(rows)
}

// DueUser is a user with at least one item due.
type DueUser struct {
	UserID   uuid.UUID
	DueCount int
	NextDue  time.Time
}

func (r *ProgressRepo) UsersWithDueReviews(ctx context.Context, now time.Time) ([]DueUser, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, COUNT(*), MIN(due_at) FROM review_progress
		 WHERE due_at <= $1 GROUP BY user_id`,
		now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []DueUser
	for rows.Next() {
		var u DueUser
		if err := rows.Scan(&u.UserID, &u.DueCount, &u.NextDue); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *ProgressRepo) MasteryDistribution(ctx context.Context, userID uuid.UUID, now time.Time) (*models.MasteryDistribution, error) {
	d := &models.MasteryDistribution{ByAlgorithm: map[string]int{}}

	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*),
			COUNT(*) FILTER (WHERE COALESCE((state_json->>'repetitionCount')::INT, 0) = 0),
			COUNT(*) FILTER (WHERE mastery >= 0.8),
			COUNT(*) FILTER (WHERE due_at <= $2),
			COALESCE(AVG(mastery), 0)
		 FROM review_progress WHERE user_id = $1`,
		userID, now,
	).Scan(&d.Total, &d.New, &d.Mastered, &d.DueNow, &d.AverageMastery)
	if err != nil {
		return nil, err
	}
	d.Learning = max(0, d.Total-d.New-d.Mastered)

	rows, err := r.pool.Query(ctx,
		"SELECT algorithm, COUNT(*) FROM review_progress WHERE user_id = $1 GROUP BY algorithm",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			alg   string
			count int
		)
		if err := rows.Scan(&alg, &count); err != nil {
			return nil, err
		}
		d.ByAlgorithm[alg] = count
	}
	return d, rows.Err()
}
