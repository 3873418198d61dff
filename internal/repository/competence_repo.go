package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"tutorly-backend/internal/models"
)

type CompetenceRepo struct {
	pool *pgxpool.Pool
}

func NewCompetenceRepo(pool *pgxpool.Pool) *CompetenceRepo {
	return &CompetenceRepo{pool: pool}
}

func (r *CompetenceRepo) Get(ctx context.Context, userID uuid.UUID, scope string) (*models.CompetenceRating, error) {
	c := &models.CompetenceRating{}
	var historyJSON []byte

	err := r.pool.QueryRow(ctx,
		`SELECT user_id, scope, rating, history_json, updated_at
		 FROM competence_ratings WHERE user_id = $1 AND scope = $2`,
		userID, scope,
	).Scan(&c.UserID, &c.Scope, &c.Elo.Rating, &historyJSON, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if len(historyJSON) > 0 {
		if err := json.Unmarshal(historyJSON, &c.Elo.History); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (r *CompetenceRepo) Save(ctx context.Context, c *models.CompetenceRating) error {
	historyJSON, err := json.Marshal(c.Elo.History)
	if err != nil {
		return err
	}

	return r.pool.QueryRow(ctx,
		`INSERT INTO competence_ratings (user_id, scope, rating, history_json)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, scope) DO UPDATE
		 SET rating = EXCLUDED.rating, history_json = EXCLUDED.history_json, updated_at = NOW()
		 RETURNING updated_at`,
		c.UserID, c.Scope, c.Elo.Rating, historyJSON,
	).Scan(&c.UpdatedAt)
}

func (r *CompetenceRepo) ItemRating(ctx context.Context, itemType string, itemID uuid.UUID, subIndex int) (*models.ItemRating, error) {
	ir := &models.ItemRating{}
	err := r.pool.QueryRow(ctx,
		`SELECT item_type, item_id, sub_index, rating, reviews, updated_at
		 FROM item_ratings WHERE item_type = $1 AND item_id = $2 AND sub_index = $3`,
		itemType, itemID, subIndex,
	).Scan(&ir.ItemType, &ir.ItemID, &ir.SubIndex, &ir.Rating, &ir.Reviews, &ir.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return ir, nil
}

func (r *CompetenceRepo) SaveItemRating(ctx context.Context, ir *models.ItemRating) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO item_ratings (item_type, item_id, sub_index, rating, reviews)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (item_type, item_id, sub_index) DO UPDATE
		 SET rating = EXCLUDED.rating, reviews = EXCLUDED.reviews, updated_at = NOW()
		 RETURNING updated_at`,
		ir.ItemType, ir.ItemID, ir.SubIndex, ir.Rating, ir.Reviews,
	).Scan(&ir.UpdatedAt)
}
