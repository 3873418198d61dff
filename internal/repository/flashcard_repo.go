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

type FlashcardRepo struct {
	pool *pgxpool.Pool
}

func NewFlashcardRepo(pool *pgxpool.Pool) *FlashcardRepo {
	return &FlashcardRepo{pool: pool}
}

// Deck operations

func (r *FlashcardRepo) CreateDeck(ctx context.Context, d *models.FlashcardDeck) error {
	d.ID = uuid.New()
	if len(d.ConfigJSON) == 0 {
		d.ConfigJSON = json.RawMessage("{}")
	}
	d.Algorithm = string(srs.ParseAlgorithm(d.Algorithm))

	query := `INSERT INTO flashcard_decks (id, user_id, title, algorithm, config_json, card_count)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		d.ID, d.UserID, d.Title, d.Algorithm, d.ConfigJSON, d.CardCount,
	).Scan(&d.CreatedAt)
}

func (r *FlashcardRepo) GetDeckByID(ctx context.Context, id uuid.UUID) (*models.FlashcardDeck, error) {
	d := &models.FlashcardDeck{}
	query := `SELECT id, user_id, title, algorithm, config_json, card_count, is_favorite, created_at
		FROM flashcard_decks WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.UserID, &d.Title, &d.Algorithm, &d.ConfigJSON, &d.CardCount, &d.IsFavorite, &d.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return d, nil
}

func (r *FlashcardRepo) ListDecksByUser(ctx context.Context, userID uuid.UUID) ([]*models.FlashcardDeck, error) {
	query := `SELECT id, user_id, title, algorithm, config_json, card_count, is_favorite, created_at
		FROM flashcard_decks WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decks []*models.FlashcardDeck
	for rows.Next() {
		d := &models.FlashcardDeck{}
		err := rows.Scan(&d.ID, &d.UserID, &d.Title, &d.Algorithm, &d.ConfigJSON, &d.CardCount, &d.IsFavorite, &d.CreatedAt)
		if err != nil {
			return nil, err
		}
		decks = append(decks, d)
	}
	return decks, rows.Err()
}

func (r *FlashcardRepo) ToggleFavorite(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "UPDATE flashcard_decks SET is_favorite = NOT is_favorite WHERE id = $1", id)
	return err
}

func (r *FlashcardRepo) SetDeckAlgorithm(ctx context.Context, id uuid.UUID, alg srs.Algorithm) error {
	_, err := r.pool.Exec(ctx, "UPDATE flashcard_decks SET algorithm = $1 WHERE id = $2", string(alg), id)
	return err
}

func (r *FlashcardRepo) DeleteDeck(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM flashcard_decks WHERE id = $1", id)
	return err
}

// Card operations

func (r *FlashcardRepo) CreateCards(ctx context.Context, deckID uuid.UUID, cards []models.FlashcardCard) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	firstDue := time.Now().AddDate(0, 0, 1)
	for i := range cards {
		cards[i].ID = uuid.New()
		cards[i].DeckID = deckID

		_, err := tx.Exec(ctx,
			`INSERT INTO flashcard_cards (id, deck_id, front, back, mnemonic, example, topic, difficulty, interval_days, ease_factor, repetitions, next_review_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			cards[i].ID, deckID, cards[i].Front, cards[i].Back, cards[i].Mnemonic, cards[i].Example,
			cards[i].Topic, cards[i].Difficulty, 1, srs.DefaultSM2Params.InitialEase, 0, firstDue,
		)
		if err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx,
		"UPDATE flashcard_decks SET card_count = card_count + $1 WHERE id = $2", len(cards), deckID,
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const cardColumns = `id, deck_id, front, back, mnemonic, example, topic, difficulty,
	interval_days, ease_factor, repetitions, mastery, next_review_at, last_reviewed_at`

func (r *FlashcardRepo) GetCardsByDeck(ctx context.Context, deckID uuid.UUID) ([]models.FlashcardCard, error) {
	query := `SELECT ` + cardColumns + ` FROM flashcard_cards WHERE deck_id = $1 ORDER BY next_review_at ASC`

	rows, err := r.pool.Query(ctx, query, deckID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []models.FlashcardCard
	for rows.Next() {
		c := models.FlashcardCard{}
		err := rows.Scan(
			&c.ID, &c.DeckID, &c.Front, &c.Back, &c.Mnemonic, &c.Example, &c.Topic, &c.Difficulty,
			&c.IntervalDays, &c.EaseFactor, &c.Repetitions, &c.Mastery, &c.NextReviewAt, &c.LastReviewedAt,
		)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func (r *FlashcardRepo) GetCardByID(ctx context.Context, id uuid.UUID) (*models.FlashcardCard, error) {
	c := &models.FlashcardCard{}
	err := r.pool.QueryRow(ctx, `SELECT `+cardColumns+` FROM flashcard_cards WHERE id = $1`, id).Scan(
		&c.ID, &c.DeckID, &c.Front, &c.Back, &c.Mnemonic, &c.Example, &c.Topic, &c.Difficulty,
		&c.IntervalDays, &c.EaseFactor, &c.Repetitions, &c.Mastery, &c.NextReviewAt, &c.LastReviewedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// UpdateCardSchedule mirrors a scheduling state onto the card row.
func (r *FlashcardRepo) UpdateCardSchedule(ctx context.Context, cardID uuid.UUID, state srs.State, mastery float64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE flashcard_cards SET interval_days = $1, ease_factor = $2, repetitions = $3,
		 mastery = $4, next_review_at = $5, last_reviewed_at = $6 WHERE id = $7`,
		state.Interval, state.EaseFactor, state.RepetitionCount, mastery, state.DueDate, state.LastStudied, cardID,
	)
	return err
}

func (r *FlashcardRepo) GetDeckStats(ctx context.Context, deckID uuid.UUID) (*models.DeckStats, error) {
	stats := &models.DeckStats{}

	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*),
			COUNT(*) FILTER (WHERE mastery >= 0.8),
			COUNT(*) FILTER (WHERE last_reviewed_at IS NOT NULL AND mastery < 0.8),
			COUNT(*) FILTER (WHERE last_reviewed_at IS NULL),
			COUNT(*) FILTER (WHERE next_review_at <= NOW()),
			COALESCE(AVG(mastery), 0)
		 FROM flashcard_cards WHERE deck_id = $1`,
		deckID,
	).Scan(&stats.TotalCards, &stats.Mastered, &stats.Learning, &stats.New, &stats.DueToday, &stats.AverageMastery)
	if err != nil {
		return nil, err
	}

	if stats.TotalCards > 0 {
		stats.MasteryRate = float64(stats.Mastered) / float64(stats.TotalCards) * 100
	}
	return stats, nil
}
