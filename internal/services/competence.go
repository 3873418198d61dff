package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"tutorly-backend/internal/models"
	"tutorly-backend/internal/repository"
	"tutorly-backend/internal/srs"
)

const (
	// maxEloHistory caps the stored history per user and scope.
	maxEloHistory = 200
	recentEloTail = 10

	lockPollInterval = 50 * time.Millisecond
)

type CompetenceStore interface {
	Get(ctx context.Context, userID uuid.UUID, scope string) (*models.CompetenceRating, error)
	Save(ctx context.Context, c *models.CompetenceRating) error
	ItemRating(ctx context.Context, itemType string, itemID uuid.UUID, subIndex int) (*models.ItemRating, error)
	SaveItemRating(ctx context.Context, ir *models.ItemRating) error
}

// CompetenceService maintains ELO ratings for users and items. It never
// touches due dates.
type CompetenceService struct {
	repo    CompetenceStore
	broker  ReviewBroker
	kFactor float64
	lockTTL time.Duration

	// lockWait bounds how long an update queues behind another holder of
	// the same lock before giving up with a ConflictError.
	lockWait time.Duration
	lockPoll time.Duration
}

func NewCompetenceService(repo CompetenceStore, broker ReviewBroker, kFactor float64, lockTTL time.Duration) *CompetenceService {
	if kFactor <= 0 {
		kFactor = srs.DefaultKFactor
	}
	if lockTTL <= 0 {
		lockTTL = 10 * time.Second
	}
	return &CompetenceService{
		repo:     repo,
		broker:   broker,
		kFactor:  kFactor,
		lockTTL:  lockTTL,
		lockWait: lockTTL,
		lockPoll: lockPollInterval,
	}
}

// lock takes key, polling until lockWait runs out. The returned func
// releases it.
func (s *CompetenceService) lock(ctx context.Context, key string) (func(), error) {
	deadline := time.Now().Add(s.lockWait)
	for {
		token, ok, err := s.broker.AcquireLock(ctx, key, s.lockTTL)
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				if err := s.broker.ReleaseLock(context.WithoutCancel(ctx), key, token); err != nil {
					log.Printf("competence: %v", err)
				}
			}, nil
		}
		if !time.Now().Before(deadline) {
			return nil, &ConflictError{Message: "Competence update already in progress"}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.lockPoll):
		}
	}
}

// ApplyJob decodes an elo-update job and applies it.
func (s *CompetenceService) ApplyJob(ctx context.Context, job *models.Job) error {
	var ev models.EloUpdateConfig
	if err := json.Unmarshal(job.ConfigJSON, &ev); err != nil {
		return fmt.Errorf("invalid elo-update config: %w", err)
	}
	if ev.UserID == uuid.Nil {
		ev.UserID = job.UserID
	}
	_, err := s.ApplyReview(ctx, ev)
	return err
}

// ApplyReview moves the user's rating for the scope and the item's
// difficulty rating by one answer.
func (s *CompetenceService) ApplyReview(ctx context.Context, ev models.EloUpdateConfig) (*models.CompetenceRating, error) {
	if ev.Scope == "" {
		ev.Scope = models.ScopeGlobal
	}
	if ev.ReviewedAt.IsZero() {
		ev.ReviewedAt = time.Now().UTC()
	}

	// user lock first, then the item lock shared across users
	unlockUser, err := s.lock(ctx, fmt.Sprintf("competence_lock:%s:%s", ev.UserID, ev.Scope))
	if err != nil {
		return nil, err
	}
	defer unlockUser()

	unlockItem, err := s.lock(ctx, fmt.Sprintf("item_rating_lock:%s:%s:%d", ev.ItemType, ev.ItemID, ev.SubIndex))
	if err != nil {
		return nil, err
	}
	defer unlockItem()

	c, err := s.repo.Get(ctx, ev.UserID, ev.Scope)
	if errors.Is(err, repository.ErrNotFound) {
		c = &models.CompetenceRating{UserID: ev.UserID, Scope: ev.Scope, Elo: srs.NewEloState()}
	} else if err != nil {
		return nil, fmt.Errorf("failed to load competence: %w", err)
	}

	item, err := s.repo.ItemRating(ctx, ev.ItemType, ev.ItemID, ev.SubIndex)
	if errors.Is(err, repository.ErrNotFound) {
		item = &models.ItemRating{ItemType: ev.ItemType, ItemID: ev.ItemID, SubIndex: ev.SubIndex, Rating: srs.InitializeElo()}
	} else if err != nil {
		return nil, fmt.Errorf("failed to load item rating: %w", err)
	}

	before := c.Elo.Rating
	if before == 0 && len(c.Elo.History) == 0 {
		before = srs.InitialEloRating
	}
	c.Elo = c.Elo.Record(ev.Confidence, ev.Correct, s.kFactor, ev.ReviewedAt)
	if n := len(c.Elo.History); n > maxEloHistory {
		c.Elo.History = c.Elo.History[n-maxEloHistory:]
	}

	_, item.Rating = srs.Match(before, item.Rating, ev.Correct, s.kFactor)
	item.Reviews++

	if err := s.repo.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to save competence: %w", err)
	}
	if err := s.repo.SaveItemRating(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to save item rating: %w", err)
	}

	s.broker.PublishUpdate(ctx, ev.UserID, models.WSMessage{
		Type:    models.WSCompetence,
		Payload: summarize(c),
	})
	return c, nil
}

// Summary reports the user's standing in scope. A user with no reviews gets
// the starting rating.
func (s *CompetenceService) Summary(ctx context.Context, userID uuid.UUID, scope string) (*models.CompetenceSummary, error) {
	if scope == "" {
		scope = models.ScopeGlobal
	}
	c, err := s.repo.Get(ctx, userID, scope)
	if errors.Is(err, repository.ErrNotFound) {
		c = &models.CompetenceRating{UserID: userID, Scope: scope, Elo: srs.NewEloState()}
	} else if err != nil {
		return nil, fmt.Errorf("failed to load competence: %w", err)
	}
	return summarize(c), nil
}

func (s *CompetenceService) ItemDifficulty(ctx context.Context, itemType string, itemID uuid.UUID, subIndex int) (*models.ItemRating, error) {
	ir, err := s.repo.ItemRating(ctx, itemType, itemID, subIndex)
	if errors.Is(err, repository.ErrNotFound) {
		return &models.ItemRating{ItemType: itemType, ItemID: itemID, SubIndex: subIndex, Rating: srs.InitializeElo()}, nil
	}
	return ir, err
}

func summarize(c *models.CompetenceRating) *models.CompetenceSummary {
	history := c.Elo.History
	recent := history[max(0, len(history)-recentEloTail):]
	return &models.CompetenceSummary{
		Scope:    c.Scope,
		Rating:   c.Elo.Rating,
		Trend:    srs.CalculateEloTrend(history, srs.DefaultTrendWindow),
		Category: srs.GetEloCategory(c.Elo.Rating),
		Reviews:  len(history),
		Recent:   append([]srs.EloEntry{}, recent...),
	}
}
