package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"tutorly-backend/internal/models"
	"tutorly-backend/internal/repository"
	"tutorly-backend/internal/srs"
)

const (
	defaultDueLimit = 50
	maxDueLimit     = 500

	// deckSwitchConcurrency bounds parallel card rewrites in ApplyDeckAlgorithm.
	deckSwitchConcurrency = 4
)

type ProgressStore interface {
	Get(ctx context.Context, key models.ItemKey) (*models.ReviewProgress, error)
	Create(ctx context.Context, p *models.ReviewProgress) error
	Save(ctx context.Context, p *models.ReviewProgress) error
	ListDue(ctx context.Context, userID uuid.UUID, now time.Time, limit int) ([]*models.ReviewProgress, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.ReviewProgress, error)
	ListByItem(ctx context.Context, userID uuid.UUID, itemType string, itemID uuid.UUID) ([]*models.ReviewProgress, error)
	MasteryDistribution(ctx context.Context, userID uuid.UUID, now time.Time) (*models.MasteryDistribution, error)
}

type FlashcardStore interface {
	GetDeckByID(ctx context.Context, id uuid.UUID) (*models.FlashcardDeck, error)
	GetCardByID(ctx context.Context, id uuid.UUID) (*models.FlashcardCard, error)
	GetCardsByDeck(ctx context.Context, deckID uuid.UUID) ([]models.FlashcardCard, error)
	UpdateCardSchedule(ctx context.Context, cardID uuid.UUID, state srs.State, mastery float64) error
	SetDeckAlgorithm(ctx context.Context, id uuid.UUID, alg srs.Algorithm) error
}

type QuizStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Quiz, error)
}

type SessionStore interface {
	AddReview(ctx context.Context, sessionID, userID uuid.UUID, timeSpent int) error
}

type JobStore interface {
	Create(ctx context.Context, j *models.Job) error
}

// ReviewBroker is what ReviewService needs from the Redis broker.
type ReviewBroker interface {
	Messenger
	Locker
}

// ReviewRecorder observes committed reviews.
type ReviewRecorder interface {
	ObserveReview(algorithm, itemType string, correct bool, mastery float64)
}

// ReviewService runs review events through the scheduling engine and
// persists the result.
type ReviewService struct {
	engine   *srs.Engine
	progress ProgressStore
	cards    FlashcardStore
	quizzes  QuizStore
	sessions SessionStore
	jobs     JobStore
	broker   ReviewBroker
	lockTTL  time.Duration
	recorder ReviewRecorder
	now      func() time.Time
}

func NewReviewService(
	engine *srs.Engine,
	progress ProgressStore,
	cards FlashcardStore,
	quizzes QuizStore,
	sessions SessionStore,
	jobs JobStore,
	broker ReviewBroker,
	lockTTL time.Duration,
) *ReviewService {
	if lockTTL <= 0 {
		lockTTL = 10 * time.Second
	}
	return &ReviewService{
		engine:   engine,
		progress: progress,
		cards:    cards,
		quizzes:  quizzes,
		sessions: sessions,
		jobs:     jobs,
		broker:   broker,
		lockTTL:  lockTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetRecorder attaches a metrics sink. Must be called before serving.
func (s *ReviewService) SetRecorder(r ReviewRecorder) {
	s.recorder = r
}

// reviewTarget is an item the user may review, with the algorithm its
// container defaults to.
type reviewTarget struct {
	key       models.ItemKey
	algorithm srs.Algorithm
}

type reviewOptions struct {
	algorithm srs.Algorithm // explicit override, empty for none
	sessionID *uuid.UUID
	scope     string
}

// Review applies one review event and returns the new schedule.
func (s *ReviewService) Review(ctx context.Context, userID uuid.UUID, req models.ReviewRequest) (*models.ReviewResponse, error) {
	fields := map[string]string{}
	if !models.ValidItemType(req.ItemType) {
		fields["item_type"] = "must be flashcard or quiz"
	}
	if req.ItemID == uuid.Nil {
		fields["item_id"] = "is required"
	}
	if req.SubIndex < 0 || (req.ItemType == models.ItemTypeFlashcard && req.SubIndex != 0) {
		fields["sub_index"] = "is out of range"
	}
	if req.Algorithm != "" && !srs.Algorithm(req.Algorithm).IsKnown() {
		fields["algorithm"] = "must be fsrs, sm2 or leitner"
	}
	var verr *srs.ValidationError
	if err := req.Result().Validate(); errors.As(err, &verr) {
		for k, v := range verr.Fields {
			fields[k] = v
		}
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	key := models.ItemKey{UserID: userID, ItemType: req.ItemType, ItemID: req.ItemID, SubIndex: req.SubIndex}
	target, err := s.resolveTarget(ctx, key)
	if err != nil {
		return nil, err
	}

	p, err := s.apply(ctx, target, req.Result(), reviewOptions{
		algorithm: srs.Algorithm(req.Algorithm),
		sessionID: req.SessionID,
		scope:     req.Scope,
	})
	if err != nil {
		return nil, err
	}

	return &models.ReviewResponse{
		Progress: p,
		Interval: p.State.Interval,
		DueAt:    p.DueAt,
		Mastery:  p.Mastery,
	}, nil
}

// resolveTarget checks ownership of the item and finds its default algorithm.
func (s *ReviewService) resolveTarget(ctx context.Context, key models.ItemKey) (reviewTarget, error) {
	switch key.ItemType {
	case models.ItemTypeFlashcard:
		card, err := s.cards.GetCardByID(ctx, key.ItemID)
		if err != nil {
			return reviewTarget{}, notFoundOr(err, "Card not found")
		}
		deck, err := s.cards.GetDeckByID(ctx, card.DeckID)
		if err != nil {
			return reviewTarget{}, notFoundOr(err, "Deck not found")
		}
		if deck.UserID != key.UserID {
			return reviewTarget{}, &ForbiddenError{Message: "Access denied"}
		}
		return reviewTarget{key: key, algorithm: srs.ParseAlgorithm(deck.Algorithm)}, nil

	case models.ItemTypeQuiz:
		quiz, err := s.quizzes.GetByID(ctx, key.ItemID)
		if err != nil {
			return reviewTarget{}, notFoundOr(err, "Quiz not found")
		}
		if quiz.UserID != key.UserID {
			return reviewTarget{}, &ForbiddenError{Message: "Access denied"}
		}
		if quiz.QuestionCount > 0 && key.SubIndex >= quiz.QuestionCount {
			return reviewTarget{}, &ValidationError{Fields: map[string]string{"sub_index": "is out of range"}}
		}
		return reviewTarget{key: key, algorithm: srs.ParseAlgorithm(quiz.Algorithm)}, nil
	}
	return reviewTarget{}, &ValidationError{Fields: map[string]string{"item_type": "must be flashcard or quiz"}}
}

// QuizAnswerEvent is one graded quiz answer.
type QuizAnswerEvent struct {
	QuestionIndex int
	Confidence    int
	Correct       bool
	TimeSpent     int
}

// ReviewQuizAnswers turns every graded answer of a submitted attempt into a
// review of that question. Failures on single questions are logged and
// skipped so one contended item doesn't lose the rest of the attempt.
func (s *ReviewService) ReviewQuizAnswers(ctx context.Context, quiz *models.Quiz, userID uuid.UUID, answers []QuizAnswerEvent, sessionID *uuid.UUID) []models.QuestionResult {
	results := make([]models.QuestionResult, 0, len(answers))
	for _, a := range answers {
		target := reviewTarget{
			key: models.ItemKey{
				UserID:   userID,
				ItemType: models.ItemTypeQuiz,
				ItemID:   quiz.ID,
				SubIndex: a.QuestionIndex,
			},
			algorithm: srs.ParseAlgorithm(quiz.Algorithm),
		}
		result := srs.ReviewResult{Confidence: a.Confidence, Correct: a.Correct, TimeSpent: a.TimeSpent}.Normalize()

		p, err := s.apply(ctx, target, result, reviewOptions{sessionID: sessionID, scope: quiz.ID.String()})
		if err != nil {
			log.Printf("quiz %s question %d: review failed: %v", quiz.ID, a.QuestionIndex, err)
			continue
		}
		results = append(results, models.QuestionResult{
			QuestionIndex: a.QuestionIndex,
			Correct:       a.Correct,
			Mastery:       p.Mastery,
			DueAt:         p.DueAt,
		})
	}
	return results
}

func lockKey(key models.ItemKey) string {
	return fmt.Sprintf("review_lock:%s:%s:%s:%d", key.UserID, key.ItemType, key.ItemID, key.SubIndex)
}

// withItemLock runs fn while holding the per-item lock. A held lock is a
// ConflictError.
func (s *ReviewService) withItemLock(ctx context.Context, key models.ItemKey, fn func() error) error {
	lk := lockKey(key)
	token, ok, err := s.broker.AcquireLock(ctx, lk, s.lockTTL)
	if err != nil {
		return err
	}
	if !ok {
		return &ConflictError{Message: "Another review of this item is in progress"}
	}
	defer func() {
		if err := s.broker.ReleaseLock(context.WithoutCancel(ctx), lk, token); err != nil {
			log.Printf("review: %v", err)
		}
	}()
	return fn()
}

func (s *ReviewService) apply(ctx context.Context, target reviewTarget, result srs.ReviewResult, opts reviewOptions) (*models.ReviewProgress, error) {
	key := target.key
	now := s.now()

	var p *models.ReviewProgress
	err := s.withItemLock(ctx, key, func() error {
		existing, err := s.progress.Get(ctx, key)
		isNew := errors.Is(err, repository.ErrNotFound)
		if err != nil && !isNew {
			return fmt.Errorf("failed to load progress: %w", err)
		}

		alg := target.algorithm
		if existing != nil {
			alg = existing.Algorithm
		}
		if opts.algorithm.IsKnown() {
			alg = opts.algorithm
		}
		alg = s.engine.Resolve(alg)

		if isNew {
			existing = &models.ReviewProgress{
				UserID:   key.UserID,
				ItemType: key.ItemType,
				ItemID:   key.ItemID,
				SubIndex: key.SubIndex,
				State:    s.engine.InitializeStateAt(alg, now),
			}
		}

		existing.Algorithm = alg
		existing.State = s.engine.UpdateSpacedRepetitionAt(existing.State, result, alg, now)
		existing.Mastery = srs.CalculateMastery(existing.State)
		existing.DueAt = existing.State.DueDate

		if isNew {
			err = s.progress.Create(ctx, existing)
		} else {
			err = s.progress.Save(ctx, existing)
		}
		if errors.Is(err, repository.ErrVersionConflict) {
			return &ConflictError{Message: "Item was reviewed concurrently, please retry"}
		}
		if err != nil {
			return fmt.Errorf("failed to save progress: %w", err)
		}
		p = existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterReview(ctx, p, result, opts, now)
	return p, nil
}

// afterReview runs the side effects of a committed review. None of them can
// fail the review itself.
func (s *ReviewService) afterReview(ctx context.Context, p *models.ReviewProgress, result srs.ReviewResult, opts reviewOptions, now time.Time) {
	if p.ItemType == models.ItemTypeFlashcard {
		if err := s.cards.UpdateCardSchedule(ctx, p.ItemID, p.State, p.Mastery); err != nil {
			log.Printf("review: failed to mirror schedule onto card %s: %v", p.ItemID, err)
		}
	}

	if opts.sessionID != nil && s.sessions != nil {
		if err := s.sessions.AddReview(ctx, *opts.sessionID, p.UserID, result.TimeSpent); err != nil {
			log.Printf("review: failed to record telemetry on session %s: %v", opts.sessionID, err)
		}
	}

	if s.recorder != nil {
		s.recorder.ObserveReview(string(p.Algorithm), p.ItemType, result.Correct, p.Mastery)
	}

	s.broker.PublishUpdate(ctx, p.UserID, models.WSMessage{
		Type: models.WSReviewScheduled,
		Payload: models.ReviewScheduledEvent{
			ItemKey:   p.Key(),
			Algorithm: string(p.Algorithm),
			Interval:  p.State.Interval,
			Mastery:   p.Mastery,
			DueAt:     p.DueAt,
		},
	})

	scope := opts.scope
	if scope == "" {
		scope = models.ScopeGlobal
	}
	cfg, err := jobConfig(models.EloUpdateConfig{
		UserID:     p.UserID,
		Scope:      scope,
		ItemType:   p.ItemType,
		ItemID:     p.ItemID,
		SubIndex:   p.SubIndex,
		Confidence: result.Confidence,
		Correct:    result.Correct,
		ReviewedAt: now,
	})
	if err != nil {
		log.Printf("review: %v", err)
		return
	}
	job := &models.Job{
		UserID:      p.UserID,
		Type:        models.JobTypeEloUpdate,
		ReferenceID: p.ID,
		ConfigJSON:  cfg,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		log.Printf("review: failed to create elo-update job for %s: %v", p.ID, err)
		return
	}
	if err := s.broker.Enqueue(ctx, job); err != nil {
		log.Printf("review: %v", err)
	}
}

// jobConfig encodes a job's config column.
func jobConfig(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job config: %w", err)
	}
	return data, nil
}

func progressDue(p *models.ReviewProgress) time.Time { return p.DueAt }

// NextReview returns the item the user should study next: the most overdue
// one, or failing that the one coming up soonest.
func (s *ReviewService) NextReview(ctx context.Context, userID uuid.UUID) (*models.ReviewProgress, error) {
	items, err := s.progress.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	next, ok := srs.GetNextReview(items, progressDue, s.now())
	if !ok {
		return nil, &NotFoundError{Message: "Nothing scheduled for review"}
	}
	return next, nil
}

// DueQueue lists due items, most overdue first.
func (s *ReviewService) DueQueue(ctx context.Context, userID uuid.UUID, limit int) ([]*models.ReviewProgress, error) {
	if limit <= 0 {
		limit = defaultDueLimit
	}
	limit = min(limit, maxDueLimit)

	now := s.now()
	items, err := s.progress.ListDue(ctx, userID, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due items: %w", err)
	}
	return srs.DueItems(items, progressDue, now), nil
}

// DueSnapshot is the reviews_due message a newly connected socket starts
// from. It is nil when the user has nothing scheduled.
func (s *ReviewService) DueSnapshot(ctx context.Context, userID uuid.UUID) (*models.WSMessage, error) {
	items, err := s.progress.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	now := s.now()
	next, ok := srs.GetNextReview(items, progressDue, now)
	if !ok {
		return nil, nil
	}
	return &models.WSMessage{
		Type: models.WSReviewsDue,
		Payload: models.ReviewsDueEvent{
			DueCount: len(srs.DueItems(items, progressDue, now)),
			NextDue:  next.DueAt,
		},
	}, nil
}

func (s *ReviewService) Distribution(ctx context.Context, userID uuid.UUID) (*models.MasteryDistribution, error) {
	return s.progress.MasteryDistribution(ctx, userID, s.now())
}

func (s *ReviewService) Progress(ctx context.Context, key models.ItemKey) (*models.ReviewProgress, error) {
	p, err := s.progress.Get(ctx, key)
	if err != nil {
		return nil, notFoundOr(err, "No review progress for this item")
	}
	return p, nil
}

// ItemProgress lists every sub-item of one item, e.g. all questions of a quiz.
func (s *ReviewService) ItemProgress(ctx context.Context, userID uuid.UUID, itemType string, itemID uuid.UUID) ([]*models.ReviewProgress, error) {
	return s.progress.ListByItem(ctx, userID, itemType, itemID)
}

// SwitchAlgorithm retags one item. The state, including substates of other
// algorithms, is kept; the new algorithm seeds what it's missing on the next
// review.
func (s *ReviewService) SwitchAlgorithm(ctx context.Context, key models.ItemKey, algorithm string) (*models.ReviewProgress, error) {
	alg := srs.Algorithm(algorithm)
	if !alg.IsKnown() {
		return nil, &ValidationError{Fields: map[string]string{"algorithm": "must be fsrs, sm2 or leitner"}}
	}

	var p *models.ReviewProgress
	err := s.withItemLock(ctx, key, func() error {
		existing, err := s.progress.Get(ctx, key)
		if err != nil {
			return notFoundOr(err, "No review progress for this item")
		}
		if existing.Algorithm == alg {
			p = existing
			return nil
		}
		existing.Algorithm = alg
		if err := s.progress.Save(ctx, existing); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				return &ConflictError{Message: "Item was reviewed concurrently, please retry"}
			}
			return fmt.Errorf("failed to save progress: %w", err)
		}
		p = existing
		return nil
	})
	return p, err
}

// SwitchDeckAlgorithm changes the deck default and schedules a job that
// retags every card the user has already reviewed.
func (s *ReviewService) SwitchDeckAlgorithm(ctx context.Context, userID, deckID uuid.UUID, algorithm string) (*models.Job, error) {
	alg := srs.Algorithm(algorithm)
	if !alg.IsKnown() {
		return nil, &ValidationError{Fields: map[string]string{"algorithm": "must be fsrs, sm2 or leitner"}}
	}

	deck, err := s.cards.GetDeckByID(ctx, deckID)
	if err != nil {
		return nil, notFoundOr(err, "Deck not found")
	}
	if deck.UserID != userID {
		return nil, &ForbiddenError{Message: "Access denied"}
	}

	cfg, err := jobConfig(models.AlgorithmSwitchConfig{DeckID: deckID, Algorithm: string(alg)})
	if err != nil {
		return nil, err
	}
	if err := s.cards.SetDeckAlgorithm(ctx, deckID, alg); err != nil {
		return nil, fmt.Errorf("failed to update deck: %w", err)
	}

	job := &models.Job{
		UserID:      userID,
		Type:        models.JobTypeAlgorithmSwitch,
		ReferenceID: deckID,
		ConfigJSON:  cfg,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	if err := s.broker.Enqueue(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// ApplyDeckAlgorithm is the worker side of SwitchDeckAlgorithm.
func (s *ReviewService) ApplyDeckAlgorithm(ctx context.Context, job *models.Job) error {
	var cfg models.AlgorithmSwitchConfig
	if err := json.Unmarshal(job.ConfigJSON, &cfg); err != nil {
		return fmt.Errorf("invalid algorithm-switch config: %w", err)
	}

	cards, err := s.cards.GetCardsByDeck(ctx, cfg.DeckID)
	if err != nil {
		return fmt.Errorf("failed to list cards: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(deckSwitchConcurrency)
	for _, card := range cards {
		key := models.ItemKey{UserID: job.UserID, ItemType: models.ItemTypeFlashcard, ItemID: card.ID}
		g.Go(func() error {
			_, err := s.SwitchAlgorithm(gctx, key, cfg.Algorithm)
			var nf *NotFoundError
			if errors.As(err, &nf) {
				// never reviewed; picks up the deck default on first review
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

// notFoundOr maps repository.ErrNotFound onto a NotFoundError.
func notFoundOr(err error, msg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Message: msg}
	}
	return err
}
