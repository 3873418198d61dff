package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"tutorly-backend/internal/models"
	"tutorly-backend/internal/repository"
)

const reminderPollInterval = 1 * time.Hour

type DueLister interface {
	UsersWithDueReviews(ctx context.Context, now time.Time) ([]repository.DueUser, error)
}

type ReminderBroker interface {
	PublishUpdate(ctx context.Context, userID uuid.UUID, msg models.WSMessage)
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// ReminderScheduler tells users over the websocket when reviews are due,
// at most once per interval each.
type ReminderScheduler struct {
	progress DueLister
	broker   ReminderBroker
	interval time.Duration
	poll     time.Duration
	stopChan chan struct{}
}

func NewReminderScheduler(progress DueLister, broker ReminderBroker, interval time.Duration) *ReminderScheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &ReminderScheduler{
		progress: progress,
		broker:   broker,
		interval: interval,
		poll:     min(reminderPollInterval, interval),
		stopChan: make(chan struct{}),
	}
}

func (s *ReminderScheduler) Start() {
	if s.progress == nil || s.broker == nil {
		return
	}

	go s.loop(s.sendDueReminders)

	log.Printf("Reminder scheduler started (interval %s)", s.interval)
}

func (s *ReminderScheduler) Stop() {
	select {
	case <-s.stopChan:
		return
	default:
		close(s.stopChan)
	}
}

func (s *ReminderScheduler) loop(runFn func(ctx context.Context, now time.Time)) {
	// Run on startup as well as by interval.
	runFn(context.Background(), time.Now().UTC())

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			runFn(context.Background(), time.Now().UTC())
		}
	}
}

func reminderKey(userID uuid.UUID) string {
	return fmt.Sprintf("reminder_sent:%s", userID)
}

func (s *ReminderScheduler) sendDueReminders(ctx context.Context, now time.Time) {
	users, err := s.progress.UsersWithDueReviews(ctx, now)
	if err != nil {
		log.Printf("review reminders: failed to list users: %v", err)
		return
	}

	sent := 0
	for _, u := range users {
		if u.DueCount <= 0 {
			continue
		}

		first, err := s.broker.MarkOnce(ctx, reminderKey(u.UserID), s.interval)
		if err != nil {
			log.Printf("review reminders: failed to mark user %s: %v", u.UserID, err)
			continue
		}
		if !first {
			continue
		}

		s.broker.PublishUpdate(ctx, u.UserID, models.WSMessage{
			Type: models.WSReviewsDue,
			Payload: models.ReviewsDueEvent{
				DueCount: u.DueCount,
				NextDue:  u.NextDue,
			},
		})
		sent++
	}

	if sent > 0 {
		log.Printf("review reminders: notified %d users", sent)
	}
}
