package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"tutorly-backend/internal/models"
)

// Messenger delivers user-facing updates and background jobs.
type Messenger interface {
	PublishUpdate(ctx context.Context, userID uuid.UUID, msg models.WSMessage)
	Enqueue(ctx context.Context, job *models.Job) error
}

// Locker hands out short-lived exclusive locks.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// Broker is the Redis-backed Messenger and Locker.
type Broker struct {
	queue  *redis.Client
	pubsub *redis.Client
}

var (
	_ Messenger = (*Broker)(nil)
	_ Locker    = (*Broker)(nil)
)

func NewBroker(queue, pubsub *redis.Client) *Broker {
	return &Broker{queue: queue, pubsub: pubsub}
}

// UserChannel is the pub/sub channel the websocket hub relays for a user.
func UserChannel(userID uuid.UUID) string {
	return fmt.Sprintf("user_updates:%s", userID.String())
}

// QueueName maps a job type onto its Redis list.
func QueueName(jobType string) string {
	return "queue:" + jobType
}

// PublishUpdate sends a WebSocket update via Redis pub/sub
func (b *Broker) PublishUpdate(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("broker: failed to encode %s message: %v", msg.Type, err)
		return
	}
	if err := b.pubsub.Publish(ctx, UserChannel(userID), string(data)).Err(); err != nil {
		log.Printf("broker: failed to publish %s to user %s: %v", msg.Type, userID, err)
	}
}

func (b *Broker) Enqueue(ctx context.Context, job *models.Job) error {
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	if err := b.queue.LPush(ctx, QueueName(job.Type), string(jobBytes)).Err(); err != nil {
		return fmt.Errorf("failed to enqueue %s job: %w", job.Type, err)
	}
	return nil
}

func (b *Broker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := b.queue.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	return token, ok, nil
}

// releaseScript deletes the lock only if it still holds our token, so an
// expired lock re-acquired by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (b *Broker) ReleaseLock(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, b.queue, []string{key}, token).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}

// MarkOnce reports whether key was unset, setting it for ttl.
func (b *Broker) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return b.queue.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}
