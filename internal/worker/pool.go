package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"tutorly-backend/internal/models"
	"tutorly-backend/internal/services"
)

const (
	maxAttempts    = 3
	jobLockTTL     = 10 * time.Minute
	popTimeout     = 30 * time.Second
	errCodeFailed  = "JOB_FAILED"
	errCodeUnknown = "UNKNOWN_JOB_TYPE"
)

// Handler processes one job. A returned error triggers a retry.
type Handler func(ctx context.Context, job *models.Job) error

type jobStatusStore interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateError(ctx context.Context, id uuid.UUID, errMsg string, retryCount int) error
}

type jobBroker interface {
	services.Messenger
	services.Locker
}

// Recorder observes job outcomes.
type Recorder interface {
	ObserveJob(jobType, status string)
}

type Pool struct {
	redis       *redis.Client
	jobRepo     jobStatusStore
	broker      jobBroker
	handlers    map[string]Handler
	workerCount int
	stopChan    chan struct{}
	recorder    Recorder

	// after schedules a retry; swapped out in tests.
	after func(d time.Duration, f func())
}

func NewPool(redisClient *redis.Client, jobRepo jobStatusStore, broker jobBroker, workerCount int) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &Pool{
		redis:       redisClient,
		jobRepo:     jobRepo,
		broker:      broker,
		handlers:    map[string]Handler{},
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
		after: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// Handle registers h for jobType. Must be called before Start.
func (p *Pool) Handle(jobType string, h Handler) {
	p.handlers[jobType] = h
}

func (p *Pool) SetRecorder(r Recorder) {
	p.recorder = r
}

func (p *Pool) observe(job *models.Job, status string) {
	if p.recorder != nil {
		p.recorder.ObserveJob(job.Type, status)
	}
}

func (p *Pool) queues() []string {
	queues := make([]string, 0, len(p.handlers))
	for jobType := range p.handlers {
		queues = append(queues, services.QueueName(jobType))
	}
	sort.Strings(queues)
	return queues
}

func (p *Pool) Start() {
	queues := p.queues()

	for i := 0; i < p.workerCount; i++ {
		go p.worker(i, queues)
	}

	log.Printf("Started %d worker goroutines on %v", p.workerCount, queues)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int, queues []string) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with 30s timeout
		result, err := p.redis.BLPop(ctx, popTimeout, queues...).Result()
		if err != nil {
			continue // Timeout or error, retry
		}

		if len(result) < 2 {
			continue
		}

		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Worker %d: failed to parse job: %v", id, err)
			continue
		}

		p.runJob(ctx, id, &job)
	}
}

// runJob executes one popped job under its lock.
func (p *Pool) runJob(ctx context.Context, workerID int, job *models.Job) {
	lockKey := fmt.Sprintf("job_lock:%s", job.ID.String())
	token, locked, err := p.broker.AcquireLock(ctx, lockKey, jobLockTTL)
	if err != nil || !locked {
		return // Another worker has this job
	}
	defer func() {
		if err := p.broker.ReleaseLock(ctx, lockKey, token); err != nil {
			log.Printf("Worker %d: %v", workerID, err)
		}
	}()

	log.Printf("Worker %d: processing job %s (type: %s)", workerID, job.ID, job.Type)

	p.jobRepo.UpdateStatus(ctx, job.ID, models.JobStatusProcessing)

	handler, ok := p.handlers[job.Type]
	if !ok {
		p.fail(ctx, job, errCodeUnknown, fmt.Sprintf("unknown job type: %s", job.Type))
		return
	}

	if err := handler(ctx, job); err != nil {
		p.handleFailure(ctx, job, err)
		return
	}
	p.handleSuccess(ctx, job)
}

func (p *Pool) handleSuccess(ctx context.Context, job *models.Job) {
	p.jobRepo.UpdateStatus(ctx, job.ID, models.JobStatusCompleted)
	p.observe(job, models.JobStatusCompleted)

	// elo updates are chatty and already announce themselves
	if job.Type != models.JobTypeEloUpdate {
		p.broker.PublishUpdate(ctx, job.UserID, models.WSMessage{
			Type: models.WSJobCompleted,
			Payload: models.CompletedEvent{
				JobID:      job.ID,
				ResultID:   job.ReferenceID,
				ResultType: resultType(job.Type),
			},
		})
	}

	log.Printf("Job %s completed successfully", job.ID)
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	job.RetryCount++
	errMsg := err.Error()

	if job.RetryCount >= maxAttempts {
		p.fail(ctx, job, errCodeFailed, errMsg)
		return
	}

	log.Printf("Job %s failed (attempt %d): %s, retrying", job.ID, job.RetryCount, errMsg)
	p.jobRepo.UpdateStatus(ctx, job.ID, models.JobStatusPending)
	p.jobRepo.UpdateError(ctx, job.ID, errMsg, job.RetryCount)
	p.observe(job, "retried")

	retry := *job
	p.after(backoff(job.RetryCount), func() {
		if err := p.broker.Enqueue(context.Background(), &retry); err != nil {
			log.Printf("Job %s: requeue failed: %v", retry.ID, err)
		}
	})
}

func (p *Pool) fail(ctx context.Context, job *models.Job, code, errMsg string) {
	log.Printf("Job %s failed permanently: %s", job.ID, errMsg)
	p.jobRepo.UpdateStatus(ctx, job.ID, models.JobStatusFailed)
	p.observe(job, models.JobStatusFailed)
	p.jobRepo.UpdateError(ctx, job.ID, errMsg, job.RetryCount)

	p.broker.PublishUpdate(ctx, job.UserID, models.WSMessage{
		Type: models.WSJobFailed,
		Payload: models.ErrorEvent{
			JobID:        job.ID,
			ErrorCode:    code,
			ErrorMessage: errMsg,
		},
	})
}

// backoff is 2s, 4s, ... for the nth retry.
func backoff(retry int) time.Duration {
	return time.Duration(1<<uint(retry)) * time.Second
}

func resultType(jobType string) string {
	switch jobType {
	case models.JobTypeAlgorithmSwitch:
		return "deck"
	case models.JobTypeEloUpdate:
		return "competence"
	default:
		return jobType
	}
}
