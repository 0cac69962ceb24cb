// Package worker drains the Redis job queues and runs background topic splits.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"jaco-backend/internal/metrics"
	"jaco-backend/internal/models"
	"jaco-backend/internal/services"
)

const (
	popTimeout     = 30 * time.Second
	lockTTL        = 10 * time.Minute
	defaultRetries = 3
	writeTimeout   = 5 * time.Second
)

// SplitExecutor performs a queued topic split.
type SplitExecutor interface {
	ExecuteSplit(ctx context.Context, job *models.Job) (*models.SplitResult, error)
}

// JobUpdater records job progress.
type JobUpdater interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateError(ctx context.Context, id uuid.UUID, errMsg string, retryCount int) error
}

type Pool struct {
	redis       *redis.Client
	splitter    SplitExecutor
	jobs        JobUpdater
	queue       services.JobQueue
	publisher   services.Publisher
	workerCount int
	jobTimeout  time.Duration

	// schedule runs a requeue after a backoff; swapped out in tests.
	schedule func(d time.Duration, f func())

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewPool(
	redisClient *redis.Client,
	splitter SplitExecutor,
	jobs JobUpdater,
	queue services.JobQueue,
	publisher services.Publisher,
	workerCount int,
	jobTimeout time.Duration,
) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &Pool{
		redis:       redisClient,
		splitter:    splitter,
		jobs:        jobs,
		queue:       queue,
		publisher:   publisher,
		workerCount: workerCount,
		jobTimeout:  jobTimeout,
		schedule:    func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	queues := []string{services.QueueName(models.JobTypeTopicSplit)}

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i, queues)
	}

	log.Info().Int("workers", p.workerCount).Strs("queues", queues).Msg("worker pool started")
}

// Stop signals the workers and waits for in-flight jobs. A worker blocked in
// BLPOP notices the signal once the pop times out.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stopChan) })
	p.wg.Wait()
}

func (p *Pool) worker(id int, queues []string) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			log.Debug().Int("worker", id).Msg("worker shutting down")
			return
		default:
		}

		ctx := context.Background()

		result, err := p.redis.BLPop(ctx, popTimeout, queues...).Result()
		if err != nil {
			if err != redis.Nil {
				log.Warn().Err(err).Int("worker", id).Msg("queue pop failed")
				time.Sleep(time.Second)
			}
			continue
		}
		if len(result) < 2 {
			continue
		}

		job, err := decodeJob(result[1])
		if err != nil {
			log.Error().Err(err).Int("worker", id).Msg("dropping malformed job")
			continue
		}

		lockKey := jobLockKey(job.ID)
		locked, err := p.redis.SetNX(ctx, lockKey, "1", lockTTL).Result()
		if err != nil || !locked {
			continue // another worker has this job
		}

		log.Info().Int("worker", id).Str("job_id", job.ID.String()).Str("type", job.Type).Msg("processing job")
		p.process(ctx, job)

		p.redis.Del(ctx, lockKey)
	}
}

// process runs one job and records its outcome. Only the execution is bound
// by the job timeout; status writes and events get their own deadline so a
// timed-out job is still marked.
func (p *Pool) process(ctx context.Context, job *models.Job) {
	p.setStatus(ctx, job, models.JobStatusProcessing)
	p.publish(ctx, job.UserID, models.WSMessage{
		Type: models.WSStatusUpdate,
		Payload: models.StatusUpdate{
			JobID:    job.ID,
			Step:     1,
			StepName: stepName(job.Type),
		},
	})

	if err := p.execute(ctx, job); err != nil {
		p.handleFailure(ctx, job, err)
		return
	}
	p.handleSuccess(ctx, job)
}

func (p *Pool) execute(ctx context.Context, job *models.Job) error {
	if p.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.jobTimeout)
		defer cancel()
	}

	switch job.Type {
	case models.JobTypeTopicSplit:
		_, err := p.splitter.ExecuteSplit(ctx, job)
		return err
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (p *Pool) handleSuccess(ctx context.Context, job *models.Job) {
	p.setStatus(ctx, job, models.JobStatusCompleted)
	metrics.JobsProcessed.WithLabelValues(job.Type, models.JobStatusCompleted).Inc()
	log.Info().Str("job_id", job.ID.String()).Msg("job completed")
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	job.RetryCount++
	errMsg := err.Error()

	maxRetries := job.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultRetries
	}

	if job.RetryCount < maxRetries {
		log.Warn().Err(err).Str("job_id", job.ID.String()).Int("attempt", job.RetryCount).Msg("job failed, retrying")
		p.setStatus(ctx, job, models.JobStatusPending)
		p.setError(ctx, job, errMsg)

		retry := *job
		p.schedule(backoff(job.RetryCount), func() {
			if err := p.queue.Enqueue(context.Background(), &retry); err != nil {
				log.Error().Err(err).Str("job_id", retry.ID.String()).Msg("failed to requeue job")
			}
		})
		return
	}

	log.Error().Err(err).Str("job_id", job.ID.String()).Msg("job failed permanently")
	p.setStatus(ctx, job, models.JobStatusFailed)
	p.setError(ctx, job, errMsg)
	metrics.JobsProcessed.WithLabelValues(job.Type, models.JobStatusFailed).Inc()

	p.publish(ctx, job.UserID, models.WSMessage{
		Type: failureEvent(job.Type),
		Payload: models.ErrorEvent{
			JobID:        job.ID,
			ErrorCode:    "JOB_FAILED",
			ErrorMessage: errMsg,
		},
	})
}

// writeContext detaches from the caller's cancellation and applies writeTimeout.
func writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
}

func (p *Pool) setStatus(ctx context.Context, job *models.Job, status string) {
	ctx, cancel := writeContext(ctx)
	defer cancel()
	if err := p.jobs.UpdateStatus(ctx, job.ID, status); err != nil {
		log.Error().Err(err).Str("job_id", job.ID.String()).Str("status", status).Msg("failed to update job status")
	}
}

func (p *Pool) setError(ctx context.Context, job *models.Job, errMsg string) {
	ctx, cancel := writeContext(ctx)
	defer cancel()
	if err := p.jobs.UpdateError(ctx, job.ID, errMsg, job.RetryCount); err != nil {
		log.Error().Err(err).Str("job_id", job.ID.String()).Msg("failed to record job error")
	}
}

func (p *Pool) publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	if p.publisher == nil {
		return
	}
	ctx, cancel := writeContext(ctx)
	defer cancel()
	p.publisher.Publish(ctx, userID, msg)
}

func decodeJob(raw string) (*models.Job, error) {
	var job models.Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("failed to parse job: %w", err)
	}
	if job.ID == uuid.Nil {
		return nil, fmt.Errorf("job has no id")
	}
	return &job, nil
}

func jobLockKey(id uuid.UUID) string {
	return fmt.Sprintf("job_lock:%s", id.String())
}

// backoff doubles per attempt: 2s, 4s, 8s...
func backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(1<<uint(attempt)) * time.Second
}

func stepName(jobType string) string {
	switch jobType {
	case models.JobTypeTopicSplit:
		return "Splitting conversation"
	default:
		return "Processing"
	}
}

func failureEvent(jobType string) string {
	switch jobType {
	case models.JobTypeTopicSplit:
		return models.WSTopicSplitFailed
	default:
		return "error"
	}
}
