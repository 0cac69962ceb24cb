package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"jaco-backend/internal/models"
)

type stubSplitter struct {
	err   error
	calls int
}

func (s *stubSplitter) ExecuteSplit(_ context.Context, job *models.Job) (*models.SplitResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &models.SplitResult{NewChatID: uuid.New(), NewChatTitle: "Bread"}, nil
}

// blockingSplitter holds the split until its context is done.
type blockingSplitter struct{}

func (blockingSplitter) ExecuteSplit(ctx context.Context, _ *models.Job) (*models.SplitResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type recordingJobs struct {
	mu       sync.Mutex
	statuses []string
	errMsg   string
	retries  int
	ctxErrs  []error
}

func (r *recordingJobs) UpdateStatus(ctx context.Context, _ uuid.UUID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
	return ctx.Err()
}

func (r *recordingJobs) UpdateError(ctx context.Context, _ uuid.UUID, errMsg string, retryCount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errMsg = errMsg
	r.retries = retryCount
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
	return ctx.Err()
}

type recordingQueue struct {
	jobs []*models.Job
}

func (q *recordingQueue) Enqueue(_ context.Context, job *models.Job) error {
	q.jobs = append(q.jobs, job)
	return nil
}

type recordingPublisher struct {
	msgs    []models.WSMessage
	ctxErrs []error
}

func (p *recordingPublisher) Publish(ctx context.Context, _ uuid.UUID, msg models.WSMessage) {
	p.msgs = append(p.msgs, msg)
	p.ctxErrs = append(p.ctxErrs, ctx.Err())
}

type scheduled struct {
	delay time.Duration
	fn    func()
}

func newTestPool(splitter SplitExecutor) (*Pool, *recordingJobs, *recordingQueue, *recordingPublisher, *[]scheduled) {
	jobs := &recordingJobs{}
	queue := &recordingQueue{}
	pub := &recordingPublisher{}
	p := NewPool(nil, splitter, jobs, queue, pub, 2, time.Minute)
	var pending []scheduled
	p.schedule = func(d time.Duration, f func()) { pending = append(pending, scheduled{d, f}) }
	return p, jobs, queue, pub, &pending
}

func newSplitJob() *models.Job {
	return &models.Job{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Type:        models.JobTypeTopicSplit,
		ReferenceID: uuid.New(),
		MaxRetries:  3,
	}
}

func TestProcess_Success(t *testing.T) {
	splitter := &stubSplitter{}
	p, jobs, queue, pub, pending := newTestPool(splitter)

	p.process(context.Background(), newSplitJob())

	require.Equal(t, 1, splitter.calls)
	require.Equal(t, []string{models.JobStatusProcessing, models.JobStatusCompleted}, jobs.statuses)
	require.Empty(t, queue.jobs)
	require.Empty(t, *pending)
	require.Len(t, pub.msgs, 1)
	require.Equal(t, models.WSStatusUpdate, pub.msgs[0].Type)
}

func TestProcess_FailureSchedulesRetry(t *testing.T) {
	p, jobs, queue, pub, pending := newTestPool(&stubSplitter{err: errors.New("model down")})
	job := newSplitJob()

	p.process(context.Background(), job)

	require.Equal(t, []string{models.JobStatusProcessing, models.JobStatusPending}, jobs.statuses)
	require.Equal(t, "model down", jobs.errMsg)
	require.Equal(t, 1, jobs.retries)
	require.Len(t, *pending, 1)
	require.Equal(t, 2*time.Second, (*pending)[0].delay)
	require.Len(t, pub.msgs, 1, "no failure event before retries run out")

	(*pending)[0].fn()
	require.Len(t, queue.jobs, 1)
	require.Equal(t, job.ID, queue.jobs[0].ID)
	require.Equal(t, 1, queue.jobs[0].RetryCount)
}

func TestProcess_FinalFailurePublishes(t *testing.T) {
	p, jobs, _, pub, pending := newTestPool(&stubSplitter{err: errors.New("model down")})
	job := newSplitJob()
	job.RetryCount = 2

	p.process(context.Background(), job)

	require.Equal(t, models.JobStatusFailed, jobs.statuses[len(jobs.statuses)-1])
	require.Equal(t, 3, jobs.retries)
	require.Empty(t, *pending)
	require.Len(t, pub.msgs, 2)
	require.Equal(t, models.WSTopicSplitFailed, pub.msgs[1].Type)
	ev, ok := pub.msgs[1].Payload.(models.ErrorEvent)
	require.True(t, ok)
	require.Equal(t, job.ID, ev.JobID)
	require.Equal(t, "JOB_FAILED", ev.ErrorCode)
}

func TestProcess_TimedOutJobIsStillMarkedFailed(t *testing.T) {
	p, jobs, _, pub, pending := newTestPool(blockingSplitter{})
	p.jobTimeout = 50 * time.Millisecond
	job := newSplitJob()
	job.RetryCount = 2

	start := time.Now()
	p.process(context.Background(), job)
	require.Less(t, time.Since(start), 2*time.Second)

	require.Equal(t, []string{models.JobStatusProcessing, models.JobStatusFailed}, jobs.statuses)
	require.Contains(t, jobs.errMsg, context.DeadlineExceeded.Error())
	require.Equal(t, 3, jobs.retries)
	for _, err := range jobs.ctxErrs {
		require.NoError(t, err)
	}

	require.Empty(t, *pending)
	require.Len(t, pub.msgs, 2)
	require.Equal(t, models.WSTopicSplitFailed, pub.msgs[1].Type)
	for _, err := range pub.ctxErrs {
		require.NoError(t, err)
	}
}

func TestProcess_CancelledParentStillRecordsOutcome(t *testing.T) {
	p, jobs, _, _, pending := newTestPool(blockingSplitter{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p.process(ctx, newSplitJob())

	require.Equal(t, []string{models.JobStatusProcessing, models.JobStatusPending}, jobs.statuses)
	for _, err := range jobs.ctxErrs {
		require.NoError(t, err)
	}
	require.Len(t, *pending, 1)
}

func TestProcess_UnknownTypeFails(t *testing.T) {
	splitter := &stubSplitter{}
	p, jobs, _, _, _ := newTestPool(splitter)
	job := newSplitJob()
	job.Type = "mystery"

	p.process(context.Background(), job)

	require.Zero(t, splitter.calls)
	require.Contains(t, jobs.errMsg, "unknown job type")
}

func TestDecodeJob(t *testing.T) {
	id := uuid.New()
	job, err := decodeJob(`{"id":"` + id.String() + `","type":"topic-split"}`)
	require.NoError(t, err)
	require.Equal(t, id, job.ID)

	_, err = decodeJob("not json")
	require.Error(t, err)

	_, err = decodeJob(`{"type":"topic-split"}`)
	require.Error(t, err)
}

func TestBackoff(t *testing.T) {
	require.Equal(t, 2*time.Second, backoff(1))
	require.Equal(t, 4*time.Second, backoff(2))
	require.Equal(t, 8*time.Second, backoff(3))
	require.Equal(t, 2*time.Second, backoff(0))
}

func TestJobLockKey(t *testing.T) {
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	require.Equal(t, "job_lock:11111111-2222-3333-4444-555555555555", jobLockKey(id))
}

func TestStop_Idempotent(t *testing.T) {
	p, _, _, _, _ := newTestPool(&stubSplitter{})
	p.Stop()
	p.Stop()
}
