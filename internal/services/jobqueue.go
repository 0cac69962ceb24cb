package services

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"jaco-backend/internal/models"
)

// JobQueue hands persisted jobs to the worker pool.
type JobQueue interface {
	Enqueue(ctx context.Context, job *models.Job) error
}

// QueueName is the Redis list a job type is pushed onto.
func QueueName(jobType string) string {
	return "queue:" + jobType
}

type RedisJobQueue struct {
	redis *redis.Client
}

func NewRedisJobQueue(redisClient *redis.Client) *RedisJobQueue {
	return &RedisJobQueue{redis: redisClient}
}

func (q *RedisJobQueue) Enqueue(ctx context.Context, job *models.Job) error {
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return errors.Wrap(err, "encode job")
	}
	if err := q.redis.LPush(ctx, QueueName(job.Type), string(jobBytes)).Err(); err != nil {
		return errors.Wrapf(err, "enqueue job %s", job.ID)
	}
	return nil
}
