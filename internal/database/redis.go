package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	queueClientName  = "jaco-queue"
	pubsubClientName = "jaco-pubsub"
)

type RedisOptions struct {
	PoolSize    int
	PingTimeout time.Duration
}

func (o RedisOptions) withDefaults() RedisOptions {
	if o.PingTimeout <= 0 {
		o.PingTimeout = 5 * time.Second
	}
	return o
}

// RedisClients keeps the job queue and the pub/sub fan-out on separate
// connections so a blocking BLPOP never stalls event delivery.
type RedisClients struct {
	Queue  *redis.Client
	PubSub *redis.Client
}

// clientOptions parses redisURL for one named client.
func clientOptions(redisURL, name string, opts RedisOptions) (*redis.Options, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opt.ClientName = name
	if opts.PoolSize > 0 {
		opt.PoolSize = opts.PoolSize
	}
	return opt, nil
}

func NewRedisClients(ctx context.Context, redisURL string, opts RedisOptions) (*RedisClients, error) {
	opts = opts.withDefaults()

	queueOpt, err := clientOptions(redisURL, queueClientName, opts)
	if err != nil {
		return nil, err
	}
	pubsubOpt, err := clientOptions(redisURL, pubsubClientName, opts)
	if err != nil {
		return nil, err
	}

	clients := &RedisClients{
		Queue:  redis.NewClient(queueOpt),
		PubSub: redis.NewClient(pubsubOpt),
	}

	ctx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range []*redis.Client{clients.Queue, clients.PubSub} {
		g.Go(func() error {
			if err := c.Ping(gctx).Err(); err != nil {
				return fmt.Errorf("failed to ping Redis (%s): %w", c.Options().ClientName, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		clients.Close()
		return nil, err
	}

	log.Info().
		Str("addr", queueOpt.Addr).
		Int("db", queueOpt.DB).
		Strs("clients", []string{queueClientName, pubsubClientName}).
		Msg("redis clients ready")
	return clients, nil
}

func (r *RedisClients) Close() {
	for _, c := range []*redis.Client{r.Queue, r.PubSub} {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Str("client", c.Options().ClientName).Msg("redis close failed")
		}
	}
}
