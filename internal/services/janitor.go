package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const janitorPollInterval = 1 * time.Hour

// SideChatJanitor discards side chats that were left open and idle for
// longer than ttl.
type SideChatJanitor struct {
	sideChats *SideChatService
	ttl       time.Duration
	interval  time.Duration
	now       func() time.Time
	stopChan  chan struct{}
}

func NewSideChatJanitor(sideChats *SideChatService, ttl time.Duration) *SideChatJanitor {
	return &SideChatJanitor{
		sideChats: sideChats,
		ttl:       ttl,
		interval:  janitorPollInterval,
		now:       func() time.Time { return time.Now().UTC() },
		stopChan:  make(chan struct{}),
	}
}

func (j *SideChatJanitor) Start() {
	if j.sideChats == nil || j.ttl <= 0 {
		return
	}
	go j.loop()
	log.Info().Dur("ttl", j.ttl).Msg("side chat janitor started")
}

func (j *SideChatJanitor) Stop() {
	select {
	case <-j.stopChan:
		return
	default:
		close(j.stopChan)
	}
}

func (j *SideChatJanitor) loop() {
	// Run on startup as well as by interval.
	j.sweep(context.Background())

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stopChan:
			return
		case <-ticker.C:
			j.sweep(context.Background())
		}
	}
}

func (j *SideChatJanitor) sweep(ctx context.Context) int64 {
	cutoff := idleCutoff(j.now(), j.ttl)
	n, err := j.sideChats.DiscardIdle(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("side chat janitor: failed to discard idle side chats")
		return 0
	}
	if n > 0 {
		log.Info().Int64("count", n).Time("cutoff", cutoff).Msg("side chat janitor: discarded idle side chats")
	}
	return n
}

func idleCutoff(now time.Time, ttl time.Duration) time.Time {
	return now.Add(-ttl)
}
