package app

import (
	"fmt"

	"github.com/yungbote/bonusfinder-backend/internal/events"
	"github.com/yungbote/bonusfinder-backend/internal/jobs/queue"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
	"github.com/yungbote/bonusfinder-backend/internal/services"
)

type Clients struct {
	Publisher events.Publisher
	// HeavyQueue is nil when REDIS_ADDR is unset; heavy jobs then stay queued
	// in the database until a worker with a queue picks them up.
	HeavyQueue *queue.RedisQueue
}

func wireClients(log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	publisher := events.NewPublisher(log)

	heavy, err := queue.NewRedisQueue(queue.ConfigFromEnv(log), log)
	if err != nil {
		_ = publisher.Close()
		return Clients{}, fmt.Errorf("init heavy job queue: %w", err)
	}
	if heavy == nil {
		log.Warn("REDIS_ADDR not set; heavy jobs will not be dispatched")
	}

	return Clients{Publisher: publisher, HeavyQueue: heavy}, nil
}

// Dispatcher returns the heavy queue as a job dispatcher, or nil.
func (c Clients) Dispatcher() services.JobDispatcher {
	if c.HeavyQueue == nil {
		return nil
	}
	return c.HeavyQueue
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.HeavyQueue != nil {
		_ = c.HeavyQueue.Close()
	}
	if c.Publisher != nil {
		_ = c.Publisher.Close()
	}
}
