package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/jwalitptl/obex-alerts/internal/model"
	"github.com/jwalitptl/obex-alerts/pkg/logger"
	"github.com/jwalitptl/obex-alerts/pkg/messaging"
)

// RedisSubscriber ingests alerts published on a Redis pub/sub channel.
type RedisSubscriber struct {
	broker   messaging.Broker
	channel  string
	ingester Ingester
	logger   *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRedisSubscriber(broker messaging.Broker, channel string, ingester Ingester, logger *logger.Logger) *RedisSubscriber {
	return &RedisSubscriber{
		broker:   broker,
		channel:  channel,
		ingester: ingester,
		logger:   logger,
	}
}

func (s *RedisSubscriber) Name() string { return "redis" }

func (s *RedisSubscriber) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	msgs, err := s.broker.Subscribe(ctx, s.channel)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to redis channel %s: %w", s.channel, err)
	}
	s.cancel = cancel

	s.logger.Info("Subscribed to Redis channel", "channel", s.channel)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for payload := range msgs {
			_ = process(ctx, s.ingester, s.logger, model.SourceRedis, payload)
		}
	}()
	return nil
}

// Stop cancels the subscription and waits for the in-flight message.
func (s *RedisSubscriber) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return nil
}
