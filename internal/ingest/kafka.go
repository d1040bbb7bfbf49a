package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jwalitptl/obex-alerts/internal/model"
	"github.com/jwalitptl/obex-alerts/pkg/logger"
)

const fetchBackoff = time.Second

type KafkaConfig struct {
	Brokers string
	Topic   string
	GroupID string
}

type kafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer ingests alerts from a Kafka topic. Each offset is
// committed after its message is handled, whether or not ingestion
// succeeded: rejected alerts are not redelivered.
type KafkaConsumer struct {
	reader   kafkaReader
	topic    string
	ingester Ingester
	logger   *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewKafkaConsumer(config KafkaConfig, ingester Ingester, logger *logger.Logger) (*KafkaConsumer, error) {
	if config.Brokers == "" {
		return nil, errors.New("kafka brokers cannot be empty")
	}
	if config.Topic == "" {
		return nil, errors.New("kafka topic cannot be empty")
	}

	brokerList := strings.Split(config.Brokers, ",")
	for i := range brokerList {
		brokerList[i] = strings.TrimSpace(brokerList[i])
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokerList,
		Topic:       config.Topic,
		GroupID:     config.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
		StartOffset: kafka.FirstOffset,
	})

	return newKafkaConsumer(reader, config.Topic, ingester, logger), nil
}

func newKafkaConsumer(reader kafkaReader, topic string, ingester Ingester, logger *logger.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		reader:   reader,
		topic:    topic,
		ingester: ingester,
		logger:   logger,
	}
}

func (c *KafkaConsumer) Name() string { return "kafka" }

func (c *KafkaConsumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.logger.Info("Consuming Kafka topic", "topic", c.topic)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx)
	}()
	return nil
}

func (c *KafkaConsumer) run(ctx context.Context) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				return
			}
			c.logger.Error(err, "Failed to fetch Kafka message", "topic", c.topic)
			select {
			case <-ctx.Done():
				return
			case <-time.After(fetchBackoff):
			}
			continue
		}

		_ = process(ctx, c.ingester, c.logger, model.SourceKafka, msg.Value)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error(err, "Failed to commit Kafka offset",
				"topic", c.topic,
				"partition", msg.Partition,
				"offset", msg.Offset)
		}
	}
}

func (c *KafkaConsumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("failed to close kafka reader: %w", err)
	}
	return nil
}
