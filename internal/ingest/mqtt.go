package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/jwalitptl/obex-alerts/internal/model"
	"github.com/jwalitptl/obex-alerts/pkg/logger"
)

const (
	DefaultMQTTTopic = "obex/alerts"
	mqttTimeout      = 10 * time.Second
)

type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
}

// MQTTSubscriber ingests alerts published by edge devices over MQTT.
type MQTTSubscriber struct {
	config   MQTTConfig
	ingester Ingester
	logger   *logger.Logger

	mu     sync.Mutex
	client mqtt.Client
	ctx    context.Context
}

func NewMQTTSubscriber(config MQTTConfig, ingester Ingester, logger *logger.Logger) *MQTTSubscriber {
	if config.Topic == "" {
		config.Topic = DefaultMQTTTopic
	}
	return &MQTTSubscriber{
		config:   config,
		ingester: ingester,
		logger:   logger,
	}
}

func (s *MQTTSubscriber) Name() string { return "mqtt" }

// Start connects and subscribes. The subscription is renewed from the
// connect handler, so it survives automatic reconnects.
func (s *MQTTSubscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.config.Broker)
	opts.SetClientID(s.config.ClientID)
	if s.config.Username != "" {
		opts.SetUsername(s.config.Username)
	}
	if s.config.Password != "" {
		opts.SetPassword(s.config.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(mqttTimeout)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		token := c.Subscribe(s.config.Topic, s.config.QoS, s.onMessage)
		if token.WaitTimeout(mqttTimeout) && token.Error() != nil {
			s.logger.Error(token.Error(), "Failed to subscribe to MQTT topic", "topic", s.config.Topic)
			return
		}
		s.logger.Info("Subscribed to MQTT topic", "topic", s.config.Topic, "qos", s.config.QoS)
	})
	opts.SetConnectionLostHandler(func(c mqtt.Client, err error) {
		s.logger.Warn("MQTT connection lost", "error", err.Error())
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	s.mu.Lock()
	s.client = client
	s.mu.Unlock()
	return nil
}

func (s *MQTTSubscriber) onMessage(_ mqtt.Client, msg mqtt.Message) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	_ = process(ctx, s.ingester, s.logger, model.SourceMQTT, msg.Payload())
}

func (s *MQTTSubscriber) Stop() error {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.mu.Unlock()

	if client == nil {
		return nil
	}
	if token := client.Unsubscribe(s.config.Topic); token.WaitTimeout(mqttTimeout) && token.Error() != nil {
		s.logger.Warn("Failed to unsubscribe from MQTT topic", "error", token.Error().Error())
	}
	client.Disconnect(250)
	return nil
}
