package sms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/jwalitptl/obex-alerts/pkg/circuitbreaker"
	"github.com/jwalitptl/obex-alerts/pkg/logger"
)

const DefaultCountryCode = "234"

// Sender delivers a plain-text SMS to one number.
type Sender interface {
	Send(ctx context.Context, to, message string) error
}

type Config struct {
	BaseURL     string
	APIKey      string
	SenderID    string
	CountryCode string
	Timeout     time.Duration
	// Breaker settings; zero values use the breaker defaults.
	BreakerFailures int
	BreakerTimeout  time.Duration
}

type sendRequest struct {
	To      string `json:"to"`
	From    string `json:"from"`
	SMS     string `json:"sms"`
	Type    string `json:"type"`
	Channel string `json:"channel"`
	APIKey  string `json:"api_key"`
}

type sendResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	MessageID string `json:"message_id"`
}

// TermiiClient sends SMS through the Termii HTTP API.
type TermiiClient struct {
	http    *resty.Client
	config  Config
	breaker *circuitbreaker.CircuitBreaker
	logger  *logger.Logger
}

func NewTermiiClient(config Config, logger *logger.Logger) *TermiiClient {
	if config.CountryCode == "" {
		config.CountryCode = DefaultCountryCode
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(config.BaseURL, "/")).
		SetTimeout(config.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &TermiiClient{
		http:   client,
		config: config,
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "termii",
			MaxFailures: config.BreakerFailures,
			Timeout:     config.BreakerTimeout,
		}),
		logger: logger,
	}
}

func (c *TermiiClient) Send(ctx context.Context, to, message string) error {
	if strings.TrimSpace(to) == "" {
		return errors.New("no recipient phone number")
	}
	number := NormalizePhone(to, c.config.CountryCode)

	err := c.breaker.Execute(func() error {
		return c.send(ctx, number, message)
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		c.logger.Warn("SMS provider circuit open, skipping send", "to", number)
	}
	return err
}

func (c *TermiiClient) send(ctx context.Context, to, message string) error {
	var result sendResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(sendRequest{
			To:      to,
			From:    c.config.SenderID,
			SMS:     message,
			Type:    "plain",
			Channel: "generic",
			APIKey:  c.config.APIKey,
		}).
		SetResult(&result).
		Post("/api/sms/send")
	if err != nil {
		return fmt.Errorf("failed to send sms: %w", err)
	}

	// Only transport errors, 5xx and throttling count against the breaker.
	// A rejected recipient says nothing about the gateway's health.
	code := resp.StatusCode()
	switch {
	case code >= http.StatusInternalServerError || code == http.StatusTooManyRequests:
		return fmt.Errorf("sms provider returned status %d: %s", code, resp.String())
	case code != http.StatusOK:
		return circuitbreaker.Permanent(fmt.Errorf("sms provider returned status %d: %s", code, resp.String()))
	case result.Status != "success":
		return circuitbreaker.Permanent(fmt.Errorf("sms provider rejected message: %s", result.Message))
	}

	c.logger.Debug("SMS sent", "to", to, "message_id", result.MessageID)
	return nil
}

// NormalizePhone converts a local number to international form using
// countryCode. Numbers already carrying +countryCode are returned as is.
//
//	NormalizePhone("08012345678", "234") == "+2348012345678"
func NormalizePhone(number, countryCode string) string {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	number = strings.ReplaceAll(strings.TrimSpace(number), " ", "")

	prefix := "+" + countryCode
	if strings.HasPrefix(number, prefix) {
		return number
	}
	// Every leading zero is treated as a trunk prefix, so "00"-style
	// international numbers are not recognised and get countryCode too.
	return prefix + strings.TrimLeft(number, "0")
}
