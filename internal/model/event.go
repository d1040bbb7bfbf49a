package model

import "time"

// Envelope types written to real-time channels.
const (
	EnvelopeSystem   = "system"
	EnvelopePong     = "pong"
	EnvelopeNewAlert = "new_alert"
)

// AlertEnvelope is the real-time fanout message for a stored alert.
type AlertEnvelope struct {
	Type  string `json:"type"`
	Alert *Alert `json:"alert"`
}

// SystemEnvelope carries connection-level messages (welcome, pong).
type SystemEnvelope struct {
	Type      string     `json:"type"`
	Message   string     `json:"message"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}
