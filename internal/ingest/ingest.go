package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/jwalitptl/obex-alerts/internal/model"
	"github.com/jwalitptl/obex-alerts/pkg/errors"
	"github.com/jwalitptl/obex-alerts/pkg/logger"
)

// Ingester is the alert pipeline entry point the bus consumers feed.
type Ingester interface {
	Ingest(ctx context.Context, req *model.CreateAlertRequest, source model.Source) (*model.Alert, error)
}

// Subscriber is a long-running message bus consumer.
type Subscriber interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}

// DecodeAlert parses a bus payload. It uses the same JSON body as the
// HTTP ingestion endpoint.
func DecodeAlert(data []byte) (*model.CreateAlertRequest, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.Validation("empty alert payload", nil)
	}

	var req model.CreateAlertRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, errors.Validation(fmt.Sprintf("malformed alert payload: %v", err), err)
	}
	return &req, nil
}

// process decodes and ingests one bus message. Every failure is logged
// here; the returned error only lets callers count it.
func process(ctx context.Context, ingester Ingester, log *logger.Logger, source model.Source, payload []byte) error {
	req, err := DecodeAlert(payload)
	if err != nil {
		log.Warn("Discarding undecodable alert", "source", string(source), "error", err.Error())
		return err
	}

	alert, err := ingester.Ingest(ctx, req, source)
	if err != nil {
		if errors.IsValidation(err) {
			log.Warn("Discarding invalid alert", "source", string(source), "error", err.Error())
		} else {
			log.Error(err, "Failed to ingest alert", "source", string(source))
		}
		return err
	}

	log.Debug("Alert ingested from bus", "source", string(source), "alert_id", alert.ID.String())
	return nil
}
