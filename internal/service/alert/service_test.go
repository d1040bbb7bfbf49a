package alert

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/obex-alerts/internal/model"
	"github.com/jwalitptl/obex-alerts/internal/realtime"
	"github.com/jwalitptl/obex-alerts/internal/service/broadcast"
	apperrors "github.com/jwalitptl/obex-alerts/pkg/errors"
	"github.com/jwalitptl/obex-alerts/pkg/logger"
	"github.com/jwalitptl/obex-alerts/pkg/metrics"
	"github.com/jwalitptl/obex-alerts/pkg/validator"
	"github.com/jwalitptl/obex-alerts/pkg/worker"
)

// journal records the order in which pipeline stages ran.
type journal struct {
	mu     sync.Mutex
	events []string
}

func (j *journal) add(e string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, e)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.events...)
}

type fakeRepo struct {
	j      *journal
	err    error
	stored []*model.Alert
}

func (r *fakeRepo) Create(ctx context.Context, alert *model.Alert) error {
	r.j.add("persist")
	if r.err != nil {
		return r.err
	}
	alert.ID = uuid.New()
	r.stored = append(r.stored, alert)
	return nil
}

func (r *fakeRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Alert, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []*model.Alert
	for _, a := range r.stored {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

type journalBroadcaster struct {
	j    *journal
	next broadcast.Broadcaster
}

func (b *journalBroadcaster) Deliver(ctx context.Context, alert *model.Alert) bool {
	b.j.add("broadcast")
	if b.next == nil {
		return false
	}
	return b.next.Deliver(ctx, alert)
}

type fakeNotifier struct {
	j          *journal
	dispatched []*model.Alert
}

func (n *fakeNotifier) Dispatch(ctx context.Context, alert *model.Alert) {
	n.j.add("notify")
	n.dispatched = append(n.dispatched, alert)
}

// inlineTasks runs submitted tasks immediately so tests stay deterministic.
type inlineTasks struct {
	j    *journal
	full bool
}

func (t *inlineTasks) Submit(task worker.Task) bool {
	t.j.add("submit")
	if t.full {
		return false
	}
	task(context.Background())
	return true
}

type recordingChannel struct {
	mu   sync.Mutex
	sent [][]byte
}

func (c *recordingChannel) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *recordingChannel) Close() error { return nil }

type fixture struct {
	j        *journal
	repo     *fakeRepo
	notifier *fakeNotifier
	tasks    *inlineTasks
	registry *realtime.Registry
	svc      *Service
}

func newFixture() *fixture {
	j := &journal{}
	m := metrics.New("test")
	registry := realtime.NewRegistry(logger.Nop(), m)
	f := &fixture{
		j:        j,
		repo:     &fakeRepo{j: j},
		notifier: &fakeNotifier{j: j},
		tasks:    &inlineTasks{j: j},
		registry: registry,
	}
	bc := &journalBroadcaster{j: j, next: broadcast.NewService(registry, logger.Nop(), m)}
	f.svc = NewService(f.repo, bc, f.notifier, f.tasks, validator.New(), logger.Nop(), m)
	return f
}

func validRequest() *model.CreateAlertRequest {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	lat := 6.45
	return &model.CreateAlertRequest{
		DeviceID:    "d1",
		UserID:      uuid.New(),
		Timestamp:   &ts,
		AlertType:   model.AlertTypeWeaponDetection,
		LocationLat: &lat,
		Payload:     model.JSONMap{"confidence": 0.8},
	}
}

func TestIngest_HappyPath(t *testing.T) {
	f := newFixture()
	req := validRequest()

	alert, err := f.svc.Ingest(context.Background(), req, model.SourceHTTP)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, alert.ID)
	assert.Equal(t, req.DeviceID, alert.DeviceID)
	assert.Equal(t, req.UserID, alert.UserID)
	assert.Equal(t, *req.Timestamp, alert.Timestamp)
	assert.Equal(t, req.AlertType, alert.AlertType)
	assert.Equal(t, req.LocationLat, alert.LocationLat)
	assert.Nil(t, alert.LocationLon)
	assert.Equal(t, req.Payload, alert.Payload)

	assert.Equal(t, []string{"persist", "broadcast", "submit", "notify"}, f.j.list())
	require.Len(t, f.notifier.dispatched, 1)
	assert.Same(t, alert, f.notifier.dispatched[0])
}

func TestIngest_UniqueIDs(t *testing.T) {
	f := newFixture()
	seen := map[uuid.UUID]bool{}
	for i := 0; i < 20; i++ {
		alert, err := f.svc.Ingest(context.Background(), validRequest(), model.SourceMQTT)
		require.NoError(t, err)
		assert.False(t, seen[alert.ID])
		seen[alert.ID] = true
	}
}

func TestIngest_PersistenceFailureStopsPipeline(t *testing.T) {
	f := newFixture()
	f.repo.err = errors.New("connection reset")

	ch := &recordingChannel{}
	req := validRequest()
	f.registry.Connect(req.UserID.String(), ch)

	alert, err := f.svc.Ingest(context.Background(), req, model.SourceHTTP)
	assert.Nil(t, alert)
	assert.True(t, apperrors.IsPersistence(err))

	assert.Equal(t, []string{"persist"}, f.j.list())
	assert.Empty(t, ch.sent)
	assert.Empty(t, f.notifier.dispatched)
}

func TestIngest_ValidationFailureSkipsStore(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.CreateAlertRequest)
	}{
		{"unknown alert type", func(r *model.CreateAlertRequest) { r.AlertType = "alien_abduction" }},
		{"missing device", func(r *model.CreateAlertRequest) { r.DeviceID = "" }},
		{"missing user", func(r *model.CreateAlertRequest) { r.UserID = uuid.Nil }},
		{"missing timestamp", func(r *model.CreateAlertRequest) { r.Timestamp = nil }},
		{"latitude out of range", func(r *model.CreateAlertRequest) { v := 123.0; r.LocationLat = &v }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			req := validRequest()
			tt.mutate(req)

			alert, err := f.svc.Ingest(context.Background(), req, model.SourceHTTP)
			assert.Nil(t, alert)
			assert.True(t, apperrors.IsValidation(err), "got %v", err)
			assert.Empty(t, f.j.list())
		})
	}
}

func TestIngest_NilRequest(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Ingest(context.Background(), nil, model.SourceKafka)
	assert.True(t, apperrors.IsValidation(err))
}

func TestIngest_FullQueueStillSucceeds(t *testing.T) {
	f := newFixture()
	f.tasks.full = true

	alert, err := f.svc.Ingest(context.Background(), validRequest(), model.SourceRedis)
	require.NoError(t, err)
	assert.NotNil(t, alert)
	assert.Empty(t, f.notifier.dispatched)
}

func TestIngest_EndToEnd(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	ch := &recordingChannel{}
	f.registry.Connect(userID.String(), ch)

	ts, err := time.Parse(time.RFC3339, "2025-01-01T00:00:00Z")
	require.NoError(t, err)
	req := &model.CreateAlertRequest{
		DeviceID:  "d1",
		UserID:    userID,
		Timestamp: &ts,
		AlertType: model.AlertTypeWeaponDetection,
	}

	alert, err := f.svc.Ingest(context.Background(), req, model.SourceHTTP)
	require.NoError(t, err)

	assert.Len(t, f.repo.stored, 1)
	require.Len(t, ch.sent, 1)
	var envelope model.AlertEnvelope
	require.NoError(t, json.Unmarshal(ch.sent[0], &envelope))
	assert.Equal(t, model.EnvelopeNewAlert, envelope.Type)
	assert.Equal(t, alert.ID, envelope.Alert.ID)
	assert.Len(t, f.notifier.dispatched, 1)
}

func TestList(t *testing.T) {
	f := newFixture()
	req := validRequest()
	_, err := f.svc.Ingest(context.Background(), req, model.SourceHTTP)
	require.NoError(t, err)

	alerts, err := f.svc.List(context.Background(), req.UserID)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)

	f.repo.err = errors.New("db down")
	_, err = f.svc.List(context.Background(), req.UserID)
	assert.Error(t, err)
}
