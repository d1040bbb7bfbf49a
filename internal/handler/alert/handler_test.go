package alert

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/obex-alerts/internal/middleware"
	"github.com/jwalitptl/obex-alerts/internal/model"
	apperrors "github.com/jwalitptl/obex-alerts/pkg/errors"
)

const testSecret = "secret"

type fakeService struct {
	ingestErr error
	listErr   error
	got       *model.CreateAlertRequest
	source    model.Source
	alerts    []*model.Alert
	listedFor uuid.UUID
}

func (f *fakeService) Ingest(ctx context.Context, req *model.CreateAlertRequest, source model.Source) (*model.Alert, error) {
	f.got, f.source = req, source
	if f.ingestErr != nil {
		return nil, f.ingestErr
	}
	alert := req.ToAlert()
	alert.ID = uuid.New()
	return alert, nil
}

func (f *fakeService) List(ctx context.Context, userID uuid.UUID) ([]*model.Alert, error) {
	f.listedFor = userID
	return f.alerts, f.listErr
}

func setup(svc *fakeService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(svc, middleware.NewAuthMiddleware(testSecret, ""), nil)
	h.RegisterRoutes(r.Group("/api"))
	return r
}

const validBody = `{
	"device_id": "d1",
	"user_id": "6a1f6c0e-3d7b-4b6e-9c55-2a9d1d0f4a11",
	"timestamp": "2025-01-01T00:00:00Z",
	"alert_type": "weapon_detection",
	"location_lat": 6.5,
	"payload": {"confidence": 0.91}
}`

func post(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateAlert_Created(t *testing.T) {
	for _, path := range []string{"/api/alerts/create", "/api/alerts"} {
		t.Run(path, func(t *testing.T) {
			svc := &fakeService{}
			w := post(setup(svc), path, validBody)
			require.Equal(t, http.StatusCreated, w.Code)

			var resp struct {
				Status string      `json:"status"`
				Data   model.Alert `json:"data"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "success", resp.Status)
			assert.NotEqual(t, uuid.Nil, resp.Data.ID)
			assert.Equal(t, "d1", resp.Data.DeviceID)
			assert.Equal(t, model.AlertTypeWeaponDetection, resp.Data.AlertType)
			assert.True(t, resp.Data.Timestamp.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
			assert.Equal(t, 0.91, resp.Data.Payload["confidence"])

			assert.Equal(t, model.SourceHTTP, svc.source)
		})
	}
}

func TestCreateAlert_BadRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"device_id":`},
		{"unknown alert type", strings.Replace(validBody, "weapon_detection", "ufo_sighting", 1)},
		{"missing device", strings.Replace(validBody, `"device_id": "d1",`, "", 1)},
		{"bad timestamp", strings.Replace(validBody, "2025-01-01T00:00:00Z", "yesterday", 1)},
		{"bad user id", strings.Replace(validBody, "6a1f6c0e-3d7b-4b6e-9c55-2a9d1d0f4a11", "u1", 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			w := post(setup(svc), "/api/alerts/create", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Nil(t, svc.got, "service must not be called")
		})
	}
}

func TestCreateAlert_ServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", apperrors.Validation("LocationLat failed latitude validation", nil), http.StatusBadRequest},
		{"persistence", apperrors.Persistence(errors.New("pq: connection refused")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(setup(&fakeService{ingestErr: tt.err}), "/api/alerts/create", validBody)
			assert.Equal(t, tt.status, w.Code)
			assert.NotContains(t, w.Body.String(), "pq:")
		})
	}
}

func TestListAlerts(t *testing.T) {
	userID := uuid.New()
	svc := &fakeService{alerts: []*model.Alert{{ID: uuid.New(), UserID: userID, DeviceID: "d1"}}}
	r := setup(svc)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/alerts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID, svc.listedFor)

	var resp struct {
		Data []model.Alert `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 1)
}

func TestListAlerts_Unauthenticated(t *testing.T) {
	w := httptest.NewRecorder()
	setup(&fakeService{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/alerts", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
