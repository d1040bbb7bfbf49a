package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/obex-alerts/pkg/metrics"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func serve(h *Handler, path string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRoutes(r.Group(""))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealthEndpoints(t *testing.T) {
	ok := NewHandler(fakePinger{}, nil)
	down := NewHandler(fakePinger{err: errors.New("dial tcp: refused")}, nil)

	assert.Equal(t, http.StatusOK, serve(ok, "/health/live").Code)
	assert.Equal(t, http.StatusOK, serve(ok, "/health/ready").Code)
	assert.Equal(t, http.StatusOK, serve(down, "/health/live").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(down, "/health/ready").Code)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics("obex", reg)
	m.AlertsIngested.WithLabelValues("HTTP").Inc()

	w := serve(NewHandler(fakePinger{}, reg), "/health/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `obex_alerts_ingested_total{source="HTTP"} 1`)
}
