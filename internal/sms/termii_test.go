package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/obex-alerts/pkg/circuitbreaker"
	"github.com/jwalitptl/obex-alerts/pkg/logger"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name   string
		number string
		code   string
		want   string
	}{
		{"local with leading zero", "08012345678", "234", "+2348012345678"},
		{"already international", "+2348012345678", "234", "+2348012345678"},
		{"no leading zero", "8012345678", "234", "+2348012345678"},
		{"spaces", " 0801 234 5678 ", "234", "+2348012345678"},
		{"default country code", "08012345678", "", "+2348012345678"},
		{"other country", "07700900123", "44", "+447700900123"},
		{"double zero is not an exit code", "00447700900123", "234", "+234447700900123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhone(tt.number, tt.code))
		})
	}
}

func newTestClient(url string, failures int) *TermiiClient {
	return NewTermiiClient(Config{
		BaseURL:         url,
		APIKey:          "key",
		SenderID:        "Obex",
		CountryCode:     "234",
		Timeout:         2 * time.Second,
		BreakerFailures: failures,
		BreakerTimeout:  time.Minute,
	}, logger.Nop())
}

func TestTermiiClient_Send(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/sms/send", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","message_id":"abc"}`))
	}))
	defer srv.Close()

	err := newTestClient(srv.URL, 5).Send(context.Background(), "08012345678", "hello")
	require.NoError(t, err)

	assert.Equal(t, sendRequest{
		To:      "+2348012345678",
		From:    "Obex",
		SMS:     "hello",
		Type:    "plain",
		Channel: "generic",
		APIKey:  "key",
	}, got)
}

func TestTermiiClient_SendFailures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		permanent bool
	}{
		{"provider rejects", http.StatusOK, `{"status":"error","message":"invalid number"}`, true},
		{"non-200", http.StatusBadRequest, `{"message":"bad request"}`, true},
		{"throttled", http.StatusTooManyRequests, `{"message":"slow down"}`, false},
		{"server error", http.StatusInternalServerError, `oops`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := newTestClient(srv.URL, 5).Send(context.Background(), "08012345678", "hello")
			assert.Error(t, err)
			assert.Equal(t, tt.permanent, circuitbreaker.IsPermanent(err))
		})
	}
}

func TestTermiiClient_EmptyRecipient(t *testing.T) {
	err := newTestClient("http://127.0.0.1:1", 5).Send(context.Background(), "  ", "hello")
	assert.Error(t, err)
}

func TestTermiiClient_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 2)
	ctx := context.Background()

	assert.Error(t, client.Send(ctx, "08012345678", "a"))
	assert.Error(t, client.Send(ctx, "08012345678", "b"))

	err := client.Send(ctx, "08012345678", "c")
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTermiiClient_RejectedRecipientsDoNotOpenBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req sendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		if req.To == "+23412345" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"invalid phone number"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"success","message_id":"ok"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 5)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		assert.Error(t, client.Send(ctx, "12345", "alert"))
	}

	require.NoError(t, client.Send(ctx, "08012345678", "alert"))
	assert.Equal(t, int32(6), calls.Load())
}
