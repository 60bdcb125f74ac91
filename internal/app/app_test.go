package app

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/aws"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/aws/awstest"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/config"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/logging"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/outbox"
)

func newTestApp(t *testing.T) (*App, *awstest.SQS, *awstest.CloudWatch) {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Auth.TokenSecret = "test-secret"

	db := awstest.NewDynamo()
	for _, table := range []string{
		cfg.Tables.Orders, cfg.Tables.Payments, cfg.Tables.Idempotency, cfg.Tables.CheckoutRequests,
		cfg.Tables.Credentials, cfg.Tables.Profiles, cfg.Tables.Categories, cfg.Tables.Products,
		cfg.Tables.CategorySnapshots, cfg.Tables.AuthOutbox, cfg.Tables.CategoryOutbox,
	} {
		db.CreateTable(table, "id")
	}
	db.CreateTable(cfg.Tables.Idempotency, "idempotency_key")
	db.CreateTable(cfg.Tables.CheckoutRequests, "idempotency_key")

	q := &awstest.SQS{}
	cw := &awstest.CloudWatch{}
	clients := &aws.AWSClients{DynamoDB: db, SQS: q, CloudWatch: cw}
	return NewWithClients(cfg, clients, logging.Discard()), q, cw
}

func TestServiceServer_EveryService(t *testing.T) {
	a, _, _ := newTestApp(t)

	for _, name := range Services {
		t.Run(name, func(t *testing.T) {
			srv, err := a.ServiceServer(name)
			require.NoError(t, err)

			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			require.Equal(t, http.StatusOK, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, name, body["service"])
		})
	}
}

func TestServiceServer_Rejects(t *testing.T) {
	a, _, _ := newTestApp(t)

	_, err := a.ServiceServer("inventory")
	assert.Error(t, err)

	a.Config.Auth.TokenSecret = ""
	_, err = a.ServiceServer(ServiceAuth)
	assert.Error(t, err)
}

func TestGateway_RequiresToken(t *testing.T) {
	a, _, _ := newTestApp(t)
	r := a.Gateway()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/checkout", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMetrics(t *testing.T) {
	a, _, cw := newTestApp(t)

	assert.IsType(t, aws.NopMetrics{}, a.Metrics("checkout"))

	a.Config.Metrics.Enabled = true
	m := a.Metrics("checkout")
	require.IsType(t, &aws.MetricsPublisher{}, m)
	require.NoError(t, m.Count(context.Background(), "CheckoutPaid", 1))
	assert.Equal(t, float64(1), cw.Total("CheckoutPaid"))
}

func TestRelay_NeedsQueue(t *testing.T) {
	a, _, _ := newTestApp(t)

	_, err := a.Relay(a.Config.Tables.AuthOutbox).Flush(context.Background())
	assert.ErrorIs(t, err, outbox.ErrNoPublisher)

	a.Config.Queue.MirrorURL = "https://sqs.local/mirror"
	rep, err := a.Relay(a.Config.Tables.AuthOutbox).Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, outbox.FlushReport{}, rep)
}

func TestServeListener_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serveListener(ctx, ln, h, config.HTTPConfig{ShutdownTimeout: time.Second}, logging.Discard())
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
