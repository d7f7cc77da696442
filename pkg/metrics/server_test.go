package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/kongreg/pkg/registry"
)

func TestServer_ServesMetricsAndHealth(t *testing.T) {
	rec := New(prometheus.NewRegistry())
	rec.ObserveRegistration(registry.ShapeKongV2, registry.OutcomeUpdated, time.Millisecond)

	srv := NewServer("127.0.0.1:0", rec)
	require.NoError(t, srv.Start(nil))
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	assert.Error(t, srv.Start(nil), "second start must fail")

	resp, err := http.Get(srv.URL())
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `kongreg_registrations_total{outcome="updated",shape="kong-v2"} 1`)

	resp, err = http.Get("http://" + srv.Addr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_ShutdownIdempotent(t *testing.T) {
	srv := NewServer("127.0.0.1:0", New(prometheus.NewRegistry()))
	assert.NoError(t, srv.Shutdown(context.Background()))
	require.NoError(t, srv.Start(nil))
	assert.NoError(t, srv.Shutdown(context.Background()))
	assert.NoError(t, srv.Shutdown(context.Background()))
}

func TestServer_NilRecorder(t *testing.T) {
	assert.Error(t, NewServer("127.0.0.1:0", nil).Start(nil))
}
