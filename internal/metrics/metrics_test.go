package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkDone(t *testing.T) {
	m := New()

	m.ChunkDone("create", 500, nil)
	m.ChunkDone("create", 200, nil)
	m.ChunkDone("create", 500, errors.New("boom"))
	m.ChunkDone("delete", 3, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.BatchChunks.WithLabelValues("create", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchChunks.WithLabelValues("create", ResultError)))
	assert.Equal(t, 700.0, testutil.ToFloat64(m.BatchDocuments.WithLabelValues("create")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.BatchDocuments.WithLabelValues("delete")))
}

func TestChunkDone_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.ChunkDone("create", 1, nil) })
}

func TestHandler(t *testing.T) {
	m := New()
	m.ActiveSubscriptions.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "firedesk_listen_active_subscriptions 1")
}
