package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsAreIndependent(t *testing.T) {
	// Private registries mean two collectors never clash.
	a := NewCollector()
	b := NewCollector()
	a.RecordCacheHit()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.cacheHits))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.cacheHits))
}

func TestRecordHTTPRequest(t *testing.T) {
	c := NewCollector()
	c.RecordHTTPRequest("POST", "/generate-model", 200, 120*time.Millisecond)
	c.RecordHTTPRequest("POST", "/generate-model", 200, 80*time.Millisecond)
	c.RecordHTTPRequest("POST", "/generate-model", 400, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("POST", "/generate-model", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("POST", "/generate-model", "400")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.httpRequestDuration))
}

func TestRecordBuild(t *testing.T) {
	c := NewCollector()
	c.RecordBuild("gear", time.Second, nil)
	c.RecordBuild("gear", 0, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.buildsTotal.WithLabelValues("gear", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.buildsTotal.WithLabelValues("gear", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.buildDuration))
}

func TestBuildWaiting(t *testing.T) {
	c := NewCollector()
	c.BuildWaiting(1)
	c.BuildWaiting(1)
	c.BuildWaiting(-1)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.buildsWaiting))
}

func TestRecordCommandAndTranscription(t *testing.T) {
	c := NewCollector()
	c.RecordCommand("cube")
	c.RecordCommand("unknown")
	c.RecordCommand("cube")
	assert.Equal(t, 2.0, testutil.ToFloat64(c.commandsTotal.WithLabelValues("cube")))

	c.RecordTranscription("whisper", time.Second, nil)
	c.RecordTranscription("whisper", 0, errors.New("503"))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.transcribeErrors.WithLabelValues("whisper")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.transcribeDuration))
}

func TestHandler(t *testing.T) {
	c := NewCollector()
	c.RecordCacheMiss()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "voxcad_cache_misses_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}
