package observ

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounter_LabelOrderDoesNotMatter(t *testing.T) {
	Reset()

	IncCounter("upstream_requests_total", map[string]string{"endpoint": "quote", "result": "success"})
	IncCounter("upstream_requests_total", map[string]string{"result": "success", "endpoint": "quote"})
	IncCounterBy("upstream_requests_total", map[string]string{"endpoint": "index", "result": "success"}, 5)

	assert.Equal(t, int64(2), Counter("upstream_requests_total", map[string]string{"endpoint": "quote", "result": "success"}))
	assert.Equal(t, int64(5), Counter("upstream_requests_total", map[string]string{"endpoint": "index", "result": "success"}))
	assert.Zero(t, Counter("missing_total", nil))
}

func TestGauge_LastWriteWins(t *testing.T) {
	Reset()

	SetGauge("session_active", 1, nil)
	SetGauge("session_active", 0, nil)

	assert.Equal(t, 0.0, Gauge("session_active", nil))
}

func TestObserve_KeepsBoundedSamples(t *testing.T) {
	Reset()

	for i := 0; i < maxSamples+10; i++ {
		Observe("throttle_wait_ms", float64(i), nil)
	}

	reg.mu.Lock()
	samples := reg.hist["throttle_wait_ms"][""]
	reg.mu.Unlock()
	require.Len(t, samples, maxSamples)
	assert.Equal(t, float64(10), samples[0])
}

func TestHandler_DumpsRegistry(t *testing.T) {
	Reset()
	IncCounter("http_requests_total", map[string]string{"route": "/api/nifty50", "status": "200"})
	RecordDuration("upstream_latency", 25*time.Millisecond, map[string]string{"endpoint": "index"})

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var dump struct {
		Counters map[string]map[string]int64     `json:"counters"`
		Hist     map[string]map[string][]float64 `json:"histograms"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dump))
	assert.Equal(t, int64(1), dump.Counters["http_requests_total"]["route=/api/nifty50,status=200"])
	assert.Equal(t, []float64{25}, dump.Hist["upstream_latency_ms"]["endpoint=index"])
}
