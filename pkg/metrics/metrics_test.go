package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	c := New()

	c.RecordRun(ResultSuccess, 250*time.Millisecond)
	c.RecordRun("alignment", time.Second)
	c.RecordRun(ResultSuccess, time.Second)
	c.RecordForecast(0.2, 4.5)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.RunsTotal.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.RunsTotal.WithLabelValues("alignment")))
	assert.Equal(t, 0.2, testutil.ToFloat64(c.FitCoefficient))
	assert.Equal(t, 4.5, testutil.ToFloat64(c.ForecastPeakKW))

	t.Run("handler", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		body, err := io.ReadAll(rec.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `pvcast_pipeline_runs_total{result="success"} 2`)
		assert.Contains(t, string(body), "pvcast_pipeline_fit_coefficient 0.2")
	})

	t.Run("upstream transport", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := &http.Client{Transport: c.UpstreamTransport("openmeteo", nil)}
		resp, err := client.Get(server.URL)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, 1, testutil.CollectAndCount(c.UpstreamLatency))
	})
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.RecordRun(ResultSuccess, time.Second)
	c.RecordForecast(1, 1)
	assert.Nil(t, c.Registry())
	assert.Equal(t, http.DefaultTransport, c.UpstreamTransport("x", nil))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
