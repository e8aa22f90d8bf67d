package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang/protobuf/proto"
	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/prometheus/prompb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrapeRegistryGauge(t *testing.T) {
	reg, err := NewScrapeRegistry()
	require.NoError(t, err)

	g, err := reg.NewGauge(prometheus.GaugeOpts{Name: "test_gauge", Help: "test"})
	require.NoError(t, err)
	g.Set(42)

	families, err := reg.PrometheusRegistry().Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range families {
		if mf.GetName() == "test_gauge" {
			found = true
			require.Len(t, mf.GetMetric(), 1)
			assert.Equal(t, 42.0, mf.GetMetric()[0].GetGauge().GetValue())
		}
	}
	assert.True(t, found, "test_gauge not gathered")
}

func TestScrapeRegistryCounterVec(t *testing.T) {
	reg, err := NewScrapeRegistry()
	require.NoError(t, err)

	cv, err := reg.NewCounterVec(prometheus.CounterOpts{Name: "test_total", Help: "test"}, []string{"status"})
	require.NoError(t, err)

	cv.With(prometheus.Labels{"status": "success"}).Inc()
	cv.With(prometheus.Labels{"status": "success"}).Inc()
	cv.With(prometheus.Labels{"status": "failed"}).Add(3)

	families, err := reg.PrometheusRegistry().Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "test_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lbl := range m.GetLabel() {
				if lbl.GetName() == "status" {
					values[lbl.GetValue()] = m.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, 2.0, values["success"])
	assert.Equal(t, 3.0, values["failed"])
}

func TestScrapeRegistryRejectsDuplicates(t *testing.T) {
	reg, err := NewScrapeRegistry()
	require.NoError(t, err)

	_, err = reg.NewCounter(prometheus.CounterOpts{Name: "dup_total", Help: "test"})
	require.NoError(t, err)
	_, err = reg.NewCounter(prometheus.CounterOpts{Name: "dup_total", Help: "test"})
	assert.Error(t, err)
}

func TestScrapeRegistryHandler(t *testing.T) {
	reg, err := NewScrapeRegistry()
	require.NoError(t, err)

	g, err := reg.NewGauge(prometheus.GaugeOpts{Name: "exposed_gauge", Help: "test"})
	require.NoError(t, err)
	g.Set(7)

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "exposed_gauge 7")
}

// decodeWriteRequest unpacks a snappy-compressed remote write body.
func decodeWriteRequest(t *testing.T, body io.Reader) *prompb.WriteRequest {
	t.Helper()
	compressed, err := io.ReadAll(body)
	require.NoError(t, err)
	data, err := snappy.Decode(nil, compressed)
	require.NoError(t, err)
	var req prompb.WriteRequest
	require.NoError(t, proto.Unmarshal(data, &req))
	return &req
}

func TestPushRegistryGauge(t *testing.T) {
	type received struct {
		headers http.Header
		req     *prompb.WriteRequest
	}
	var got received

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.headers = r.Header.Clone()
		got.req = decodeWriteRequest(t, r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	reg := NewPushRegistry(PushConfig{
		URL:      srv.URL,
		Prefix:   "winprep",
		Job:      "winprep",
		Instance: "ws-001",
	})

	g, err := reg.NewGauge(prometheus.GaugeOpts{Name: "run_duration_seconds"})
	require.NoError(t, err)
	g.Set(12.5)

	require.NotNil(t, got.req)
	assert.Equal(t, "snappy", got.headers.Get("Content-Encoding"))
	assert.Equal(t, "application/x-protobuf", got.headers.Get("Content-Type"))
	assert.Equal(t, "0.1.0", got.headers.Get("X-Prometheus-Remote-Write-Version"))

	require.Len(t, got.req.Timeseries, 1)
	ts := got.req.Timeseries[0]

	labels := map[string]string{}
	for _, lbl := range ts.Labels {
		labels[lbl.Name] = lbl.Value
	}
	assert.Equal(t, "winprep_run_duration_seconds", labels["__name__"])
	assert.Equal(t, "winprep", labels["job"])
	assert.Equal(t, "ws-001", labels["instance"])

	require.Len(t, ts.Samples, 1)
	assert.Equal(t, 12.5, ts.Samples[0].Value)
}

func TestPushCounterAccumulates(t *testing.T) {
	var values []float64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeWriteRequest(t, r.Body)
		require.Len(t, req.Timeseries, 1)
		require.Len(t, req.Timeseries[0].Samples, 1)
		values = append(values, req.Timeseries[0].Samples[0].Value)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	reg := NewPushRegistry(PushConfig{URL: srv.URL})
	c, err := reg.NewCounter(prometheus.CounterOpts{Name: "runs_total"})
	require.NoError(t, err)

	c.Inc()
	c.Inc()
	c.Add(3)

	assert.Equal(t, []float64{1, 2, 5}, values)
}

func TestPushCounterVecSharesSeries(t *testing.T) {
	var last float64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeWriteRequest(t, r.Body)
		last = req.Timeseries[0].Samples[0].Value
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	reg := NewPushRegistry(PushConfig{URL: srv.URL})
	cv, err := reg.NewCounterVec(prometheus.CounterOpts{Name: "tasks_total"}, []string{"status"})
	require.NoError(t, err)

	// The same label set must resolve to the same accumulating counter.
	cv.With(prometheus.Labels{"status": "success"}).Inc()
	cv.With(prometheus.Labels{"status": "success"}).Inc()
	assert.Equal(t, 2.0, last)
}

func TestDeploymentMetrics(t *testing.T) {
	reg, err := NewScrapeRegistry()
	require.NoError(t, err)

	dep, err := NewDeployment(reg)
	require.NoError(t, err)

	dep.RunStarted()
	dep.ObserveTask("install-drivers", "success", 1.5)
	dep.ObserveTask("install-apps", "failed", 30)
	dep.ObserveRun(45)

	families, err := reg.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["runs_total"])
	assert.True(t, names["tasks_total"])
	assert.True(t, names["task_duration_seconds"])
	assert.True(t, names["run_duration_seconds"])
}

func TestNoopRegistry(t *testing.T) {
	reg := NewNoopRegistry()

	dep, err := NewDeployment(reg)
	require.NoError(t, err)

	// Must not panic or touch the network.
	dep.RunStarted()
	dep.ObserveTask("a", "success", 1)
	dep.ObserveRun(2)
}
