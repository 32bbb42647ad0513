package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// latencySamples returns the histogram sample count for one label set, or 0 when absent.
func latencySamples(t *testing.T, method, path, status string) uint64 {
	t.Helper()

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != "livecss_api_latency_seconds" {
			continue
		}
		for _, metric := range family.GetMetric() {
			labels := map[string]string{}
			for _, pair := range metric.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			if labels["method"] == method && labels["path"] == path && labels["status"] == status {
				return metric.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func newMetricsRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/api/snippets/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/api/upgrade", func(c *gin.Context) { c.Status(http.StatusSwitchingProtocols) })
	r.NoRoute(func(c *gin.Context) { c.Status(http.StatusAccepted) })
	return r
}

func TestMetricsRecordsRouteTemplate(t *testing.T) {
	r := newMetricsRouter()
	before := latencySamples(t, http.MethodGet, "/api/snippets/:id", "204")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/snippets/abc", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	require.Equal(t, before+1, latencySamples(t, http.MethodGet, "/api/snippets/:id", "204"))
}

func TestMetricsGroupsUnmatchedPaths(t *testing.T) {
	r := newMetricsRouter()
	staticBefore := latencySamples(t, http.MethodGet, staticRouteLabel, "202")
	apiBefore := latencySamples(t, http.MethodGet, unknownAPIRouteLabel, "202")

	for _, path := range []string{"/editor/one", "/editor/two", "/assets/app.js"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/nope", nil))

	require.Equal(t, staticBefore+3, latencySamples(t, http.MethodGet, staticRouteLabel, "202"))
	require.Equal(t, apiBefore+1, latencySamples(t, http.MethodGet, unknownAPIRouteLabel, "202"))
	require.Zero(t, latencySamples(t, http.MethodGet, "/editor/one", "202"))
}

func TestMetricsSkipsProtocolUpgrades(t *testing.T) {
	r := newMetricsRouter()

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/upgrade", nil))

	require.Zero(t, latencySamples(t, http.MethodGet, "/api/upgrade", "101"))
}
