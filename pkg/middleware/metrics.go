// Package middleware holds the HTTP middleware of the recommender and
// analytics services.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Rajat083/Internship-Recommender/pkg/metrics"
)

// routes are the paths reported under their own label. Anything else is
// counted as "other" so scanners cannot grow the label set.
var routes = map[string]struct{}{
	"/":                                  {},
	"/api/v1/recommendations":            {},
	"/api/v1/recommendations/health":     {},
	"/api/v1/index/stats":                {},
	"/api/v1/index/rebuild":              {},
	"/api/v1/cache/stats":                {},
	"/api/v1/cache/invalidate":           {},
	"/api/v1/internships":                {},
	"/api/v1/analytics":                  {},
	"/api/v1/analytics/snapshots":        {},
	"/api/v1/analytics/snapshots/latest": {},
	"/health/live":                       {},
	"/health/ready":                      {},
}

func routeLabel(path string) string {
	if _, ok := routes[path]; ok {
		return path
	}
	return "other"
}

// Metrics records request counts by status, latency and in-flight requests.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.HTTPRequestsInFlight.Inc()
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			defer func() {
				m.HTTPRequestsInFlight.Dec()
				route := routeLabel(r.URL.Path)
				m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.code())).Inc()
				m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			}()
			next.ServeHTTP(rec, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) code() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}
