package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shuttleops/movesync/common/metrics"
)

// Prometheus records request count, latency and in-flight requests
func Prometheus(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.HTTPRequestsActive.Inc()
			defer m.HTTPRequestsActive.Dec()

			start := time.Now()
			err := next(c)
			if err != nil {
				// let echo write the response so the status is final
				c.Error(err)
			}

			endpoint := c.Path()
			if endpoint == "" {
				endpoint = "unknown"
			}
			status := strconv.Itoa(c.Response().Status)

			m.HTTPRequests.WithLabelValues(c.Request().Method, endpoint, status).Inc()
			m.HTTPDuration.WithLabelValues(c.Request().Method, endpoint).Observe(time.Since(start).Seconds())

			return nil
		}
	}
}
