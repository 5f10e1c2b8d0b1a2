package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shuttleops/movesync/common/metrics"
	"github.com/shuttleops/movesync/common/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractActor(t *testing.T) {
	e := echo.New()
	e.Use(ExtractActor())

	var got models.Actor
	e.GET("/", func(c echo.Context) error {
		got = GetActor(c)
		return c.NoContent(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "ops@yard.test")
	req.Header.Set(HeaderUserLocation, "Yard")
	req.Header.Set(HeaderUserRole, "Admin")
	e.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, models.Actor{Email: "ops@yard.test", Location: "Yard", Admin: true}, got)

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, models.ActorServer, got.Name())
}

func TestRequireActorAndAdmin(t *testing.T) {
	e := echo.New()
	e.Use(ExtractActor())
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	e.POST("/write", ok, RequireActor())
	e.GET("/admin", ok, RequireAdmin())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/write", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/write", nil)
	req.Header.Set(HeaderUserID, "ops@yard.test")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(HeaderUserID, "ops@yard.test")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req.Header.Set(HeaderUserRole, "admin")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestPrometheusCountsRequests(t *testing.T) {
	m := metrics.New()
	e := echo.New()
	e.Use(Prometheus(m))
	e.GET("/api/v1/moves/:move_id", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/moves/M1", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues(http.MethodGet, "/api/v1/moves/:move_id", "418")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.HTTPRequestsActive))
}
