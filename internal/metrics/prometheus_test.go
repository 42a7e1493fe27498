package metrics

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sellerdesk/seller-backoffice/internal/migrate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Recorder(t *testing.T) {
	m := NewMetrics("seller")

	a := migrate.MigrationFile{Version: 1, Name: "001_a.sql"}
	b := migrate.MigrationFile{Version: 2, Name: "002_b.sql"}

	m.FileSkipped(a)
	m.FileApplied(b, 150*time.Millisecond)
	m.RunFinished(migrate.StateCompleted, &migrate.Result{Applied: 1, Skipped: 1, Total: 2}, time.Second)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.MigrationsSkipped))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.MigrationsApplied.WithLabelValues("002_b.sql")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RunsTotal.WithLabelValues("completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LastRunApplied))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LastRunSucceeded))
	assert.Greater(t, testutil.ToFloat64(m.LastRunTimestamp), float64(0))
	assert.Equal(t, 1, testutil.CollectAndCount(m.MigrationDuration))
}

func TestMetrics_FailureKinds(t *testing.T) {
	tests := []struct {
		kind  error
		label string
	}{
		{migrate.ErrStatementExecution, "statement_execution"},
		{migrate.ErrTrackingInsertConflict, "tracking_insert_conflict"},
		{migrate.ErrFileRead, "file_read"},
		{nil, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			m := NewMetrics("seller")
			m.FileFailed(migrate.MigrationFile{Version: 2, Name: "002_b.sql"}, tt.kind)
			assert.Equal(t, float64(1), testutil.ToFloat64(m.MigrationsFailed.WithLabelValues(tt.label)))
		})
	}

	t.Run("Failed run clears success gauge", func(t *testing.T) {
		m := NewMetrics("seller")
		m.RunFinished(migrate.StateCompleted, &migrate.Result{Applied: 3}, time.Second)
		m.RunFinished(migrate.StateFailedAtFile, nil, time.Second)

		assert.Equal(t, float64(0), testutil.ToFloat64(m.LastRunSucceeded))
		assert.Equal(t, float64(3), testutil.ToFloat64(m.LastRunApplied))
		assert.Equal(t, float64(1), testutil.ToFloat64(m.RunsTotal.WithLabelValues("failed_at_file")))
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics("seller")
	m.RegisterDBStats("seller", func() sql.DBStats {
		return sql.DBStats{OpenConnections: 2, InUse: 1}
	})
	m.FileSkipped(migrate.MigrationFile{Version: 1, Name: "001_a.sql"})

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "seller_migrations_skipped_total 1")
	assert.Contains(t, body, "seller_db_connections_open 2")
	assert.Contains(t, body, "seller_db_connections_in_use 1")
	assert.Contains(t, body, "go_goroutines")
}

func TestMetrics_GinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	m := NewMetrics("seller")
	router := gin.New()
	router.Use(m.GinMiddleware())
	router.GET("/api/v1/migrations/:version", func(c *gin.Context) {
		c.Status(http.StatusNotFound)
	})

	for _, path := range []string{"/api/v1/migrations/1", "/api/v1/migrations/2", "/nowhere"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/migrations/:version", "404")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")))

	expected := `
# HELP seller_migrations_skipped_total Total number of migration files skipped as already applied
# TYPE seller_migrations_skipped_total counter
seller_migrations_skipped_total 0
`
	assert.NoError(t, testutil.CollectAndCompare(m.MigrationsSkipped, strings.NewReader(expected)))
}
