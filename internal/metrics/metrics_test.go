package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveHorizonsRequest(t *testing.T) {
	okBefore := testutil.ToFloat64(horizonsRequestsTotal.WithLabelValues(ResultOK))
	errBefore := testutil.ToFloat64(horizonsRequestsTotal.WithLabelValues(ResultError))

	ObserveHorizonsRequest(120*time.Millisecond, nil)
	ObserveHorizonsRequest(3*time.Second, errors.New("boom"))
	ObserveHorizonsRequest(80*time.Millisecond, nil)

	if got := testutil.ToFloat64(horizonsRequestsTotal.WithLabelValues(ResultOK)) - okBefore; got != 2 {
		t.Errorf("ok requests delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(horizonsRequestsTotal.WithLabelValues(ResultError)) - errBefore; got != 1 {
		t.Errorf("error requests delta = %v, want 1", got)
	}
}

func TestObserveSBDBRequest(t *testing.T) {
	okBefore := testutil.ToFloat64(sbdbRequestsTotal.WithLabelValues(ResultOK))
	errBefore := testutil.ToFloat64(sbdbRequestsTotal.WithLabelValues(ResultError))

	ObserveSBDBRequest(nil)
	ObserveSBDBRequest(errors.New("not found"))

	if got := testutil.ToFloat64(sbdbRequestsTotal.WithLabelValues(ResultOK)) - okBefore; got != 1 {
		t.Errorf("ok requests delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(sbdbRequestsTotal.WithLabelValues(ResultError)) - errBefore; got != 1 {
		t.Errorf("error requests delta = %v, want 1", got)
	}
}

func TestCacheLookup(t *testing.T) {
	hitBefore := testutil.ToFloat64(vectorCacheTotal.WithLabelValues(ResultHit))
	missBefore := testutil.ToFloat64(vectorCacheTotal.WithLabelValues(ResultMiss))

	CacheLookup(true)
	CacheLookup(false)
	CacheLookup(false)

	if got := testutil.ToFloat64(vectorCacheTotal.WithLabelValues(ResultHit)) - hitBefore; got != 1 {
		t.Errorf("hit delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(vectorCacheTotal.WithLabelValues(ResultMiss)) - missBefore; got != 2 {
		t.Errorf("miss delta = %v, want 2", got)
	}
}

func TestPositionResolved(t *testing.T) {
	before := testutil.ToFloat64(positionsTotal.WithLabelValues("propagated"))
	PositionResolved("propagated")
	if got := testutil.ToFloat64(positionsTotal.WithLabelValues("propagated")) - before; got != 1 {
		t.Errorf("propagated delta = %v, want 1", got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveHorizonsRequest(time.Millisecond, nil)
	CacheLookup(true)
	PositionResolved("sampled")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{
		"lsorrery_horizons_requests_total",
		"lsorrery_horizons_duration_seconds",
		"lsorrery_vector_cache_total",
		"lsorrery_positions_total",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}
