package observability_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"solar_leads/internal/adapters/observability"
)

func TestRegistryExposesAllVectors(t *testing.T) {
	observability.ObserveHTTP("/leads", http.MethodPost, 200, 10*time.Millisecond)
	observability.ObserveExternal("zillow", "propertyExtendedSearch", 200, 20*time.Millisecond)
	observability.ObserveCache("memory", "hit")
	observability.ObserveSubstitution("weird-model", "gpt-4o-mini")
	observability.ObserveDegraded("upstream")

	reg := observability.InitRegistry()
	h := observability.MetricsHandler(reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, family := range []string{
		"solar_http_requests_total",
		"solar_external_requests_total",
		"solar_cache_events_total",
		"solar_vision_model_substitutions_total",
		"solar_vision_degraded_total",
	} {
		if !strings.Contains(body, family) {
			t.Errorf("registry output missing %s", family)
		}
	}
}
