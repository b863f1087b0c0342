package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, c *Collector) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Code, rec.Body.String()
}

func TestCollector(t *testing.T) {
	c := New()
	c.Executed("LIMIT", "SELL", time.Millisecond)
	c.Executed("LIMIT", "SELL", time.Millisecond)
	c.Rejected("NonceAlreadyUsed", time.Millisecond)

	code, body := scrape(t, c)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	for _, want := range []string{
		`triggerswap_executions_total{side="SELL",type="LIMIT"} 2`,
		`triggerswap_rejections_total{kind="NonceAlreadyUsed"} 1`,
		`triggerswap_execution_seconds_count 3`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.Executed("STOP", "BUY", time.Second)
	c.Rejected("Internal", time.Second)

	if code, _ := scrape(t, c); code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", code)
	}
}
