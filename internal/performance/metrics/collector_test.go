package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_Collect(t *testing.T) {
	sink := NewSink()
	_ = sink.Add("http_reqs", 1, nil)
	_ = sink.Add("http_reqs", 1, nil)
	_ = sink.Mark("http_req_failed", false, nil)
	_ = sink.Record("http_req_duration", KindTrend, 12, nil)

	c := NewCollector(sink)
	if got := testutil.CollectAndCount(c); got != 3 {
		t.Errorf("CollectAndCount() = %d, want 3", got)
	}

	expected := `
# HELP tradeload_http_reqs_total Counter http_reqs
# TYPE tradeload_http_reqs_total counter
tradeload_http_reqs_total 2
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected), "tradeload_http_reqs_total"); err != nil {
		t.Errorf("CollectAndCompare() error = %v", err)
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http_req_duration", "http_req_duration"},
		{"db-read.success", "db_read_success"},
	}
	for _, tt := range tests {
		if got := sanitizeName(tt.in); got != tt.want {
			t.Errorf("sanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
