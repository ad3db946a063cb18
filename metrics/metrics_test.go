package metrics_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jray8/simple-server-go/metrics"
)

func TestMetricsAreRegisteredAndExported(t *testing.T) {
	metrics.ActiveSessions.Set(3)
	metrics.CommandsTotal.WithLabelValues("LIST", "ok").Inc()

	srv := httptest.NewServer(promhttp.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	var body strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		body.Write(buf[:n])
		if err != nil {
			break
		}
	}

	for _, want := range []string{
		"chat_active_sessions 3",
		`chat_commands_total{command="LIST",outcome="ok"} 1`,
	} {
		if !strings.Contains(body.String(), want) {
			t.Errorf("metrics output missing %q\ngot:\n%s", want, body.String())
		}
	}
}
