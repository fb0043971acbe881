package adapter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/unimon/unimon/internal/model"
)

const promRulesBody = `{"status":"success","data":{"groups":[{"name":"latency","file":"rules.yml","interval":60,"rules":[
{"type":"alerting","name":"HighP95","query":"p95_latency > 0.5","duration":120,
 "labels":{"severity":"critical","service":"gateway"},
 "annotations":{"summary":"p95 too high","runbook_url":"https://wiki/p95"},
 "health":"ok","state":"firing","alerts":[]},
{"type":"recording","name":"p95_latency","query":"histogram_quantile(0.95, rate(req[5m]))","duration":0,"labels":{},"annotations":{},"health":"ok","state":"inactive","alerts":[]}
]}]}}`

const promAlertsBody = `{"status":"success","data":{"alerts":[
{"labels":{"alertname":"HighP95","severity":"critical","service":"gateway"},
 "annotations":{"summary":"p95 too high"},
 "state":"firing","activeAt":"2026-08-01T10:00:00Z","value":"0.81"},
{"labels":{"alertname":"DiskFull","severity":"warning"},
 "annotations":{},
 "state":"pending","activeAt":"2026-08-01T10:05:00Z","value":"91"}
]}}`

func promServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/rules", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(promRulesBody))
	})
	mux.HandleFunc("/api/v1/alerts", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(promAlertsBody))
	})
	mux.HandleFunc("/-/healthy", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testDS(url string, typ model.DatasourceType) *model.Datasource {
	return &model.Datasource{ID: "ds-1", Name: "test", Type: typ, URL: url, Enabled: true}
}

func TestPrometheusFetchMonitors(t *testing.T) {
	srv := promServer(t)
	a := NewPrometheusAdapter(2 * time.Second)
	ds := testDS(srv.URL, model.DatasourcePrometheus)

	monitors, err := a.FetchMonitors(context.Background(), ds)
	if err != nil {
		t.Fatalf("fetch monitors: %v", err)
	}
	// the recording rule is skipped
	if len(monitors) != 1 {
		t.Fatalf("expected 1 monitor, got %d", len(monitors))
	}
	m := monitors[0]
	if m.Name != "HighP95" || m.DatasourceID != "ds-1" {
		t.Fatalf("unexpected monitor: %#v", m)
	}
	if m.Query != "p95_latency > 0.5" {
		t.Fatalf("query not carried: %q", m.Query)
	}
	if m.Condition.ForDuration != 2*time.Minute {
		t.Fatalf("for duration: %v", m.Condition.ForDuration)
	}
	if m.Evaluation.Interval != time.Minute {
		t.Fatalf("interval: %v", m.Evaluation.Interval)
	}
	if m.Annotations.RunbookURL != "https://wiki/p95" {
		t.Fatalf("runbook: %q", m.Annotations.RunbookURL)
	}
}

func TestPrometheusFetchAlerts(t *testing.T) {
	srv := promServer(t)
	a := NewPrometheusAdapter(2 * time.Second)
	ds := testDS(srv.URL, model.DatasourcePrometheus)

	alerts, err := a.FetchAlerts(context.Background(), ds)
	if err != nil {
		t.Fatalf("fetch alerts: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(alerts))
	}
	if alerts[0].Severity != model.SeverityCritical || alerts[0].State != model.StateActive {
		t.Fatalf("firing alert mapped wrong: %#v", alerts[0])
	}
	if alerts[0].Value != "0.81" {
		t.Fatalf("value: %q", alerts[0].Value)
	}
	if alerts[1].Severity != model.SeverityMedium || alerts[1].State != model.StatePending {
		t.Fatalf("pending alert mapped wrong: %#v", alerts[1])
	}
}

func TestPrometheusConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	a := NewPrometheusAdapter(500 * time.Millisecond)
	_, err := a.FetchAlerts(context.Background(), testDS(url, model.DatasourcePrometheus))
	var berr *model.BackendError
	if !errors.As(err, &berr) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if berr.Kind != model.BackendConnectionRefused {
		t.Fatalf("expected connection_refused, got %s", berr.Kind)
	}
}

func TestPrometheusInvalidResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	a := NewPrometheusAdapter(time.Second)
	_, err := a.FetchAlerts(context.Background(), testDS(srv.URL, model.DatasourcePrometheus))
	var berr *model.BackendError
	if !errors.As(err, &berr) || berr.Kind != model.BackendInvalidResponse {
		t.Fatalf("expected invalid_response, got %v", err)
	}
}

func TestPrometheusWritesRejected(t *testing.T) {
	a := NewPrometheusAdapter(time.Second)
	ds := testDS("http://localhost:9090", model.DatasourcePrometheus)
	if _, err := a.CreateMonitor(context.Background(), ds, &model.UnifiedMonitor{}); err == nil {
		t.Fatal("expected error for prometheus monitor create")
	}
	if err := a.AcknowledgeAlert(context.Background(), ds, "x"); err == nil {
		t.Fatal("expected error for prometheus acknowledge")
	}
}

func TestPrometheusProbe(t *testing.T) {
	srv := promServer(t)
	a := NewPrometheusAdapter(time.Second)
	res := a.Probe(context.Background(), testDS(srv.URL, model.DatasourcePrometheus))
	if !res.Success {
		t.Fatalf("expected probe success, got %#v", res)
	}
	bad := a.Probe(context.Background(), testDS("http://127.0.0.1:1", model.DatasourcePrometheus))
	if bad.Success {
		t.Fatal("expected probe failure")
	}
}
