package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/unimon/unimon/internal/model"
)

// OpenSearchAdapter speaks the OpenSearch alerting plugin API under
// _plugins/_alerting. Monitors support full CRUD and alerts can be
// acknowledged, unlike the Prometheus side.
type OpenSearchAdapter struct {
	caller *httpCaller
}

// NewOpenSearchAdapter returns an adapter with the given per-request
// transport timeout.
func NewOpenSearchAdapter(timeout time.Duration) *OpenSearchAdapter {
	return &OpenSearchAdapter{caller: newHTTPCaller(timeout)}
}

func (a *OpenSearchAdapter) Type() model.DatasourceType { return model.DatasourceOpenSearch }

const alertingBase = "/_plugins/_alerting/monitors"

// osMonitor is the native monitor document. Unified fields that have no
// first-class home in the plugin schema ride in ui_metadata, which the
// plugin persists verbatim; that keeps serialization lossless.
type osMonitor struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Enabled  bool   `json:"enabled"`
	Schedule struct {
		Period struct {
			Interval int    `json:"interval"`
			Unit     string `json:"unit"`
		} `json:"period"`
	} `json:"schedule"`
	Inputs   []osInput    `json:"inputs"`
	Triggers []osTrigger  `json:"triggers"`
	UIMeta   osUIMetadata `json:"ui_metadata"`
}

type osInput struct {
	Search struct {
		Indices []string        `json:"indices"`
		Query   json.RawMessage `json:"query"`
	} `json:"search"`
}

type osTrigger struct {
	Name      string `json:"name"`
	Severity  string `json:"severity"` // "1" (highest) .. "5"
	Condition struct {
		Script struct {
			Source string `json:"source"`
			Lang   string `json:"lang"`
		} `json:"script"`
	} `json:"condition"`
}

type osUIMetadata struct {
	Query         string            `json:"query"`
	Operator      string            `json:"operator"`
	Threshold     float64           `json:"threshold"`
	ForDuration   string            `json:"for_duration"`
	Interval      string            `json:"interval"`
	PendingPeriod string            `json:"pending_period"`
	FiringPeriod  string            `json:"firing_period"`
	Labels        map[string]string `json:"labels,omitempty"`
	Annotations   map[string]string `json:"annotations,omitempty"`
	Routing       string            `json:"routing,omitempty"`
}

type osMonitorHit struct {
	ID      string    `json:"_id"`
	Version int       `json:"_version"`
	Monitor osMonitor `json:"monitor"`
}

type osSearchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string    `json:"_id"`
			Source osMonitor `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type osAlert struct {
	ID           string `json:"id"`
	MonitorID    string `json:"monitor_id"`
	MonitorName  string `json:"monitor_name"`
	TriggerName  string `json:"trigger_name"`
	Severity     string `json:"severity"`
	State        string `json:"state"`      // ACTIVE, ACKNOWLEDGED, COMPLETED, ERROR
	StartTime    int64  `json:"start_time"` // epoch millis
	ErrorMessage string `json:"error_message,omitempty"`
}

type osAlertsResponse struct {
	Alerts      []osAlert `json:"alerts"`
	TotalAlerts int       `json:"totalAlerts"`
}

// FetchMonitors lists all monitors via the plugin search endpoint.
func (a *OpenSearchAdapter) FetchMonitors(ctx context.Context, ds *model.Datasource) ([]*model.UnifiedMonitor, error) {
	body := `{"query":{"match_all":{}},"size":1000}`
	var resp osSearchResponse
	if err := a.doJSON(ctx, ds, http.MethodPost, alertingBase+"/_search", strings.NewReader(body), &resp); err != nil {
		return nil, err
	}
	out := make([]*model.UnifiedMonitor, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		out = append(out, unifyOSMonitor(ds, h.ID, &h.Source))
	}
	return out, nil
}

// FetchAlerts lists alerts across all monitors of the datasource.
func (a *OpenSearchAdapter) FetchAlerts(ctx context.Context, ds *model.Datasource) ([]*model.UnifiedAlert, error) {
	var resp osAlertsResponse
	if err := a.doJSON(ctx, ds, http.MethodGet, alertingBase+"/alerts", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]*model.UnifiedAlert, 0, len(resp.Alerts))
	for i := range resp.Alerts {
		out = append(out, unifyOSAlert(ds, &resp.Alerts[i]))
	}
	return out, nil
}

// CreateMonitor posts a new native monitor and returns the unified form with
// the server-assigned id.
func (a *OpenSearchAdapter) CreateMonitor(ctx context.Context, ds *model.Datasource, m *model.UnifiedMonitor) (*model.UnifiedMonitor, error) {
	native := nativeOSMonitor(m)
	buf, err := json.Marshal(native)
	if err != nil {
		return nil, backendErr(ds, "encode monitor", err)
	}
	var hit osMonitorHit
	if err := a.doJSON(ctx, ds, http.MethodPost, alertingBase, bytes.NewReader(buf), &hit); err != nil {
		return nil, err
	}
	created := unifyOSMonitor(ds, hit.ID, &hit.Monitor)
	return created, nil
}

// UpdateMonitor replaces an existing monitor by id.
func (a *OpenSearchAdapter) UpdateMonitor(ctx context.Context, ds *model.Datasource, m *model.UnifiedMonitor) (*model.UnifiedMonitor, error) {
	if m.ID == "" {
		return nil, invalidResponseErr(ds, "monitor id required for update")
	}
	native := nativeOSMonitor(m)
	buf, err := json.Marshal(native)
	if err != nil {
		return nil, backendErr(ds, "encode monitor", err)
	}
	var hit osMonitorHit
	if err := a.doJSON(ctx, ds, http.MethodPut, alertingBase+"/"+m.ID, bytes.NewReader(buf), &hit); err != nil {
		return nil, err
	}
	return unifyOSMonitor(ds, hit.ID, &hit.Monitor), nil
}

// DeleteMonitor removes a monitor by id.
func (a *OpenSearchAdapter) DeleteMonitor(ctx context.Context, ds *model.Datasource, monitorID string) error {
	return a.doJSON(ctx, ds, http.MethodDelete, alertingBase+"/"+monitorID, nil, nil)
}

// AcknowledgeAlert acknowledges one alert. The plugin scopes the call to the
// owning monitor, so the alert id carries it as "monitorID/alertID"; a bare
// alert id is rejected.
func (a *OpenSearchAdapter) AcknowledgeAlert(ctx context.Context, ds *model.Datasource, alertID string) error {
	monitorID, id, ok := strings.Cut(alertID, "/")
	if !ok {
		return invalidResponseErr(ds, "alert id must be monitorID/alertID for acknowledgement")
	}
	body := fmt.Sprintf(`{"alerts":[%q]}`, id)
	return a.doJSON(ctx, ds, http.MethodPost, alertingBase+"/"+monitorID+"/_acknowledge/alerts", strings.NewReader(body), nil)
}

// Probe hits the cluster root and reports reachability.
func (a *OpenSearchAdapter) Probe(ctx context.Context, ds *model.Datasource) ProbeResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(ds.URL, "/")+"/", nil)
	if err != nil {
		return ProbeResult{Success: false, Message: err.Error()}
	}
	resp, err := a.caller.do(req)
	if err != nil {
		return ProbeResult{Success: false, Message: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ProbeResult{Success: false, Message: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}
	return ProbeResult{Success: true}
}

func (a *OpenSearchAdapter) doJSON(ctx context.Context, ds *model.Datasource, method, path string, body io.Reader, v any) error {
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimSuffix(ds.URL, "/")+path, body)
	if err != nil {
		return backendErr(ds, "build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := a.caller.do(req)
	if err != nil {
		return backendErr(ds, "opensearch request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return &model.NotFoundError{Resource: "monitor", ID: path}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return invalidResponseErr(ds, fmt.Sprintf("opensearch returned status %d: %s", resp.StatusCode, truncate(string(b), 200)))
	}
	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return invalidResponseErr(ds, "decode opensearch response: "+err.Error())
	}
	return nil
}

func nativeOSMonitor(m *model.UnifiedMonitor) *osMonitor {
	native := &osMonitor{Type: "monitor", Name: m.Name, Enabled: m.Enabled}
	native.Schedule.Period.Interval = int(m.Evaluation.Interval / time.Minute)
	if native.Schedule.Period.Interval < 1 {
		native.Schedule.Period.Interval = 1
	}
	native.Schedule.Period.Unit = "MINUTES"

	var in osInput
	in.Search.Indices = []string{"*"}
	if json.Valid([]byte(m.Query)) {
		in.Search.Query = json.RawMessage(m.Query)
	} else {
		q, _ := json.Marshal(map[string]string{"query": m.Query})
		in.Search.Query = q
	}
	native.Inputs = []osInput{in}

	var tr osTrigger
	tr.Name = m.Name + "-trigger"
	tr.Severity = osSeverity(severityFromLabels(m.Labels))
	tr.Condition.Script.Source = fmt.Sprintf("ctx.results[0].hits.total.value %s %g", m.Condition.Operator, m.Condition.Threshold)
	tr.Condition.Script.Lang = "painless"
	native.Triggers = []osTrigger{tr}

	native.UIMeta = osUIMetadata{
		Query:         m.Query,
		Operator:      m.Condition.Operator,
		Threshold:     m.Condition.Threshold,
		ForDuration:   m.Condition.ForDuration.String(),
		Interval:      m.Evaluation.Interval.String(),
		PendingPeriod: m.Evaluation.PendingPeriod.String(),
		FiringPeriod:  m.Evaluation.FiringPeriod.String(),
		Labels:        m.Labels,
		Annotations:   annotationsToMap(m.Annotations),
		Routing:       m.Routing,
	}
	return native
}

func unifyOSMonitor(ds *model.Datasource, id string, n *osMonitor) *model.UnifiedMonitor {
	meta := n.UIMeta
	m := &model.UnifiedMonitor{
		ID:           id,
		DatasourceID: ds.ID,
		Name:         n.Name,
		Type:         "opensearch",
		Query:        meta.Query,
		Condition: model.Condition{
			Operator:    meta.Operator,
			Threshold:   meta.Threshold,
			ForDuration: parseDurationOr(meta.ForDuration, time.Minute),
		},
		Evaluation: model.Evaluation{
			Interval:      parseDurationOr(meta.Interval, time.Duration(n.Schedule.Period.Interval)*time.Minute),
			PendingPeriod: parseDurationOr(meta.PendingPeriod, time.Minute),
			FiringPeriod:  parseDurationOr(meta.FiringPeriod, 5*time.Minute),
		},
		Labels:      model.LabelMap(meta.Labels),
		Annotations: annotationsFromMap(meta.Annotations),
		Routing:     meta.Routing,
		Enabled:     n.Enabled,
	}
	if m.Query == "" && len(n.Inputs) > 0 {
		m.Query = string(n.Inputs[0].Search.Query)
	}
	if m.Condition.Operator == "" {
		m.Condition.Operator = ">"
	}
	return m
}

func unifyOSAlert(ds *model.Datasource, a *osAlert) *model.UnifiedAlert {
	u := &model.UnifiedAlert{
		ID:           a.MonitorID + "/" + a.ID,
		MonitorID:    a.MonitorID,
		DatasourceID: ds.ID,
		Severity:     unifiedSeverityFromOS(a.Severity),
		State:        mapOSState(a.State),
		StartTime:    time.UnixMilli(a.StartTime).UTC(),
		Labels: model.LabelMap{
			"alertname": a.MonitorName,
			"trigger":   a.TriggerName,
		},
	}
	if a.ErrorMessage != "" {
		u.Annotations.Description = a.ErrorMessage
	}
	return u
}

func mapOSState(s string) model.AlertState {
	switch s {
	case "ACTIVE":
		return model.StateActive
	case "ACKNOWLEDGED":
		return model.StateAcknowledged
	case "COMPLETED":
		return model.StateResolved
	case "ERROR":
		return model.StateError
	default:
		return model.StateError
	}
}

// osSeverity maps a unified severity onto the plugin's "1".."5" scale.
func osSeverity(s model.Severity) string {
	switch s {
	case model.SeverityCritical:
		return "1"
	case model.SeverityHigh:
		return "2"
	case model.SeverityMedium:
		return "3"
	case model.SeverityLow:
		return "4"
	default:
		return "5"
	}
}

func unifiedSeverityFromOS(s string) model.Severity {
	switch s {
	case "1":
		return model.SeverityCritical
	case "2":
		return model.SeverityHigh
	case "3":
		return model.SeverityMedium
	case "4":
		return model.SeverityLow
	case "5":
		return model.SeverityInfo
	default:
		return model.SeverityMedium
	}
}

func severityFromLabels(labels model.LabelMap) model.Severity {
	if s, ok := labels["severity"]; ok {
		return mapSeverity(s)
	}
	return model.SeverityMedium
}

func annotationsToMap(a model.Annotations) map[string]string {
	out := map[string]string{}
	if a.Summary != "" {
		out["summary"] = a.Summary
	}
	if a.Description != "" {
		out["description"] = a.Description
	}
	if a.RunbookURL != "" {
		out["runbook_url"] = a.RunbookURL
	}
	if a.DashboardURL != "" {
		out["dashboard_url"] = a.DashboardURL
	}
	return out
}

func annotationsFromMap(m map[string]string) model.Annotations {
	return model.Annotations{
		Summary:      m["summary"],
		Description:  m["description"],
		RunbookURL:   m["runbook_url"],
		DashboardURL: m["dashboard_url"],
	}
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
