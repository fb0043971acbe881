package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	prommodel "github.com/prometheus/common/model"

	"github.com/unimon/unimon/internal/model"
)

// PrometheusAdapter speaks the Prometheus HTTP API (also exposed by
// Amazon Managed Prometheus): /api/v1/rules for monitors and /api/v1/alerts
// for alert instances. The rule API is read-only, so monitor writes and
// alert acknowledgement are rejected with a backend error.
type PrometheusAdapter struct {
	caller *httpCaller
}

// NewPrometheusAdapter returns an adapter with the given per-request
// transport timeout.
func NewPrometheusAdapter(timeout time.Duration) *PrometheusAdapter {
	return &PrometheusAdapter{caller: newHTTPCaller(timeout)}
}

func (a *PrometheusAdapter) Type() model.DatasourceType { return model.DatasourcePrometheus }

// promRule is one alerting rule entry from /api/v1/rules.
type promRule struct {
	Type        string             `json:"type"`
	Name        string             `json:"name"`
	Query       string             `json:"query"`
	Duration    float64            `json:"duration"` // "for" in seconds
	Labels      prommodel.LabelSet `json:"labels"`
	Annotations prommodel.LabelSet `json:"annotations"`
	Health      string             `json:"health"`
	State       string             `json:"state"`
	Alerts      []promAlert        `json:"alerts"`
}

// PromRuleGroup is a native rule group, surfaced untranslated for
// datasource-scoped reads.
type PromRuleGroup struct {
	Name     string     `json:"name"`
	File     string     `json:"file"`
	Interval float64    `json:"interval"`
	Rules    []promRule `json:"rules"`
}

type promRulesResponse struct {
	Status string `json:"status"`
	Data   struct {
		Groups []PromRuleGroup `json:"groups"`
	} `json:"data"`
}

type promAlert struct {
	Labels      prommodel.LabelSet `json:"labels"`
	Annotations prommodel.LabelSet `json:"annotations"`
	State       string             `json:"state"` // inactive, pending, firing
	ActiveAt    time.Time          `json:"activeAt"`
	Value       string             `json:"value"`
}

type promAlertsResponse struct {
	Status string `json:"status"`
	Data   struct {
		Alerts []promAlert `json:"alerts"`
	} `json:"data"`
}

// RuleGroups fetches the native rule groups of one Prometheus datasource.
func (a *PrometheusAdapter) RuleGroups(ctx context.Context, ds *model.Datasource) ([]PromRuleGroup, error) {
	var resp promRulesResponse
	if err := a.getJSON(ctx, ds, "/api/v1/rules", &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" {
		return nil, invalidResponseErr(ds, fmt.Sprintf("prometheus returned status %q", resp.Status))
	}
	return resp.Data.Groups, nil
}

// FetchMonitors lists all alerting rules as unified monitors. Recording
// rules are skipped.
func (a *PrometheusAdapter) FetchMonitors(ctx context.Context, ds *model.Datasource) ([]*model.UnifiedMonitor, error) {
	groups, err := a.RuleGroups(ctx, ds)
	if err != nil {
		return nil, err
	}
	var out []*model.UnifiedMonitor
	for _, g := range groups {
		for _, r := range g.Rules {
			if r.Type != "alerting" {
				continue
			}
			out = append(out, unifyPromRule(ds, &g, &r))
		}
	}
	return out, nil
}

// FetchAlerts lists pending and firing alerts as unified alerts.
func (a *PrometheusAdapter) FetchAlerts(ctx context.Context, ds *model.Datasource) ([]*model.UnifiedAlert, error) {
	var resp promAlertsResponse
	if err := a.getJSON(ctx, ds, "/api/v1/alerts", &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" {
		return nil, invalidResponseErr(ds, fmt.Sprintf("prometheus returned status %q", resp.Status))
	}
	out := make([]*model.UnifiedAlert, 0, len(resp.Data.Alerts))
	for i := range resp.Data.Alerts {
		out = append(out, unifyPromAlert(ds, &resp.Data.Alerts[i]))
	}
	return out, nil
}

// CreateMonitor is not supported: the Prometheus rule API is read-only.
func (a *PrometheusAdapter) CreateMonitor(ctx context.Context, ds *model.Datasource, m *model.UnifiedMonitor) (*model.UnifiedMonitor, error) {
	return nil, invalidResponseErr(ds, "monitor writes are not supported for prometheus datasources")
}

func (a *PrometheusAdapter) UpdateMonitor(ctx context.Context, ds *model.Datasource, m *model.UnifiedMonitor) (*model.UnifiedMonitor, error) {
	return nil, invalidResponseErr(ds, "monitor writes are not supported for prometheus datasources")
}

func (a *PrometheusAdapter) DeleteMonitor(ctx context.Context, ds *model.Datasource, monitorID string) error {
	return invalidResponseErr(ds, "monitor writes are not supported for prometheus datasources")
}

func (a *PrometheusAdapter) AcknowledgeAlert(ctx context.Context, ds *model.Datasource, alertID string) error {
	return invalidResponseErr(ds, "alert acknowledgement is not supported for prometheus datasources")
}

// Probe checks the Prometheus healthy endpoint. A failed probe is reported
// in the result, never raised.
func (a *PrometheusAdapter) Probe(ctx context.Context, ds *model.Datasource) ProbeResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(ds.URL, "/")+"/-/healthy", nil)
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

func (a *PrometheusAdapter) getJSON(ctx context.Context, ds *model.Datasource, path string, v any) error {
	reqURL := strings.TrimSuffix(ds.URL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return backendErr(ds, "build request", err)
	}
	resp, err := a.caller.do(req)
	if err != nil {
		return backendErr(ds, "prometheus request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return invalidResponseErr(ds, fmt.Sprintf("prometheus returned status %d", resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return invalidResponseErr(ds, "decode prometheus response: "+err.Error())
	}
	return nil
}

func unifyPromRule(ds *model.Datasource, g *PromRuleGroup, r *promRule) *model.UnifiedMonitor {
	labels := labelSetToMap(r.Labels)
	ann := labelSetToMap(r.Annotations)
	interval := time.Duration(g.Interval * float64(time.Second))
	if interval <= 0 {
		interval = time.Minute
	}
	forDur := time.Duration(r.Duration * float64(time.Second))
	m := &model.UnifiedMonitor{
		ID:           g.Name + "/" + r.Name,
		DatasourceID: ds.ID,
		Name:         r.Name,
		Type:         "prometheus",
		Query:        r.Query,
		Condition:    model.Condition{Operator: ">", ForDuration: forDur},
		Evaluation: model.Evaluation{
			Interval:      interval,
			PendingPeriod: maxDuration(forDur, time.Minute),
			FiringPeriod:  5 * time.Minute,
		},
		Labels: labels,
		Annotations: model.Annotations{
			Summary:      ann["summary"],
			Description:  ann["description"],
			RunbookURL:   ann["runbook_url"],
			DashboardURL: ann["dashboard_url"],
		},
		Enabled: true,
		Health:  r.Health,
	}
	return m
}

func unifyPromAlert(ds *model.Datasource, a *promAlert) *model.UnifiedAlert {
	labels := labelSetToMap(a.Labels)
	ann := labelSetToMap(a.Annotations)
	name := labels["alertname"]
	return &model.UnifiedAlert{
		ID:           ds.ID + ":" + name + ":" + model.LabelMap(labels).Canonical(),
		MonitorID:    name,
		DatasourceID: ds.ID,
		Severity:     mapSeverity(labels["severity"]),
		State:        mapPromState(a.State),
		StartTime:    a.ActiveAt,
		Labels:       labels,
		Annotations: model.Annotations{
			Summary:     ann["summary"],
			Description: ann["description"],
			RunbookURL:  ann["runbook_url"],
		},
		Value: a.Value,
	}
}

func labelSetToMap(ls prommodel.LabelSet) model.LabelMap {
	out := make(model.LabelMap, len(ls))
	for k, v := range ls {
		out[string(k)] = string(v)
	}
	return out
}

func mapPromState(s string) model.AlertState {
	switch s {
	case "firing":
		return model.StateActive
	case "pending":
		return model.StatePending
	case "inactive":
		return model.StateResolved
	default:
		return model.StateError
	}
}

func mapSeverity(s string) model.Severity {
	switch strings.ToLower(s) {
	case "critical", "p0":
		return model.SeverityCritical
	case "high", "error", "p1":
		return model.SeverityHigh
	case "medium", "warning", "p2":
		return model.SeverityMedium
	case "low", "p3":
		return model.SeverityLow
	case "info", "none":
		return model.SeverityInfo
	default:
		return model.SeverityMedium
	}
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
