package serializer

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/unimon/unimon/internal/model"
)

func sampleMonitor() *model.UnifiedMonitor {
	return &model.UnifiedMonitor{
		Name:  "High error rate",
		Type:  "metric_threshold",
		Query: `sum(rate(http_requests_total{status="500"}[5m]))`,
		Condition: model.Condition{
			Operator:    ">",
			Threshold:   0.05,
			ForDuration: 5 * time.Minute,
		},
		Evaluation: model.Evaluation{
			Interval:      time.Minute,
			PendingPeriod: 2 * time.Minute,
			FiringPeriod:  10 * time.Minute,
		},
		Labels: model.LabelMap{"severity": "high", "team": "platform"},
		Annotations: model.Annotations{
			Summary:    "Error rate above 5%",
			RunbookURL: "https://runbooks.example.com/error-rate",
		},
		Routing: "prod-pager",
		Enabled: true,
	}
}

func TestRoundTrip(t *testing.T) {
	orig := sampleMonitor()
	docs := SerializeMonitors([]*model.UnifiedMonitor{orig})
	if len(docs) != 1 {
		t.Fatalf("documents: %d", len(docs))
	}

	// export through the wire format and back
	raw, err := ExportJSON(docs)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	var parsed []MonitorDocument
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("re-parse export: %v", err)
	}

	got, ferrs := DeserializeMonitor(&parsed[0])
	if len(ferrs) != 0 {
		t.Fatalf("round-trip violations: %v", ferrs)
	}
	if !reflect.DeepEqual(got, orig) {
		t.Fatalf("round trip changed the monitor:\n got %#v\nwant %#v", got, orig)
	}
}

func TestSerializeOmitsServerIdentifiers(t *testing.T) {
	m := sampleMonitor()
	m.ID = "server-id"
	m.DatasourceID = "ds-id"
	raw, err := ExportJSON(SerializeMonitors([]*model.UnifiedMonitor{m}))
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	var generic []map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatalf("parse: %v", err)
	}
	for _, key := range []string{"id", "datasourceId"} {
		if _, ok := generic[0][key]; ok {
			t.Fatalf("exported document leaks %q", key)
		}
	}
}

func TestDeserializeReportsEveryViolation(t *testing.T) {
	doc := &MonitorDocument{
		Name:      "   ",
		Query:     "",
		Condition: ConditionDocument{Operator: "~", ForDuration: "bananas"},
		Evaluation: EvaluationDocument{
			Interval:      "-1m",
			PendingPeriod: "",
			FiringPeriod:  "5m",
		},
	}
	cfg, ferrs := DeserializeMonitor(doc)
	if cfg != nil {
		t.Fatal("invalid document produced a config")
	}
	wantFields := []string{"name", "query", "condition.operator", "condition.forDuration", "evaluation.interval", "evaluation.pendingPeriod"}
	if len(ferrs) != len(wantFields) {
		t.Fatalf("expected %d violations, got %v", len(wantFields), ferrs)
	}
	for i, f := range wantFields {
		if ferrs[i].Field != f {
			t.Fatalf("violation %d: got %s want %s", i, ferrs[i].Field, f)
		}
	}
}

func TestDeserializePendingPeriodCap(t *testing.T) {
	doc := &MonitorDocument{
		Name:       "m",
		Query:      "q",
		Condition:  ConditionDocument{Operator: ">", ForDuration: "1m"},
		Evaluation: EvaluationDocument{Interval: "1m", PendingPeriod: "25h", FiringPeriod: "5m"},
	}
	cfg, ferrs := DeserializeMonitor(doc)
	if cfg != nil || len(ferrs) != 1 || ferrs[0].Field != "evaluation.pendingPeriod" {
		t.Fatalf("pending period above cap not rejected: %#v %v", cfg, ferrs)
	}
}

type recordingCreator struct {
	created []*model.UnifiedMonitor
	deleted []string
	failAt  int // 1-based index of the create call that fails, 0 disables
	calls   int
}

func (c *recordingCreator) CreateMonitor(ctx context.Context, m *model.UnifiedMonitor) (*model.UnifiedMonitor, error) {
	c.calls++
	if c.failAt > 0 && c.calls == c.failAt {
		return nil, fmt.Errorf("backend unavailable")
	}
	stored := *m
	stored.ID = fmt.Sprintf("mon-%d", c.calls)
	c.created = append(c.created, &stored)
	return &stored, nil
}

func (c *recordingCreator) DeleteMonitor(ctx context.Context, dsID, monitorID string) error {
	c.deleted = append(c.deleted, monitorID)
	return nil
}

func validDoc(name string) MonitorDocument {
	return MonitorDocument{
		Name:       name,
		Query:      "up == 0",
		Condition:  ConditionDocument{Operator: "=", Threshold: 0, ForDuration: "1m"},
		Evaluation: EvaluationDocument{Interval: "30s", PendingPeriod: "1m", FiringPeriod: "5m"},
	}
}

func TestImportAllValid(t *testing.T) {
	creator := &recordingCreator{}
	res, err := ImportMonitors(context.Background(), creator, []MonitorDocument{validDoc("a"), validDoc("b")})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !res.Accepted || len(creator.created) != 2 {
		t.Fatalf("expected both persisted: %#v, created=%d", res, len(creator.created))
	}
	for i, item := range res.Items {
		if !item.Success || item.Index != i {
			t.Fatalf("item %d: %#v", i, item)
		}
	}
}

func TestImportAtomicOnValidation(t *testing.T) {
	creator := &recordingCreator{}
	bad := validDoc("bad")
	bad.Query = ""
	res, err := ImportMonitors(context.Background(), creator, []MonitorDocument{validDoc("a"), bad, validDoc("c")})
	if err != nil {
		t.Fatalf("validation rejection is not an error: %v", err)
	}
	if res.Accepted {
		t.Fatal("batch with an invalid item was accepted")
	}
	if creator.calls != 0 {
		t.Fatalf("nothing may be persisted, creator called %d times", creator.calls)
	}
	if res.Items[0].Success != true || res.Items[1].Success != false || res.Items[2].Success != true {
		t.Fatalf("per-item outcomes: %#v", res.Items)
	}
	if len(res.Items[1].Errors) != 1 || res.Items[1].Errors[0].Field != "query" {
		t.Fatalf("invalid item violations: %#v", res.Items[1].Errors)
	}
}

func TestImportBackendFailureSurfaces(t *testing.T) {
	creator := &recordingCreator{failAt: 2}
	res, err := ImportMonitors(context.Background(), creator, []MonitorDocument{validDoc("a"), validDoc("b")})
	if err == nil {
		t.Fatal("backend failure must raise")
	}
	if res.Accepted {
		t.Fatal("failed batch marked accepted")
	}
	if res.Items[1].Success || len(res.Items[1].Errors) == 0 || res.Items[1].Errors[0].Field != "_backend" {
		t.Fatalf("backend failure not reported against the item: %#v", res.Items[1])
	}
}

func TestImportRollsBackOnBackendFailure(t *testing.T) {
	creator := &recordingCreator{failAt: 3}
	res, err := ImportMonitors(context.Background(), creator, []MonitorDocument{validDoc("a"), validDoc("b"), validDoc("c")})
	if err == nil {
		t.Fatal("backend failure must raise")
	}
	if len(creator.deleted) != 2 {
		t.Fatalf("earlier monitors not rolled back: deleted=%v", creator.deleted)
	}
	if creator.deleted[0] != "mon-1" || creator.deleted[1] != "mon-2" {
		t.Fatalf("wrong monitors deleted: %v", creator.deleted)
	}
	for i, item := range res.Items {
		if item.Success {
			t.Fatalf("item %d still successful after rollback: %#v", i, item)
		}
	}
}
