package aggregation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/unimon/unimon/internal/adapter"
	"github.com/unimon/unimon/internal/datasource"
	"github.com/unimon/unimon/internal/model"
	"github.com/unimon/unimon/internal/routing"
	"github.com/unimon/unimon/internal/suppression"
)

// fakeAdapter scripts per-datasource behavior by datasource id.
type fakeAdapter struct {
	mu       sync.Mutex
	alerts   map[string][]*model.UnifiedAlert
	monitors map[string][]*model.UnifiedMonitor
	errs     map[string]error
	delays   map[string]time.Duration
	hangs    map[string]bool // sleep through cancellation instead of honoring it
	calls    map[string]int
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		alerts:   map[string][]*model.UnifiedAlert{},
		monitors: map[string][]*model.UnifiedMonitor{},
		errs:     map[string]error{},
		delays:   map[string]time.Duration{},
		hangs:    map[string]bool{},
		calls:    map[string]int{},
	}
}

func (f *fakeAdapter) Type() model.DatasourceType { return model.DatasourcePrometheus }

func (f *fakeAdapter) callCount(dsID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[dsID]
}

func (f *fakeAdapter) serve(ctx context.Context, dsID string) error {
	f.mu.Lock()
	f.calls[dsID]++
	delay := f.delays[dsID]
	hang := f.hangs[dsID]
	err := f.errs[dsID]
	f.mu.Unlock()
	if hang {
		time.Sleep(delay)
	} else if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

func (f *fakeAdapter) FetchAlerts(ctx context.Context, ds *model.Datasource) ([]*model.UnifiedAlert, error) {
	if err := f.serve(ctx, ds.ID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alerts[ds.ID], nil
}

func (f *fakeAdapter) FetchMonitors(ctx context.Context, ds *model.Datasource) ([]*model.UnifiedMonitor, error) {
	if err := f.serve(ctx, ds.ID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.monitors[ds.ID], nil
}

func (f *fakeAdapter) CreateMonitor(ctx context.Context, ds *model.Datasource, m *model.UnifiedMonitor) (*model.UnifiedMonitor, error) {
	if err := f.serve(ctx, ds.ID); err != nil {
		return nil, err
	}
	cp := *m
	cp.ID = fmt.Sprintf("mon-%d", f.callCount(ds.ID))
	cp.DatasourceID = ds.ID
	f.mu.Lock()
	f.monitors[ds.ID] = append(f.monitors[ds.ID], &cp)
	f.mu.Unlock()
	return &cp, nil
}

func (f *fakeAdapter) UpdateMonitor(ctx context.Context, ds *model.Datasource, m *model.UnifiedMonitor) (*model.UnifiedMonitor, error) {
	return m, f.serve(ctx, ds.ID)
}

func (f *fakeAdapter) DeleteMonitor(ctx context.Context, ds *model.Datasource, monitorID string) error {
	return f.serve(ctx, ds.ID)
}

func (f *fakeAdapter) AcknowledgeAlert(ctx context.Context, ds *model.Datasource, alertID string) error {
	return f.serve(ctx, ds.ID)
}

func (f *fakeAdapter) Probe(ctx context.Context, ds *model.Datasource) adapter.ProbeResult {
	if err := f.serve(ctx, ds.ID); err != nil {
		return adapter.ProbeResult{Success: false, Message: err.Error()}
	}
	return adapter.ProbeResult{Success: true}
}

type fixture struct {
	engine *Engine
	reg    *datasource.Registry
	fake   *fakeAdapter
	ds     []*model.Datasource
}

func alertFor(dsID, name string) *model.UnifiedAlert {
	return &model.UnifiedAlert{
		ID:           dsID + ":" + name,
		MonitorID:    name,
		DatasourceID: dsID,
		Severity:     model.SeverityHigh,
		State:        model.StateActive,
		StartTime:    time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		Labels:       model.LabelMap{"alertname": name, "env": "prod"},
	}
}

func newFixture(t *testing.T, n int, opts ...Option) *fixture {
	t.Helper()
	reg := datasource.NewRegistry()
	fake := newFakeAdapter()
	fx := &fixture{reg: reg, fake: fake}
	for i := 0; i < n; i++ {
		ds := &model.Datasource{Name: fmt.Sprintf("ds-%d", i+1), Type: model.DatasourcePrometheus, URL: "http://p", Enabled: true}
		if err := reg.Create(context.Background(), ds); err != nil {
			t.Fatalf("create datasource: %v", err)
		}
		fx.ds = append(fx.ds, ds)
	}
	fx.engine = NewEngine(reg, adapter.NewResolver(fake), routing.NewEngine(), suppression.NewEngine(), opts...)
	return fx
}

func TestPartialProgressOnTimeout(t *testing.T) {
	fx := newFixture(t, 2)
	fast, slow := fx.ds[0], fx.ds[1]
	fx.fake.alerts[fast.ID] = []*model.UnifiedAlert{
		alertFor(fast.ID, "a"), alertFor(fast.ID, "b"), alertFor(fast.ID, "c"),
	}
	fx.fake.delays[fast.ID] = 10 * time.Millisecond
	fx.fake.delays[slow.ID] = 2 * time.Second // never completes in time
	fx.fake.hangs[slow.ID] = true

	start := time.Now()
	res, err := fx.engine.GetUnifiedAlerts(context.Background(), QueryOptions{Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("call not bounded by deadline, took %v", elapsed)
	}
	if len(res.Results) != 3 {
		t.Fatalf("expected 3 alerts from fast datasource, got %d", len(res.Results))
	}
	if res.DatasourceStatuses[fast.ID].Status != model.FetchSuccess {
		t.Fatalf("fast status: %#v", res.DatasourceStatuses[fast.ID])
	}
	if res.DatasourceStatuses[slow.ID].Status != model.FetchTimeout {
		t.Fatalf("slow status: %#v", res.DatasourceStatuses[slow.ID])
	}
}

func TestTimeoutStatusWhenAdapterHonorsCancellation(t *testing.T) {
	fx := newFixture(t, 2)
	fast, slow := fx.ds[0], fx.ds[1]
	fx.fake.alerts[fast.ID] = []*model.UnifiedAlert{alertFor(fast.ID, "a")}
	// the slow datasource honors cancellation: at the shared deadline its
	// fetch returns a context.DeadlineExceeded error, which may already be
	// buffered when the collector looks
	fx.fake.delays[slow.ID] = 10 * time.Second

	res, err := fx.engine.GetUnifiedAlerts(context.Background(), QueryOptions{Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(res.Results) != 1 {
		t.Fatalf("expected the fast datasource's alert, got %d", len(res.Results))
	}
	if got := res.DatasourceStatuses[slow.ID].Status; got != model.FetchTimeout {
		t.Fatalf("deadline-cut datasource must report timeout, got %#v", res.DatasourceStatuses[slow.ID])
	}
	if res.DatasourceStatuses[fast.ID].Status != model.FetchSuccess {
		t.Fatalf("fast status: %#v", res.DatasourceStatuses[fast.ID])
	}
}

func TestFetchStatusClassification(t *testing.T) {
	if got := fetchStatus(nil); got.Status != model.FetchSuccess {
		t.Fatalf("nil error: %#v", got)
	}
	// the adapters wrap transport errors; the deadline must survive the chain
	wrapped := &model.BackendError{
		Kind:    model.BackendTimeout,
		Message: "prometheus request failed",
		Err:     fmt.Errorf("get rules: %w", context.DeadlineExceeded),
	}
	if got := fetchStatus(wrapped); got.Status != model.FetchTimeout {
		t.Fatalf("wrapped deadline: %#v", got)
	}
	if got := fetchStatus(context.DeadlineExceeded); got.Status != model.FetchTimeout {
		t.Fatalf("bare deadline: %#v", got)
	}
	refused := &model.BackendError{Kind: model.BackendConnectionRefused, Message: "connection refused"}
	if got := fetchStatus(refused); got.Status != model.FetchError {
		t.Fatalf("refused connection is an error, not a timeout: %#v", got)
	}
}

func TestStatusesKeyedByRequestedSubset(t *testing.T) {
	fx := newFixture(t, 3)
	fx.fake.alerts[fx.ds[0].ID] = []*model.UnifiedAlert{alertFor(fx.ds[0].ID, "a")}

	req := []string{fx.ds[0].ID, "no-such-ds"}
	res, err := fx.engine.GetUnifiedAlerts(context.Background(), QueryOptions{DatasourceIDs: req})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(res.DatasourceStatuses) != 2 {
		t.Fatalf("statuses keyed by exactly the requested set, got %#v", res.DatasourceStatuses)
	}
	if res.DatasourceStatuses["no-such-ds"].Status != model.FetchError {
		t.Fatalf("unknown datasource status: %#v", res.DatasourceStatuses["no-such-ds"])
	}
	if _, ok := res.DatasourceStatuses[fx.ds[2].ID]; ok {
		t.Fatal("unrequested datasource leaked into statuses")
	}
}

func TestErrorIsolatedPerDatasource(t *testing.T) {
	fx := newFixture(t, 2)
	good, bad := fx.ds[0], fx.ds[1]
	fx.fake.alerts[good.ID] = []*model.UnifiedAlert{alertFor(good.ID, "a")}
	fx.fake.errs[bad.ID] = &model.BackendError{Kind: model.BackendConnectionRefused, DatasourceID: bad.ID, Message: "connection refused"}

	res, err := fx.engine.GetUnifiedAlerts(context.Background(), QueryOptions{})
	if err != nil {
		t.Fatalf("aggregate must not fail on one bad datasource: %v", err)
	}
	if len(res.Results) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(res.Results))
	}
	if res.DatasourceStatuses[bad.ID].Status != model.FetchError {
		t.Fatalf("bad status: %#v", res.DatasourceStatuses[bad.ID])
	}
}

func TestResultOrderFollowsDatasourceOrder(t *testing.T) {
	fx := newFixture(t, 2)
	first, second := fx.ds[0], fx.ds[1]
	fx.fake.alerts[first.ID] = []*model.UnifiedAlert{alertFor(first.ID, "a1"), alertFor(first.ID, "a2")}
	fx.fake.alerts[second.ID] = []*model.UnifiedAlert{alertFor(second.ID, "b1")}
	// the first datasource answers later than the second
	fx.fake.delays[first.ID] = 30 * time.Millisecond

	res, err := fx.engine.GetUnifiedAlerts(context.Background(), QueryOptions{})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	want := []string{first.ID + ":a1", first.ID + ":a2", second.ID + ":b1"}
	if len(res.Results) != len(want) {
		t.Fatalf("expected %d alerts, got %d", len(want), len(res.Results))
	}
	for i, id := range want {
		if res.Results[i].ID != id {
			t.Fatalf("order wrong at %d: got %s want %s", i, res.Results[i].ID, id)
		}
	}
}

func TestCacheServesWithinTTLAndRetryBypasses(t *testing.T) {
	fx := newFixture(t, 2)
	a, b := fx.ds[0], fx.ds[1]
	fx.fake.alerts[a.ID] = []*model.UnifiedAlert{alertFor(a.ID, "x")}
	fx.fake.alerts[b.ID] = []*model.UnifiedAlert{alertFor(b.ID, "y")}

	ctx := context.Background()
	if _, err := fx.engine.GetUnifiedAlerts(ctx, QueryOptions{}); err != nil {
		t.Fatalf("first aggregate: %v", err)
	}
	if _, err := fx.engine.GetUnifiedAlerts(ctx, QueryOptions{}); err != nil {
		t.Fatalf("second aggregate: %v", err)
	}
	if got := fx.fake.callCount(a.ID); got != 1 {
		t.Fatalf("expected cached read, adapter called %d times", got)
	}

	// retry bypasses exactly one datasource's entry
	if _, err := fx.engine.RetryAlerts(ctx, a.ID); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got := fx.fake.callCount(a.ID); got != 2 {
		t.Fatalf("retry should re-fetch ds a, calls=%d", got)
	}
	if got := fx.fake.callCount(b.ID); got != 1 {
		t.Fatalf("retry must not touch ds b cache, calls=%d", got)
	}
}

func TestPagination(t *testing.T) {
	fx := newFixture(t, 2)
	a, b := fx.ds[0], fx.ds[1]
	for i := 0; i < 15; i++ {
		fx.fake.monitors[a.ID] = append(fx.fake.monitors[a.ID], &model.UnifiedMonitor{ID: fmt.Sprintf("a-%02d", i), DatasourceID: a.ID})
	}
	for i := 0; i < 10; i++ {
		fx.fake.monitors[b.ID] = append(fx.fake.monitors[b.ID], &model.UnifiedMonitor{ID: fmt.Sprintf("b-%02d", i), DatasourceID: b.ID})
	}

	ctx := context.Background()
	page2, err := fx.engine.GetPaginatedRules(ctx, QueryOptions{}, 2, 10)
	if err != nil {
		t.Fatalf("paginate: %v", err)
	}
	if page2.Total != 25 || len(page2.Items) != 10 {
		t.Fatalf("page 2: total=%d items=%d", page2.Total, len(page2.Items))
	}
	if page2.Items[0].ID != "a-10" || page2.Items[9].ID != "b-04" {
		t.Fatalf("page 2 covers wrong slice: %s..%s", page2.Items[0].ID, page2.Items[9].ID)
	}

	// concatenating pages covers the full set without gaps or duplicates
	seen := map[string]bool{}
	count := 0
	for p := 1; ; p++ {
		page, err := fx.engine.GetPaginatedRules(ctx, QueryOptions{}, p, 10)
		if err != nil {
			t.Fatalf("page %d: %v", p, err)
		}
		if len(page.Items) == 0 {
			break
		}
		for _, m := range page.Items {
			if seen[m.ID] {
				t.Fatalf("duplicate item %s", m.ID)
			}
			seen[m.ID] = true
			count++
		}
	}
	if count != 25 {
		t.Fatalf("pages covered %d of 25 items", count)
	}

	// out-of-range and oversized parameters are clamped, not failed
	far, err := fx.engine.GetPaginatedRules(ctx, QueryOptions{}, 99, 10)
	if err != nil || len(far.Items) != 0 || far.Total != 25 {
		t.Fatalf("far page: %v %#v", err, far)
	}
	big, err := fx.engine.GetPaginatedRules(ctx, QueryOptions{}, 1, 100000)
	if err != nil || big.PageSize != MaxPageSize {
		t.Fatalf("page size not clamped: %v %#v", err, big)
	}
}

func TestMutedAndRoutedDecoration(t *testing.T) {
	fx := newFixture(t, 1)
	ds := fx.ds[0]
	fx.fake.alerts[ds.ID] = []*model.UnifiedAlert{alertFor(ds.ID, "noisy")}

	ctx := context.Background()
	if _, err := fx.engine.suppression.Create(ctx, &model.SuppressionRule{
		Name:         "mute-prod",
		Matchers:     model.LabelMap{"env": "prod"},
		ScheduleType: model.ScheduleOneTime,
		StartTime:    time.Now().Add(-time.Hour),
		EndTime:      time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("create suppression: %v", err)
	}
	if err := fx.engine.routing.Create(ctx, &model.RoutingRule{
		Name:         "prod-pager",
		Matchers:     model.RouteMatchers{Labels: model.LabelMap{"env": "prod"}},
		Destinations: []string{"pagerduty"},
	}); err != nil {
		t.Fatalf("create routing: %v", err)
	}

	res, err := fx.engine.GetUnifiedAlerts(ctx, QueryOptions{})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	a := res.Results[0]
	if !a.Muted || a.MutedBy == "" {
		t.Fatalf("expected muted alert, got %#v", a)
	}
	if len(a.RoutedTo) != 1 || a.RoutedTo[0] != "pagerduty" {
		t.Fatalf("expected routedTo decoration, got %#v", a.RoutedTo)
	}
}

func TestMonitorCRUDRouting(t *testing.T) {
	fx := newFixture(t, 1)
	ds := fx.ds[0]

	ctx := context.Background()
	created, err := fx.engine.CreateMonitor(ctx, &model.UnifiedMonitor{DatasourceID: ds.ID, Name: "m"})
	if err != nil {
		t.Fatalf("create monitor: %v", err)
	}
	if created.ID == "" || created.DatasourceID != ds.ID {
		t.Fatalf("unexpected created monitor: %#v", created)
	}

	if _, err := fx.engine.CreateMonitor(ctx, &model.UnifiedMonitor{DatasourceID: "missing", Name: "m"}); !model.IsNotFound(err) {
		t.Fatalf("expected not found for unknown datasource, got %v", err)
	}
	if _, err := fx.engine.CreateMonitor(ctx, &model.UnifiedMonitor{Name: "m"}); err == nil {
		t.Fatal("expected error with no datasource and no default")
	}
}

func TestDefaultDatasourceFacade(t *testing.T) {
	fx := newFixture(t, 1, WithDefaultDatasource("set-later"))
	fx.engine.defaultDatasource = fx.ds[0].ID
	created, err := fx.engine.CreateMonitor(context.Background(), &model.UnifiedMonitor{Name: "m"})
	if err != nil {
		t.Fatalf("create via default datasource: %v", err)
	}
	if created.DatasourceID != fx.ds[0].ID {
		t.Fatalf("default datasource not used: %#v", created)
	}
}

func TestTestConnection(t *testing.T) {
	fx := newFixture(t, 1)
	res, err := fx.engine.TestConnection(context.Background(), fx.ds[0].ID)
	if err != nil || !res.Success {
		t.Fatalf("probe: %v %#v", err, res)
	}
	fx.fake.errs[fx.ds[0].ID] = fmt.Errorf("connection refused")
	res, err = fx.engine.TestConnection(context.Background(), fx.ds[0].ID)
	if err != nil {
		t.Fatalf("failed probe must not raise: %v", err)
	}
	if res.Success {
		t.Fatal("expected probe failure result")
	}
	if _, err := fx.engine.TestConnection(context.Background(), "missing"); !model.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
