// Package aggregation fans out to every configured datasource concurrently
// and merges the heterogeneous native responses into one unified result,
// tolerating partial failure.
package aggregation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/unimon/unimon/internal/adapter"
	"github.com/unimon/unimon/internal/datasource"
	"github.com/unimon/unimon/internal/metrics"
	"github.com/unimon/unimon/internal/model"
	"github.com/unimon/unimon/internal/routing"
	"github.com/unimon/unimon/internal/suppression"
)

const (
	// DefaultTimeout bounds one whole aggregation call unless the caller
	// overrides it.
	DefaultTimeout = 5 * time.Second
	// DefaultCacheTTL bounds the staleness of cached fetch results.
	DefaultCacheTTL = 30 * time.Second
	// MaxPageSize clamps the page size of paginated reads.
	MaxPageSize = 200

	opAlerts = "alerts"
	opRules  = "rules"
)

// Engine orchestrates the fan-out. Stores and policy engines are injected;
// multiple Engine instances can coexist, there is no process-wide state.
type Engine struct {
	registry    datasource.Store
	resolver    *adapter.Resolver
	routing     *routing.Engine
	suppression *suppression.Engine
	cache       Cache
	metrics     *metrics.Metrics

	defaultTimeout    time.Duration
	probeTimeout      time.Duration
	defaultDatasource string
	now               func() time.Time
}

// Option tunes an Engine at construction time.
type Option func(*Engine)

// WithCache replaces the default in-memory result cache.
func WithCache(c Cache) Option { return func(e *Engine) { e.cache = c } }

// WithMetrics attaches collectors to the engine.
func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

// WithDefaultTimeout overrides the aggregation deadline default.
func WithDefaultTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.defaultTimeout = d
		}
	}
}

// WithDefaultDatasource sets the datasource used by the monitor lifecycle
// facade when a submission names none.
func WithDefaultDatasource(id string) Option { return func(e *Engine) { e.defaultDatasource = id } }

// NewEngine wires the engine to its collaborators.
func NewEngine(reg datasource.Store, resolver *adapter.Resolver, rt *routing.Engine, sup *suppression.Engine, opts ...Option) *Engine {
	e := &Engine{
		registry:       reg,
		resolver:       resolver,
		routing:        rt,
		suppression:    sup,
		cache:          NewMemoryCache(DefaultCacheTTL),
		defaultTimeout: DefaultTimeout,
		probeTimeout:   3 * time.Second,
		now:            time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// QueryOptions selects datasources and bounds one aggregation call.
type QueryOptions struct {
	DatasourceIDs []string      // empty means all enabled datasources
	Timeout       time.Duration // zero means the engine default
}

// AlertsResult is the progressive response of one alert aggregation:
// partial data plus a status entry per requested datasource.
type AlertsResult struct {
	Results            []*model.UnifiedAlert             `json:"results"`
	DatasourceStatuses map[string]model.DatasourceStatus `json:"datasourceStatuses"`
}

// RulesResult is the monitors equivalent of AlertsResult.
type RulesResult struct {
	Results            []*model.UnifiedMonitor           `json:"results"`
	DatasourceStatuses map[string]model.DatasourceStatus `json:"datasourceStatuses"`
}

// fetchOutcome is one task's slot. Each task owns exactly one slot, so the
// merge step needs no lock.
type fetchOutcome struct {
	alerts   []*model.UnifiedAlert
	monitors []*model.UnifiedMonitor
	err      error
}

// GetUnifiedAlerts fans out one fetch per selected datasource under a
// shared deadline and merges whatever completed in time. A slow or failing
// datasource never blocks or fails its siblings.
func (e *Engine) GetUnifiedAlerts(ctx context.Context, opts QueryOptions) (*AlertsResult, error) {
	selected, statuses, err := e.selectDatasources(ctx, opts.DatasourceIDs)
	if err != nil {
		return nil, err
	}
	res := &AlertsResult{Results: []*model.UnifiedAlert{}, DatasourceStatuses: statuses}
	outcomes := e.fanOut(ctx, selected, opAlerts, opts.Timeout, statuses)
	for _, ds := range selected {
		if out, ok := outcomes[ds.ID]; ok && out.err == nil {
			res.Results = append(res.Results, out.alerts...)
		}
	}
	e.decorateAlerts(res.Results)
	return res, nil
}

// GetUnifiedRules is the monitors counterpart of GetUnifiedAlerts.
func (e *Engine) GetUnifiedRules(ctx context.Context, opts QueryOptions) (*RulesResult, error) {
	selected, statuses, err := e.selectDatasources(ctx, opts.DatasourceIDs)
	if err != nil {
		return nil, err
	}
	res := &RulesResult{Results: []*model.UnifiedMonitor{}, DatasourceStatuses: statuses}
	outcomes := e.fanOut(ctx, selected, opRules, opts.Timeout, statuses)
	for _, ds := range selected {
		if out, ok := outcomes[ds.ID]; ok && out.err == nil {
			res.Results = append(res.Results, out.monitors...)
		}
	}
	return res, nil
}

// GetPaginatedAlerts aggregates once with the default timeout, then slices
// one page out of that consistent snapshot. Pages are 1-indexed.
func (e *Engine) GetPaginatedAlerts(ctx context.Context, opts QueryOptions, page, pageSize int) (*model.PaginatedResult[*model.UnifiedAlert], error) {
	full, err := e.GetUnifiedAlerts(ctx, QueryOptions{DatasourceIDs: opts.DatasourceIDs})
	if err != nil {
		return nil, err
	}
	return paginate(full.Results, page, pageSize), nil
}

// GetPaginatedRules is the monitors counterpart of GetPaginatedAlerts.
func (e *Engine) GetPaginatedRules(ctx context.Context, opts QueryOptions, page, pageSize int) (*model.PaginatedResult[*model.UnifiedMonitor], error) {
	full, err := e.GetUnifiedRules(ctx, QueryOptions{DatasourceIDs: opts.DatasourceIDs})
	if err != nil {
		return nil, err
	}
	return paginate(full.Results, page, pageSize), nil
}

// RetryAlerts re-issues the alert fetch for exactly one datasource,
// bypassing only that datasource's cache entry.
func (e *Engine) RetryAlerts(ctx context.Context, dsID string) (*AlertsResult, error) {
	e.cache.Invalidate(ctx, cacheKey(opAlerts, dsID))
	return e.GetUnifiedAlerts(ctx, QueryOptions{DatasourceIDs: []string{dsID}})
}

// RetryRules is the monitors counterpart of RetryAlerts.
func (e *Engine) RetryRules(ctx context.Context, dsID string) (*RulesResult, error) {
	e.cache.Invalidate(ctx, cacheKey(opRules, dsID))
	return e.GetUnifiedRules(ctx, QueryOptions{DatasourceIDs: []string{dsID}})
}

// selectDatasources resolves the requested ids, or all enabled datasources
// when none are given. Statuses are keyed by exactly the requested set;
// unknown ids surface as error entries, never as a failed call.
func (e *Engine) selectDatasources(ctx context.Context, ids []string) ([]*model.Datasource, map[string]model.DatasourceStatus, error) {
	statuses := map[string]model.DatasourceStatus{}
	all, err := e.registry.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(ids) == 0 {
		var selected []*model.Datasource
		for _, ds := range all {
			if ds.Enabled {
				selected = append(selected, ds)
				statuses[ds.ID] = model.DatasourceStatus{Status: model.FetchPending}
			}
		}
		return selected, statuses, nil
	}
	byID := make(map[string]*model.Datasource, len(all))
	for _, ds := range all {
		byID[ds.ID] = ds
	}
	var selected []*model.Datasource
	for _, id := range ids {
		ds, ok := byID[id]
		if !ok {
			statuses[id] = model.DatasourceStatus{Status: model.FetchError, Message: "unknown datasource"}
			continue
		}
		selected = append(selected, ds)
		statuses[id] = model.DatasourceStatus{Status: model.FetchPending}
	}
	return selected, statuses, nil
}

// fanOut runs one fetch task per datasource, each writing only its own
// result channel, and collects in datasource order under a shared deadline.
// Tasks still outstanding at the deadline are marked timeout and their
// context is cancelled; their eventual results are discarded.
func (e *Engine) fanOut(ctx context.Context, selected []*model.Datasource, op string, timeout time.Duration, statuses map[string]model.DatasourceStatus) map[string]*fetchOutcome {
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	chans := make([]chan *fetchOutcome, len(selected))
	for i, ds := range selected {
		ch := make(chan *fetchOutcome, 1)
		chans[i] = ch
		statuses[ds.ID] = model.DatasourceStatus{Status: model.FetchLoading}
		go func(ds *model.Datasource) {
			ch <- e.fetchOne(ctx, ds, op)
		}(ds)
	}

	outcomes := make(map[string]*fetchOutcome, len(selected))
	for i, ds := range selected {
		select {
		case out := <-chans[i]:
			statuses[ds.ID] = fetchStatus(out.err)
			outcomes[ds.ID] = out
		case <-ctx.Done():
			// Deadline hit; drain nothing further. Remaining datasources
			// either already finished (buffered result) or are abandoned.
			select {
			case out := <-chans[i]:
				statuses[ds.ID] = fetchStatus(out.err)
				outcomes[ds.ID] = out
			default:
				statuses[ds.ID] = model.DatasourceStatus{Status: model.FetchTimeout, Message: "deadline exceeded"}
			}
		}
	}
	return outcomes
}

// fetchStatus classifies one task's outcome. A deadline-caused failure is a
// timeout, not an error: an adapter that honors cancellation returns a
// context.DeadlineExceeded-wrapped error at the shared deadline, and the
// datasource exceeded the call budget either way.
func fetchStatus(err error) model.DatasourceStatus {
	if err == nil {
		return model.DatasourceStatus{Status: model.FetchSuccess}
	}
	if errors.Is(err, context.DeadlineExceeded) || model.ClassifyBackendErr(err) == model.BackendTimeout {
		return model.DatasourceStatus{Status: model.FetchTimeout, Message: "deadline exceeded"}
	}
	return model.DatasourceStatus{Status: model.FetchError, Message: errMessage(err)}
}

// fetchOne serves one datasource fetch, consulting the result cache before
// the adapter. Backend failures are returned, not raised; timeouts are
// classified by the caller.
func (e *Engine) fetchOne(ctx context.Context, ds *model.Datasource, op string) *fetchOutcome {
	key := cacheKey(op, ds.ID)
	if raw, ok := e.cache.Get(ctx, key); ok {
		if out := decodeCached(op, raw); out != nil {
			e.metrics.ObserveCacheHit()
			return out
		}
	}
	a, err := e.resolver.For(ds)
	if err != nil {
		return &fetchOutcome{err: err}
	}
	start := e.now()
	out := &fetchOutcome{}
	switch op {
	case opAlerts:
		out.alerts, out.err = a.FetchAlerts(ctx, ds)
	case opRules:
		out.monitors, out.err = a.FetchMonitors(ctx, ds)
	}
	status := "success"
	if out.err != nil {
		status = "error"
		log.Warn().Err(out.err).Str("datasource", ds.ID).Str("op", op).Msg("datasource fetch failed")
	}
	e.metrics.ObserveFetch(ds.ID, op, status, e.now().Sub(start))
	if out.err == nil {
		if raw, err := encodeCached(op, out); err == nil {
			e.cache.Set(ctx, key, raw)
		}
	}
	return out
}

// decorateAlerts recomputes the derived fields on each read: muted from the
// suppression engine, routedTo from the routing engine.
func (e *Engine) decorateAlerts(alerts []*model.UnifiedAlert) {
	now := e.now()
	for _, a := range alerts {
		if e.suppression != nil {
			v := e.suppression.IsSuppressed(a, now)
			a.Muted = v.Muted
			a.MutedBy = v.RuleID
		}
		if e.routing != nil {
			a.RoutedTo = e.routing.Match(a)
		}
	}
}

func paginate[T any](items []T, page, pageSize int) *model.PaginatedResult[T] {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	total := len(items)
	lo := (page - 1) * pageSize
	hi := lo + pageSize
	if lo > total {
		lo = total
	}
	if hi > total {
		hi = total
	}
	return &model.PaginatedResult[T]{Items: items[lo:hi], Page: page, PageSize: pageSize, Total: total}
}

func cacheKey(op, dsID string) string { return op + "|" + dsID }

type cachedAlerts struct {
	Alerts []*model.UnifiedAlert `json:"alerts"`
}

type cachedMonitors struct {
	Monitors []*model.UnifiedMonitor `json:"monitors"`
}

func encodeCached(op string, out *fetchOutcome) ([]byte, error) {
	if op == opAlerts {
		return json.Marshal(cachedAlerts{Alerts: out.alerts})
	}
	return json.Marshal(cachedMonitors{Monitors: out.monitors})
}

func decodeCached(op string, raw []byte) *fetchOutcome {
	if op == opAlerts {
		var c cachedAlerts
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil
		}
		return &fetchOutcome{alerts: c.Alerts}
	}
	var c cachedMonitors
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil
	}
	return &fetchOutcome{monitors: c.Monitors}
}

func errMessage(err error) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return msg
}
