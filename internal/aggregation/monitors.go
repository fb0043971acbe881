package aggregation

import (
	"context"
	"fmt"

	"github.com/unimon/unimon/internal/adapter"
	"github.com/unimon/unimon/internal/model"
)

// resolveAdapter loads the datasource and looks up its adapter. Unknown ids
// and unsupported types surface as errors; monitor-scoped operations are not
// part of an aggregate and must fail loudly.
func (e *Engine) resolveAdapter(ctx context.Context, dsID string) (*model.Datasource, adapter.Adapter, error) {
	ds, err := e.registry.Get(ctx, dsID)
	if err != nil {
		return nil, nil, err
	}
	a, err := e.resolver.For(ds)
	if err != nil {
		return nil, nil, err
	}
	return ds, a, nil
}

// CreateMonitor resolves the target datasource (the submission's explicit
// datasourceId, or the configured default) and delegates to its adapter.
func (e *Engine) CreateMonitor(ctx context.Context, m *model.UnifiedMonitor) (*model.UnifiedMonitor, error) {
	dsID := m.DatasourceID
	if dsID == "" {
		dsID = e.defaultDatasource
	}
	if dsID == "" {
		return nil, fmt.Errorf("no datasource specified and no default configured")
	}
	ds, a, err := e.resolveAdapter(ctx, dsID)
	if err != nil {
		return nil, err
	}
	return a.CreateMonitor(ctx, ds, m)
}

// UpdateMonitor routes the update to the owning datasource's adapter.
func (e *Engine) UpdateMonitor(ctx context.Context, m *model.UnifiedMonitor) (*model.UnifiedMonitor, error) {
	if m.DatasourceID == "" {
		return nil, fmt.Errorf("datasourceId required for update")
	}
	ds, a, err := e.resolveAdapter(ctx, m.DatasourceID)
	if err != nil {
		return nil, err
	}
	return a.UpdateMonitor(ctx, ds, m)
}

// DeleteMonitor deletes one monitor on one datasource.
func (e *Engine) DeleteMonitor(ctx context.Context, dsID, monitorID string) error {
	ds, a, err := e.resolveAdapter(ctx, dsID)
	if err != nil {
		return err
	}
	return a.DeleteMonitor(ctx, ds, monitorID)
}

// GetMonitors lists one datasource's monitors without aggregation
// semantics: failures propagate.
func (e *Engine) GetMonitors(ctx context.Context, dsID string) ([]*model.UnifiedMonitor, error) {
	ds, a, err := e.resolveAdapter(ctx, dsID)
	if err != nil {
		return nil, err
	}
	return a.FetchMonitors(ctx, ds)
}

// GetAlerts lists one datasource's alerts without aggregation semantics.
func (e *Engine) GetAlerts(ctx context.Context, dsID string) ([]*model.UnifiedAlert, error) {
	ds, a, err := e.resolveAdapter(ctx, dsID)
	if err != nil {
		return nil, err
	}
	alerts, err := a.FetchAlerts(ctx, ds)
	if err != nil {
		return nil, err
	}
	e.decorateAlerts(alerts)
	return alerts, nil
}

// Acknowledge routes an alert acknowledgement to the owning adapter.
func (e *Engine) Acknowledge(ctx context.Context, dsID, alertID string) error {
	ds, a, err := e.resolveAdapter(ctx, dsID)
	if err != nil {
		return err
	}
	return a.AcknowledgeAlert(ctx, ds, alertID)
}
