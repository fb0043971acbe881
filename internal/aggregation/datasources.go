package aggregation

import (
	"context"

	"github.com/unimon/unimon/internal/adapter"
	"github.com/unimon/unimon/internal/model"
)

// Datasource CRUD delegates to the registry store; the engine adds only the
// adapter-backed connection probe.

func (e *Engine) CreateDatasource(ctx context.Context, ds *model.Datasource) error {
	return e.registry.Create(ctx, ds)
}

func (e *Engine) GetDatasource(ctx context.Context, id string) (*model.Datasource, error) {
	return e.registry.Get(ctx, id)
}

func (e *Engine) UpdateDatasource(ctx context.Context, ds *model.Datasource) error {
	return e.registry.Update(ctx, ds)
}

func (e *Engine) DeleteDatasource(ctx context.Context, id string) error {
	return e.registry.Delete(ctx, id)
}

func (e *Engine) ListDatasources(ctx context.Context) ([]*model.Datasource, error) {
	return e.registry.List(ctx)
}

// TestConnection performs a lightweight adapter probe. A failed probe is
// part of the result, never an error; only an unknown id fails the call.
func (e *Engine) TestConnection(ctx context.Context, id string) (adapter.ProbeResult, error) {
	ds, a, err := e.resolveAdapter(ctx, id)
	if err != nil {
		if model.IsNotFound(err) {
			return adapter.ProbeResult{}, err
		}
		return adapter.ProbeResult{Success: false, Message: err.Error()}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.probeTimeout)
	defer cancel()
	return a.Probe(ctx, ds), nil
}
