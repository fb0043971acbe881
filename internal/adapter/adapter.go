// Package adapter translates native backend monitor and alert shapes into
// the unified model and back. One Adapter variant exists per datasource
// type; lookup is by the datasource's declared type, never by runtime
// inspection of the payload.
package adapter

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/unimon/unimon/internal/model"
)

// ProbeResult is the outcome of a lightweight connection test. A failed
// probe is a result, not an error.
type ProbeResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Adapter is the capability one backend kind provides to the engine. Every
// call either resolves or fails with a *model.BackendError; a silent empty
// result never stands in for failure.
type Adapter interface {
	Type() model.DatasourceType
	FetchMonitors(ctx context.Context, ds *model.Datasource) ([]*model.UnifiedMonitor, error)
	FetchAlerts(ctx context.Context, ds *model.Datasource) ([]*model.UnifiedAlert, error)
	CreateMonitor(ctx context.Context, ds *model.Datasource, m *model.UnifiedMonitor) (*model.UnifiedMonitor, error)
	UpdateMonitor(ctx context.Context, ds *model.Datasource, m *model.UnifiedMonitor) (*model.UnifiedMonitor, error)
	DeleteMonitor(ctx context.Context, ds *model.Datasource, monitorID string) error
	AcknowledgeAlert(ctx context.Context, ds *model.Datasource, alertID string) error
	Probe(ctx context.Context, ds *model.Datasource) ProbeResult
}

// Resolver maps a datasource type onto its registered Adapter.
type Resolver struct {
	byType map[model.DatasourceType]Adapter
}

// NewResolver registers the given adapters by their declared type.
func NewResolver(adapters ...Adapter) *Resolver {
	r := &Resolver{byType: make(map[model.DatasourceType]Adapter, len(adapters))}
	for _, a := range adapters {
		r.byType[a.Type()] = a
	}
	return r
}

// For returns the adapter for the datasource's type.
func (r *Resolver) For(ds *model.Datasource) (Adapter, error) {
	a, ok := r.byType[ds.Type]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for datasource type %q", ds.Type)
	}
	return a, nil
}

// httpCaller wraps an http.Client with bounded retry for transient
// transport failures. Retries are adapter-internal and opaque to the engine.
type httpCaller struct {
	client     *http.Client
	maxRetries int
	backoff    time.Duration
}

func newHTTPCaller(timeout time.Duration) *httpCaller {
	return &httpCaller{
		client:     &http.Client{Timeout: timeout},
		maxRetries: 2,
		backoff:    200 * time.Millisecond,
	}
}

// do executes req, retrying transport-level failures up to maxRetries times
// with linear backoff. Context cancellation aborts the retry loop.
func (c *httpCaller) do(req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(time.Duration(attempt) * c.backoff):
			}
			log.Debug().Int("attempt", attempt).Str("url", req.URL.String()).Msg("retrying backend request")
		}
		resp, err := c.client.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if req.Context().Err() != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func backendErr(ds *model.Datasource, msg string, err error) *model.BackendError {
	kind := model.BackendInvalidResponse
	if err != nil {
		kind = model.ClassifyBackendErr(err)
	}
	return &model.BackendError{Kind: kind, DatasourceID: ds.ID, Message: msg, Err: err}
}

func invalidResponseErr(ds *model.Datasource, msg string) *model.BackendError {
	return &model.BackendError{Kind: model.BackendInvalidResponse, DatasourceID: ds.ID, Message: msg}
}
