// Package datasource owns the store of configured backend connections.
package datasource

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/unimon/unimon/internal/model"
)

// Store abstracts datasource persistence so a durable implementation can
// replace the in-memory registry transparently.
type Store interface {
	Create(ctx context.Context, ds *model.Datasource) error
	Get(ctx context.Context, id string) (*model.Datasource, error)
	Update(ctx context.Context, ds *model.Datasource) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*model.Datasource, error)
}

// Registry is the in-memory reference Store. All mutations run inside one
// critical section so id allocation and list updates appear atomic to
// concurrent requests. Insertion order is preserved for deterministic
// aggregation ordering.
type Registry struct {
	mu    sync.Mutex
	byID  map[string]*model.Datasource
	order []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: map[string]*model.Datasource{}}
}

// Create validates ds, assigns an id, and stores a copy.
func (r *Registry) Create(ctx context.Context, ds *model.Datasource) error {
	if err := validate(ds, false); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ds.ID = uuid.NewString()
	cp := *ds
	r.byID[ds.ID] = &cp
	r.order = append(r.order, ds.ID)
	log.Info().Str("id", ds.ID).Str("name", ds.Name).Str("type", string(ds.Type)).Msg("datasource created")
	return nil
}

// Get returns a copy of the datasource with the given id.
func (r *Registry) Get(ctx context.Context, id string) (*model.Datasource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ds, ok := r.byID[id]
	if !ok {
		return nil, &model.NotFoundError{Resource: "datasource", ID: id}
	}
	cp := *ds
	return &cp, nil
}

// Update replaces the stored datasource. The backend type is immutable:
// changing kind is a delete and recreate.
func (r *Registry) Update(ctx context.Context, ds *model.Datasource) error {
	if err := validate(ds, true); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byID[ds.ID]
	if !ok {
		return &model.NotFoundError{Resource: "datasource", ID: ds.ID}
	}
	if ds.Type != cur.Type {
		var verrs model.ValidationErrors
		verrs.Addf("type", "datasource type is immutable (is %q)", cur.Type)
		return &verrs
	}
	cp := *ds
	r.byID[ds.ID] = &cp
	return nil
}

// Delete removes the datasource with the given id.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return &model.NotFoundError{Resource: "datasource", ID: id}
	}
	delete(r.byID, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// List returns copies of all datasources in insertion order.
func (r *Registry) List(ctx context.Context) ([]*model.Datasource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Datasource, 0, len(r.order))
	for _, id := range r.order {
		cp := *r.byID[id]
		out = append(out, &cp)
	}
	return out, nil
}

// Reset drops all entries. Intended for test teardown.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = map[string]*model.Datasource{}
	r.order = nil
}

func validate(ds *model.Datasource, forUpdate bool) error {
	var verrs model.ValidationErrors
	if strings.TrimSpace(ds.Name) == "" {
		verrs.Addf("name", "name required")
	}
	if strings.TrimSpace(ds.URL) == "" {
		verrs.Addf("url", "url required")
	}
	if !ds.Type.IsValid() {
		verrs.Addf("type", "unsupported datasource type %q", ds.Type)
	}
	if forUpdate && strings.TrimSpace(ds.ID) == "" {
		verrs.Addf("id", "id required")
	}
	if verrs.HasErrors() {
		return &verrs
	}
	return nil
}
