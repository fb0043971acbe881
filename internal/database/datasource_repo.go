package database

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"github.com/unimon/unimon/internal/model"
)

// DatasourceRepo is the Postgres implementation of datasource.Store. List
// order follows insertion order via the position column, matching the
// in-memory registry's determinism guarantee.
type DatasourceRepo struct {
	db *Database
}

// NewDatasourceRepo returns a repo over db.
func NewDatasourceRepo(db *Database) *DatasourceRepo { return &DatasourceRepo{db: db} }

func (r *DatasourceRepo) Create(ctx context.Context, ds *model.Datasource) error {
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
	if verrs.HasErrors() {
		return &verrs
	}
	ds.ID = uuid.NewString()
	query := `INSERT INTO datasources (id, name, type, url, enabled) VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, query, ds.ID, ds.Name, string(ds.Type), ds.URL, ds.Enabled)
	return err
}

func (r *DatasourceRepo) Get(ctx context.Context, id string) (*model.Datasource, error) {
	query := `SELECT id, name, type, url, enabled FROM datasources WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)
	var ds model.Datasource
	var typ string
	if err := row.Scan(&ds.ID, &ds.Name, &typ, &ds.URL, &ds.Enabled); err != nil {
		if err == sql.ErrNoRows {
			return nil, &model.NotFoundError{Resource: "datasource", ID: id}
		}
		return nil, err
	}
	ds.Type = model.DatasourceType(typ)
	return &ds, nil
}

func (r *DatasourceRepo) Update(ctx context.Context, ds *model.Datasource) error {
	cur, err := r.Get(ctx, ds.ID)
	if err != nil {
		return err
	}
	if ds.Type != cur.Type {
		var verrs model.ValidationErrors
		verrs.Addf("type", "datasource type is immutable (is %q)", cur.Type)
		return &verrs
	}
	query := `UPDATE datasources SET name = $1, url = $2, enabled = $3 WHERE id = $4`
	_, err = r.db.ExecContext(ctx, query, ds.Name, ds.URL, ds.Enabled, ds.ID)
	return err
}

func (r *DatasourceRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM datasources WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &model.NotFoundError{Resource: "datasource", ID: id}
	}
	return nil
}

func (r *DatasourceRepo) List(ctx context.Context) ([]*model.Datasource, error) {
	query := `SELECT id, name, type, url, enabled FROM datasources ORDER BY position`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Datasource
	for rows.Next() {
		var ds model.Datasource
		var typ string
		if err := rows.Scan(&ds.ID, &ds.Name, &typ, &ds.URL, &ds.Enabled); err != nil {
			return nil, err
		}
		ds.Type = model.DatasourceType(typ)
		out = append(out, &ds)
	}
	return out, rows.Err()
}
