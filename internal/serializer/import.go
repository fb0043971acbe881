package serializer

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/unimon/unimon/internal/model"
)

// ImportItemResult is the per-document outcome of a batch import.
type ImportItemResult struct {
	Index   int                `json:"index"`
	Success bool               `json:"success"`
	Errors  []model.FieldError `json:"errors,omitempty"`
}

// ImportResult is the whole-batch outcome. The batch is atomic: a single
// invalid document rejects everything and nothing is persisted.
type ImportResult struct {
	Accepted bool               `json:"accepted"`
	Items    []ImportItemResult `json:"items"`
}

// MonitorWriter persists and removes monitors. The aggregation engine's
// backend-agnostic facade satisfies this; the delete side exists so a failed
// batch can be rolled back.
type MonitorWriter interface {
	CreateMonitor(ctx context.Context, m *model.UnifiedMonitor) (*model.UnifiedMonitor, error)
	DeleteMonitor(ctx context.Context, dsID, monitorID string) error
}

// ImportMonitors validates every document independently, collecting each
// item's violations, then persists all of them only if every item passed.
// A backend failure mid-persist rolls back the monitors created earlier in
// the batch, keeping the all-or-nothing guarantee on that path too.
func ImportMonitors(ctx context.Context, writer MonitorWriter, docs []MonitorDocument) (*ImportResult, error) {
	res := &ImportResult{Items: make([]ImportItemResult, 0, len(docs))}
	configs := make([]*model.UnifiedMonitor, len(docs))
	allValid := true
	for i := range docs {
		cfg, ferrs := DeserializeMonitor(&docs[i])
		item := ImportItemResult{Index: i, Success: len(ferrs) == 0, Errors: ferrs}
		if item.Success {
			configs[i] = cfg
		} else {
			allValid = false
		}
		res.Items = append(res.Items, item)
	}
	if !allValid {
		return res, nil
	}
	created := make([]*model.UnifiedMonitor, 0, len(configs))
	for i, cfg := range configs {
		m, err := writer.CreateMonitor(ctx, cfg)
		if err != nil {
			res.Items[i] = ImportItemResult{Index: i, Success: false, Errors: []model.FieldError{{Field: "_backend", Message: err.Error()}}}
			rollback(ctx, writer, created, res)
			return res, err
		}
		created = append(created, m)
	}
	res.Accepted = true
	return res, nil
}

// rollback best-effort deletes the monitors a failed batch already created
// and downgrades their item outcomes. A delete failure is logged; the caller
// still sees the batch as rejected.
func rollback(ctx context.Context, writer MonitorWriter, created []*model.UnifiedMonitor, res *ImportResult) {
	for i, m := range created {
		if err := writer.DeleteMonitor(ctx, m.DatasourceID, m.ID); err != nil {
			log.Warn().Err(err).Str("monitor", m.ID).Str("datasource", m.DatasourceID).Msg("import rollback delete failed")
		}
		res.Items[i] = ImportItemResult{Index: i, Success: false, Errors: []model.FieldError{{Field: "_backend", Message: "rolled back after batch failure"}}}
	}
}
