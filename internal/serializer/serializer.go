// Package serializer maps unified monitors to and from a portable JSON
// document, losslessly enough that export then import reproduces the
// original configuration.
package serializer

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/unimon/unimon/internal/model"
)

// MonitorDocument is the interchange shape of one monitor. Field order is
// fixed by declaration order so exported documents diff cleanly.
type MonitorDocument struct {
	Name        string              `json:"name"`
	Type        string              `json:"type"`
	Query       string              `json:"query"`
	Condition   ConditionDocument   `json:"condition"`
	Evaluation  EvaluationDocument  `json:"evaluation"`
	Labels      map[string]string   `json:"labels,omitempty"`
	Annotations AnnotationsDocument `json:"annotations"`
	Routing     string              `json:"routing,omitempty"`
	Enabled     bool                `json:"enabled"`
}

// ConditionDocument carries the threshold triple; forDuration is a
// time.ParseDuration token.
type ConditionDocument struct {
	Operator    string  `json:"operator"`
	Threshold   float64 `json:"threshold"`
	ForDuration string  `json:"forDuration"`
}

// EvaluationDocument carries the timing knobs as duration tokens.
type EvaluationDocument struct {
	Interval      string `json:"interval"`
	PendingPeriod string `json:"pendingPeriod"`
	FiringPeriod  string `json:"firingPeriod"`
}

// AnnotationsDocument mirrors model.Annotations.
type AnnotationsDocument struct {
	Summary      string `json:"summary,omitempty"`
	Description  string `json:"description,omitempty"`
	RunbookURL   string `json:"runbookUrl,omitempty"`
	DashboardURL string `json:"dashboardUrl,omitempty"`
}

// SerializeMonitors produces one document per monitor. Server-assigned
// identifiers (monitor id, datasource id) are deliberately not exported.
func SerializeMonitors(monitors []*model.UnifiedMonitor) []MonitorDocument {
	out := make([]MonitorDocument, 0, len(monitors))
	for _, m := range monitors {
		out = append(out, MonitorDocument{
			Name:  m.Name,
			Type:  m.Type,
			Query: m.Query,
			Condition: ConditionDocument{
				Operator:    m.Condition.Operator,
				Threshold:   m.Condition.Threshold,
				ForDuration: m.Condition.ForDuration.String(),
			},
			Evaluation: EvaluationDocument{
				Interval:      m.Evaluation.Interval.String(),
				PendingPeriod: m.Evaluation.PendingPeriod.String(),
				FiringPeriod:  m.Evaluation.FiringPeriod.String(),
			},
			Labels: m.Labels,
			Annotations: AnnotationsDocument{
				Summary:      m.Annotations.Summary,
				Description:  m.Annotations.Description,
				RunbookURL:   m.Annotations.RunbookURL,
				DashboardURL: m.Annotations.DashboardURL,
			},
			Routing: m.Routing,
			Enabled: m.Enabled,
		})
	}
	return out
}

// DeserializeMonitor validates doc and builds the unified config. Every
// violation is accumulated in one pass; callers can always report the full
// list. On any violation the config is nil.
func DeserializeMonitor(doc *MonitorDocument) (*model.UnifiedMonitor, []model.FieldError) {
	var verrs model.ValidationErrors
	if strings.TrimSpace(doc.Name) == "" {
		verrs.Addf("name", "name required")
	}
	if strings.TrimSpace(doc.Query) == "" {
		verrs.Addf("query", "query required")
	}
	if !model.ConditionOperators[doc.Condition.Operator] {
		verrs.Addf("condition.operator", "operator %q not in allowed set", doc.Condition.Operator)
	}
	forDur := parsePositive(&verrs, "condition.forDuration", doc.Condition.ForDuration)
	interval := parsePositive(&verrs, "evaluation.interval", doc.Evaluation.Interval)
	pending := parsePositive(&verrs, "evaluation.pendingPeriod", doc.Evaluation.PendingPeriod)
	firing := parsePositive(&verrs, "evaluation.firingPeriod", doc.Evaluation.FiringPeriod)
	if pending > model.MaxPendingPeriod {
		verrs.Addf("evaluation.pendingPeriod", "exceeds maximum of %s", model.MaxPendingPeriod)
	}
	if verrs.HasErrors() {
		return nil, verrs.Fields
	}
	return &model.UnifiedMonitor{
		Name:  doc.Name,
		Type:  doc.Type,
		Query: doc.Query,
		Condition: model.Condition{
			Operator:    doc.Condition.Operator,
			Threshold:   doc.Condition.Threshold,
			ForDuration: forDur,
		},
		Evaluation: model.Evaluation{
			Interval:      interval,
			PendingPeriod: pending,
			FiringPeriod:  firing,
		},
		Labels: model.LabelMap(doc.Labels),
		Annotations: model.Annotations{
			Summary:      doc.Annotations.Summary,
			Description:  doc.Annotations.Description,
			RunbookURL:   doc.Annotations.RunbookURL,
			DashboardURL: doc.Annotations.DashboardURL,
		},
		Routing: doc.Routing,
		Enabled: doc.Enabled,
	}, nil
}

// parsePositive records a violation unless token parses to a strictly
// positive duration. It returns zero on failure; callers bail before using
// it.
func parsePositive(verrs *model.ValidationErrors, field, token string) time.Duration {
	if strings.TrimSpace(token) == "" {
		verrs.Addf(field, "duration required")
		return 0
	}
	d, err := time.ParseDuration(token)
	if err != nil {
		verrs.Addf(field, "invalid duration %q", token)
		return 0
	}
	if d <= 0 {
		verrs.Addf(field, "duration must be strictly positive, got %q", token)
		return 0
	}
	return d
}

// ExportJSON renders the documents as an indented JSON array.
func ExportJSON(docs []MonitorDocument) ([]byte, error) {
	return json.MarshalIndent(docs, "", "  ")
}
