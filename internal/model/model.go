package model

import "time"

// DatasourceType identifies which backend family a datasource speaks.
type DatasourceType string

const (
	DatasourceOpenSearch DatasourceType = "opensearch"
	DatasourcePrometheus DatasourceType = "prometheus"
)

// IsValid reports whether t names a supported backend kind.
func (t DatasourceType) IsValid() bool {
	return t == DatasourceOpenSearch || t == DatasourcePrometheus
}

// Datasource is one configured backend connection. Type is immutable after
// creation; changing backend kind is a delete and recreate.
type Datasource struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Type    DatasourceType `json:"type"`
	URL     string         `json:"url"`
	Enabled bool           `json:"enabled"`
}

// Severity codes, ordered from most to least urgent.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// AlertState is the lifecycle state of a unified alert.
type AlertState string

const (
	StateActive       AlertState = "active"
	StatePending      AlertState = "pending"
	StateAcknowledged AlertState = "acknowledged"
	StateResolved     AlertState = "resolved"
	StateError        AlertState = "error"
)

// Condition is the threshold part of a monitor: value <op> threshold must
// hold for ForDuration before the alert fires.
type Condition struct {
	Operator    string        `json:"operator"` // one of >, <, >=, <=, =, !=
	Threshold   float64       `json:"threshold"`
	ForDuration time.Duration `json:"forDuration"`
}

// ConditionOperators is the allowed set for Condition.Operator.
var ConditionOperators = map[string]bool{
	">": true, "<": true, ">=": true, "<=": true, "=": true, "!=": true,
}

// Evaluation groups the timing knobs of a monitor. All three durations must
// be strictly positive; PendingPeriod may not exceed MaxPendingPeriod.
type Evaluation struct {
	Interval      time.Duration `json:"interval"`
	PendingPeriod time.Duration `json:"pendingPeriod"`
	FiringPeriod  time.Duration `json:"firingPeriod"`
}

// MaxPendingPeriod bounds how long a breach may sit pending before the
// configuration is considered nonsensical.
const MaxPendingPeriod = 24 * time.Hour

// Annotations carry the human-facing strings attached to monitors and alerts.
type Annotations struct {
	Summary      string `json:"summary,omitempty"`
	Description  string `json:"description,omitempty"`
	RunbookURL   string `json:"runbookUrl,omitempty"`
	DashboardURL string `json:"dashboardUrl,omitempty"`
}

// UnifiedMonitor is the backend-agnostic normalized representation of an
// alerting condition ("rule"). It is what every adapter translates its native
// monitor shape into and back out of.
type UnifiedMonitor struct {
	ID           string      `json:"id"`
	DatasourceID string      `json:"datasourceId"`
	Name         string      `json:"name"`
	Type         string      `json:"type"`
	Query        string      `json:"query"`
	Condition    Condition   `json:"condition"`
	Evaluation   Evaluation  `json:"evaluation"`
	Labels       LabelMap    `json:"labels,omitempty"`
	Annotations  Annotations `json:"annotations"`
	Routing      string      `json:"routing,omitempty"` // routing rule reference
	Enabled      bool        `json:"enabled"`
	Health       string      `json:"health,omitempty"`
}

// UnifiedAlert is the backend-agnostic normalized representation of one
// triggered condition instance. Muted and RoutedTo are derived per read and
// never persisted.
type UnifiedAlert struct {
	ID           string      `json:"id"`
	MonitorID    string      `json:"monitorId"`
	DatasourceID string      `json:"datasourceId"`
	Severity     Severity    `json:"severity"`
	State        AlertState  `json:"state"`
	StartTime    time.Time   `json:"startTime"`
	Labels       LabelMap    `json:"labels,omitempty"`
	Annotations  Annotations `json:"annotations"`
	Value        string      `json:"value,omitempty"`
	Muted        bool        `json:"muted"`
	MutedBy      string      `json:"mutedBy,omitempty"`
	RoutedTo     []string    `json:"routedTo,omitempty"`
}

// FetchStatus is the ephemeral per-datasource outcome of one aggregation
// call. It exists only for the duration of that call's response.
type FetchStatus string

const (
	FetchPending FetchStatus = "pending"
	FetchLoading FetchStatus = "loading"
	FetchSuccess FetchStatus = "success"
	FetchError   FetchStatus = "error"
	FetchTimeout FetchStatus = "timeout"
)

// DatasourceStatus pairs a FetchStatus with the error message that produced
// it, if any.
type DatasourceStatus struct {
	Status  FetchStatus `json:"status"`
	Message string      `json:"message,omitempty"`
}

// PaginatedResult is one page sliced out of a full aggregated snapshot.
// Total is the full unified count before slicing.
type PaginatedResult[T any] struct {
	Items    []T `json:"items"`
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
	Total    int `json:"total"`
}

// ClockWindow is a time-of-day window in "HH:MM" form, used by routing
// matchers. End at or before Start means the window wraps midnight.
type ClockWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// RouteMatchers is the conjunction a routing rule tests: every present
// matcher must hold for the rule to match.
type RouteMatchers struct {
	Labels     LabelMap     `json:"labels,omitempty"`
	Severities []Severity   `json:"severities,omitempty"`
	Window     *ClockWindow `json:"window,omitempty"`
}

// RoutingRule maps matching alerts onto a destination set. Stored order is
// evaluation order; matching is not exclusive, several rules may route the
// same alert.
type RoutingRule struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Matchers     RouteMatchers `json:"matchers"`
	Destinations []string      `json:"destinations"`
	GroupBy      []string      `json:"groupBy,omitempty"`
	GroupWindow  time.Duration `json:"groupWindow,omitempty"`
	GroupLimit   int           `json:"groupLimit,omitempty"`
	IsDefault    bool          `json:"isDefault,omitempty"`
}

// ScheduleType distinguishes one-shot suppression windows from daily
// recurring ones.
type ScheduleType string

const (
	ScheduleOneTime   ScheduleType = "one_time"
	ScheduleRecurring ScheduleType = "recurring"
)

// SuppressionRuleStatus is derived from the rule's window at read time,
// never stored.
type SuppressionRuleStatus string

const (
	SuppressionActive    SuppressionRuleStatus = "active"
	SuppressionScheduled SuppressionRuleStatus = "scheduled"
	SuppressionExpired   SuppressionRuleStatus = "expired"
)

// SuppressionRule mutes matching alerts while its schedule is active. The
// alert stays visible everywhere; only its muted flag changes.
type SuppressionRule struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	Matchers     LabelMap     `json:"matchers"`
	ScheduleType ScheduleType `json:"scheduleType"`
	StartTime    time.Time    `json:"startTime"`
	EndTime      time.Time    `json:"endTime"`
	CreatedBy    string       `json:"createdBy,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
}
