// Package suppression evaluates mute schedules against unified alerts. A
// suppressed alert stays visible everywhere; only its muted flag changes.
package suppression

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/unimon/unimon/internal/model"
)

// Engine holds the suppression rule set. Expiry is computed at query time;
// nothing sweeps expired rules.
type Engine struct {
	mu    sync.Mutex
	rules []*model.SuppressionRule
	now   func() time.Time
}

// NewEngine returns an empty suppression engine.
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// Verdict is the result of one suppression check.
type Verdict struct {
	Muted  bool   `json:"muted"`
	RuleID string `json:"ruleId,omitempty"`
}

// Create validates and stores the rule and reports any advisory conflicts
// with existing active-or-scheduled rules. A conflict never blocks creation.
func (e *Engine) Create(ctx context.Context, r *model.SuppressionRule) ([]model.ConflictWarning, error) {
	var verrs model.ValidationErrors
	if strings.TrimSpace(r.Name) == "" {
		verrs.Addf("name", "name required")
	}
	if r.ScheduleType != model.ScheduleOneTime && r.ScheduleType != model.ScheduleRecurring {
		verrs.Addf("scheduleType", "must be one_time or recurring")
	}
	if !r.EndTime.After(r.StartTime) {
		verrs.Addf("endTime", "must be after startTime")
	}
	if len(r.Matchers) == 0 {
		verrs.Addf("matchers", "at least one matcher required")
	}
	if verrs.HasErrors() {
		return nil, &verrs
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	r.ID = uuid.NewString()
	r.Matchers = r.Matchers.Normalize()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = e.now()
	}
	conflicts := e.detectConflicts(r)
	cp := *r
	e.rules = append(e.rules, &cp)
	if len(conflicts) > 0 {
		log.Warn().Str("rule", r.ID).Int("conflicts", len(conflicts)).Msg("suppression rule overlaps existing rules")
	}
	return conflicts, nil
}

// Get returns a copy of the rule with the given id.
func (e *Engine) Get(ctx context.Context, id string) (*model.SuppressionRule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.rules {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, &model.NotFoundError{Resource: "suppression rule", ID: id}
}

// Update replaces the stored rule.
func (e *Engine) Update(ctx context.Context, r *model.SuppressionRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, cur := range e.rules {
		if cur.ID == r.ID {
			cp := *r
			cp.Matchers = cp.Matchers.Normalize()
			e.rules[i] = &cp
			return nil
		}
	}
	return &model.NotFoundError{Resource: "suppression rule", ID: r.ID}
}

// Delete removes the rule with the given id.
func (e *Engine) Delete(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, cur := range e.rules {
		if cur.ID == id {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			return nil
		}
	}
	return &model.NotFoundError{Resource: "suppression rule", ID: id}
}

// List returns copies of all rules in insertion order.
func (e *Engine) List(ctx context.Context) []*model.SuppressionRule {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*model.SuppressionRule, 0, len(e.rules))
	for _, r := range e.rules {
		cp := *r
		out = append(out, &cp)
	}
	return out
}

// Reset drops all rules. Intended for test teardown.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = nil
}

// IsSuppressed checks alert against every rule that is active at now. The
// first active rule whose matchers are satisfied by the alert's labels wins.
func (e *Engine) IsSuppressed(alert *model.UnifiedAlert, now time.Time) Verdict {
	e.mu.Lock()
	defer e.mu.Unlock()
	labels := alert.Labels.Normalize()
	if alert.ID != "" {
		// The silence shortcut matches on the alert's own id.
		labels["alertid"] = alert.ID
	}
	for _, r := range e.rules {
		if !ruleActiveAt(r, now) {
			continue
		}
		if r.Matchers.Subset(labels) {
			return Verdict{Muted: true, RuleID: r.ID}
		}
	}
	return Verdict{}
}

// Status derives the display status of a rule at now.
func Status(r *model.SuppressionRule, now time.Time) model.SuppressionRuleStatus {
	if r.ScheduleType == model.ScheduleRecurring {
		// A recurring rule never moves to expired on its own.
		if ruleActiveAt(r, now) {
			return model.SuppressionActive
		}
		return model.SuppressionScheduled
	}
	switch {
	case now.Before(r.StartTime):
		return model.SuppressionScheduled
	case now.After(r.EndTime):
		return model.SuppressionExpired
	default:
		return model.SuppressionActive
	}
}

// ruleActiveAt reports whether the rule's schedule covers now. A one_time
// rule is active inside [StartTime, EndTime]; a recurring rule repeats the
// clock-time window of StartTime..EndTime daily, once StartTime has passed.
// Recurring windows are evaluated on UTC clock times, so rule bounds and now
// are normalized to UTC before extracting the time of day.
func ruleActiveAt(r *model.SuppressionRule, now time.Time) bool {
	switch r.ScheduleType {
	case model.ScheduleOneTime:
		return !now.Before(r.StartTime) && !now.After(r.EndTime)
	case model.ScheduleRecurring:
		if now.Before(r.StartTime) {
			return false
		}
		start, end, cur := r.StartTime.UTC(), r.EndTime.UTC(), now.UTC()
		startMin := start.Hour()*60 + start.Minute()
		endMin := end.Hour()*60 + end.Minute()
		curMin := cur.Hour()*60 + cur.Minute()
		if startMin < endMin {
			return curMin >= startMin && curMin < endMin
		}
		return curMin >= startMin || curMin < endMin
	default:
		return false
	}
}
