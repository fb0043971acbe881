// Package routing evaluates notification-routing rules against unified
// alerts and resolves destination sets.
package routing

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unimon/unimon/internal/model"
)

// Engine holds the ordered routing rule set. Rule order is insertion order
// and determines evaluation order, but matching is not exclusive: every
// matching rule contributes its destinations.
type Engine struct {
	mu    sync.Mutex
	rules []*model.RoutingRule
	now   func() time.Time
}

// NewEngine returns an empty routing engine.
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// Create validates the rule, assigns an id, and appends it to the ordered
// set.
func (e *Engine) Create(ctx context.Context, r *model.RoutingRule) error {
	var verrs model.ValidationErrors
	if strings.TrimSpace(r.Name) == "" {
		verrs.Addf("name", "name required")
	}
	if len(r.Destinations) == 0 {
		verrs.Addf("destinations", "at least one destination required")
	}
	if r.GroupLimit < 0 {
		verrs.Addf("groupLimit", "must not be negative")
	}
	if verrs.HasErrors() {
		return &verrs
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	r.ID = uuid.NewString()
	cp := *r
	e.rules = append(e.rules, &cp)
	return nil
}

// Get returns a copy of the rule with the given id.
func (e *Engine) Get(ctx context.Context, id string) (*model.RoutingRule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.rules {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, &model.NotFoundError{Resource: "routing rule", ID: id}
}

// Update replaces the rule in place, keeping its position in the evaluation
// order.
func (e *Engine) Update(ctx context.Context, r *model.RoutingRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, cur := range e.rules {
		if cur.ID == r.ID {
			cp := *r
			e.rules[i] = &cp
			return nil
		}
	}
	return &model.NotFoundError{Resource: "routing rule", ID: r.ID}
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
	return &model.NotFoundError{Resource: "routing rule", ID: id}
}

// List returns copies of all rules in evaluation order.
func (e *Engine) List(ctx context.Context) []*model.RoutingRule {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*model.RoutingRule, 0, len(e.rules))
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

// Match resolves the destination set for alert: the union, without
// duplicates, of the destinations of every rule whose matchers all hold.
// When no rule matches, the rule flagged isDefault applies as fallback.
func (e *Engine) Match(alert *model.UnifiedAlert) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	var out []string
	seen := map[string]bool{}
	matched := false
	for _, r := range e.rules {
		if !ruleMatches(r, alert, now) {
			continue
		}
		matched = true
		for _, d := range r.Destinations {
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
			}
		}
	}
	if matched {
		return out
	}
	for _, r := range e.rules {
		if r.IsDefault {
			return append([]string(nil), r.Destinations...)
		}
	}
	return nil
}

// ruleMatches tests the conjunction of a rule's matchers: label equality,
// severity set membership, and time-window containment of now.
func ruleMatches(r *model.RoutingRule, alert *model.UnifiedAlert, now time.Time) bool {
	if !r.Matchers.Labels.Normalize().Subset(alert.Labels.Normalize()) {
		return false
	}
	if len(r.Matchers.Severities) > 0 {
		ok := false
		for _, s := range r.Matchers.Severities {
			if s == alert.Severity {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if r.Matchers.Window != nil && !windowContains(r.Matchers.Window, now) {
		return false
	}
	return true
}

// windowContains reports whether now's clock time falls inside the window.
// Window bounds are interpreted as UTC clock times, so now is normalized to
// UTC before comparing. An end at or before the start wraps past midnight.
func windowContains(w *model.ClockWindow, now time.Time) bool {
	start, err1 := time.Parse("15:04", w.Start)
	end, err2 := time.Parse("15:04", w.End)
	if err1 != nil || err2 != nil {
		return false
	}
	now = now.UTC()
	minutes := now.Hour()*60 + now.Minute()
	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()
	if startMin < endMin {
		return minutes >= startMin && minutes < endMin
	}
	return minutes >= startMin || minutes < endMin
}
