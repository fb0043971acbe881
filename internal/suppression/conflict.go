package suppression

import (
	"sort"
	"time"

	"github.com/unimon/unimon/internal/model"
)

// detectConflicts compares the new rule against every stored rule that is
// still active or scheduled. A temporal overlap combined with a non-empty
// intersection of matcher keys yields an advisory descriptor. Caller holds
// the engine lock.
func (e *Engine) detectConflicts(newRule *model.SuppressionRule) []model.ConflictWarning {
	now := e.now()
	var out []model.ConflictWarning
	for _, existing := range e.rules {
		if Status(existing, now) == model.SuppressionExpired {
			continue
		}
		start, end, overlaps := windowOverlap(newRule, existing)
		if !overlaps {
			continue
		}
		keys := matcherIntersection(newRule.Matchers, existing.Matchers)
		if len(keys) == 0 {
			continue
		}
		out = append(out, model.ConflictWarning{
			RuleIDs:      []string{existing.ID, newRule.ID},
			LabelKeys:    keys,
			OverlapStart: start,
			OverlapEnd:   end,
		})
	}
	return out
}

// windowOverlap computes the intersection of two rule windows. Recurring
// rules compare on absolute [StartTime, EndTime] bounds as well; the daily
// repetition only narrows when a conflict applies, which stays advisory.
func windowOverlap(a, b *model.SuppressionRule) (time.Time, time.Time, bool) {
	start := a.StartTime
	if b.StartTime.After(start) {
		start = b.StartTime
	}
	end := a.EndTime
	if b.EndTime.Before(end) {
		end = b.EndTime
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// matcherIntersection returns the label keys both matcher sets constrain
// with compatible values. Keys pinned to different values cannot suppress
// the same alert and are not a conflict.
func matcherIntersection(a, b model.LabelMap) []string {
	var keys []string
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			continue
		}
		if av == bv {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
