package routing

import (
	"sort"
	"strings"

	"github.com/unimon/unimon/internal/model"
)

// Bundle is one notification unit: alerts sharing a groupBy projection that
// arrived within the rule's group window of each other.
type Bundle struct {
	Key    string                `json:"key"`
	Alerts []*model.UnifiedAlert `json:"alerts"`
}

// GroupAlerts bundles alerts per the rule's grouping settings. Alerts with
// the same projection over GroupBy labels and start times within GroupWindow
// of the bundle's first alert share a bundle, capped at GroupLimit; overflow
// starts a new bundle. With no GroupBy labels every alert is its own bundle.
func GroupAlerts(rule *model.RoutingRule, alerts []*model.UnifiedAlert) []Bundle {
	if len(alerts) == 0 {
		return nil
	}
	if len(rule.GroupBy) == 0 {
		out := make([]Bundle, 0, len(alerts))
		for _, a := range alerts {
			out = append(out, Bundle{Key: a.ID, Alerts: []*model.UnifiedAlert{a}})
		}
		return out
	}

	byKey := map[string][]*model.UnifiedAlert{}
	var keys []string
	for _, a := range alerts {
		k := projectionKey(rule.GroupBy, a.Labels)
		if _, ok := byKey[k]; !ok {
			keys = append(keys, k)
		}
		byKey[k] = append(byKey[k], a)
	}

	limit := rule.GroupLimit
	if limit <= 0 {
		limit = 50
	}

	var out []Bundle
	for _, k := range keys {
		group := byKey[k]
		sort.SliceStable(group, func(i, j int) bool { return group[i].StartTime.Before(group[j].StartTime) })
		var cur *Bundle
		for _, a := range group {
			within := cur != nil && len(cur.Alerts) < limit &&
				(rule.GroupWindow <= 0 || a.StartTime.Sub(cur.Alerts[0].StartTime) <= rule.GroupWindow)
			if !within {
				out = append(out, Bundle{Key: k})
				cur = &out[len(out)-1]
			}
			cur.Alerts = append(cur.Alerts, a)
		}
	}
	return out
}

func projectionKey(groupBy []string, labels model.LabelMap) string {
	norm := labels.Normalize()
	parts := make([]string, 0, len(groupBy))
	for _, k := range groupBy {
		parts = append(parts, k+"="+norm[strings.ToLower(k)])
	}
	return strings.Join(parts, "|")
}
