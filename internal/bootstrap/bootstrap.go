// Package bootstrap seeds the in-memory stores from a YAML file at startup.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/unimon/unimon/internal/datasource"
	"github.com/unimon/unimon/internal/model"
	"github.com/unimon/unimon/internal/routing"
	"github.com/unimon/unimon/internal/suppression"
)

// SeedFile is the YAML shape of the startup seed.
type SeedFile struct {
	Datasources      []SeedDatasource      `yaml:"datasources"`
	RoutingRules     []SeedRoutingRule     `yaml:"routingRules"`
	SuppressionRules []SeedSuppressionRule `yaml:"suppressionRules"`
}

type SeedDatasource struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
}

type SeedRoutingRule struct {
	Name         string            `yaml:"name"`
	Labels       map[string]string `yaml:"labels"`
	Severities   []string          `yaml:"severities"`
	WindowStart  string            `yaml:"windowStart"`
	WindowEnd    string            `yaml:"windowEnd"`
	Destinations []string          `yaml:"destinations"`
	GroupBy      []string          `yaml:"groupBy"`
	GroupWindow  string            `yaml:"groupWindow"`
	GroupLimit   int               `yaml:"groupLimit"`
	IsDefault    bool              `yaml:"isDefault"`
}

type SeedSuppressionRule struct {
	Name         string            `yaml:"name"`
	Description  string            `yaml:"description"`
	Matchers     map[string]string `yaml:"matchers"`
	ScheduleType string            `yaml:"scheduleType"`
	StartTime    time.Time         `yaml:"startTime"`
	EndTime      time.Time         `yaml:"endTime"`
}

// Apply loads path and creates every seeded object. An empty path is a
// no-op. Individual failures are logged and skipped so one bad entry does
// not abort startup.
func Apply(ctx context.Context, path string, reg datasource.Store, rt *routing.Engine, sup *suppression.Engine) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	for _, s := range seed.Datasources {
		ds := &model.Datasource{Name: s.Name, Type: model.DatasourceType(s.Type), URL: s.URL, Enabled: s.Enabled}
		if err := reg.Create(ctx, ds); err != nil {
			log.Error().Err(err).Str("name", s.Name).Msg("seed datasource failed")
		}
	}
	for _, s := range seed.RoutingRules {
		r := &model.RoutingRule{
			Name:         s.Name,
			Matchers:     model.RouteMatchers{Labels: model.LabelMap(s.Labels)},
			Destinations: s.Destinations,
			GroupBy:      s.GroupBy,
			GroupLimit:   s.GroupLimit,
			IsDefault:    s.IsDefault,
		}
		for _, sev := range s.Severities {
			r.Matchers.Severities = append(r.Matchers.Severities, model.Severity(sev))
		}
		if s.WindowStart != "" && s.WindowEnd != "" {
			r.Matchers.Window = &model.ClockWindow{Start: s.WindowStart, End: s.WindowEnd}
		}
		if s.GroupWindow != "" {
			if d, err := time.ParseDuration(s.GroupWindow); err == nil {
				r.GroupWindow = d
			}
		}
		if err := rt.Create(ctx, r); err != nil {
			log.Error().Err(err).Str("name", s.Name).Msg("seed routing rule failed")
		}
	}
	for _, s := range seed.SuppressionRules {
		r := &model.SuppressionRule{
			Name:         s.Name,
			Description:  s.Description,
			Matchers:     model.LabelMap(s.Matchers),
			ScheduleType: model.ScheduleType(s.ScheduleType),
			StartTime:    s.StartTime,
			EndTime:      s.EndTime,
			CreatedBy:    "seed",
		}
		if _, err := sup.Create(ctx, r); err != nil {
			log.Error().Err(err).Str("name", s.Name).Msg("seed suppression rule failed")
		}
	}
	log.Info().Int("datasources", len(seed.Datasources)).Int("routingRules", len(seed.RoutingRules)).Int("suppressionRules", len(seed.SuppressionRules)).Msg("seed applied")
	return nil
}
