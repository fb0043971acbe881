package suppression

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/unimon/unimon/internal/model"
)

// defaultSilence is applied when a duration token cannot be parsed; the
// request is honored rather than rejected.
const defaultSilence = time.Hour

// Silence creates a one_time rule scoped to exactly one alert id, starting
// now. The duration is a compact token like "90s", "15m", "2h" or "1d".
func (e *Engine) Silence(ctx context.Context, alertID, duration string) (*model.SuppressionRule, error) {
	now := e.now()
	r := &model.SuppressionRule{
		Name:         "silence-" + alertID,
		Description:  "ad-hoc silence for alert " + alertID,
		Matchers:     model.LabelMap{"alertid": alertID},
		ScheduleType: model.ScheduleOneTime,
		StartTime:    now,
		EndTime:      now.Add(ParseSilenceDuration(duration)),
		CreatedBy:    "system",
		CreatedAt:    now,
	}
	if _, err := e.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// ParseSilenceDuration parses an <integer><unit> token with unit one of
// s, m, h, d. Unparseable tokens fall back to one hour.
func ParseSilenceDuration(token string) time.Duration {
	token = strings.TrimSpace(token)
	if len(token) < 2 {
		return defaultSilence
	}
	n, err := strconv.Atoi(token[:len(token)-1])
	if err != nil || n <= 0 {
		return defaultSilence
	}
	switch token[len(token)-1] {
	case 's':
		return time.Duration(n) * time.Second
	case 'm':
		return time.Duration(n) * time.Minute
	case 'h':
		return time.Duration(n) * time.Hour
	case 'd':
		return time.Duration(n) * 24 * time.Hour
	default:
		return defaultSilence
	}
}
