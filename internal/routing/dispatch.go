package routing

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sender delivers one bundle to one destination. Real channel transports
// live outside this core; the default sender only logs.
type Sender interface {
	Send(ctx context.Context, destination string, bundle Bundle) error
}

// LogSender records the delivery intent and succeeds.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, destination string, bundle Bundle) error {
	log.Info().Str("destination", destination).Str("group", bundle.Key).Int("alerts", len(bundle.Alerts)).Msg("notification delivered")
	return nil
}

// DeliveryOutcome is the final per-destination result of one dispatch.
// Delivery failure never discards the underlying alert or policy state.
type DeliveryOutcome struct {
	Destination string `json:"destination"`
	Delivered   bool   `json:"delivered"`
	Attempts    int    `json:"attempts"`
	Error       string `json:"error,omitempty"`
}

// Dispatcher attempts delivery per resolved destination with a bounded
// retry.
type Dispatcher struct {
	sender      Sender
	maxAttempts int
	backoff     time.Duration
}

// NewDispatcher wraps sender; a nil sender gets the logging default.
func NewDispatcher(sender Sender) *Dispatcher {
	if sender == nil {
		sender = LogSender{}
	}
	return &Dispatcher{sender: sender, maxAttempts: 3, backoff: 100 * time.Millisecond}
}

// Dispatch sends bundle to every destination and records the final outcome
// for each.
func (d *Dispatcher) Dispatch(ctx context.Context, destinations []string, bundle Bundle) []DeliveryOutcome {
	out := make([]DeliveryOutcome, 0, len(destinations))
	for _, dest := range destinations {
		outcome := DeliveryOutcome{Destination: dest}
		for attempt := 1; attempt <= d.maxAttempts; attempt++ {
			outcome.Attempts = attempt
			err := d.sender.Send(ctx, dest, bundle)
			if err == nil {
				outcome.Delivered = true
				break
			}
			outcome.Error = err.Error()
			log.Warn().Err(err).Str("destination", dest).Int("attempt", attempt).Msg("notification delivery failed")
			if attempt < d.maxAttempts {
				select {
				case <-ctx.Done():
					attempt = d.maxAttempts
				case <-time.After(time.Duration(attempt) * d.backoff):
				}
			}
		}
		out = append(out, outcome)
	}
	return out
}
