package cashflows

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/foliolabs/folio/internal/domain"
)

// Cash-movement activity types queried from the account-activity
// collaborator.
var depositActivityTypes = []string{"CSD", "CSW"}

// Resolver sums same-day cash-movement activities to isolate investment
// performance from capital flows. Results are idempotent: activity IDs are
// deduplicated through the ledger.
type Resolver struct {
	broker   domain.BrokerClient
	ledger   *Ledger
	location *time.Location
	log      zerolog.Logger
}

// NewResolver creates a new deposit/withdrawal resolver.
// The location is the account's configured timezone, used to resolve the
// current trading day.
func NewResolver(broker domain.BrokerClient, ledger *Ledger, location *time.Location, log zerolog.Logger) *Resolver {
	if location == nil {
		location = time.UTC
	}
	return &Resolver{
		broker:   broker,
		ledger:   ledger,
		location: location,
		log:      log.With().Str("service", "deposit_resolver").Logger(),
	}
}

// Today returns the current trading date (YYYY-MM-DD) in the account timezone.
func (r *Resolver) Today(now time.Time) string {
	return now.In(r.location).Format("2006-01-02")
}

// NetDeposits returns the signed net deposits/withdrawals for a trading date.
// An upstream failure falls back to the previously recorded ledger sum for
// the date, so a transient activity-query outage degrades rather than zeroes
// an already-seen deposit.
func (r *Resolver) NetDeposits(ctx context.Context, date string) (float64, error) {
	activities, err := r.broker.GetActivities(ctx, depositActivityTypes, date)
	if err != nil {
		r.log.Warn().Err(err).Str("date", date).Msg("Activity query failed, using recorded ledger sum")
		return r.ledger.SumForDate(date)
	}

	for _, activity := range activities {
		if activity.NetAmount == 0 {
			continue
		}
		if err := r.ledger.Record(activity.ID, date, activity.NetAmount); err != nil {
			r.log.Warn().Err(err).Str("activity_id", activity.ID).Msg("Failed to record activity")
		}
	}

	net, err := r.ledger.SumForDate(date)
	if err != nil {
		return 0, err
	}

	r.log.Debug().
		Str("date", date).
		Int("activities", len(activities)).
		Float64("net_deposits", net).
		Msg("Resolved same-day cash movements")

	return net, nil
}
