package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/foliolabs/folio/internal/domain"
	"github.com/foliolabs/folio/internal/modules/snapshots"
)

// EquitySnapshotJob records the account equity for the current trading day.
// Scheduled after market close on weekdays; the upsert makes re-runs
// harmless.
type EquitySnapshotJob struct {
	broker   domain.BrokerClient
	repo     *snapshots.Repository
	location *time.Location
	log      zerolog.Logger
}

// NewEquitySnapshotJob creates a new equity snapshot job
func NewEquitySnapshotJob(
	broker domain.BrokerClient,
	repo *snapshots.Repository,
	location *time.Location,
	log zerolog.Logger,
) *EquitySnapshotJob {
	if location == nil {
		location = time.UTC
	}
	return &EquitySnapshotJob{
		broker:   broker,
		repo:     repo,
		location: location,
		log:      log.With().Str("job", "equity_snapshot").Logger(),
	}
}

// Name returns the job name for the scheduler
func (j *EquitySnapshotJob) Name() string {
	return "equity_snapshot"
}

// Run fetches the account and stores today's snapshot
func (j *EquitySnapshotJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	account, err := j.broker.GetAccount(ctx)
	if err != nil {
		return err
	}

	date := time.Now().In(j.location).Format("2006-01-02")
	snapshot := snapshots.EquitySnapshot{
		Date:       date,
		Equity:     account.Equity,
		Cash:       account.Cash,
		RecordedAt: time.Now(),
	}

	if err := j.repo.Upsert(snapshot); err != nil {
		return err
	}

	j.log.Info().Str("date", date).Float64("equity", account.Equity).Msg("Recorded equity snapshot")
	return nil
}
