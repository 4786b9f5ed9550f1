// Package snapshots persists daily account equity snapshots.
//
// The local snapshot history backs the equity-diff return strategy when the
// broker's own last_equity field is missing or stale.
package snapshots

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// EquitySnapshot is the account equity at a trading day's close
type EquitySnapshot struct {
	Date       string    `json:"date"` // YYYY-MM-DD in the account timezone
	Equity     float64   `json:"equity"`
	Cash       float64   `json:"cash"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Repository handles equity snapshot persistence
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new snapshot repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "snapshots").Logger(),
	}
}

// Upsert stores the snapshot for a date, replacing an earlier recording of
// the same day.
func (r *Repository) Upsert(snapshot EquitySnapshot) error {
	if snapshot.Date == "" {
		return fmt.Errorf("snapshot date is required")
	}

	recordedAt := snapshot.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}

	_, err := r.db.Exec(`
		INSERT INTO equity_snapshots (date, equity, cash, recorded_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			equity = excluded.equity,
			cash = excluded.cash,
			recorded_at = excluded.recorded_at
	`, snapshot.Date, snapshot.Equity, snapshot.Cash, recordedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot for %s: %w", snapshot.Date, err)
	}

	r.log.Debug().Str("date", snapshot.Date).Float64("equity", snapshot.Equity).Msg("Stored equity snapshot")
	return nil
}

// LatestBefore returns the most recent snapshot strictly before a date.
// Returns nil when no earlier snapshot exists.
func (r *Repository) LatestBefore(date string) (*EquitySnapshot, error) {
	var snapshot EquitySnapshot
	var recordedAt int64

	err := r.db.QueryRow(`
		SELECT date, equity, cash, recorded_at
		FROM equity_snapshots
		WHERE date < ?
		ORDER BY date DESC
		LIMIT 1
	`, date).Scan(&snapshot.Date, &snapshot.Equity, &snapshot.Cash, &recordedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot before %s: %w", date, err)
	}

	snapshot.RecordedAt = time.Unix(recordedAt, 0).UTC()
	return &snapshot, nil
}

// Get returns the snapshot for an exact date, or nil when absent.
func (r *Repository) Get(date string) (*EquitySnapshot, error) {
	var snapshot EquitySnapshot
	var recordedAt int64

	err := r.db.QueryRow(`
		SELECT date, equity, cash, recorded_at
		FROM equity_snapshots
		WHERE date = ?
	`, date).Scan(&snapshot.Date, &snapshot.Equity, &snapshot.Cash, &recordedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot for %s: %w", date, err)
	}

	snapshot.RecordedAt = time.Unix(recordedAt, 0).UTC()
	return &snapshot, nil
}
