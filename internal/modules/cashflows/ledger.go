// Package cashflows isolates same-day capital flows from investment
// performance.
package cashflows

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Ledger persists processed cash-movement activities keyed by activity ID so
// each activity contributes to exactly one day's resolution, even across
// retries.
type Ledger struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewLedger creates a new activity ledger
func NewLedger(db *sql.DB, log zerolog.Logger) *Ledger {
	return &Ledger{
		db:  db,
		log: log.With().Str("repo", "activity_ledger").Logger(),
	}
}

// Record stores an activity for a date. Replays of an already-recorded
// activity ID are ignored (the first recording wins).
func (l *Ledger) Record(activityID, date string, netAmount float64) error {
	if activityID == "" {
		return fmt.Errorf("activity id is required")
	}

	_, err := l.db.Exec(`
		INSERT INTO activity_ledger (activity_id, date, net_amount, recorded_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(activity_id) DO NOTHING
	`, activityID, date, netAmount, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to record activity %s: %w", activityID, err)
	}

	return nil
}

// SumForDate returns the signed net amount of all activities recorded for a
// date (YYYY-MM-DD).
func (l *Ledger) SumForDate(date string) (float64, error) {
	var sum sql.NullFloat64
	err := l.db.QueryRow(
		"SELECT SUM(net_amount) FROM activity_ledger WHERE date = ?", date,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum activities for %s: %w", date, err)
	}

	if !sum.Valid {
		return 0, nil
	}
	return sum.Float64, nil
}
