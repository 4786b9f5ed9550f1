package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/foliolabs/folio/internal/reliability"
)

// BackupJob uploads a fresh database backup and rotates old ones
type BackupJob struct {
	backups *reliability.BackupService
	log     zerolog.Logger
}

// NewBackupJob creates a new backup job
func NewBackupJob(backups *reliability.BackupService, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		backups: backups,
		log:     log.With().Str("job", "backup").Logger(),
	}
}

// Name returns the job name for the scheduler
func (j *BackupJob) Name() string {
	return "backup"
}

// Run creates and uploads a backup, then rotates old archives
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := j.backups.CreateAndUploadBackup(ctx); err != nil {
		return err
	}

	if err := j.backups.RotateOldBackups(ctx); err != nil {
		// Rotation failure leaves extra archives, next run retries
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}

	return nil
}
