package reliability

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// backupTimeout bounds one backup run including the upload.
const backupTimeout = 15 * time.Minute

// BackupJob runs the nightly database backup with rotation.
type BackupJob struct {
	service       *BackupService
	retentionDays int
	log           zerolog.Logger
}

// NewBackupJob creates the backup job.
func NewBackupJob(service *BackupService, retentionDays int, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		service:       service,
		retentionDays: retentionDays,
		log:           log.With().Str("job", "backup_databases").Logger(),
	}
}

// Name returns the job name for scheduling and logging.
func (j *BackupJob) Name() string { return "backup_databases" }

// Run creates and uploads one backup, then rotates old ones.
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()

	if err := j.service.CreateAndUploadBackup(ctx); err != nil {
		return err
	}

	if err := j.service.RotateOldBackups(ctx, j.retentionDays); err != nil {
		// The backup itself succeeded; rotation failures only log
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}
	return nil
}
