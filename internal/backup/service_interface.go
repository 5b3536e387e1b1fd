package backup

import "context"

// Service defines the backup operations consumed by the CLI and HTTP handlers.
// This interface allows mocking for testing.
type Service interface {
	CreateBackup(ctx context.Context, overrides ...Option) (*BackupInfo, error)
	RestoreBackup(ctx context.Context, path string, opts RestoreOptions) *RestoreResult
	ListBackups(ctx context.Context) ([]*BackupInfo, error)
	GetBackup(ctx context.Context, id string) (*BackupInfo, error)
	DeleteBackup(ctx context.Context, id string) (bool, error)
	VerifyBackup(ctx context.Context, path, password string) *VerifyResult
	ArchivePath(info *BackupInfo) string
	Subscribe(o Observer) func()
}

// Ensure *Manager implements the interface at compile time.
var _ Service = (*Manager)(nil)
