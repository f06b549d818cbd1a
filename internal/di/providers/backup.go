package providers

import (
	"github.com/samber/do/v2"

	"github.com/communalgrowth/docsub/internal/backup"
	"github.com/communalgrowth/docsub/internal/logger"
)

// ProvideBackupService provides the backup service.
func ProvideBackupService(i do.Injector) (*backup.BackupService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return backup.NewBackupService(storeHandle.Store, log.Logger), nil
}

// ProvideRestoreService provides the restore service. Restored documents
// are indexed for search as they are created.
func ProvideRestoreService(i do.Injector) (*backup.RestoreService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return backup.NewRestoreService(storeHandle.Store, indexHandle.SearchIndex, log.Logger), nil
}
