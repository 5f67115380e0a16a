package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireActivityImportLock serializes imports per activity across instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same *gorm.DB that will do the import transaction.
func AcquireActivityImportLock(tx *gorm.DB, activityId int) error {
	lockName := fmt.Sprintf("import:%d", activityId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire import lock for activity_id=%d", activityId)
	}
	return nil
}

func ReleaseActivityImportLock(tx *gorm.DB, activityId int) {
	lockName := fmt.Sprintf("import:%d", activityId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
