package models

import (
	"context"
	"errors"
	"time"

	"github.com/LeighHMitchell/AIMS-sub014/config"
	"github.com/LeighHMitchell/AIMS-sub014/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SyncFreshnessWindow is how long a successful sync keeps an activity "live"
// before it lazily decays to "outdated".
const SyncFreshnessWindow = 24 * time.Hour

// SyncRecord tracks the synchronization relationship between one activity and
// its external counterpart. One row per activity.
type SyncRecord struct {
	ID             int        `gorm:"primary_key" json:"id"`
	ActivityId     int        `gorm:"uniqueIndex;not null" json:"activity_id"`
	IatiIdentifier string     `gorm:"size:255;index" json:"iati_identifier"`
	LastSyncTime   *time.Time `json:"last_sync_time"`
	Pending        bool       `gorm:"default:false" json:"pending"`
	ErrorFlag      bool       `gorm:"default:false" json:"error_flag"`
	LastError      string     `gorm:"type:text" json:"last_error"`

	AutoSyncEnabled    bool   `gorm:"default:false" json:"auto_sync_enabled"`
	AutoSyncFieldsJSON []byte `gorm:"type:json" json:"auto_sync_fields"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// DeriveStatus computes the sync state at the given instant. The state is
// never stored: pending and error flags win over recency, an activity with no
// recorded sync is "never", and a stale timestamp decays to "outdated" with no
// background writer involved.
func (r *SyncRecord) DeriveStatus(now time.Time) SyncStatus {
	switch {
	case r == nil:
		return SyncStatusNever
	case r.Pending:
		return SyncStatusPending
	case r.ErrorFlag:
		return SyncStatusError
	case r.LastSyncTime == nil:
		return SyncStatusNever
	case now.Sub(*r.LastSyncTime) <= SyncFreshnessWindow:
		return SyncStatusLive
	default:
		return SyncStatusOutdated
	}
}

// AutoSyncFields decodes the stored field-name list. Empty or absent JSON
// means no fields are enrolled.
func (r *SyncRecord) AutoSyncFields() ([]string, error) {
	if r == nil || len(r.AutoSyncFieldsJSON) == 0 {
		return nil, nil
	}
	var fields []string
	if err := utils.UnmarshalFromJSON(r.AutoSyncFieldsJSON, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func GetSyncRecord(ctx context.Context, activityId int) (*SyncRecord, error) {
	db := config.GetDB()
	var record SyncRecord
	err := db.WithContext(ctx).Where("activity_id = ?", activityId).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func getOrInitSyncRecord(tx *gorm.DB, activityId int, identifier string) (*SyncRecord, error) {
	var record SyncRecord
	err := tx.Where("activity_id = ?", activityId).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		record = SyncRecord{ActivityId: activityId, IatiIdentifier: identifier}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "activity_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"iati_identifier"}),
		}).Create(&record).Error; err != nil {
			return nil, err
		}
		// When the create hit the conflict path (a concurrent writer got there
		// first) the primary key is not backfilled; reload so callers can run
		// keyed updates against the row.
		if record.ID == 0 {
			if err := tx.Where("activity_id = ?", activityId).First(&record).Error; err != nil {
				return nil, err
			}
		}
		return &record, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// MarkSyncPending flips the in-progress flag before an import starts so
// concurrent status reads report "pending".
func MarkSyncPending(tx *gorm.DB, activityId int, identifier string, pending bool) error {
	record, err := getOrInitSyncRecord(tx, activityId, identifier)
	if err != nil {
		return err
	}
	return tx.Model(record).Updates(map[string]interface{}{"pending": pending}).Error
}

// StampSyncSuccess records a successful comparison or import. Both operations
// count as contact with the external source, so both refresh last_sync_time. A
// successful import additionally clears any standing error.
func StampSyncSuccess(tx *gorm.DB, activityId int, identifier string, at time.Time, clearError bool) error {
	record, err := getOrInitSyncRecord(tx, activityId, identifier)
	if err != nil {
		return err
	}
	updates := map[string]interface{}{
		"last_sync_time": at,
		"pending":        false,
	}
	if clearError {
		updates["error_flag"] = false
		updates["last_error"] = ""
	}
	return tx.Model(record).Updates(updates).Error
}

// StampSyncError records a failed import. Auto-sync enrollment survives the
// failure; only an explicit user action disables it.
func StampSyncError(tx *gorm.DB, activityId int, identifier string, message string) error {
	record, err := getOrInitSyncRecord(tx, activityId, identifier)
	if err != nil {
		return err
	}
	return tx.Model(record).Updates(map[string]interface{}{
		"pending":    false,
		"error_flag": true,
		"last_error": message,
	}).Error
}

// SetAutoSync updates enrollment and the field subset the sweep may touch.
func SetAutoSync(ctx context.Context, activityId int, identifier string, enabled bool, fields []string) error {
	db := config.GetDB().WithContext(ctx)
	record, err := getOrInitSyncRecord(db, activityId, identifier)
	if err != nil {
		return err
	}
	encoded, err := utils.MarshalToJSON(fields)
	if err != nil {
		return err
	}
	return db.Model(record).Updates(map[string]interface{}{
		"auto_sync_enabled":     enabled,
		"auto_sync_fields_json": []byte(encoded),
	}).Error
}

// ListAutoSyncCandidates returns enrolled records whose last sync is stale or
// absent, skipping anything mid-import.
func ListAutoSyncCandidates(ctx context.Context, now time.Time) ([]*SyncRecord, error) {
	db := config.GetDB()
	cutoff := now.Add(-SyncFreshnessWindow)
	var records []*SyncRecord
	err := db.WithContext(ctx).
		Where("auto_sync_enabled = ? AND pending = ?", true, false).
		Where("last_sync_time IS NULL OR last_sync_time < ?", cutoff).
		Order("activity_id").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
