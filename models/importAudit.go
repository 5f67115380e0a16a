package models

import (
	"context"
	"time"

	"github.com/LeighHMitchell/AIMS-sub014/config"
	"github.com/LeighHMitchell/AIMS-sub014/utils"
	"gorm.io/gorm"
)

// ImportAuditEntry is the append-only record of one import attempt. Every
// attempt writes exactly one entry, success or failure.
type ImportAuditEntry struct {
	ID         int    `gorm:"primary_key" json:"id"`
	ActivityId int    `gorm:"index;not null" json:"activity_id"`
	ImportType string `gorm:"size:20;not null" json:"import_type"`
	Result     string `gorm:"size:20;not null" json:"result"`

	FieldsUpdatedJSON  []byte `gorm:"type:json" json:"fields_updated"`
	PreviousValuesJSON []byte `gorm:"type:json" json:"previous_values"`
	ErrorDetails       string `gorm:"type:text" json:"error_details"`

	UserId    int       `json:"user_id"`
	UserName  string    `gorm:"size:255" json:"user_name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// NewImportAuditEntry builds an entry from the attempt outcome, stamping the
// acting user from the request context.
func NewImportAuditEntry(ctx context.Context, activityId int, importType string, result string,
	fieldsUpdated []string, previousValues map[string]string, errorDetails string) (*ImportAuditEntry, error) {

	fieldsJSON, err := utils.MarshalToJSON(fieldsUpdated)
	if err != nil {
		return nil, err
	}
	previousJSON, err := utils.MarshalToJSON(previousValues)
	if err != nil {
		return nil, err
	}

	userId, _ := utils.GetUserIdFromContext(ctx)
	userName, _ := utils.GetUserNameFromContext(ctx)

	return &ImportAuditEntry{
		ActivityId:         activityId,
		ImportType:         importType,
		Result:             result,
		FieldsUpdatedJSON:  []byte(fieldsJSON),
		PreviousValuesJSON: []byte(previousJSON),
		ErrorDetails:       errorDetails,
		UserId:             userId,
		UserName:           userName,
	}, nil
}

func CreateImportAuditEntry(tx *gorm.DB, entry *ImportAuditEntry) error {
	return tx.Create(entry).Error
}

func ListImportAuditEntries(ctx context.Context, activityId int) ([]*ImportAuditEntry, error) {
	db := config.GetDB()
	var entries []*ImportAuditEntry
	err := db.WithContext(ctx).
		Where("activity_id = ?", activityId).
		Order("created_at DESC, id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
