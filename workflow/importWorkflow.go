package workflow

import (
	"context"
	"time"

	"github.com/LeighHMitchell/AIMS-sub014/config"
	"github.com/LeighHMitchell/AIMS-sub014/exchange"
	"github.com/LeighHMitchell/AIMS-sub014/iati"
	"github.com/LeighHMitchell/AIMS-sub014/models"
	"github.com/LeighHMitchell/AIMS-sub014/utils"
	"gorm.io/gorm"
)

// ImportRequest selects what to bring over from the external record. An empty
// Fields list means everything the registry knows.
type ImportRequest struct {
	ActivityId int                    `json:"activityId"`
	Fields     []string               `json:"selectedFields"`
	ImportType string                 `json:"importType"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}

type ImportResult struct {
	ActivityId        int      `json:"activityId"`
	FieldsUpdated     []string `json:"fieldsUpdated"`
	TransactionsAdded int      `json:"transactionsAdded"`
	OrganizationsSeen int      `json:"organizationsSeen"`
	ImportedAt        string   `json:"importedAt"`
}

func (r *ImportRequest) selected() map[string]bool {
	fields := r.Fields
	if len(fields) == 0 {
		fields = append(models.ScalarFieldNames(), models.CollectionFieldNames()...)
	}
	m := make(map[string]bool, len(fields))
	for _, f := range fields {
		m[f] = true
	}
	return m
}

// ImportActivity runs one atomic, selective import. Unknown field names are
// rejected before any lock is taken. The whole import runs in a single
// database transaction serialized per activity, so a failure at any step
// leaves the local record untouched. Every attempt, success or failure, lands
// one audit entry.
func ImportActivity(ctx context.Context, req *ImportRequest, fetcher iati.Fetcher, converter *exchange.Converter) (*ImportResult, error) {
	logger := config.GetLogger()
	db := config.GetDB().WithContext(ctx)

	if req.ImportType == "" {
		if len(req.Fields) > 0 {
			req.ImportType = models.ImportTypePartial
		} else {
			req.ImportType = models.ImportTypeManual
		}
	}
	if err := iati.ValidateFieldSelection(req.Fields); err != nil {
		return nil, err
	}

	activity, err := models.GetAidActivity(ctx, req.ActivityId)
	if err != nil {
		return nil, err
	}

	release, err := utils.ActivityImportLock(ctx, req.ActivityId, moduleName, "ImportActivity")
	if err != nil {
		return nil, err
	}
	defer release()

	payload := req.Payload
	if payload == nil {
		payload, err = fetcher.FetchActivity(ctx, activity.IatiIdentifier)
		if err != nil {
			recordImportFailure(ctx, db, req, activity.IatiIdentifier, err)
			return nil, err
		}
	}

	external, err := iati.Normalize(payload)
	if err != nil {
		recordImportFailure(ctx, db, req, activity.IatiIdentifier, err)
		return nil, err
	}
	if err := iati.ValidatePayload(external); err != nil {
		recordImportFailure(ctx, db, req, activity.IatiIdentifier, err)
		return nil, err
	}

	if err := models.MarkSyncPending(db, req.ActivityId, activity.IatiIdentifier, true); err != nil {
		return nil, err
	}

	result := &ImportResult{ActivityId: req.ActivityId}
	selected := req.selected()

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := AcquireActivityImportLock(tx, req.ActivityId); err != nil {
			return err
		}
		defer ReleaseActivityImportLock(tx, req.ActivityId)

		var current models.AidActivity
		if err := tx.First(&current, req.ActivityId).Error; err != nil {
			return err
		}

		previousValues := make(map[string]string)
		for _, field := range models.ScalarFieldNames() {
			if !selected[field] {
				continue
			}
			before := current.ScalarValue(field)
			after := external.ScalarValue(field)
			if scalarDiffers(before, after) {
				previousValues[field] = before
				result.FieldsUpdated = append(result.FieldsUpdated, field)
			}
			current.ApplyScalarFromCanonical(field, external)
		}
		if err := tx.Save(&current).Error; err != nil {
			return err
		}

		if selected[models.FieldSectors] {
			lines := sectorLines(external.Sectors)
			if err := models.ValidateAllocationLines(lines); err != nil {
				return err
			}
			if err := models.ReplaceActivitySectors(tx, req.ActivityId, lines); err != nil {
				return err
			}
			result.FieldsUpdated = append(result.FieldsUpdated, models.FieldSectors)
		}

		if selected[models.FieldParticipatingOrgs] {
			seen, err := replaceParticipatingOrgs(tx, req.ActivityId, external.ParticipatingOrgs)
			if err != nil {
				return err
			}
			result.OrganizationsSeen = seen
			result.FieldsUpdated = append(result.FieldsUpdated, models.FieldParticipatingOrgs)
		}

		if selected[models.FieldTransactions] {
			added, err := models.InsertMissingTransactions(tx, req.ActivityId, external.Transactions)
			if err != nil {
				return err
			}
			result.TransactionsAdded = added
			if added > 0 {
				result.FieldsUpdated = append(result.FieldsUpdated, models.FieldTransactions)
			}
		}

		now := time.Now()
		result.ImportedAt = now.Format(time.RFC3339)

		entry, err := models.NewImportAuditEntry(ctx, req.ActivityId, req.ImportType, models.ImportResultSuccess,
			result.FieldsUpdated, previousValues, "")
		if err != nil {
			return err
		}
		if err := models.CreateImportAuditEntry(tx, entry); err != nil {
			return err
		}

		return models.StampSyncSuccess(tx, req.ActivityId, external.Identifier, now, true)
	})
	if err != nil {
		recordImportFailure(ctx, db, req, activity.IatiIdentifier, err)
		return nil, err
	}

	// USD enrichment runs after commit so a rate provider outage can never
	// roll back an otherwise good import.
	if converter != nil && result.TransactionsAdded > 0 {
		if err := FillUSDValues(ctx, req.ActivityId, converter); err != nil {
			config.LogError(logger, moduleName, "ImportActivity", "USD enrichment incomplete", req.ActivityId, err)
		}
	}

	return result, nil
}

// recordImportFailure writes the failure audit entry and error state outside
// the rolled-back transaction so the record of the attempt survives it.
func recordImportFailure(ctx context.Context, db *gorm.DB, req *ImportRequest, identifier string, cause error) {
	logger := config.GetLogger()

	entry, err := models.NewImportAuditEntry(ctx, req.ActivityId, req.ImportType, models.ImportResultFailure,
		nil, nil, cause.Error())
	if err == nil {
		err = models.CreateImportAuditEntry(db, entry)
	}
	if err != nil {
		config.LogError(logger, moduleName, "recordImportFailure", "Failed to write failure audit entry", req.ActivityId, err)
	}

	if err := models.StampSyncError(db, req.ActivityId, identifier, cause.Error()); err != nil {
		config.LogError(logger, moduleName, "recordImportFailure", "Failed to record sync error", req.ActivityId, err)
	}
}

func sectorLines(sectors []models.CanonicalSector) []models.AllocationLine {
	lines := make([]models.AllocationLine, 0, len(sectors))
	for _, s := range sectors {
		lines = append(lines, models.AllocationLine{
			Vocabulary: s.Vocabulary,
			Code:       s.Code,
			Name:       s.Name,
			Percentage: s.Percentage,
		})
	}
	return lines
}

// replaceParticipatingOrgs replaces the activity's participation rows
// wholesale, resolving each external org against the directory and creating
// the ones that do not exist yet.
func replaceParticipatingOrgs(tx *gorm.DB, activityId int, orgs []models.CanonicalParticipatingOrg) (int, error) {
	if err := tx.Where("activity_id = ?", activityId).Delete(&models.ParticipatingOrganization{}).Error; err != nil {
		return 0, err
	}

	seen := 0
	for _, ext := range orgs {
		org, err := models.ResolveOrCreateOrganization(tx, ext)
		if err != nil {
			return 0, err
		}
		seen++
		participation := models.ParticipatingOrganization{
			ActivityId:     activityId,
			OrganizationId: org.ID,
			Role:           string(ext.Role),
			Ref:            ext.Ref,
			Name:           ext.Name,
			TypeCode:       ext.TypeCode,
		}
		if err := models.UpsertParticipation(tx, &participation); err != nil {
			return 0, err
		}
	}
	return seen, nil
}

// FillUSDValues converts any transaction rows still missing a USD value.
// Best effort: a failed conversion leaves the row null and moves on.
func FillUSDValues(ctx context.Context, activityId int, converter *exchange.Converter) error {
	logger := config.GetLogger()
	db := config.GetDB().WithContext(ctx)

	var rows []*models.ActivityTransaction
	if err := db.Where("activity_id = ? AND value_usd IS NULL", activityId).Find(&rows).Error; err != nil {
		return err
	}

	var lastErr error
	for _, row := range rows {
		if row.Currency == "" {
			continue
		}
		conv, err := converter.ConvertToUSD(ctx, row.Value, row.Currency, row.TransactionDate)
		if err != nil {
			lastErr = err
			config.LogError(logger, moduleName, "FillUSDValues", "Conversion failed", row.ID, err)
			continue
		}
		updates := map[string]interface{}{
			"value_usd":          conv.Converted,
			"exchange_rate_used": conv.Rate,
		}
		if err := db.Model(row).Updates(updates).Error; err != nil {
			lastErr = err
		}
	}
	return lastErr
}
