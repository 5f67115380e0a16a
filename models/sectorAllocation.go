package models

import (
	"context"

	"github.com/LeighHMitchell/AIMS-sub014/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SectorAllocation struct {
	ID         int             `gorm:"primary_key" json:"id"`
	ActivityId int             `gorm:"index;not null" json:"activity_id"`
	SectorId   int             `gorm:"index" json:"sector_id"`
	Vocabulary string          `gorm:"size:20" json:"vocabulary"`
	Code       string          `gorm:"size:20;not null" json:"code"`
	Name       string          `gorm:"size:255" json:"name"`
	Percentage decimal.Decimal `gorm:"type:decimal(9,4);default:0" json:"percentage"`
	SortOrder  int             `json:"sort_order"`
}

// ReplaceActivitySectors deletes the activity's current allocation rows and
// inserts the given lines. The set replaces wholesale; it is never patched
// element-by-element. Lines must already have passed ValidateAllocationLines.
func ReplaceActivitySectors(tx *gorm.DB, activityId int, lines []AllocationLine) error {
	if err := tx.Where("activity_id = ?", activityId).Delete(&SectorAllocation{}).Error; err != nil {
		return err
	}
	for i, line := range lines {
		sector, err := GetOrCreateSector(tx, line.Vocabulary, line.Code, line.Name)
		if err != nil {
			return err
		}
		row := SectorAllocation{
			ActivityId: activityId,
			SectorId:   sector.ID,
			Vocabulary: line.Vocabulary,
			Code:       line.Code,
			Name:       line.Name,
			Percentage: line.Percentage,
			SortOrder:  i,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

// BuildAllocationSet assembles the current allocation set for an activity from
// storage rows, ready for validation or amount reconciliation.
func BuildAllocationSet(ctx context.Context, activityId int, totalAmountMinor *int64) (*AllocationSet, error) {
	db := config.GetDB()
	var rows []*SectorAllocation
	if err := db.WithContext(ctx).Where("activity_id = ?", activityId).Order("sort_order, id").Find(&rows).Error; err != nil {
		return nil, err
	}

	set := &AllocationSet{
		OwnerId:          activityId,
		OwnerType:        AllocationOwnerActivity,
		TotalAmountMinor: totalAmountMinor,
		Lines:            make([]AllocationLine, 0, len(rows)),
	}
	for _, row := range rows {
		set.Lines = append(set.Lines, AllocationLine{
			Vocabulary: row.Vocabulary,
			Code:       row.Code,
			Name:       row.Name,
			Percentage: row.Percentage,
		})
	}
	return set, nil
}
