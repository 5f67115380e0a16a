package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// Sector is the code-list row allocation lines resolve against. Unknown codes
// arriving in an import are created on the fly.
type Sector struct {
	ID         int       `gorm:"primary_key" json:"id"`
	Vocabulary string    `gorm:"uniqueIndex:idx_sector_code,priority:1;size:20" json:"vocabulary"`
	Code       string    `gorm:"uniqueIndex:idx_sector_code,priority:2;size:20;not null" json:"code"`
	Name       string    `gorm:"size:255" json:"name"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func GetOrCreateSector(tx *gorm.DB, vocabulary string, code string, name string) (*Sector, error) {
	var sector Sector
	err := tx.Where("vocabulary = ? AND code = ?", vocabulary, code).First(&sector).Error
	if err == nil {
		return &sector, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	sector = Sector{Vocabulary: vocabulary, Code: code, Name: name}
	if err := tx.Create(&sector).Error; err != nil {
		return nil, err
	}
	return &sector, nil
}
