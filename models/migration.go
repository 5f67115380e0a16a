package models

import (
	"github.com/LeighHMitchell/AIMS-sub014/config"
)

func MigrateTable() {
	db := config.GetDB()
	logger := config.GetLogger()

	err := db.AutoMigrate(
		&User{},
		&AidActivity{},
		&Sector{},
		&SectorAllocation{},
		&Organization{},
		&ParticipatingOrganization{},
		&ActivityTransaction{},
		&SyncRecord{},
		&ImportAuditEntry{},
		&ExchangeRateCache{},
	)
	if err != nil {
		logger.Fatal("failed to migrate tables: ", err)
	}
}
