package models

import (
	"log"

	"gorm.io/gorm"
)

func MigrateTable(db *gorm.DB) {
	err := db.AutoMigrate(
		&Company{},
		&LedgerEntry{},
		&PlannedItem{},
		&PlannedMatch{},
		&EmailAlias{},
		&EmailIngestLog{},
		&EmailAttachment{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
