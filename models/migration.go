package models

import (
	"log"

	"github.com/casahogar/cashbox_backend/config"
	"gorm.io/gorm"
)

func MigrateTable() {
	if err := Migrate(config.GetDB()); err != nil {
		log.Fatal(err)
	}
}

// Migrate creates or updates every table the register owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Product{}, &Nurse{},
		&Sale{}, &SaleItem{},
		&Expense{}, &CapitalInjection{}, &WasteRecord{},
		&DailyClosing{},
		&ActivityLog{},
		&IdempotencyKey{},
	)
}
