package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/farmalink/erpbridge/internal/domain"
	"github.com/farmalink/erpbridge/internal/repository"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_runs",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&domain.Run{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_runs_state ON runs (state)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&domain.Run{})
			},
		},
		{
			ID: "000002_create_ledger_entries",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.LedgerEntryModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_file_key ON ledger_entries (module, file_name, key_value)`,
					`CREATE INDEX IF NOT EXISTS idx_ledger_file_submitted ON ledger_entries (module, file_name, submitted)`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.LedgerEntryModel{})
			},
		},
	})

	return m.Migrate()
}
