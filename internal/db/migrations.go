package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/JC-Xevasty/veltech-backup-sub002/internal/model"
)

var models = []interface{}{
	&model.Quotation{},
	&model.QuotationLine{},
	&model.Project{},
	&model.Milestone{},
	&model.Payment{},
	&model.PurchaseOrder{},
	&model.PurchaseOrderLine{},
	&model.Notification{},
}

// postgresStatements tighten the schema beyond what AutoMigrate expresses.
// Every statement is idempotent.
var postgresStatements = []string{
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_purchase_orders_balance') THEN
			ALTER TABLE purchase_orders ADD CONSTRAINT chk_purchase_orders_balance CHECK (balance >= 0 AND balance <= total_amount);
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_payments_amount') THEN
			ALTER TABLE payments ADD CONSTRAINT chk_payments_amount CHECK (amount > 0);
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_milestones_amount') THEN
			ALTER TABLE milestones ADD CONSTRAINT chk_milestones_amount CHECK (amount > 0 AND sequence <> 0);
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_projects_contract_value') THEN
			ALTER TABLE projects ADD CONSTRAINT chk_projects_contract_value CHECK (contract_value >= 0);
		END IF;
	END
	$$;`,
	`CREATE INDEX IF NOT EXISTS idx_payments_pending_target ON payments (target_type, target_id) WHERE status = 'pending';`,
	`CREATE INDEX IF NOT EXISTS idx_milestones_project_billing ON milestones (project_id, billing_status);`,
}

// Migrate creates or updates the schema for every model.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	return runMigrations(db, postgresStatements)
}

func runMigrations(db *gorm.DB, statements []string) error {
	for i, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
