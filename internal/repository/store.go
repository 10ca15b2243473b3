package repository

import (
	"context"
	"database/sql"

	"gorm.io/gorm"

	"github.com/JC-Xevasty/veltech-backup-sub002/internal/model"
)

// Store bundles one Table per entity over a single gorm handle. Inside
// WithTransaction every table shares the transaction.
type Store struct {
	db *gorm.DB

	Quotations     Table[model.Quotation]
	Projects       Table[model.Project]
	Milestones     Table[model.Milestone]
	Payments       Table[model.Payment]
	PurchaseOrders Table[model.PurchaseOrder]
	Notifications  Table[model.Notification]

	QuotationLines     Table[model.QuotationLine]
	PurchaseOrderLines Table[model.PurchaseOrderLine]
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:             db,
		Quotations:     newTable[model.Quotation](db, "created_at DESC", preload{field: "Lines", order: "position ASC"}),
		Projects:       newTable[model.Project](db, "created_at DESC", preload{field: "Milestones", order: "sequence ASC"}),
		Milestones:     newTable[model.Milestone](db, "sequence ASC"),
		Payments:       newTable[model.Payment](db, "created_at ASC"),
		PurchaseOrders: newTable[model.PurchaseOrder](db, "created_at DESC", preload{field: "Lines", order: "position ASC"}),
		Notifications:  newTable[model.Notification](db, "created_at DESC"),

		QuotationLines:     newTable[model.QuotationLine](db, "position ASC"),
		PurchaseOrderLines: newTable[model.PurchaseOrderLine](db, "position ASC"),
	}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

// WithTransaction runs fn inside one transaction. Nested calls on a
// transactional Store become savepoints. Read committed is requested on
// postgres; other backends use their default.
func (s *Store) WithTransaction(ctx context.Context, fn func(tx *Store) error) error {
	var opts []*sql.TxOptions
	if s.db.Dialector.Name() == "postgres" {
		opts = append(opts, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	}, opts...)
	return translate(err)
}
