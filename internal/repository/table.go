package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Filter is an explicit equality predicate. Slice values become IN lists.
type Filter struct {
	Where map[string]any
	Order string
	Limit int
}

// Table is a typed view over one gorm model keyed by a uuid "id" column.
type Table[T any] struct {
	db       *gorm.DB
	order    string
	preloads []preload
}

type preload struct {
	field string
	order string
}

func newTable[T any](db *gorm.DB, order string, preloads ...preload) Table[T] {
	return Table[T]{db: db, order: order, preloads: preloads}
}

func (t Table[T]) query(ctx context.Context) *gorm.DB {
	q := t.db.WithContext(ctx)
	for _, p := range t.preloads {
		order := p.order
		q = q.Preload(p.field, func(db *gorm.DB) *gorm.DB {
			return db.Order(order)
		})
	}
	return q
}

func (t Table[T]) Get(ctx context.Context, id uuid.UUID) (*T, error) {
	var entity T
	if err := t.query(ctx).Where("id = ?", id).First(&entity).Error; err != nil {
		return nil, translate(err)
	}
	return &entity, nil
}

// GetForUpdate loads the row with SELECT ... FOR UPDATE. Associations are not
// preloaded. Backends without row locks (sqlite) drop the locking clause.
func (t Table[T]) GetForUpdate(ctx context.Context, id uuid.UUID) (*T, error) {
	var entity T
	err := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&entity).Error
	if err != nil {
		return nil, translate(err)
	}
	return &entity, nil
}

func (t Table[T]) List(ctx context.Context, filter Filter) ([]T, error) {
	q := applyFilter(t.query(ctx), filter, t.order)
	var rows []T
	if err := q.Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	return rows, nil
}

func (t Table[T]) Count(ctx context.Context, filter Filter) (int64, error) {
	q := t.db.WithContext(ctx).Model(new(T))
	if len(filter.Where) > 0 {
		q = q.Where(filter.Where)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, translate(err)
	}
	return count, nil
}

func (t Table[T]) Create(ctx context.Context, entity *T) error {
	return translate(t.db.WithContext(ctx).Create(entity).Error)
}

// Update applies patch to the row. A missing row is ErrNotFound.
func (t Table[T]) Update(ctx context.Context, id uuid.UUID, patch map[string]any) error {
	res := t.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(patch)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateIf applies patch only when the row still matches expect. When no row
// matched the caller lost a race and gets ErrConflict.
func (t Table[T]) UpdateIf(ctx context.Context, id uuid.UUID, expect, patch map[string]any) error {
	q := t.db.WithContext(ctx).Model(new(T)).Where("id = ?", id)
	if len(expect) > 0 {
		q = q.Where(expect)
	}
	res := q.Updates(patch)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: row %s changed concurrently", ErrConflict, id)
	}
	return nil
}

func (t Table[T]) Delete(ctx context.Context, id uuid.UUID) error {
	res := t.db.WithContext(ctx).Where("id = ?", id).Delete(new(T))
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteWhere removes every row matching filter and returns how many went.
// An empty predicate is refused rather than wiping the table.
func (t Table[T]) DeleteWhere(ctx context.Context, filter Filter) (int64, error) {
	if len(filter.Where) == 0 {
		return 0, fmt.Errorf("delete without predicate")
	}
	res := t.db.WithContext(ctx).Where(filter.Where).Delete(new(T))
	if res.Error != nil {
		return 0, translate(res.Error)
	}
	return res.RowsAffected, nil
}

func applyFilter(q *gorm.DB, filter Filter, defaultOrder string) *gorm.DB {
	if len(filter.Where) > 0 {
		q = q.Where(filter.Where)
	}
	switch {
	case filter.Order != "":
		q = q.Order(filter.Order)
	case defaultOrder != "":
		q = q.Order(defaultOrder)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	return q
}
