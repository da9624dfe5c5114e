// internal/repository/gorm_store.go
package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// GormStore implements Store on top of a GORM connection.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Users() UserRepository       { return &gormUsers{db: s.db} }
func (s *GormStore) Products() ProductRepository { return &gormProducts{db: s.db} }
func (s *GormStore) Reviews() ReviewRepository   { return &gormReviews{db: s.db} }
func (s *GormStore) Orders() OrderRepository     { return &gormOrders{db: s.db} }

func (s *GormStore) WithTx(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// translate maps GORM errors onto the package sentinels. Duplicate keys are
// only reported when the connection was opened with TranslateError.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}

func paginate(db *gorm.DB, offset, limit int) *gorm.DB {
	if offset > 0 {
		db = db.Offset(offset)
	}
	if limit > 0 {
		db = db.Limit(limit)
	}
	return db
}

// createdBetween restricts db to rows created in [from, to).
func createdBetween(db *gorm.DB, from, to time.Time) *gorm.DB {
	if !from.IsZero() {
		db = db.Where("created_at >= ?", from)
	}
	if !to.IsZero() {
		db = db.Where("created_at < ?", to)
	}
	return db
}
