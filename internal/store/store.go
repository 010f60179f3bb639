// Package store is the persistence boundary: a unit of work around gorm
// transactions plus the queries the services need.
package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Store owns the database handle and the transaction timeout.
type Store struct {
	db      *gorm.DB
	timeout time.Duration
}

// New returns a Store. A zero timeout leaves transactions unbounded.
func New(db *gorm.DB, timeout time.Duration) *Store {
	return &Store{db: db, timeout: timeout}
}

// DB exposes the underlying handle for migrations and tests.
func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) isPostgres() bool { return s.db.Dialector.Name() == "postgres" }

// Transaction runs fn as one unit of work. Either every write made through tx
// commits or none does. Errors returned by fn are passed through untouched;
// begin and commit failures are classified.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Tx) error) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	var fnErr error
	err := s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		if s.isPostgres() && s.timeout > 0 {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = %d", s.timeout.Milliseconds())
			if err := gtx.Exec(stmt).Error; err != nil {
				fnErr = Classify(err)
				return fnErr
			}
		}
		fnErr = fn(&Tx{db: gtx, locking: s.isPostgres()})
		return fnErr
	})
	if err == nil {
		return nil
	}
	if fnErr != nil {
		return fnErr
	}
	return Classify(err)
}

// read returns a context-bound session for queries outside a transaction.
func (s *Store) read(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// Page is one page of a listing.
type Page[T any] struct {
	Items   []T   `json:"data"`
	Total   int64 `json:"total"`
	Page    int   `json:"current_page"`
	PerPage int   `json:"per_page"`
}

// LastPage returns the number of the last page, at least 1.
func (p Page[T]) LastPage() int {
	if p.PerPage <= 0 || p.Total == 0 {
		return 1
	}
	return int((p.Total + int64(p.PerPage) - 1) / int64(p.PerPage))
}

// normalizePage clamps page to 1 and returns the row offset.
func normalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	return page, (page - 1) * perPage
}
