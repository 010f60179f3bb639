package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/diewo77/go-stock/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Category{}, &models.Product{}, &models.StockAccount{}, &models.StockMovement{}))
	return New(db, time.Second)
}

func TestTransactionRollsBackOnError(t *testing.T) {
	s := setupTestStore(t)
	boom := errors.New("boom")

	err := s.Transaction(context.Background(), func(tx *Tx) error {
		p := models.Product{Name: "Mug", SKU: "MUG-1", Price: decimal.NewFromInt(5), Active: true}
		if err := tx.CreateProduct(&p); err != nil {
			return err
		}
		if _, err := tx.EnsureAccount(p.ID); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var products, accounts int64
	s.DB().Model(&models.Product{}).Count(&products)
	s.DB().Model(&models.StockAccount{}).Count(&accounts)
	assert.Zero(t, products)
	assert.Zero(t, accounts)
}

func TestEnsureAccountIsIdempotent(t *testing.T) {
	s := setupTestStore(t)
	p := models.Product{Name: "Mug", SKU: "MUG-1", Price: decimal.NewFromInt(5), Active: true}
	require.NoError(t, s.DB().Create(&p).Error)

	for i := 0; i < 2; i++ {
		err := s.Transaction(context.Background(), func(tx *Tx) error {
			acct, err := tx.EnsureAccount(p.ID)
			if err != nil {
				return err
			}
			return tx.SetQuantity(acct, acct.Quantity+3)
		})
		require.NoError(t, err)
	}
	acct, err := s.Account(context.Background(), p.ID)
	require.NoError(t, err)
	require.NotNil(t, acct)
	assert.Equal(t, 6, acct.Quantity)
}

func TestLockAccountMissing(t *testing.T) {
	s := setupTestStore(t)
	err := s.Transaction(context.Background(), func(tx *Tx) error {
		acct, err := tx.LockAccount(42)
		assert.Nil(t, acct)
		return err
	})
	require.NoError(t, err)
}

func TestTransactionExpiredContextIsBusy(t *testing.T) {
	s := setupTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := s.Transaction(ctx, func(tx *Tx) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, ErrStorageBusy)
	assert.False(t, called)
}

func TestProductNotFound(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.Product(context.Background(), 99)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestMovementsNewestFirst(t *testing.T) {
	s := setupTestStore(t)
	p := models.Product{Name: "Mug", SKU: "MUG-1", Price: decimal.NewFromInt(5), Active: true}
	require.NoError(t, s.DB().Create(&p).Error)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, d := range []int{5, -2, 4} {
		m := models.StockMovement{ProductID: p.ID, Delta: d, Actor: models.SystemActor(), CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, s.DB().Create(&m).Error)
	}

	page, err := s.Movements(context.Background(), p.ID, 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	assert.Equal(t, 2, page.LastPage())
	require.Len(t, page.Items, 2)
	assert.Equal(t, 4, page.Items[0].Delta)
	assert.Equal(t, -2, page.Items[1].Delta)

	sum, err := s.MovementSum(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, sum)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"record not found", gorm.ErrRecordNotFound, ErrNotFound},
		{"deadline", context.DeadlineExceeded, ErrStorageBusy},
		{"pg serialization", &pgconn.PgError{Code: "40001"}, ErrStorageBusy},
		{"pg lock timeout", &pgconn.PgError{Code: "55P03"}, ErrStorageBusy},
		{"pg unique violation", &pgconn.PgError{Code: "23505"}, ErrConflict},
		{"pg check violation", &pgconn.PgError{Code: "23514"}, ErrStorageFailure},
		{"sqlite busy", sqlite3.Error{Code: sqlite3.ErrBusy}, ErrStorageBusy},
		{"sqlite locked", sqlite3.Error{Code: sqlite3.ErrLocked}, ErrStorageBusy},
		{"sqlite unique", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, ErrConflict},
		{"other", errors.New("disk on fire"), ErrStorageFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(fmt.Errorf("wrapped: %w", tt.err))
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err)
		})
	}
	assert.NoError(t, Classify(nil))
	busy := Classify(context.Canceled)
	assert.Same(t, busy, Classify(busy))
}
