package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/diewo77/go-stock/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncreaseCreatesAccountAndMovement(t *testing.T) {
	e := newEnv(t)
	p := e.product(t, "Mug", "5.00", -1)
	ctx := context.Background()

	res, err := e.stock.Increase(ctx, p.ID, 40, admin, "")
	require.NoError(t, err)
	assert.Equal(t, 40, res.Quantity)
	require.NotNil(t, res.Movement)
	assert.Equal(t, 40, res.Movement.Delta)
	assert.Equal(t, 40, res.Movement.BalanceAfter)
	assert.Equal(t, "Admin restock", res.Movement.Note)
	assert.Equal(t, admin, res.Movement.Actor)
	assert.Empty(t, e.pub.products(), "40 is above the threshold")
}

func TestLedgerSumMatchesQuantity(t *testing.T) {
	e := newEnv(t)
	p := e.product(t, "Mug", "5.00", -1)
	ctx := context.Background()

	_, err := e.stock.Increase(ctx, p.ID, 50, admin, "delivery")
	require.NoError(t, err)
	_, err = e.stock.Decrease(ctx, p.ID, 8, admin, "")
	require.NoError(t, err)
	_, err = e.stock.SetAbsolute(ctx, p.ID, 30, admin, "inventory count")
	require.NoError(t, err)
	_, err = e.stock.Decrease(ctx, p.ID, 31, admin, "")
	require.ErrorIs(t, err, ErrInsufficientStock)
	_, err = e.stock.Increase(ctx, p.ID, 2, models.SystemActor(), "return")
	require.NoError(t, err)

	sum, err := e.store.MovementSum(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 32, e.quantity(t, p.ID))
	assert.Equal(t, 32, sum)

	ms := e.movements(t, p.ID)
	require.Len(t, ms, 4)
	assert.Equal(t, []int{50, -8, -12, 2}, []int{ms[0].Delta, ms[1].Delta, ms[2].Delta, ms[3].Delta})
	for _, m := range ms {
		assert.NotZero(t, m.Delta)
	}
}

func TestDecreaseInsufficientLeavesNothing(t *testing.T) {
	e := newEnv(t)
	p := e.product(t, "Lamp", "12.50", 3)

	_, err := e.stock.Decrease(context.Background(), p.ID, 4, admin, "")
	var ise *InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, "Lamp", ise.ProductName)
	assert.Equal(t, 3, ise.Available)
	assert.Equal(t, 4, ise.Requested)
	assert.Equal(t, 3, e.quantity(t, p.ID))
	assert.Empty(t, e.movements(t, p.ID))
}

func TestDecreaseWithoutAccount(t *testing.T) {
	e := newEnv(t)
	p := e.product(t, "Lamp", "12.50", -1)

	_, err := e.stock.Decrease(context.Background(), p.ID, 1, admin, "")
	require.ErrorIs(t, err, ErrInsufficientStock)
	_, exists, err := e.stock.Quantity(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSetAbsoluteRecordsDelta(t *testing.T) {
	e := newEnv(t)
	p := e.product(t, "Desk", "99.00", 40)

	res, err := e.stock.SetAbsolute(context.Background(), p.ID, 12, admin, "cycle count")
	require.NoError(t, err)
	assert.Equal(t, 12, res.Quantity)
	assert.Equal(t, -28, res.Movement.Delta)
	assert.Equal(t, "cycle count", res.Movement.Note)
	assert.Equal(t, []uint{p.ID}, e.pub.products(), "12 is at or below 25")
}

func TestSetAbsoluteZeroDelta(t *testing.T) {
	e := newEnv(t)
	p := e.product(t, "Desk", "99.00", 40)
	ctx := context.Background()

	res, err := e.stock.SetAbsolute(ctx, p.ID, 40, admin, "recount")
	require.NoError(t, err)
	require.NotNil(t, res.Movement)
	assert.Zero(t, res.Movement.Delta)

	e.stock.recordZero = false
	res, err = e.stock.SetAbsolute(ctx, p.ID, 40, admin, "recount")
	require.NoError(t, err)
	assert.Nil(t, res.Movement)
	assert.Equal(t, 40, res.Quantity)
	assert.Len(t, e.movements(t, p.ID), 1)
}

func TestStockValidation(t *testing.T) {
	e := newEnv(t)
	p := e.product(t, "Desk", "99.00", 40)
	ctx := context.Background()

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"increase zero", func() error { _, err := e.stock.Increase(ctx, p.ID, 0, admin, ""); return err }, ErrInvalidQuantity},
		{"decrease negative", func() error { _, err := e.stock.Decrease(ctx, p.ID, -2, admin, ""); return err }, ErrInvalidQuantity},
		{"set negative", func() error { _, err := e.stock.SetAbsolute(ctx, p.ID, -1, admin, "x"); return err }, ErrInvalidQuantity},
		{"set without note", func() error { _, err := e.stock.SetAbsolute(ctx, p.ID, 3, admin, "  "); return err }, ErrMissingNote},
		{"admin without id", func() error {
			_, err := e.stock.Increase(ctx, p.ID, 1, models.Actor{Kind: models.ActorAdmin}, "")
			return err
		}, ErrInvalidActor},
		{"unknown product", func() error { _, err := e.stock.Increase(ctx, 9999, 1, admin, ""); return err }, ErrProductNotFound},
		{"increase long note", func() error { _, err := e.stock.Increase(ctx, p.ID, 1, admin, longNote); return err }, ErrNoteTooLong},
		{"decrease long note", func() error { _, err := e.stock.Decrease(ctx, p.ID, 1, admin, longNote); return err }, ErrNoteTooLong},
		{"set long note", func() error { _, err := e.stock.SetAbsolute(ctx, p.ID, 3, admin, longNote); return err }, ErrNoteTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, 40, e.quantity(t, p.ID))
	assert.Empty(t, e.movements(t, p.ID))
	assert.True(t, errors.Is(ErrMissingNote, ErrInvalidInput))
	assert.True(t, errors.Is(ErrNoteTooLong, ErrInvalidInput))
}

var longNote = strings.Repeat("n", MaxNoteLength+1)

func TestNoteLengthCountsCharacters(t *testing.T) {
	e := newEnv(t)
	p := e.product(t, "Desk", "99.00", 40)
	note := strings.Repeat("é", MaxNoteLength)

	res, err := e.stock.Increase(context.Background(), p.ID, 1, admin, note)
	require.NoError(t, err)
	assert.Equal(t, note, res.Movement.Note)
}

func TestConcurrentDecreasesNeverOversell(t *testing.T) {
	e := newEnv(t)
	p := e.product(t, "Chair", "45.00", 7)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = e.stock.Decrease(context.Background(), p.ID, 5, admin, "")
		}()
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInsufficientStock):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, insufficient)
	assert.Equal(t, 2, e.quantity(t, p.ID))
	assert.Len(t, e.movements(t, p.ID), 1)
}

func TestHistoryNewestFirst(t *testing.T) {
	e := newEnv(t)
	p := e.product(t, "Mug", "5.00", -1)
	ctx := context.Background()
	for i := 1; i <= 17; i++ {
		_, err := e.stock.Increase(ctx, p.ID, i, admin, "")
		require.NoError(t, err)
	}

	h, err := e.ledger.History(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, p.ID, h.Product.ID)
	assert.EqualValues(t, 17, h.Movements.Total)
	require.Len(t, h.Movements.Items, HistoryPageSize)
	assert.Equal(t, 17, h.Movements.Items[0].Delta)
	assert.Equal(t, 2, h.Movements.LastPage())

	h, err = e.ledger.History(ctx, p.ID, 2)
	require.NoError(t, err)
	require.Len(t, h.Movements.Items, 2)
	assert.Equal(t, 1, h.Movements.Items[1].Delta)

	_, err = e.ledger.History(ctx, 4242, 1)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestHistoryOfDeletedProduct(t *testing.T) {
	e := newEnv(t)
	p := e.product(t, "Mug", "5.00", -1)
	ctx := context.Background()
	_, err := e.stock.Increase(ctx, p.ID, 3, admin, "")
	require.NoError(t, err)
	require.NoError(t, e.catalog.DeleteProduct(ctx, p.ID))

	h, err := e.ledger.History(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.Len(t, h.Movements.Items, 1)

	_, err = e.stock.Increase(ctx, p.ID, 1, admin, "")
	assert.ErrorIs(t, err, ErrProductNotFound)
}
