package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/diewo77/go-stock/internal/db"
	"github.com/diewo77/go-stock/internal/models"
	"github.com/diewo77/go-stock/internal/notify"
	"github.com/diewo77/go-stock/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []notify.LowStockEvent
}

func (p *capturePublisher) Publish(_ context.Context, ev notify.LowStockEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *capturePublisher) products() []uint {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]uint, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.ProductID)
	}
	return out
}

type env struct {
	db      *gorm.DB
	store   *store.Store
	pub     *capturePublisher
	ledger  *Ledger
	monitor *LowStockMonitor
	stock   *StockService
	orders  *OrderService
	catalog *CatalogService
}

var admin = models.AdminActor(1)

func newEnv(t *testing.T) *env {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gdb, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(gdb))

	log := zaptest.NewLogger(t)
	s := store.New(gdb, 5*time.Second)
	pub := &capturePublisher{}
	ledger := NewLedger(s)
	monitor := NewLowStockMonitor(s, pub, 25, log)
	stock := NewStockService(s, ledger, monitor, true, log)
	return &env{
		db:      gdb,
		store:   s,
		pub:     pub,
		ledger:  ledger,
		monitor: monitor,
		stock:   stock,
		orders:  NewOrderService(s, stock, monitor, log),
		catalog: NewCatalogService(s, stock, monitor, log),
	}
}

// product inserts a product and, when quantity >= 0, an account holding it
// without a ledger entry.
func (e *env) product(t *testing.T, name, price string, quantity int) models.Product {
	t.Helper()
	p := models.Product{Name: name, Slug: models.Slugify(name), SKU: strings.ToUpper(models.Slugify(name)), Price: decimal.RequireFromString(price), Active: true}
	require.NoError(t, e.db.Create(&p).Error)
	if quantity >= 0 {
		require.NoError(t, e.db.Create(&models.StockAccount{ProductID: p.ID, Quantity: quantity}).Error)
	}
	return p
}

func (e *env) customer(t *testing.T) models.Customer {
	t.Helper()
	c := models.Customer{Name: "Jane", Email: fmt.Sprintf("jane+%d@example.com", time.Now().UnixNano())}
	require.NoError(t, e.db.Create(&c).Error)
	return c
}

func (e *env) quantity(t *testing.T, productID uint) int {
	t.Helper()
	q, _, err := e.stock.Quantity(context.Background(), productID)
	require.NoError(t, err)
	return q
}

func (e *env) movements(t *testing.T, productID uint) []models.StockMovement {
	t.Helper()
	var out []models.StockMovement
	require.NoError(t, e.db.Where("product_id = ?", productID).Order("id ASC").Find(&out).Error)
	return out
}
