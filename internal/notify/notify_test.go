package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/diewo77/go-stock/internal/models"
	"github.com/diewo77/go-stock/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type recordingChannel struct {
	name string
	err  error

	mu     sync.Mutex
	events []LowStockEvent
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Send(_ context.Context, _ []models.Admin, ev LowStockEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return c.err
}

func (c *recordingChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

type staticRecipients []models.Admin

func (r staticRecipients) Admins(context.Context) ([]models.Admin, error) { return r, nil }

type fakeMailer struct {
	fail map[string]bool
	sent []string
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	if m.fail[to] {
		return errors.New("relay refused")
	}
	m.sent = append(m.sent, to+"|"+subject+"|"+body)
	return nil
}

var testAdmins = staticRecipients{
	{ID: 1, Name: "Ada", Email: "ada@example.com", Active: true},
	{ID: 2, Email: "bob@example.com", Active: true},
}

func testEvent() LowStockEvent {
	p := models.Product{ID: 7, Name: "Mug", SKU: "MUG-1", Price: decimal.NewFromInt(5)}
	return NewLowStockEvent(p, 3, 25)
}

func TestLowStockEventText(t *testing.T) {
	ev := testEvent()
	assert.Equal(t, "Low Stock Alert: Mug", ev.Subject())
	assert.Equal(t, "Low stock alert for product: Mug", ev.Message())
	body := ev.Body("Ada", "http://shop.test")
	assert.Contains(t, body, "Hello Ada")
	assert.Contains(t, body, "Current stock: 3 (Threshold: 25)")
	assert.Contains(t, body, "http://shop.test/admin/products/7")
	assert.Equal(t, 3, ev.Payload()["current_stock"])
}

func TestDispatcherDeliversToEveryChannel(t *testing.T) {
	mail := &recordingChannel{name: "mail"}
	db := &recordingChannel{name: "database"}
	d := NewDispatcher(testAdmins, []Channel{mail, db}, 2, 8, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	for i := 0; i < 3; i++ {
		require.NoError(t, d.Publish(ctx, testEvent()))
	}
	require.Eventually(t, func() bool {
		_, delivered, _, _ := d.Metrics()
		return delivered == 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 3, mail.count())
	assert.Equal(t, 3, db.count())
}

func TestDispatcherFailingChannelDoesNotStopOthers(t *testing.T) {
	broken := &recordingChannel{name: "mail", err: errors.New("smtp down")}
	db := &recordingChannel{name: "database"}
	d := NewDispatcher(testAdmins, []Channel{broken, db}, 1, 1, zaptest.NewLogger(t))

	err := d.Deliver(context.Background(), testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mail: smtp down")
	assert.Len(t, multierr.Errors(err), 1)
	assert.Equal(t, 1, db.count())
}

func TestDispatcherWithoutAdminsIsNoop(t *testing.T) {
	ch := &recordingChannel{name: "database"}
	d := NewDispatcher(staticRecipients{}, []Channel{ch}, 1, 1, zaptest.NewLogger(t))
	require.NoError(t, d.Deliver(context.Background(), testEvent()))
	assert.Zero(t, ch.count())
}

func TestDispatcherQueueFullAndClosed(t *testing.T) {
	d := NewDispatcher(testAdmins, nil, 1, 1, zaptest.NewLogger(t))
	ctx := context.Background()

	require.NoError(t, d.Publish(ctx, testEvent()))
	assert.ErrorIs(t, d.Publish(ctx, testEvent()), ErrQueueFull)

	d.Close()
	assert.ErrorIs(t, d.Publish(ctx, testEvent()), ErrClosed)

	published, _, _, backlog := d.Metrics()
	assert.Equal(t, uint64(1), published)
	assert.Equal(t, 1, backlog)
}

func TestDispatcherDrainsAfterCancel(t *testing.T) {
	ch := &recordingChannel{name: "database"}
	d := NewDispatcher(testAdmins, []Channel{ch}, 1, 4, zaptest.NewLogger(t))
	for i := 0; i < 4; i++ {
		require.NoError(t, d.Publish(context.Background(), testEvent()))
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))
	assert.Equal(t, 4, ch.count())
}

func TestPublishWaitWaitsForSpace(t *testing.T) {
	ch := &recordingChannel{name: "database"}
	d := NewDispatcher(testAdmins, []Channel{ch}, 1, 1, zaptest.NewLogger(t))
	require.NoError(t, d.Publish(context.Background(), testEvent()))

	short, cancelShort := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelShort()
	assert.ErrorIs(t, d.PublishWait(short, testEvent()), context.DeadlineExceeded)

	waited := make(chan error, 1)
	go func() { waited <- d.PublishWait(context.Background(), testEvent()) }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.NoError(t, <-waited)
	require.Eventually(t, func() bool { return ch.count() == 2 }, 2*time.Second, 5*time.Millisecond)

	d.Close()
	assert.ErrorIs(t, d.PublishWait(context.Background(), testEvent()), ErrClosed)
	cancel()
	require.NoError(t, <-done)
}

func TestCloseBeforeCancelLosesNothing(t *testing.T) {
	ch := &recordingChannel{name: "database"}
	d := NewDispatcher(testAdmins, []Channel{ch}, 2, 4, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	var accepted atomic.Int64
	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				switch err := d.Publish(context.Background(), testEvent()); {
				case err == nil:
					accepted.Add(1)
				case errors.Is(err, ErrClosed):
					return
				}
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	d.Close()
	cancel()
	require.NoError(t, <-done)
	close(stop)
	wg.Wait()

	assert.Equal(t, int(accepted.Load()), ch.count())
	published, delivered, _, backlog := d.Metrics()
	assert.Equal(t, published, delivered)
	assert.Zero(t, backlog)
}

func TestAdminDirectoryCachesUntilInvalidated(t *testing.T) {
	var calls atomic.Int32
	dir := NewAdminDirectory(func(context.Context) ([]models.Admin, error) {
		calls.Add(1)
		return testAdmins, nil
	}, time.Minute)

	for i := 0; i < 3; i++ {
		admins, err := dir.Admins(context.Background())
		require.NoError(t, err)
		assert.Len(t, admins, 2)
	}
	assert.Equal(t, int32(1), calls.Load())

	dir.Invalidate()
	_, err := dir.Admins(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAdminDirectoryDoesNotCacheErrors(t *testing.T) {
	var calls atomic.Int32
	dir := NewAdminDirectory(func(context.Context) ([]models.Admin, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("db down")
		}
		return testAdmins, nil
	}, time.Minute)

	_, err := dir.Admins(context.Background())
	require.Error(t, err)
	admins, err := dir.Admins(context.Background())
	require.NoError(t, err)
	assert.Len(t, admins, 2)
}

func TestMailChannelAddressesEachAdmin(t *testing.T) {
	m := &fakeMailer{fail: map[string]bool{"bob@example.com": true}}
	ch := NewMailChannel(m, "http://shop.test")

	err := ch.Send(context.Background(), testAdmins, testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bob@example.com")
	require.Len(t, m.sent, 1)
	assert.True(t, strings.HasPrefix(m.sent[0], "ada@example.com|Low Stock Alert: Mug|Hello Ada"))
}

func TestDatabaseChannelWritesOneRowPerAdmin(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, gdb.AutoMigrate(&models.Admin{}, &models.Notification{}))
	for _, a := range testAdmins {
		require.NoError(t, gdb.Create(&a).Error)
	}

	ch := NewDatabaseChannel(store.New(gdb, time.Second))
	require.NoError(t, ch.Send(context.Background(), testAdmins, testEvent()))

	var rows []models.Notification
	require.NoError(t, gdb.Order("admin_id").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, uint(1), rows[0].AdminID)
	assert.Equal(t, models.NotificationTypeLowStock, rows[0].Type)
	assert.Equal(t, "Low Stock Alert: Mug", rows[0].Title)
	assert.Contains(t, string(rows[0].Data), `"current_stock":3`)
	assert.Nil(t, rows[0].ReadAt)
}

func TestBuildChannels(t *testing.T) {
	chans, err := BuildChannels([]string{"mail", "database"}, nil, &fakeMailer{}, "")
	require.NoError(t, err)
	require.Len(t, chans, 2)
	assert.Equal(t, "mail", chans[0].Name())
	assert.Equal(t, "database", chans[1].Name())

	_, err = BuildChannels([]string{"pigeon"}, nil, &fakeMailer{}, "")
	assert.Error(t, err)
}
