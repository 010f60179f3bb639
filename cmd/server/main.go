package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diewo77/go-stock/internal/config"
	"github.com/diewo77/go-stock/internal/db"
	"github.com/diewo77/go-stock/internal/handlers"
	"github.com/diewo77/go-stock/internal/notify"
	"github.com/diewo77/go-stock/internal/services"
	"github.com/diewo77/go-stock/internal/store"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	migrationsDir   = "migrations"
	adminCacheTTL   = time.Minute
	shutdownTimeout = 10 * time.Second
)

var (
	migrateOnlyFlag   = flag.Bool("migrate-only", false, "Run DB migrations and exit")
	seedOnlyFlag      = flag.Bool("seed-only", false, "Run DB seed and exit")
	checkLowStockFlag = flag.Bool("check-low-stock", false, "Run one low-stock sweep, deliver the alerts and exit")
)

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := newLogger(cfg.App.Dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *config.Config, log *zap.Logger) error {
	conn, err := db.Open(cfg.Database, log)
	if err != nil {
		return err
	}

	if *migrateOnlyFlag {
		if err := migrate(cfg.Database, conn); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		log.Info("migrations completed successfully")
		return nil
	}
	if *seedOnlyFlag {
		if err := db.Seed(conn); err != nil {
			return fmt.Errorf("seeding failed: %w", err)
		}
		log.Info("seeding completed successfully")
		return nil
	}

	if cfg.App.Migrations {
		if err := migrate(cfg.Database, conn); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		log.Info("migrations completed")
	}
	if cfg.App.Seed {
		if err := db.Seed(conn); err != nil {
			return fmt.Errorf("seeding failed: %w", err)
		}
	}

	st := store.New(conn, cfg.Stock.TxTimeout)
	dispatcher, directory, err := newDispatcher(cfg, st, log)
	if err != nil {
		return err
	}
	ledger := services.NewLedger(st)
	monitor := services.NewLowStockMonitor(st, dispatcher, cfg.Stock.LowStockThreshold, log.Named("lowstock"))
	stock := services.NewStockService(st, ledger, monitor, cfg.Stock.RecordZeroAdjustments, log.Named("stock"))
	orders := services.NewOrderService(st, stock, monitor, log.Named("orders"))
	catalog := services.NewCatalogService(st, stock, monitor, log.Named("catalog"))

	if *checkLowStockFlag {
		return sweepOnce(dispatcher, monitor, log)
	}

	hlog := log.Named("http")
	app := NewApp(conn, handlers.Handlers{
		Stock:      handlers.NewStockHandler(stock, ledger, monitor, hlog),
		Orders:     handlers.NewOrderHandler(orders, hlog),
		Products:   handlers.NewProductHandler(catalog, hlog),
		Categories: handlers.NewCategoryHandler(catalog, hlog),
	}, hlog)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	// The dispatcher outlives gctx: it stops only after the server has
	// finished its in-flight requests and intake is closed.
	dctx, stopDispatcher := context.WithCancel(context.Background())
	defer stopDispatcher()
	g.Go(func() error { return dispatcher.Run(dctx) })
	g.Go(func() error { return sweepLoop(gctx, monitor, cfg.Stock.SweepInterval, log) })
	g.Go(func() error { return reloadAdminsOnHangup(gctx, directory, log) })
	g.Go(func() error {
		log.Info("server starting", zap.String("port", cfg.Server.Port), zap.Bool("dev", cfg.App.Dev))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		dispatcher.Close()
		stopDispatcher()
		return err
	})

	err = g.Wait()
	published, delivered, failed, backlog := dispatcher.Metrics()
	log.Info("server stopped",
		zap.Uint64("alerts_published", published),
		zap.Uint64("alerts_delivered", delivered),
		zap.Uint64("alerts_failed", failed),
		zap.Int("alerts_backlog", backlog))
	return err
}

// migrate applies the SQL migrations on postgres and AutoMigrate on sqlite.
func migrate(cfg config.DatabaseConfig, conn *gorm.DB) error {
	if cfg.Driver == "sqlite" {
		return db.Migrate(conn)
	}
	return db.RunSQLMigrations(migrationsDir, db.NormalizeDSN(cfg.DSN()))
}

func newDispatcher(cfg *config.Config, st *store.Store, log *zap.Logger) (*notify.Dispatcher, *notify.AdminDirectory, error) {
	var mailer notify.Mailer = notify.NewLogMailer(log.Named("mail"))
	if cfg.Mail.Host != "" {
		mailer = notify.NewSMTPMailer(cfg.Mail)
	}
	channels, err := notify.BuildChannels(cfg.Stock.NotificationChannels, st, mailer, cfg.App.URL)
	if err != nil {
		return nil, nil, err
	}
	directory := notify.NewAdminDirectory(st.ActiveAdmins, adminCacheTTL)
	return notify.NewDispatcher(directory, channels, cfg.Stock.NotifyWorkers, cfg.Stock.NotifyBuffer, log.Named("notify")), directory, nil
}

// reloadAdminsOnHangup drops the cached admin list on SIGHUP so that admin
// changes reach the next alert without waiting for the cache to expire.
func reloadAdminsOnHangup(ctx context.Context, directory *notify.AdminDirectory, log *zap.Logger) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			directory.Invalidate()
			log.Info("admin recipients reloaded")
		}
	}
}

// sweepOnce runs one sweep and waits until every alert has been delivered.
// SweepAll waits for queue space, so batches larger than the buffer are kept.
func sweepOnce(dispatcher *notify.Dispatcher, monitor *services.LowStockMonitor, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- dispatcher.Run(ctx) }()

	n, err := monitor.SweepAll(context.Background())
	dispatcher.Close()
	cancel()
	if runErr := <-done; err == nil {
		err = runErr
	}
	if err != nil {
		return err
	}
	log.Info("low stock check completed", zap.Int("low_stock_count", n))
	return nil
}

// sweepLoop re-checks every account on a fixed interval.
func sweepLoop(ctx context.Context, monitor *services.LowStockMonitor, interval time.Duration, log *zap.Logger) error {
	if interval <= 0 {
		return nil
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := monitor.SweepAll(ctx); err != nil {
				log.Warn("scheduled low stock sweep failed", zap.Error(err))
			}
		}
	}
}
