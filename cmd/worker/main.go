package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"outbound-platform/internal/audit"
	"outbound-platform/internal/automation"
	"outbound-platform/internal/billing"
	"outbound-platform/internal/campaign"
	"outbound-platform/internal/commission"
	"outbound-platform/internal/config"
	"outbound-platform/internal/leads"
	"outbound-platform/internal/ledger"
	"outbound-platform/pkg/logger"
	"outbound-platform/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "time/tzdata"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env).With("component", "worker")
	slog.SetDefault(log)
	ctx := logger.With(rootCtx, log)

	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	ledgerSvc := ledger.NewService(ledger.NewPostgresRepo(db), ledger.NewRedisRefillPublisher(rdb, cfg.Campaign.RefillCooldown), auditSvc)
	leadSvc := leads.NewService(leads.NewPostgresRepo(db))
	store := campaign.NewPostgresStore(db)
	controller := campaign.NewController(store, leadSvc, ledgerSvc, automation.NewClient(cfg.Automation), auditSvc)
	scheduler := campaign.NewScheduler(controller, store)
	commissions := commission.NewService(commission.NewPostgresStore(db), auditSvc)

	hostname, _ := os.Hostname()
	consumer := billing.NewRefillConsumer(rdb, billing.NewPostgresCustomers(db),
		billing.NewStripePayments(cfg.Stripe.SecretKey), cfg.Stripe.Currency, "worker-"+hostname)

	var wg sync.WaitGroup
	run := func(name string, every time.Duration, fn func(ctx context.Context, now time.Time)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			loop(ctx, name, every, fn)
		}()
	}

	run("stale_sweep", cfg.Worker.SweepInterval, func(ctx context.Context, now time.Time) {
		n, err := controller.SweepStale(ctx, cfg.Campaign.StaleRunTimeout)
		if err != nil {
			logger.From(ctx).Error("stale sweep failed", "err", err)
			return
		}
		if n > 0 {
			logger.From(ctx).Info("stale runs stopped", "count", n)
		}
	})

	run("schedule_tick", cfg.Worker.SchedulerInterval, func(ctx context.Context, now time.Time) {
		res, err := scheduler.Tick(ctx, now)
		if err != nil {
			logger.From(ctx).Error("schedule tick failed", "err", err)
			return
		}
		if res.Started+res.Failed > 0 {
			logger.From(ctx).Info("schedule tick", "started", res.Started, "skipped", res.Skipped, "failed", res.Failed)
		}
	})

	// Attempt counters reset on the first tick after UTC midnight.
	var lastReset string
	run("attempt_reset", time.Minute, func(ctx context.Context, now time.Time) {
		day := now.UTC().Format(time.DateOnly)
		if day == lastReset {
			return
		}
		n, err := leadSvc.ResetDailyAttempts(ctx)
		if err != nil {
			logger.From(ctx).Error("daily attempt reset failed", "err", err)
			return
		}
		lastReset = day
		logger.From(ctx).Info("daily attempts reset", "leads", n)
	})

	// Generation is idempotent per (referrer, month), so every tick on the 1st is safe.
	run("commission_generate", cfg.Worker.CommissionInterval, func(ctx context.Context, now time.Time) {
		now = now.UTC()
		if now.Day() != 1 {
			return
		}
		period := commission.PreviousPeriod(now)
		res, err := commissions.GenerateMonthly(ctx, period)
		if err != nil {
			logger.From(ctx).Error("commission generation failed", "period", period, "err", err)
			return
		}
		if len(res.Created) > 0 {
			logger.From(ctx).Info("commission payouts created", "period", period, "created", len(res.Created), "skipped", res.Skipped)
		}
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := consumer.Run(ctx); err != nil {
			log.Error("refill consumer exited", "err", err)
			stop()
		}
	}()

	log.Info("worker started", "env", cfg.App.Env)
	<-ctx.Done()
	log.Info("shutdown initiated")
	wg.Wait()
	log.Info("shutdown complete")
}

// loop runs fn immediately and then on every tick until ctx is done.
func loop(ctx context.Context, name string, every time.Duration, fn func(ctx context.Context, now time.Time)) {
	ctx = logger.With(ctx, logger.From(ctx).With("job", name))
	t := time.NewTicker(every)
	defer t.Stop()

	fn(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			fn(ctx, now)
		}
	}
}
