package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"outbound-platform/internal/audit"
	"outbound-platform/internal/auth"
	"outbound-platform/internal/automation"
	"outbound-platform/internal/billing"
	"outbound-platform/internal/campaign"
	"outbound-platform/internal/commission"
	"outbound-platform/internal/config"
	"outbound-platform/internal/httpapi"
	"outbound-platform/internal/leads"
	"outbound-platform/internal/ledger"
	"outbound-platform/internal/pricing"
	"outbound-platform/internal/reporting"
	"outbound-platform/pkg/logger"
	"outbound-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "time/tzdata"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	utils.ConfigureBinding()

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Services (no globals)
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	ledgerRepo := ledger.NewPostgresRepo(db)
	ledgerSvc := ledger.NewService(ledgerRepo, ledger.NewRedisRefillPublisher(rdb, cfg.Campaign.RefillCooldown), auditSvc)
	leadSvc := leads.NewService(leads.NewPostgresRepo(db))
	pricingSvc := pricing.NewService(pricing.NewPostgresRepo(db), cfg.Campaign.DefaultBilledRate, cfg.Campaign.DefaultPlatformCost)
	campaignStore := campaign.NewPostgresStore(db)
	automationClient := automation.NewClient(cfg.Automation)
	controller := campaign.NewController(campaignStore, leadSvc, ledgerSvc, automationClient, auditSvc)
	reconciler := campaign.NewReconciler(campaignStore, ledgerSvc, pricingSvc, leadSvc)

	deps := apiDeps{
		Handlers: httpapi.Handlers{
			Auth:       authManager,
			Campaigns:  controller,
			Ledger:     ledgerSvc,
			Leads:      leadSvc,
			Pricing:    pricingSvc,
			Commission: commission.NewService(commission.NewPostgresStore(db), auditSvc),
			Reporting:  reporting.NewService(ledgerRepo),
			Customers:  billing.NewPostgresCustomers(db),
			Audit:      auditSvc,
			DevLogin:   !cfg.IsProduction(),
		},
		AuthMW:           auth.RequireAccessToken(authManager),
		Automation:       automation.WebhookHandler{Reconciler: reconciler},
		AutomationSecret: cfg.Automation.SigningSecret,
		Stripe: billing.StripeWebhookHandler{
			Ledger:        ledgerSvc,
			WebhookSecret: cfg.Stripe.WebhookSecret,
			ReleaseGuard: func(ctx context.Context, tenantID string) error {
				return ledger.ReleaseRefillGuard(ctx, rdb, tenantID)
			},
		},
		Ready: func(ctx context.Context) error {
			if err := utils.HealthCheck(ctx, db, 2*time.Second); err != nil {
				return err
			}
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis ping failed: %w", err)
			}
			hctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return automationClient.HealthCheck(hctx)
		},
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	registerRoutes(r, deps)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	log.Info("shutdown complete")
}
