package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"sarvin_back_end/internal/audit"
	"sarvin_back_end/internal/cache"
	"sarvin_back_end/internal/config"
	"sarvin_back_end/internal/database"
	"sarvin_back_end/internal/handlers"
	"sarvin_back_end/internal/logger"
	"sarvin_back_end/internal/metrics"
	"sarvin_back_end/internal/middleware"
	"sarvin_back_end/internal/payment"
	"sarvin_back_end/internal/repository"
	"sarvin_back_end/internal/routes"
	"sarvin_back_end/internal/services/orders"
	"sarvin_back_end/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logg, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logg.Sync()

	if err := run(cfg, logg); err != nil {
		logg.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logg *zap.Logger) error {
	// totals serialise as JSON numbers, not strings
	decimal.MarshalJSONWithoutQuotes = true
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conns, err := database.Connect(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer conns.Close(context.Background())

	store := repository.NewMongoStore(conns.Mongo, cfg.Mongo.Database)
	if err := store.EnsureIndexes(ctx); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	gateway := payment.NewGateway(cfg.Gateway.SecretKey, cfg.Gateway.Currency)
	if !payment.Configured(gateway) {
		logg.Warn("GATEWAY_SECRET_KEY not set: payment order creation is disabled")
	}

	deps := orders.Deps{
		Store:    store,
		Gateway:  gateway,
		Verifier: payment.NewSignatureVerifier(cfg.Gateway.SignatureSecret),
		Webhooks: payment.NewWebhookVerifier(cfg.Gateway.WebhookSecret),
		Notifier: utils.NewMailer(utils.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			Admins:   cfg.Notify.AdminEmails,
			Currency: cfg.Gateway.Currency,
			StartTLS: cfg.SMTP.StartTLS,
		}, logg.Named("mail")),
		Audit:    audit.NewLogRecorder(logg.Named("audit")),
		Observer: m,
		Logger:   logg.Named("orders"),
	}

	if cfg.Gateway.WebhookSecret == "" {
		logg.Warn("GATEWAY_WEBHOOK_SECRET not set: payment confirmation is disabled")
	}

	var (
		limiter middleware.Limiter
		rc      *cache.Redis
	)
	if conns.Redis != nil {
		rc = cache.NewRedis(conns.Redis)
		deps.IDs = rc
		deps.Locker = rc
		deps.Confirmations = rc
		limiter = rc
	}
	if conns.Scylla != nil {
		rec := audit.NewScyllaRecorder(conns.Scylla)
		if err := rec.EnsureSchema(ctx); err != nil {
			logg.Warn("audit schema unavailable, logging audit entries instead", zap.Error(err))
		} else {
			deps.Audit = rec
		}
	}

	tolerance := cfg.ToleranceDecimal()
	svc := orders.New(deps, orders.Options{
		Currency:            cfg.Gateway.Currency,
		Tolerance:           &tolerance,
		GatewayTimeout:      cfg.Gateway.Timeout,
		ConfirmationTTL:     cfg.Gateway.ConfirmationTTL,
		NotifyTimeout:       cfg.Notify.Timeout,
		PaymentLockTTL:      cfg.Orders.PaymentLockTTL,
		VerifyChargedAmount: cfg.Orders.VerifyChargedAmount,
		EnforceTransitions:  cfg.Orders.EnforceTransitions,
	})

	router := routes.RegisterRoutes(routes.Deps{
		Orders:          handlers.NewOrderHandler(svc, logg.Named("http"), !cfg.IsProduction()),
		JWTSecret:       cfg.JWT.Secret,
		Limiter:         limiter,
		PaymentRequests: cfg.RateLimit.Requests,
		PaymentWindow:   cfg.RateLimit.Window,
		Metrics:         m,
		Health: func(ctx context.Context) error {
			if err := conns.Mongo.Ping(ctx, readpref.Primary()); err != nil {
				return fmt.Errorf("mongo: %w", err)
			}
			if rc != nil {
				if err := rc.Ping(ctx); err != nil {
					return fmt.Errorf("redis: %w", err)
				}
			}
			return nil
		},
		CORSOrigins:   cfg.CORS.Origins,
		Logger:        logg,
		ExposeDetails: !cfg.IsProduction(),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info("server listening", zap.Int("port", cfg.Server.Port), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
