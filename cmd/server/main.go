package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/d60-Lab/supportdesk/config"
	"github.com/d60-Lab/supportdesk/internal/api"
	"github.com/d60-Lab/supportdesk/internal/api/handler"
	"github.com/d60-Lab/supportdesk/internal/cache"
	"github.com/d60-Lab/supportdesk/internal/notify"
	"github.com/d60-Lab/supportdesk/internal/repository"
	"github.com/d60-Lab/supportdesk/internal/security"
	"github.com/d60-Lab/supportdesk/internal/service"
	"github.com/d60-Lab/supportdesk/pkg/database"
	"github.com/d60-Lab/supportdesk/pkg/logger"
	"github.com/d60-Lab/supportdesk/pkg/tracing"
)

// @title Support Desk API
// @version 1.0
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.Sentry.Environment,
			AttachStacktrace: true,
		}); err != nil {
			logger.Warn("sentry init failed", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		return err
	}
	if err := repository.Migrate(db); err != nil {
		return err
	}
	rdb := cache.NewRedisClient(ctx, cfg.Redis.URL)
	defer rdb.Close()

	notifier, err := notify.New(cfg.Email)
	if err != nil {
		return err
	}
	dispatcher := notify.NewDispatcher(notifier, cfg.Email.QueueSize)
	stopDispatcher := dispatcher.Start(cfg.Email.Workers)

	threads := repository.NewThreadRepository(db)
	users := repository.NewUserRepository(db)
	audits := repository.NewAuditRepository(db)
	unread := cache.NewUnreadCache(rdb, cfg.Redis.UnreadTTL)
	tokens := security.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)
	csrf := security.NewCSRFStore(rdb, cfg.CSRF.TTL)

	authSvc := service.NewAuthService(users, tokens)
	tickets := service.NewTicketService(threads, unread, dispatcher, service.TicketOptions{
		AppName:     cfg.Email.FromName,
		FrontendURL: cfg.Email.FrontendURL,
	})
	admin := service.NewAdminTicketService(threads, users, audits, unread, notifier, cfg.Email.FromName)

	retention := service.NewRetentionJob(threads, unread, cfg.Retention.ClosedThreadDays)
	stopRetention, err := retention.Start(cfg.Retention.Schedule)
	if err != nil {
		return err
	}

	h := handler.NewHandler(tickets, admin, authSvc, csrf, &handler.HealthChecker{DB: db, Redis: rdb}, cfg)
	router := api.NewRouter(api.Deps{
		Config:  cfg,
		Handler: h,
		Auth:    authSvc,
		CSRF:    csrf,
		Logger:  logger.L(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", zap.String("addr", srv.Addr), zap.String("mode", cfg.Server.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	stopRetention()
	if err := stopDispatcher(shutdownCtx); err != nil {
		logger.Warn("notification queue not drained", zap.Int("pending", dispatcher.QueueLen()), zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
	return nil
}
