package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/helpy/paths"
	"github.com/psds-microservice/support-desk/internal/config"
	"github.com/psds-microservice/support-desk/internal/database"
	"github.com/psds-microservice/support-desk/internal/handler"
	"github.com/psds-microservice/support-desk/internal/kafka"
	"github.com/psds-microservice/support-desk/internal/logging"
	"github.com/psds-microservice/support-desk/internal/notify"
	"github.com/psds-microservice/support-desk/internal/router"
	"github.com/psds-microservice/support-desk/internal/service"
	"github.com/psds-microservice/support-desk/internal/storage"
	"gorm.io/gorm"
)

// API — приложение режима api: HTTP-сервер и все долгоживущие зависимости.
type API struct {
	cfg        *config.Config
	httpSrv    *http.Server
	db         *gorm.DB
	bucket     *storage.Bucket
	events     *kafka.Producer
	background *service.Dispatcher
	logs       io.Closer
}

// NewAPI создаёт приложение для режима api: миграции, БД, хранилище, почта, Kafka, роутер.
func NewAPI(cfg *config.Config) (*API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logs := logging.Setup(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := database.MigrateUp(cfg.DatabaseURL()); err != nil {
		_ = logs.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(cfg.DSN())
	if err != nil {
		_ = logs.Close()
		return nil, fmt.Errorf("database: %w", err)
	}
	bucket, err := storage.Open(context.Background(), cfg.StorageBucketURL, cfg.StoragePublicURL)
	if err != nil {
		_ = database.Close(db)
		_ = logs.Close()
		return nil, fmt.Errorf("storage: %w", err)
	}

	mailer := notify.NewSender(notify.SMTPConfig{
		Server:   cfg.Mail.Server,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
	})
	events := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicTicket)
	background := service.NewDispatcher()
	deps := service.Deps{
		DB:         db,
		Files:      bucket,
		Notifier:   notify.NewNotifier(mailer, cfg.BaseURL, cfg.Mail.Admin),
		Events:     events,
		Background: background,
	}

	tickets := service.NewTicketService(deps)
	messages := service.NewMessageService(deps)
	auth := service.NewAuthService(deps, service.AuthConfig{
		OTPTTL:            cfg.OTPTTL,
		AdminPassword:     cfg.AdminPassword,
		AdminPasswordHash: cfg.AdminPasswordHash,
	})

	h := router.New(router.Handlers{
		Health:    handler.NewHealthHandler(db),
		Submit:    handler.NewSubmitHandler(tickets, cfg.UploadMaxBytes),
		Auth:      handler.NewAuthHandler(auth),
		Dashboard: handler.NewDashboardHandler(tickets, messages),
		Admin:     handler.NewAdminHandler(auth, tickets, messages),
		API:       handler.NewAPIHandler(messages),
	}, router.Options{
		SecretKey:       cfg.SecretKey,
		Secure:          cfg.IsProduction(),
		CSRF:            cfg.CSRFEnabled,
		LoginPerMinute:  cfg.LoginPerMinute,
		VerifyPerMinute: cfg.VerifyPerMinute,
		MaxBodyBytes:    cfg.UploadMaxBytes,
		TrustedProxies:  cfg.TrustedProxies,
	})

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &API{
		cfg:        cfg,
		httpSrv:    httpSrv,
		db:         db,
		bucket:     bucket,
		events:     events,
		background: background,
		logs:       logs,
	}, nil
}

// Run запускает HTTP-сервер, блокируется до отмены ctx, затем дожидается текущих запросов.
func (a *API) Run(ctx context.Context) error {
	base := a.cfg.BaseURL
	slog.Info("HTTP server listening", "addr", a.httpSrv.Addr, "env", a.cfg.AppEnv)
	slog.Info("endpoints",
		"submit", base+"/",
		"admin", base+"/tickets",
		"swagger", base+paths.PathSwagger,
		"health", base+paths.PathHealth,
		"ready", base+paths.PathReady,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Close дожидается фоновых писем и событий, затем закрывает Kafka, хранилище, БД и лог.
func (a *API) Close() error {
	a.background.Wait()
	var errs []error
	if err := a.events.Close(); err != nil {
		errs = append(errs, fmt.Errorf("kafka: %w", err))
	}
	if err := a.bucket.Close(); err != nil {
		errs = append(errs, fmt.Errorf("storage: %w", err))
	}
	if err := database.Close(a.db); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}
	slog.Info("shutdown complete")
	if err := a.logs.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
