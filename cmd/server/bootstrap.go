package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lvidal/pricealert/internal/alerts"
	"github.com/lvidal/pricealert/internal/api"
	"github.com/lvidal/pricealert/internal/app"
	"github.com/lvidal/pricealert/internal/app/scheduler"
	iauth "github.com/lvidal/pricealert/internal/auth"
	"github.com/lvidal/pricealert/internal/database"
	"github.com/lvidal/pricealert/internal/handlers"
	"github.com/lvidal/pricealert/internal/scraper"
	"github.com/lvidal/pricealert/internal/services"
	"github.com/lvidal/pricealert/pkg/logger"
	"github.com/lvidal/pricealert/pkg/mail"
)

// runtimeStack bundles long-lived components used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Scheduler *scheduler.Scheduler
	Router    *gin.Engine
}

// bootstrapRuntime initialises the database, services, background jobs, and
// the HTTP router.
func bootstrapRuntime(cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         cfg.Auth.JWT.Secret,
		Issuer:         cfg.Auth.JWT.Issuer,
		AccessTokenTTL: cfg.Auth.JWT.TTL,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	mailer, err := mail.NewSMTPMailer(mail.SMTPSettings{
		Enabled:  cfg.Email.SMTP.Enabled,
		Host:     cfg.Email.SMTP.Host,
		Port:     cfg.Email.SMTP.Port,
		Username: cfg.Email.SMTP.Username,
		Password: cfg.Email.SMTP.Password,
		From:     cfg.Email.SMTP.From,
		UseTLS:   cfg.Email.SMTP.UseTLS,
		Timeout:  cfg.Email.SMTP.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise mailer: %w", err)
	}

	emailSvc, err := services.NewEmailService(mailer, cfg.Email.SMTP.From, cfg.Server.BaseURL, "PriceAlert")
	if err != nil {
		return nil, fmt.Errorf("initialise email service: %w", err)
	}

	userSvc, err := services.NewUserService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise user service: %w", err)
	}

	historySvc, err := services.NewHistoryService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise history service: %w", err)
	}

	productSvc, err := services.NewProductService(stack.DB, historySvc)
	if err != nil {
		return nil, fmt.Errorf("initialise product service: %w", err)
	}

	alertSvc, err := services.NewAlertService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise alert service: %w", err)
	}

	verificationSvc, err := services.NewVerificationService(stack.DB, emailSvc,
		services.WithTokenTTL(cfg.Alerts.TokenTTL))
	if err != nil {
		return nil, fmt.Errorf("initialise verification service: %w", err)
	}

	notificationSvc, err := services.NewNotificationService(emailSvc)
	if err != nil {
		return nil, fmt.Errorf("initialise notification service: %w", err)
	}

	engine, err := alerts.NewEngine(stack.DB, notificationSvc)
	if err != nil {
		return nil, fmt.Errorf("initialise alert engine: %w", err)
	}

	stack.Scheduler = scheduler.New(engine, verificationSvc,
		scheduler.WithAlertSchedule(cfg.Alerts.EvaluationSchedule),
		scheduler.WithVerificationSchedule(cfg.Alerts.VerificationSchedule),
	)
	if err := stack.Scheduler.Start(); err != nil {
		return nil, fmt.Errorf("start background jobs: %w", err)
	}

	scraperTimeout := cfg.Scraper.Timeout
	if scraperTimeout <= 0 {
		scraperTimeout = 30 * time.Second
	}
	pageScraper := scraper.New(scraper.WithHTTPClient(newScraperClient(scraperTimeout)))

	authHandler, err := handlers.NewAuthHandler(userSvc, verificationSvc, jwtSvc)
	if err != nil {
		return nil, fmt.Errorf("initialise auth handler: %w", err)
	}
	productHandler, err := handlers.NewProductHandler(productSvc, pageScraper)
	if err != nil {
		return nil, fmt.Errorf("initialise product handler: %w", err)
	}
	alertHandler, err := handlers.NewAlertHandler(alertSvc)
	if err != nil {
		return nil, fmt.Errorf("initialise alert handler: %w", err)
	}
	verifyHandler, err := handlers.NewVerifyEmailHandler(verificationSvc)
	if err != nil {
		return nil, fmt.Errorf("initialise verify email handler: %w", err)
	}

	stack.Router, err = api.NewRouter(cfg, jwtSvc, api.Handlers{
		Auth:        authHandler,
		Products:    productHandler,
		Alerts:      alertHandler,
		VerifyEmail: verifyHandler,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	return stack, nil
}

// Shutdown stops background jobs and closes the database connection.
func (s *runtimeStack) Shutdown(log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Scheduler != nil {
		<-s.Scheduler.Stop().Done()
	}

	if s.DB != nil {
		if sqlDB, err := s.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil && log != nil {
				log.Warn("close database failed", zap.Error(err))
			}
		}
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected",
		zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}

	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		dbCfg.Host = strings.TrimSpace(cfg.Database.Postgres.Host)
		dbCfg.Port = cfg.Database.Postgres.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.Postgres.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.Postgres.Username)
		dbCfg.Password = cfg.Database.Postgres.Password
	case "mysql":
		dbCfg.Host = strings.TrimSpace(cfg.Database.MySQL.Host)
		dbCfg.Port = cfg.Database.MySQL.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.MySQL.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.MySQL.Username)
		dbCfg.Password = cfg.Database.MySQL.Password
	}

	return dbCfg
}

func newScraperClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
