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
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/identity_service/internal/audit"
	"github.com/Skotchmaster/identity_service/internal/config"
	"github.com/Skotchmaster/identity_service/internal/httpserver"
	"github.com/Skotchmaster/identity_service/internal/logging"
	"github.com/Skotchmaster/identity_service/internal/middleware"
	"github.com/Skotchmaster/identity_service/internal/notify"
	"github.com/Skotchmaster/identity_service/internal/repo"
	"github.com/Skotchmaster/identity_service/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	config.MustNonEmptyBytes(cfg.JWTSecret, "JWT_SECRET")

	logger := logging.New(cfg.LogLevel)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := config.InitDB(initCtx, cfg)
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	gormRepo := &repo.GormRepo{DB: db}
	if _, err := gormRepo.EnsureDefaultRole(context.Background()); err != nil {
		log.Fatalf("role seed error: %v", err)
	}

	var notifier notify.Notifier = notify.Noop{}
	var kafkaNotifier *notify.KafkaNotifier
	if len(cfg.KafkaBrokers) > 0 {
		kafkaNotifier = notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic)
		notifier = kafkaNotifier
	}

	var recorder *audit.Recorder
	if cfg.ES_URL != "" {
		recorder, err = audit.NewRecorder(cfg.ES_URL, cfg.ES_USER, cfg.ES_PASSWORD, "auth_audit")
		if err != nil {
			log.Fatalf("audit init error: %v", err)
		}
	}

	tokenSvc := &service.TokenService{Repo: gormRepo, Secret: cfg.JWTSecret, Cfg: cfg}
	roleSvc := &service.RoleService{Repo: gormRepo}
	authSvc := &service.AuthService{
		Repo:     gormRepo,
		Tokens:   tokenSvc,
		Roles:    roleSvc,
		Notifier: notifier,
		Audit:    recorder,
		Cfg:      cfg,
	}

	e := echo.New()
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover(), echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))

	httpserver.Register(e, &httpserver.Deps{
		AuthHandler: &httpserver.AuthHTTP{Svc: authSvc},
		UserHandler: &httpserver.UserHTTP{Repo: gormRepo, Roles: roleSvc},
		RoleHandler: &httpserver.RoleHTTP{Svc: roleSvc},
		Auth:        &middleware.Auth{Tokens: tokenSvc, Roles: roleSvc, Repo: gormRepo},
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if kafkaNotifier != nil {
		if err := kafkaNotifier.Close(); err != nil {
			log.Printf("kafka close error: %v", err)
		}
	}

	log.Println("shutdown complete")
}
