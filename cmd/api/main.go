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

	"github.com/joho/godotenv"
	"github.com/studyshare-api/internal/application/auth"
	"github.com/studyshare-api/internal/application/material"
	"github.com/studyshare-api/internal/application/user"
	"github.com/studyshare-api/internal/config"
	"github.com/studyshare-api/internal/graceperiod"
	"github.com/studyshare-api/internal/infrastructure/dynamo"
	"github.com/studyshare-api/internal/infrastructure/google"
	jwtinfra "github.com/studyshare-api/internal/infrastructure/jwt"
	"github.com/studyshare-api/internal/infrastructure/notify"
	s3infra "github.com/studyshare-api/internal/infrastructure/s3"
	"github.com/studyshare-api/internal/infrastructure/smtp"
	"github.com/studyshare-api/internal/infrastructure/sns"
	"github.com/studyshare-api/internal/logging"
	transporthttp "github.com/studyshare-api/internal/transport/http"
	"github.com/studyshare-api/internal/transport/http/handler"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)
	if envErr != nil {
		slog.Info("no .env file found, reading from environment")
	}

	if err := run(cfg, logger); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("dynamodb client: %w", err)
	}
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	users := dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users)
	codes := dynamo.NewVerificationRepo(dynamoClient, cfg.DynamoTables.UserVerifications)
	materials := dynamo.NewMaterialRepo(dynamoClient, cfg.DynamoTables.Materials)

	pendingAccounts := dynamo.NewPendingAccounts(users, codes)
	pendingResets := dynamo.NewPendingResets(codes)
	signupSweeper := graceperiod.New("signup", pendingAccounts, graceperiod.WithLogger(logger))
	resetSweeper := graceperiod.New("password_reset", pendingResets, graceperiod.WithLogger(logger))
	defer signupSweeper.CancelAll()
	defer resetSweeper.CancelAll()

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}

	// SNS is optional; without it reset codes can only go out by email.
	var smsSender sns.SMSSender
	if sender, err := sns.NewSender(ctx, cfg); err == nil {
		smsSender = sender
	} else {
		slog.Warn("sns sender not available", "err", err)
	}
	dispatcher := notify.NewDispatcher(smtp.NewMailer(cfg), smsSender)

	s3Client, err := s3infra.NewClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("s3 client: %w", err)
	}

	userSvc := user.NewService(user.ServiceDeps{
		UserRepo:     users,
		CodeRepo:     codes,
		Notifier:     dispatcher,
		Sweeper:      signupSweeper,
		ResetSweeper: resetSweeper,
		Expire:       pendingAccounts.Expire,
		GracePeriod:  cfg.Signup,
	})
	authSvc := auth.NewService(auth.ServiceDeps{
		UserRepo:       users,
		CodeRepo:       codes,
		Notifier:       dispatcher,
		Sweeper:        resetSweeper,
		Expire:         pendingResets.Expire,
		GracePeriod:    cfg.Reset,
		JWTProvider:    jwtProvider,
		GoogleVerifier: google.NewVerifier(cfg.GoogleClientID),
	})
	materialSvc := material.NewService(materials, s3infra.NewStore(s3Client, cfg.S3BucketName))

	n, err := userSvc.ResumePending(ctx)
	if err != nil {
		return fmt.Errorf("resume signup grace periods: %w", err)
	}
	slog.Info("resumed signup grace periods", "count", n)
	if n, err = authSvc.ResumePending(ctx); err != nil {
		return fmt.Errorf("resume password reset grace periods: %w", err)
	}
	slog.Info("resumed password reset grace periods", "count", n)

	router, limiter := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		UserService:     userSvc,
		AuthService:     authSvc,
		MaterialService: materialSvc,
		JWTProvider:     jwtProvider,
		Sweepers: map[string]handler.PendingCounter{
			"signup":         signupSweeper,
			"password_reset": resetSweeper,
		},
	})
	defer limiter.Stop()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case <-quit:
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}
