package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/paperhub-api/internal/config"
	jwtinfra "github.com/paperhub-api/internal/infrastructure/jwt"
	"github.com/paperhub-api/internal/infrastructure/postgres"
	s3infra "github.com/paperhub-api/internal/infrastructure/s3"
	"github.com/paperhub-api/internal/infrastructure/smtp"
	transporthttp "github.com/paperhub-api/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	jwtProvider, err := jwtinfra.NewProvider([]byte(cfg.JWTSecret), jwtinfra.TTLs{
		Access:        cfg.AccessTokenTTL,
		Refresh:       cfg.RefreshTokenTTL,
		VerifyEmail:   cfg.VerifyEmailTTL,
		ResetPassword: cfg.ResetPasswordTTL,
	})
	if err != nil {
		log.Fatalf("jwt provider: %v", err)
	}

	ctx := context.Background()
	db, err := postgres.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	s3Client := s3infra.NewClient(cfg)
	s3Store := s3infra.NewStore(s3Client, cfg.S3BucketName)

	mailer := smtp.NewMailer(cfg)

	deps := &transporthttp.Deps{
		UserRepo:     postgres.NewUserRepo(db),
		PaperRepo:    postgres.NewPaperRepo(db),
		BookmarkRepo: postgres.NewBookmarkRepo(db),
		S3Store:      s3Store,
		Mailer:       mailer,
		JWTProvider:  jwtProvider,
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
