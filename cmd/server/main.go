package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"resume-reviewer/internal/analysis"
	"resume-reviewer/internal/auth"
	"resume-reviewer/internal/config"
	apphttp "resume-reviewer/internal/http"
	"resume-reviewer/internal/ingest"
	"resume-reviewer/internal/reconcile"
	"resume-reviewer/internal/repository/sqlite"
	"resume-reviewer/internal/service"
	"resume-reviewer/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	configureLogger(logger, cfg)

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if err := sqlite.Migrate(ctx, db, logger); err != nil {
		logger.Fatalf("migrate database: %v", err)
	}

	userRepo := sqlite.NewUserRepository(db)
	reviewRepo := sqlite.NewReviewRepository(db)

	archive, err := buildArchive(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup storage: %v", err)
	}

	engine, err := analysis.NewHTTPClient(analysis.Options{
		Endpoint: cfg.Analysis.Endpoint,
		Timeout:  cfg.Analysis.Timeout,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatalf("setup analysis client: %v", err)
	}

	store := service.NewReviewStore(reviewRepo, userRepo, archive, logger)
	reviewService := service.NewReviewService(service.ReviewServiceDeps{
		Adapter: ingest.NewAdapter(cfg.Upload.MaxBytes),
		Engine:  engine,
		Store:   store,
		Stats:   service.NewStatsAggregator(reviewRepo),
		Pager:   service.NewHistoryPager(store),
		Archive: archive,
		Logger:  logger,
	})
	userService := service.NewUserService(userRepo, reviewRepo, archive, logger)
	tokens := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, userRepo)

	reconciler := reconcile.NewManager(reconcile.Config{
		Interval: cfg.Reconcile.Interval,
		Logger:   logger,
	}, userRepo, reviewRepo)
	if err := reconciler.Start(ctx); err != nil {
		logger.Fatalf("start reconciler: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	handler := apphttp.NewHandler(apphttp.Options{
		Users:          userService,
		Reviews:        reviewService,
		Tokens:         tokens,
		Logger:         logger,
		AllowedOrigins: cfg.Origins(),
		MaxUploadBytes: cfg.Upload.MaxBytes,
	})
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	reconciler.Shutdown()

	logger.Info("bye")
}

func configureLogger(logger *logrus.Logger, cfg config.Config) {
	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

// buildArchive returns nil when no bucket is configured; archiving is then skipped.
func buildArchive(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*storage.Archive, error) {
	if cfg.Storage.Bucket == "" {
		logger.Info("storage bucket not set, resume archiving disabled")
		return nil, nil
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewArchive(storage.NewS3Service(client), storage.UploadOptions{
		Bucket:    cfg.Storage.Bucket,
		KeyPrefix: cfg.Storage.KeyPrefix,
		URLExpiry: cfg.Storage.URLExpiry,
	}), nil
}
