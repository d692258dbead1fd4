package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	myPostgresRepo "github.com/clipstream/account-service/internal/adapters/db/postgres"
	myS3 "github.com/clipstream/account-service/internal/adapters/media/s3"
	"github.com/clipstream/account-service/internal/adapters/transport/httpapi"
	httpmw "github.com/clipstream/account-service/internal/adapters/transport/httpapi/middleware"
	appsvc "github.com/clipstream/account-service/internal/app/account/service"
	apptoken "github.com/clipstream/account-service/internal/app/account/token"
	"github.com/clipstream/account-service/internal/infra/config"
	lg "github.com/clipstream/account-service/internal/infra/log"
	"github.com/clipstream/account-service/internal/infra/migrate"
	"github.com/clipstream/account-service/internal/infra/server"
	"golang.org/x/sync/errgroup"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	zapLog := lg.Must(os.Getenv("debug"))
	defer zapLog.Sync()

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("failed to load config", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		zapLog.Fatal("failed to connect to database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		zapLog.Fatal("db handle", zap.Error(err))
	}
	defer sqlDB.Close()
	if err := migrate.Up(sqlDB); err != nil {
		zapLog.Fatal("run migrations", zap.Error(err))
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mediaStore, err := myS3.NewMediaStore(rootCtx, cfg)
	if err != nil {
		zapLog.Fatal("failed to init media store", zap.Error(err))
	}

	jwtUtil, err := apptoken.NewJWTUtil(cfg)
	if err != nil {
		zapLog.Fatal("failed to init JWT util", zap.Error(err))
	}

	accountRepo := myPostgresRepo.NewPostgresAccountRepo(db)
	svc := appsvc.New(accountRepo, mediaStore, jwtUtil, cfg, validator.New())

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpmw.RequestLogger(zapLog))
	router.Use(httpmw.Metrics())

	corsConfig := cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept",
			"Authorization",
			"X-Requested-With",
		},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	httpapi.NewHandler(svc, cfg, zapLog).Mount(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	g, ctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		return server.StartHTTPServer(ctx, cfg, router, zapLog)
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		zapLog.Info("shutdown signal received")
	case <-ctx.Done():
	}
	cancel()

	if err := g.Wait(); err != nil {
		zapLog.Error("server terminated", zap.Error(err))
	}
}
