package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-grade-engine/api/swagger"
	"github.com/noah-isme/sma-grade-engine/internal/events"
	"github.com/noah-isme/sma-grade-engine/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-grade-engine/internal/middleware"
	"github.com/noah-isme/sma-grade-engine/internal/repository"
	"github.com/noah-isme/sma-grade-engine/internal/service"
	"github.com/noah-isme/sma-grade-engine/pkg/cache"
	"github.com/noah-isme/sma-grade-engine/pkg/config"
	"github.com/noah-isme/sma-grade-engine/pkg/database"
	"github.com/noah-isme/sma-grade-engine/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-grade-engine/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-grade-engine/pkg/middleware/requestid"
)

// @title SMA Grade Engine
// @version 1.0.0
// @description Grade aggregation, recalculation and class ranking service
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, serving without result cache", zap.Error(err))
		} else {
			defer redisClient.Close()
		}
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	gradeRepo := repository.NewGradeRepository(db)
	rosterRepo := repository.NewRosterRepository(db)
	assessmentRepo := repository.NewAssessmentConfigRepository(db)
	configurationRepo := repository.NewConfigurationRepository(db)
	resultRepo := repository.NewCalculationResultRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.ResultTTL, logr, redisClient != nil)
	store := service.NewCachedResultStore(resultRepo, cacheSvc, cfg.Cache.ResultTTL, logr)

	systemDefault := service.SystemDefault(cfg.Engine)
	resolver := service.NewConfigResolver([]service.ConfigSource{
		service.NewTeacherConfigSource(assessmentRepo),
		service.NewAcademicYearDefaultSource(configurationRepo, systemDefault),
		service.NewSystemDefaultSource(systemDefault),
	}, systemDefault, validate, logr)

	rankingSvc := service.NewRankingService(rosterRepo, resultRepo, cacheSvc, cfg.Cache.RankingTTL, metricsSvc, validate, logr)
	recalcSvc := service.NewRecalculationService(gradeRepo, rosterRepo, resolver, store, rankingSvc, cfg.Engine.WorkerConcurrency, metricsSvc, validate, logr)

	var natsConn *nats.Conn
	if cfg.NATS.Enabled {
		natsConn, err = nats.Connect(cfg.NATS.URL, nats.Name("grade-engine"))
		if err != nil {
			logr.Fatal("failed to connect nats", zap.Error(err))
		}
		defer natsConn.Close()
	}
	subscriber := events.NewSubscriber(natsConn, cfg.NATS, recalcSvc, logr)
	if err := subscriber.Start(ctx); err != nil {
		logr.Fatal("failed to subscribe to change events", zap.Error(err))
	}

	checks := map[string]handler.ReadinessCheck{
		"database": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, 2*time.Second))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), routeHandlers{
		recalculation: handler.NewRecalculationHandler(recalcSvc),
		results:       handler.NewResultHandler(recalcSvc, validate),
		rankings:      handler.NewRankingHandler(rankingSvc),
		configs:       handler.NewAssessmentConfigHandler(resolver, validate),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

type routeHandlers struct {
	recalculation *handler.RecalculationHandler
	results       *handler.ResultHandler
	rankings      *handler.RankingHandler
	configs       *handler.AssessmentConfigHandler
}

func registerRoutes(api *gin.RouterGroup, h routeHandlers) {
	recalc := api.Group("/recalculations")
	recalc.POST("/grade-changed", h.recalculation.GradeChanged)
	recalc.POST("/config-changed", h.recalculation.ConfigChanged)
	recalc.POST("/classes/:classId", h.recalculation.Class)

	api.GET("/results/students/:studentId", h.results.Student)

	rankings := api.Group("/rankings")
	rankings.GET("/classes/:classId", h.rankings.Class)
	rankings.GET("/classes/:classId/export", h.rankings.Export)

	api.GET("/assessment-configs/resolve", h.configs.Resolve)
}
