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

	"go.uber.org/zap"

	"github.com/qs3c/apply_go_server/config"
	"github.com/qs3c/apply_go_server/internal/api"
	"github.com/qs3c/apply_go_server/internal/api/handler"
	"github.com/qs3c/apply_go_server/internal/database"
	"github.com/qs3c/apply_go_server/internal/pkg/cron"
	"github.com/qs3c/apply_go_server/internal/pkg/heartbeat"
	"github.com/qs3c/apply_go_server/internal/pkg/oss"
	"github.com/qs3c/apply_go_server/internal/pkg/pubsub"
	"github.com/qs3c/apply_go_server/internal/pkg/queue"
	"github.com/qs3c/apply_go_server/internal/pkg/secret"
	"github.com/qs3c/apply_go_server/internal/pkg/ws"
	"github.com/qs3c/apply_go_server/internal/repository"
	"github.com/qs3c/apply_go_server/internal/service"
	"github.com/qs3c/apply_go_server/internal/supervisor"
)

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() { _ = zap.L().Sync() }()
	logger := zap.L()

	// 初始化数据库
	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect database", zap.Error(err))
	}
	logger.Info("database connected", zap.String("driver", cfg.Database.Driver))

	// 初始化 Redis，单例锁和心跳都依赖它
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	logger.Info("redis connected")

	// 初始化 OSS（可选）
	var ossClient *oss.Client
	if cfg.OSS.Endpoint != "" && cfg.OSS.AccessKeyID != "" {
		ossClient, err = oss.NewClient(&cfg.OSS)
		if err != nil {
			logger.Warn("oss client disabled", zap.Error(err))
			ossClient = nil
		}
	}

	var box *secret.Box
	if cfg.Security.CredentialKey != "" {
		box, err = secret.NewBox(cfg.Security.CredentialKey)
		if err != nil {
			logger.Fatal("invalid credential key", zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 初始化 Queue 和 Pub/Sub
	wake := queue.NewQueue(rdb, cfg.Queue.WakeQueue)
	publisher := pubsub.NewPublisher(rdb, cfg.Queue.EventChannel)

	// 初始化 WebSocket Hub，转发 worker 事件
	wsHub := ws.NewHub()
	go func() {
		if err := wsHub.Relay(ctx, pubsub.NewSubscriber(rdb, cfg.Queue.EventChannel)); err != nil && ctx.Err() == nil {
			logger.Error("event relay stopped", zap.Error(err))
		}
	}()

	// 初始化 Repository
	appRepo := repository.NewApplicationRepository(db)
	logRepo := repository.NewLogRepository(db)
	answerRepo := repository.NewAnswerRepository(db)
	profileRepo := repository.NewProfileRepository(db)

	// 初始化 Service
	appService := service.NewApplicationService(appRepo, logRepo, wake, ossClient, cfg)
	answerService := service.NewAnswerService(answerRepo)
	profileService := service.NewProfileService(profileRepo, box)

	// 初始化任务管理器
	reconciler := supervisor.NewReconciler(appRepo, logRepo, heartbeat.NewChecker(rdb), publisher, cfg.Supervisor.ReconcilePolicy)
	spawner := &supervisor.ExecSpawner{
		Binary:     cfg.Supervisor.WorkerBinary,
		Args:       cfg.Supervisor.WorkerArgs,
		ConfigPath: cfg.Path,
	}
	lock := supervisor.NewRedisLock(rdb, cfg.Supervisor.LockKey, seconds(cfg.Supervisor.LockTTLSeconds))
	manager := supervisor.NewManager(supervisor.Options{
		WorkerCount: cfg.Supervisor.WorkerCount,
		StopTimeout: seconds(cfg.Supervisor.StopTimeoutSeconds),
	}, spawner, lock, reconciler, publisher)

	if cfg.Supervisor.Autostart {
		if err := manager.Start(ctx); err != nil {
			logger.Error("failed to autostart task manager", zap.Error(err))
		}
	}

	// 定时对账和截图清理
	cronService := cron.NewService(
		manager,
		seconds(cfg.Supervisor.SweepIntervalSeconds),
		cfg.Automation.ScreenshotDir,
		cfg.Automation.ScreenshotRetentionDays,
	)
	cronService.Start()
	defer cronService.Stop()

	// 初始化 Handler
	applicationHandler := handler.NewApplicationHandler(appService)
	managerHandler := handler.NewManagerHandler(manager, appService)
	answerHandler := handler.NewAnswerHandler(answerService)
	profileHandler := handler.NewProfileHandler(profileService)
	websocketHandler := handler.NewWebSocketHandler(wsHub, cfg.JWT.Secret, cfg.CORS.AllowedOrigins)

	// 初始化 Router
	router := api.NewRouter(
		applicationHandler,
		managerHandler,
		answerHandler,
		profileHandler,
		websocketHandler,
		cfg,
	)

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: router.Setup()}
	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("received shutdown signal")

	// 先停 worker，再关 HTTP
	stopTimeout := seconds(cfg.Supervisor.StopTimeoutSeconds) + 5*time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := manager.Stop(shutdownCtx, false); err != nil {
		logger.Error("failed to stop task manager", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if err := rdb.Close(); err != nil {
		logger.Warn("close redis", zap.Error(err))
	}

	logger.Info("server shutdown complete")
}
