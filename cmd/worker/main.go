package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/qs3c/apply_go_server/config"
	"github.com/qs3c/apply_go_server/internal/automation"
	"github.com/qs3c/apply_go_server/internal/database"
	"github.com/qs3c/apply_go_server/internal/pkg/browser"
	"github.com/qs3c/apply_go_server/internal/pkg/email"
	"github.com/qs3c/apply_go_server/internal/pkg/heartbeat"
	"github.com/qs3c/apply_go_server/internal/pkg/notify"
	"github.com/qs3c/apply_go_server/internal/pkg/oss"
	"github.com/qs3c/apply_go_server/internal/pkg/pubsub"
	"github.com/qs3c/apply_go_server/internal/pkg/queue"
	"github.com/qs3c/apply_go_server/internal/pkg/retry"
	"github.com/qs3c/apply_go_server/internal/pkg/screenshot"
	"github.com/qs3c/apply_go_server/internal/pkg/secret"
	"github.com/qs3c/apply_go_server/internal/repository"
	"github.com/qs3c/apply_go_server/internal/service"
	"github.com/qs3c/apply_go_server/internal/worker"
)

var (
	cfgPath  string
	name     string
	instance string
	cfg      *config.Config
)

var rootCmd = &cobra.Command{
	Use:          "worker",
	Short:        "Claim queued applications and drive them to the review checkpoint",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		return config.InitLogger(cfg.Log)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Download the playwright driver and the configured browser",
	RunE: func(cmd *cobra.Command, args []string) error {
		return browser.Install(cfg.Automation.Browser)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file path")
	rootCmd.Flags().StringVar(&name, "name", "Worker-1", "display name")
	rootCmd.Flags().StringVar(&instance, "instance", "", "unique instance id (generated when empty)")
	rootCmd.AddCommand(installCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// buildNotifier 按配置组合邮件和 telegram 通知
func buildNotifier() notify.Notifier {
	var multi notify.Multi
	if cfg.Email.SMTPHost != "" && cfg.Email.NotifyTo != "" {
		multi = append(multi, email.NewService(&cfg.Email))
	}
	if cfg.Telegram.Token != "" {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			zap.L().Warn("telegram notifier disabled", zap.Error(err))
		} else {
			multi = append(multi, tg)
		}
	}
	if len(multi) == 0 {
		return notify.Nop{}
	}
	return multi
}

func run() error {
	if instance == "" {
		instance = uuid.NewString()
	}
	pid := os.Getpid()
	log := zap.L().With(zap.String("worker", name), zap.String("instance", instance), zap.Int("pid", pid))

	// 初始化数据库
	db, err := database.New(&cfg.Database)
	if err != nil {
		return eris.Wrap(err, "connect database")
	}

	// 初始化 Redis（可选，没有时按轮询间隔领取）
	var (
		rdb       *redis.Client
		wake      *queue.Queue
		publisher *pubsub.Publisher
	)
	if cfg.Redis.Host != "" {
		rdb, err = database.NewRedis(&cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, falling back to polling", zap.Error(err))
			rdb = nil
		} else {
			wake = queue.NewQueue(rdb, cfg.Queue.WakeQueue)
			publisher = pubsub.NewPublisher(rdb, cfg.Queue.EventChannel)
		}
	}

	// 初始化 OSS（可选）
	var ossClient *oss.Client
	if cfg.OSS.Endpoint != "" && cfg.OSS.AccessKeyID != "" {
		ossClient, err = oss.NewClient(&cfg.OSS)
		if err != nil {
			log.Warn("oss client disabled", zap.Error(err))
			ossClient = nil
		}
	}

	var box *secret.Box
	if cfg.Security.CredentialKey != "" {
		box, err = secret.NewBox(cfg.Security.CredentialKey)
		if err != nil {
			return eris.Wrap(err, "credential key")
		}
	}

	appRepo := repository.NewApplicationRepository(db)
	logRepo := repository.NewLogRepository(db)

	profiles := service.NewProfileService(repository.NewProfileRepository(db), box)
	answers := service.NewAnswerService(repository.NewAnswerRepository(db))
	credentials := service.NewCredentialService(repository.NewCredentialRepository(db), box)
	documents := service.NewDocumentService(repository.NewDocumentRepository(db), cfg.Automation.AutoAttachCoverLetter)
	screenshots := screenshot.NewStore(cfg.Automation.ScreenshotDir, ossClient)

	retryCfg := retry.DefaultConfig()
	if cfg.Automation.StepRetryAttempts > 0 {
		retryCfg.MaxAttempts = cfg.Automation.StepRetryAttempts
	}
	engine := automation.NewEngine(automation.Options{
		MatchThreshold:          cfg.Automation.MatchThreshold,
		UnknownQuestionFallback: cfg.Automation.UnknownQuestionFallback,
		MaxReviewAdvances:       cfg.Automation.MaxReviewAdvances,
		WaitTimeout:             seconds(cfg.Automation.ActionTimeoutSeconds),
		Retry:                   retryCfg,
	}, profiles, answers, credentials, documents, screenshots)

	// 每个 worker 进程独占一个浏览器
	pool := browser.NewPool(browser.Options{
		Browser:           cfg.Automation.Browser,
		Headless:          cfg.Automation.Headless,
		NavigationTimeout: seconds(cfg.Automation.NavigationTimeoutSeconds),
		ActionTimeout:     seconds(cfg.Automation.ActionTimeoutSeconds),
	})
	defer func() {
		if err := pool.Close(); err != nil {
			log.Warn("close browser", zap.Error(err))
		}
	}()

	processor := worker.NewProcessor(
		appRepo, logRepo, engine, pool, publisher, buildNotifier(),
		instance, time.Duration(cfg.Automation.ItemTimeoutMinutes)*time.Minute,
	)
	runner := worker.NewRunner(appRepo, wake, processor, instance, pid, seconds(cfg.Queue.PollIntervalSeconds))

	// 心跳在领取循环结束后才停止，最后一个申请处理期间保持存活
	hbCtx, stopBeat := context.WithCancel(context.Background())
	defer stopBeat()
	beatDone := make(chan struct{})
	if rdb != nil {
		beater := heartbeat.NewBeater(rdb, instance, pid, seconds(cfg.Supervisor.HeartbeatTTLSeconds))
		go func() {
			defer close(beatDone)
			beater.Run(hbCtx)
		}()
	} else {
		close(beatDone)
	}

	// SIGTERM 只停止领取，当前申请继续处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("worker started", zap.String("database", cfg.Database.Driver))
	runner.Run(ctx)
	stopBeat()
	<-beatDone

	log.Info("worker shutdown complete")
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			return eris.Wrap(err, "close redis")
		}
	}
	return nil
}
