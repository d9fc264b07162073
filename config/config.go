package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	OSS        OSSConfig        `mapstructure:"oss"`
	Email      EmailConfig      `mapstructure:"email"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Supervisor SupervisorConfig `mapstructure:"supervisor"`
	Automation AutomationConfig `mapstructure:"automation"`
	Security   SecurityConfig   `mapstructure:"security"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Log        LogConfig        `mapstructure:"log"`

	// 实际加载的配置文件路径，worker 子进程沿用同一份配置
	Path string `mapstructure:"-"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // mysql | sqlite
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	SQLitePath   string `mapstructure:"sqlite_path"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
	CDNDomain       string `mapstructure:"cdn_domain"`
}

type EmailConfig struct {
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	NotifyTo string `mapstructure:"notify_to"`
}

type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

type QueueConfig struct {
	WakeQueue           string `mapstructure:"wake_queue"`
	EventChannel        string `mapstructure:"event_channel"`
	PollIntervalSeconds int    `mapstructure:"poll_interval_seconds"`
}

type SupervisorConfig struct {
	Autostart            bool     `mapstructure:"autostart"`
	WorkerCount          int      `mapstructure:"worker_count"`
	WorkerBinary         string   `mapstructure:"worker_binary"`
	WorkerArgs           []string `mapstructure:"worker_args"`
	StopTimeoutSeconds   int      `mapstructure:"stop_timeout_seconds"`
	LockKey              string   `mapstructure:"lock_key"`
	LockTTLSeconds       int      `mapstructure:"lock_ttl_seconds"`
	HeartbeatTTLSeconds  int      `mapstructure:"heartbeat_ttl_seconds"`
	ReconcilePolicy      string   `mapstructure:"reconcile_policy"` // fail | requeue
	SweepIntervalSeconds int      `mapstructure:"sweep_interval_seconds"`
}

type AutomationConfig struct {
	Headless                 bool    `mapstructure:"headless"`
	Browser                  string  `mapstructure:"browser"` // chromium | firefox | webkit
	NavigationTimeoutSeconds int     `mapstructure:"navigation_timeout_seconds"`
	ActionTimeoutSeconds     int     `mapstructure:"action_timeout_seconds"`
	ItemTimeoutMinutes       int     `mapstructure:"item_timeout_minutes"`
	MatchThreshold           float64 `mapstructure:"match_threshold"`
	AutoAttachCoverLetter    bool    `mapstructure:"auto_attach_cover_letter"`
	UnknownQuestionFallback  string  `mapstructure:"unknown_question_fallback"`
	MaxReviewAdvances        int     `mapstructure:"max_review_advances"`
	StepRetryAttempts        int     `mapstructure:"step_retry_attempts"`
	ScreenshotDir            string  `mapstructure:"screenshot_dir"`
	ScreenshotRetentionDays  int     `mapstructure:"screenshot_retention_days"`
}

type SecurityConfig struct {
	CredentialKey string `mapstructure:"credential_key"` // 32 字节 hex，用于加密站点密码
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | console
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.sqlite_path", "data/apply.db")
	v.SetDefault("jwt.expire_hours", 24*30)
	v.SetDefault("queue.wake_queue", "application_wake")
	v.SetDefault("queue.event_channel", "application_events")
	v.SetDefault("queue.poll_interval_seconds", 5)
	v.SetDefault("supervisor.worker_count", 4)
	v.SetDefault("supervisor.worker_binary", "./worker")
	v.SetDefault("supervisor.stop_timeout_seconds", 10)
	v.SetDefault("supervisor.lock_key", "supervisor:lock")
	v.SetDefault("supervisor.lock_ttl_seconds", 30)
	v.SetDefault("supervisor.heartbeat_ttl_seconds", 30)
	v.SetDefault("supervisor.reconcile_policy", "fail")
	v.SetDefault("supervisor.sweep_interval_seconds", 60)
	v.SetDefault("automation.headless", true)
	v.SetDefault("automation.browser", "chromium")
	v.SetDefault("automation.navigation_timeout_seconds", 30)
	v.SetDefault("automation.action_timeout_seconds", 10)
	v.SetDefault("automation.item_timeout_minutes", 15)
	v.SetDefault("automation.match_threshold", 0.85)
	v.SetDefault("automation.auto_attach_cover_letter", true)
	v.SetDefault("automation.max_review_advances", 8)
	v.SetDefault("automation.step_retry_attempts", 3)
	v.SetDefault("automation.screenshot_dir", "data/screenshots")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

func Load(configPath string) (*Config, error) {
	// .env 中的变量作为环境变量覆盖来源，文件不存在时忽略
	_ = godotenv.Load()

	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// 环境变量覆盖
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, eris.Wrapf(err, "config: read %s", configPath)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	cfg.Path = configPath

	return &cfg, nil
}

// InitLogger 初始化全局 zap logger
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return eris.Wrap(err, "config: parse log level")
		}
		zapCfg.Level.SetLevel(level)
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
