package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rotisserie/eris"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/qs3c/apply_go_server/config"
	"github.com/qs3c/apply_go_server/internal/model"
)

// Models 需要迁移的全部模型
func Models() []interface{} {
	return []interface{}{
		&model.Application{},
		&model.Credential{},
		&model.StandardAnswer{},
		&model.LogEntry{},
		&model.Profile{},
		&model.ProfileCandidate{},
		&model.ConflictResolution{},
		&model.Document{},
	}
}

// New 根据 driver 配置打开数据库并完成迁移
func New(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "sqlite":
		db, err = NewSQLite(cfg)
	case "", "mysql":
		db, err = NewMySQL(cfg)
	default:
		return nil, eris.Errorf("database: unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, eris.Wrap(err, "database: migrate")
	}
	return db, nil
}

// NewMySQL 连接 MySQL
func NewMySQL(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, eris.Wrap(err, "database: open mysql")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, eris.Wrap(err, "database: get sql.DB")
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// NewSQLite 打开 SQLite 文件库，多个 worker 进程共享同一文件
func NewSQLite(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	path := cfg.SQLitePath
	if path == "" {
		path = "data/apply.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, eris.Wrap(err, "database: create sqlite dir")
	}

	db, err := gorm.Open(sqlite.Open(SQLiteDSN(path)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, eris.Wrap(err, "database: open sqlite")
	}
	return db, nil
}

// SQLiteDSN WAL 模式 + busy timeout，允许跨进程并发领取
func SQLiteDSN(path string) string {
	return path + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
}

// NewRedis 连接 Redis
func NewRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, eris.Wrap(err, "database: ping redis")
	}
	return client, nil
}
