package database

import (
	"context"
	"fmt"
	"time"

	"storechat-gin/internal/config"
	"storechat-gin/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewConnection(cfg *config.DatabaseConfig, zapLogger *zap.Logger) (*gorm.DB, error) {
	gormLogger := NewGormLogger(zapLogger)
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:                                   gormLogger,
		DisableForeignKeyConstraintWhenMigrating: true,
		PrepareStmt:                              true,
		TranslateError:                           true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	zapLogger.Info("database connected",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Name),
	)

	return db, nil
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrate runs auto migration for all models
// Partial unique index không express được qua gorm tag nên chạy raw SQL:
// mỗi (store, customer) chỉ được có một conversation OPEN
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		return err
	}

	return db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_open_conversation
		 ON conversations (store_id, customer_id)
		 WHERE status = 'OPEN' AND deleted_at IS NULL`,
	).Error
}

type GormLogger struct {
	logger *zap.Logger
}

func NewGormLogger(logger *zap.Logger) *GormLogger {
	return &GormLogger{logger: logger}
}

func (l *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	return l
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.logger.Sugar().Infof(msg, data...)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.logger.Sugar().Warnf(msg, data...)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.logger.Sugar().Errorf(msg, data...)
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
	}

	if err != nil && err != gorm.ErrRecordNotFound {
		l.logger.Error("gorm query error",
			append(fields, zap.Error(err), zap.String("sql", sql))...,
		)
		return
	}

	if elapsed > 200*time.Millisecond {
		l.logger.Warn("slow query",
			append(fields, zap.String("sql", sql))...,
		)
	}
}
