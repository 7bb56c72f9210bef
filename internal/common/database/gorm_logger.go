package database

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dumeirei/marketplace-backend/internal/common/logger"
)

// ZapLogger 将 GORM 日志写入 zap
type ZapLogger struct {
	log           *zap.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

// NewZapLogger 创建 GORM 日志适配器，slowThreshold 为 0 时不记录慢查询
func NewZapLogger(log *zap.Logger, level gormlogger.LogLevel, slowThreshold time.Duration) *ZapLogger {
	return &ZapLogger{log: log, level: level, slowThreshold: slowThreshold}
}

// LogMode 实现 gormlogger.Interface
func (l *ZapLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

// Info 实现 gormlogger.Interface
func (l *ZapLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		logger.WithContext(ctx, l.log).Info(fmt.Sprintf(msg, args...))
	}
}

// Warn 实现 gormlogger.Interface
func (l *ZapLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		logger.WithContext(ctx, l.log).Warn(fmt.Sprintf(msg, args...))
	}
}

// Error 实现 gormlogger.Interface
func (l *ZapLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		logger.WithContext(ctx, l.log).Error(fmt.Sprintf(msg, args...))
	}
}

// Trace 记录 SQL，错误与慢查询按更高级别输出，记录不存在不视为错误
func (l *ZapLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	log := logger.WithContext(ctx, l.log)
	switch {
	case err != nil && l.level >= gormlogger.Error && !stderrors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		log.Error("SQL 执行失败", zap.String("sql", sql), zap.Int64("rows", rows), logger.Latency(elapsed), zap.Error(err))
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		sql, rows := fc()
		log.Warn("慢查询", zap.String("sql", sql), zap.Int64("rows", rows), logger.Latency(elapsed))
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		log.Debug("SQL", zap.String("sql", sql), zap.Int64("rows", rows), logger.Latency(elapsed))
	}
}
