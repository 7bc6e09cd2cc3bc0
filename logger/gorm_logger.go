package logger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormZapLogger routes GORM logs through zap.
type GormZapLogger struct {
	ZapLogger *zap.Logger
	Config    gormlogger.Config
}

func NewGormZapLogger(zapLogger *zap.Logger, config gormlogger.Config) gormlogger.Interface {
	return &GormZapLogger{
		ZapLogger: zapLogger,
		Config:    config,
	}
}

func (l *GormZapLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	newLogger := *l
	newLogger.Config.LogLevel = level
	return &newLogger
}

func (l GormZapLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.Config.LogLevel >= gormlogger.Info {
		l.ZapLogger.Sugar().Infof(msg, data...)
	}
}

func (l GormZapLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.Config.LogLevel >= gormlogger.Warn {
		l.ZapLogger.Sugar().Warnf(msg, data...)
	}
}

func (l GormZapLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.Config.LogLevel >= gormlogger.Error {
		l.ZapLogger.Sugar().Errorf(msg, data...)
	}
}

func (l GormZapLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.Config.LogLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := []zap.Field{
		zap.String("sql", sql),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
	}

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		fields = append(fields, zap.Error(err))
	}

	if l.Config.SlowThreshold != 0 && elapsed > l.Config.SlowThreshold {
		l.ZapLogger.Warn("slow query detected", fields...)
		return
	}

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		l.ZapLogger.Error("query failed", fields...)
	} else {
		l.ZapLogger.Debug("query executed", fields...)
	}
}
