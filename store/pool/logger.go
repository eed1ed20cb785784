package pool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/lmittmann/tint"
	"github.com/pitabwire/util"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"
)

const (
	tintAttrCodeDuration = 214
	tintAttrCodeRows     = 12
	tintAttrCodeQuery    = 2

	// DefaultSlowQueryThreshold flags store round trips that endanger the
	// read path latency budget.
	DefaultSlowQueryThreshold = 200 * time.Millisecond
)

func storeLogger(ctx context.Context, logQueries bool, slowThreshold time.Duration) glogger.Interface {
	if slowThreshold <= 0 {
		slowThreshold = DefaultSlowQueryThreshold
	}

	return &dbLogger{
		logQueries:    logQueries,
		slowThreshold: slowThreshold,
		baseLogger:    util.Log(ctx),
	}
}

type dbLogger struct {
	baseLogger    *util.LogEntry // Base logger to clone for each query to avoid attribute accumulation
	logQueries    bool
	slowThreshold time.Duration
}

// LogMode log mode.
func (l *dbLogger) LogMode(_ glogger.LogLevel) glogger.Interface {
	return l
}

// Info print info.
func (l *dbLogger) Info(ctx context.Context, msg string, data ...any) {
	log := l.baseLogger.WithContext(ctx)
	log.Info(msg, data...)
}

// Warn print warn messages.
func (l *dbLogger) Warn(ctx context.Context, msg string, data ...any) {
	log := l.baseLogger.WithContext(ctx)
	log.Warn(msg, data...)
}

// Error print error messages.
func (l *dbLogger) Error(ctx context.Context, msg string, data ...any) {
	log := l.baseLogger.WithContext(ctx)
	log.Error(msg, data...)
}

func errorIsNoRows(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, sql.ErrNoRows)
}

// Trace print sql message.
func (l *dbLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	baseLog := l.baseLogger.WithContext(ctx)

	queryIsSlow := elapsed > l.slowThreshold && l.slowThreshold != 0
	queryErrored := err != nil && !errorIsNoRows(err)
	shouldLog := queryErrored ||
		baseLog.Enabled(ctx, slog.LevelDebug) ||
		(baseLog.Enabled(ctx, slog.LevelInfo) && l.logQueries) ||
		(baseLog.Enabled(ctx, slog.LevelWarn) && queryIsSlow)

	if !shouldLog {
		return
	}

	sqlQuery, rows := fc()
	rowsAffected := strconv.FormatInt(rows, 10)

	log := baseLog.
		With(
			tint.Attr(tintAttrCodeDuration, slog.Any("duration", elapsed.String())),
			tint.Attr(tintAttrCodeRows, slog.Any("rows", rowsAffected)),
			tint.Attr(tintAttrCodeQuery, slog.Any("query", sqlQuery)),
		)
	defer log.Release()

	if queryIsSlow {
		log = log.WithField("SLOW Query", fmt.Sprintf(" >= %v", l.slowThreshold))
	}

	if queryErrored {
		log.WithError(err).Error(" Error running query ")
		return
	}

	if log.Enabled(ctx, slog.LevelDebug) {
		log.Debug("query executed")
		return
	}

	if log.Enabled(ctx, slog.LevelInfo) && l.logQueries {
		log.Info("query executed ")
		return
	}

	if log.Enabled(ctx, slog.LevelWarn) && queryIsSlow {
		log.Warn("query is slow")
	}
}
