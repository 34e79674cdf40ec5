package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/pondwatch/pondwatch-go/internal/logging"
)

// DefaultSlowQueryThreshold flags queries slower than this in the log.
const DefaultSlowQueryThreshold = 200 * time.Millisecond

// performAutoMigration migrates the schema for all persisted entities.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	start := time.Now()
	log := logging.ForService("datastore")

	err := db.AutoMigrate(
		&Assessment{},
		&SpeciesDetection{},
		&Alert{},
		&NotificationPreference{},
		&InAppNotification{},
		&DailyCount{},
		&Field{},
	)
	if err != nil {
		return dbError(err, "auto-migrate "+dbType)
	}

	if debug && log != nil {
		log.Debug("database migration completed",
			"db_type", dbType,
			"connection", connectionInfo,
			"duration", time.Since(start))
	}
	return nil
}

// newGormLogger adapts GORM's query log onto slog. Only slow queries and
// errors surface unless debug is set.
func newGormLogger(debug bool) gormlogger.Interface {
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	return &gormLogger{
		level:         level,
		slowThreshold: DefaultSlowQueryThreshold,
	}
}

type gormLogger struct {
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *gormLogger) Info(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Info {
		logging.ForService("datastore").Info(msg, "args", args)
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Warn {
		logging.ForService("datastore").Warn(msg, "args", args)
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Error {
		logging.ForService("datastore").Error(msg, "args", args)
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	log := logging.ForService("datastore")

	switch {
	case err != nil && err != gorm.ErrRecordNotFound && l.level >= gormlogger.Error:
		sql, rows := fc()
		log.Error("query failed", "error", err, "sql", sql, "rows", rows, "elapsed", elapsed)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		sql, rows := fc()
		log.Warn("slow query", "sql", sql, "rows", rows, "elapsed", elapsed)
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		log.Debug("query", "sql", sql, "rows", rows, "elapsed", elapsed)
	}
}
