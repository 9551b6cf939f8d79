// Package zapadapter routes database driver logs to a go.uber.org/zap.Logger
// and carries the HTTP request id through context.Context.
package zapadapter

import (
	"context"

	"github.com/jackc/pgx/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type key string

var idKey key = "request_id"

func NewContextWithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, idKey, id)
}

func IDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(idKey).(string)
	return id, ok
}

// Logger implements pgx.Logger. Every entry carries the database name
// and the request id when the query runs within an HTTP request.
type Logger struct {
	logger *zap.Logger
}

func NewLogger(logger *zap.Logger, database string) *Logger {
	return &Logger{logger: logger.WithOptions(zap.AddCallerSkip(1)).With(zap.String("database", database))}
}

var pgxLevels = map[pgx.LogLevel]zapcore.Level{
	pgx.LogLevelTrace: zapcore.DebugLevel,
	pgx.LogLevelDebug: zapcore.DebugLevel,
	pgx.LogLevelInfo:  zapcore.InfoLevel,
	pgx.LogLevelWarn:  zapcore.WarnLevel,
	pgx.LogLevelError: zapcore.ErrorLevel,
}

func (pl *Logger) Log(ctx context.Context, level pgx.LogLevel, msg string, data map[string]interface{}) {
	fields := make([]zapcore.Field, 0, len(data)+2)
	if id, ok := IDFromContext(ctx); ok {
		fields = append(fields, zap.String("request_id", id))
	}
	for k, v := range data {
		fields = append(fields, zap.Reflect(k, v))
	}

	lvl, known := pgxLevels[level]
	if !known {
		lvl = zapcore.ErrorLevel
	}
	if !known || level == pgx.LogLevelTrace {
		fields = append(fields, zap.Stringer("pgx_level", level))
	}

	if ce := pl.logger.Check(lvl, msg); ce != nil {
		ce.Write(fields...)
	}
}

// MongoSink implements options.LogSink of the mongo driver.
// The driver passes 0 for informational messages and positive values for debug ones.
type MongoSink struct {
	logger *zap.Logger
}

func NewMongoSink(logger *zap.Logger) *MongoSink {
	return &MongoSink{logger: logger.WithOptions(zap.AddCallerSkip(1))}
}

func (ms *MongoSink) Info(level int, msg string, keysAndValues ...interface{}) {
	fields := keysAndValuesToFields(keysAndValues)
	if level > 0 {
		ms.logger.Debug(msg, fields...)
		return
	}
	ms.logger.Info(msg, fields...)
}

func (ms *MongoSink) Error(err error, msg string, keysAndValues ...interface{}) {
	ms.logger.Error(msg, append(keysAndValuesToFields(keysAndValues), zap.Error(err))...)
}

func keysAndValuesToFields(kv []interface{}) []zapcore.Field {
	fields := make([]zapcore.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(k, kv[i+1]))
	}
	return fields
}
