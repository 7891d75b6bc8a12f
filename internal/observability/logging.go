// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Logger wraps slog.Logger to provide specialized logging methods.
type Logger struct {
	*slog.Logger
}

// GlobalLogger is the default logger instance for background and repository logging.
var GlobalLogger *Logger

func init() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	GlobalLogger = &Logger{Logger: slog.New(handler)}
	repoLogging.Store(true)
}

type correlationKey struct{}

// WithCorrelationID returns a context whose log lines carry id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the id set by WithCorrelationID, or "".
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey{}).(string); ok {
		return id
	}
	return ""
}

var repoLogging atomic.Bool

// SetRepoLogging turns repository write logging on or off.
func SetRepoLogging(enabled bool) {
	repoLogging.Store(enabled)
}

// RepoLogger logs writes to one table at debug level.
type RepoLogger struct {
	table  string
	logger *Logger
}

func NewRepoLogger(table string) *RepoLogger {
	return &RepoLogger{table: table, logger: GlobalLogger}
}

func (l *RepoLogger) attrs(ctx context.Context, operation string, extra []slog.Attr) []any {
	out := make([]any, 0, len(extra)+3)
	out = append(out, slog.String("table", l.table), slog.String("operation", operation))
	if cid := CorrelationID(ctx); cid != "" {
		out = append(out, slog.String("correlation_id", cid))
	}
	for _, a := range extra {
		out = append(out, a)
	}
	return out
}

// Write logs a successful write such as "create" or "delete".
func (l *RepoLogger) Write(ctx context.Context, operation string, attrs ...slog.Attr) {
	if !repoLogging.Load() {
		return
	}
	l.logger.DebugContext(ctx, "repository "+operation, l.attrs(ctx, operation, attrs)...)
}

// Error logs a failed repository call.
func (l *RepoLogger) Error(ctx context.Context, operation string, err error, attrs ...slog.Attr) {
	if !repoLogging.Load() {
		return
	}
	attrs = append(attrs, slog.String("error", err.Error()))
	l.logger.ErrorContext(ctx, "repository error", l.attrs(ctx, operation, attrs)...)
}

// Job tracks one long-running background operation, such as a legacy
// import, from start to finish under a single correlation id.
type Job struct {
	name    string
	id      string
	ctx     context.Context
	started time.Time
}

// StartJob logs the start of name and returns a context carrying the job's
// correlation id.
func StartJob(ctx context.Context, name string, attrs ...slog.Attr) (*Job, context.Context) {
	id := CorrelationID(ctx)
	if id == "" {
		id = uuid.NewString()
		ctx = WithCorrelationID(ctx, id)
	}
	j := &Job{name: name, id: id, ctx: ctx, started: time.Now()}
	GlobalLogger.LogAttrs(ctx, slog.LevelInfo, "job started", j.attrs(attrs)...)
	return j, ctx
}

func (j *Job) attrs(extra []slog.Attr) []slog.Attr {
	return append([]slog.Attr{
		slog.String("job", j.name),
		slog.String("correlation_id", j.id),
	}, extra...)
}

// Done logs successful completion with the elapsed time.
func (j *Job) Done(attrs ...slog.Attr) {
	attrs = append(attrs, slog.Duration("elapsed", time.Since(j.started)))
	GlobalLogger.LogAttrs(j.ctx, slog.LevelInfo, "job completed", j.attrs(attrs)...)
}

// Fail logs that the job stopped on err.
func (j *Job) Fail(err error, attrs ...slog.Attr) {
	attrs = append(attrs,
		slog.String("error", err.Error()),
		slog.Duration("elapsed", time.Since(j.started)))
	GlobalLogger.LogAttrs(j.ctx, slog.LevelError, "job failed", j.attrs(attrs)...)
}
