// Package logger configures slog for the module and carries log context
// (subsystem, correlation id, extra values) through context.Context.
package logger

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/amp-labs/amp-dispatch/lazy"
	"github.com/amp-labs/amp-dispatch/shutdown"
)

// subsystem is the default subsystem name set by ConfigureLoggingWithOptions.
// atomic.Value keeps reads and writes thread-safe.
var subsystem atomic.Value //nolint:gochecknoglobals

// configMutex serializes calls to ConfigureLoggingWithOptions, which mutate
// global state (slog.SetDefault and log.Default).
var configMutex sync.Mutex //nolint:gochecknoglobals

// contextKey is unexported to avoid collisions with other packages' keys.
type contextKey string

// Options configures logging.
type Options struct {
	Subsystem   string
	JSON        bool
	MinLevel    slog.Level
	LegacyLevel slog.Level
	Output      io.Writer
}

// ConfigureLoggingWithOptions configures the default slog logger and
// redirects the legacy log package into it. It returns the configured
// logger. Thread-safe; concurrent calls serialize.
func ConfigureLoggingWithOptions(opts Options) *slog.Logger {
	configMutex.Lock()
	defer configMutex.Unlock()

	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	var handler slog.Handler

	if opts.JSON {
		handler = slog.NewJSONHandler(opts.Output, &slog.HandlerOptions{
			Level: opts.MinLevel,
		})
	} else {
		handler = slog.NewTextHandler(opts.Output, &slog.HandlerOptions{
			Level: opts.MinLevel,
		})
	}

	logger := slog.New(handler)

	slog.SetDefault(logger)

	// Third-party packages may still use the old log package; route it
	// through the same handler.
	def := log.Default()
	*def = *slog.NewLogLogger(handler, opts.LegacyLevel)

	subsystem.Store(opts.Subsystem)

	return logger
}

// Fatal logs an error message, triggers shutdown, and exits the process.
func Fatal(msg string, args ...any) {
	slog.Error(msg, args...)

	shutdown.Trigger()

	time.Sleep(time.Second)

	os.Exit(1)
}

// WithMuted marks the context as muted. All logging performed through a
// muted context is suppressed; useful for high-frequency paths such as
// health checks.
func WithMuted(ctx context.Context, muted bool) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, contextKey("mute"), muted)
}

func isMuted(ctx context.Context) bool {
	if ctx == nil {
		return false
	}

	val := ctx.Value(contextKey("mute"))
	if val == nil {
		return false
	}

	muted, ok := val.(bool)

	return ok && muted
}

// WithSubsystem overrides the subsystem name for this context.
func WithSubsystem(ctx context.Context, subsystem string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, contextKey("subsystem"), subsystem)
}

// GetSubsystem returns the subsystem from the context, falling back to the
// default configured via ConfigureLoggingWithOptions.
func GetSubsystem(ctx context.Context) string { //nolint:contextcheck
	if ctx == nil {
		ctx = context.Background()
	}

	sub := ctx.Value(contextKey("subsystem"))
	if sub != nil {
		if val, ok := sub.(string); ok {
			return val
		}
	}

	if defaultSub := subsystem.Load(); defaultSub != nil {
		if val, ok := defaultSub.(string); ok {
			return val
		}
	}

	return ""
}

// WithCorrelationId embeds a message correlation id in the context so that
// every log line produced while handling that message carries it.
func WithCorrelationId(ctx context.Context, correlationId string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, contextKey("correlation_id"), correlationId)
}

// GetCorrelationId returns the correlation id from the context, if present.
func GetCorrelationId(ctx context.Context) (string, bool) { //nolint:contextcheck
	if ctx == nil {
		ctx = context.Background()
	}

	cid := ctx.Value(contextKey("correlation_id"))
	if cid == nil {
		return "", false
	}

	val, ok := cid.(string)
	if !ok {
		return "", false
	}

	return val, true
}

// With returns a new context with the given key-value pairs added; they are
// attached to every logger obtained from that context via Get.
func With(ctx context.Context, values ...any) context.Context {
	if len(values) == 0 && ctx != nil {
		return ctx
	}

	vals := append(getValues(ctx), values...)

	return context.WithValue(ctx, contextKey("loggerValues"), vals)
}

func getValues(ctx context.Context) []any { //nolint:contextcheck
	if ctx == nil {
		ctx = context.Background()
	}

	vals := ctx.Value(contextKey("loggerValues"))
	if vals == nil {
		return nil
	}

	val, ok := vals.([]any)
	if !ok {
		return nil
	}

	return val
}

// hostname holds the pod name in a k8s deployment, or the machine name for
// local development.
// nolint:gochecknoglobals
var hostname = lazy.New[string](func() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}

	return h
})

// GetPodName returns the pod name (or hostname when not running in k8s).
func GetPodName() string {
	return hostname.Get()
}

// nullHandler discards everything; it backs the muted-context feature.
type nullHandler struct{}

func (n *nullHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return false
}

func (n *nullHandler) Handle(_ context.Context, _ slog.Record) error {
	return nil
}

func (n *nullHandler) WithAttrs(_ []slog.Attr) slog.Handler {
	return n
}

func (n *nullHandler) WithGroup(_ string) slog.Handler {
	return n
}

var nullLogger = slog.New(&nullHandler{}) //nolint:gochecknoglobals

// getRealContext extracts the first non-nil context from a variadic list,
// falling back to context.Background().
func getRealContext(ctx ...context.Context) context.Context {
	for _, c := range ctx {
		if c != nil {
			return c
		}
	}

	return context.Background()
}

// Get returns a logger enriched with the subsystem, pod name, correlation
// id, and any values attached via With. A muted context returns a logger
// that produces no output.
func Get(ctx ...context.Context) *slog.Logger { //nolint:contextcheck
	realCtx := getRealContext(ctx...)

	if isMuted(realCtx) {
		return nullLogger
	}

	logger := slog.Default().With(
		"subsystem", GetSubsystem(realCtx),
		"pod", hostname.Get())

	if correlationId, ok := GetCorrelationId(realCtx); ok {
		logger = logger.With("correlation_id", correlationId)
	}

	if vals := getValues(realCtx); vals != nil {
		logger = logger.With(vals...)
	}

	return logger
}
