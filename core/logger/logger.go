// Package logger writes one structured line per event. Every line names a
// component and an event; update metadata carried by the context is added
// to it automatically. All helpers are no-ops until InitLogger runs.
package logger

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/m3rciful/satsbot/core/buildinfo"
	coreconfig "github.com/m3rciful/satsbot/core/config"
)

const defaultDebugSample = "1/50"

var (
	initOnce sync.Once
	base     atomic.Pointer[slog.Logger]
	out      *lineWriter
	levelVar slog.LevelVar

	debugSampler sampler
)

// InitLogger configures the process logger from cfg. Only the first call
// has an effect.
func InitLogger(cfg *coreconfig.Config) error {
	var initErr error
	initOnce.Do(func() {
		var lc coreconfig.LoggingConfig
		if cfg != nil {
			lc = cfg.Logging
		}

		w, err := openLineWriter(lc.Dir, lc.BotFile)
		if err != nil {
			initErr = err
			return
		}
		out = w
		levelVar.Set(parseLevel(lc.Level))
		sample := lc.DebugSample
		if strings.TrimSpace(sample) == "" {
			sample = defaultDebugSample
		}
		debugSampler.set(parseRatio(sample))

		l := slog.New(newHandler(&levelVar, w, parseFormat(lc.Format, lc.Profile)))
		base.Store(l)
		slog.SetDefault(l)

		Info(context.Background(), "app", "startup",
			slog.String("go_version", runtime.Version()),
			slog.String("build_version", buildinfo.Version),
			slog.String("build_commit", buildinfo.Revision()),
			slog.String("build_time", buildinfo.Date),
			slog.String("profile", profileName(lc.Profile)),
		)
	})
	return initErr
}

// Shutdown closes log files opened by InitLogger. Stdout stays usable.
func Shutdown() error {
	if out == nil {
		return nil
	}
	return out.Close()
}

// Debug logs a debug event for component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelDebug, component, event, attrs)
}

// Info logs an info event for component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelInfo, component, event, attrs)
}

// Warn logs a warning event for component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelWarn, component, event, attrs)
}

// Error logs an error event for component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelError, component, event, attrs)
}

// ShouldSampleDebug reports whether a high-volume debug event should be
// written, following logging.debug_sample.
func ShouldSampleDebug() bool {
	return debugSampler.allow()
}

func emit(ctx context.Context, level slog.Level, component, event string, attrs []slog.Attr) {
	l := base.Load()
	if l == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.Enabled(ctx, level) {
		return
	}
	all := make([]slog.Attr, 0, len(attrs)+2)
	all = append(all, slog.String("component", component), slog.String("event", event))
	l.LogAttrs(ctx, level, event, append(all, attrs...)...)
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// parseFormat picks kv for explicit text formats and for debug or dev
// profiles, json otherwise.
func parseFormat(format, profile string) logFormat {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "kv", "text", "pretty":
		return formatKV
	case "json":
		return formatJSON
	}
	switch profileName(profile) {
	case "debug", "dev":
		return formatKV
	}
	return formatJSON
}

func profileName(profile string) string {
	if p := strings.ToLower(strings.TrimSpace(profile)); p != "" {
		return p
	}
	return "prod"
}
