package router

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/satsbot/core/logger"
	"github.com/m3rciful/satsbot/core/metrics"
	tghelpers "github.com/m3rciful/satsbot/core/telegram/helpers"
	"github.com/m3rciful/satsbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Handler statuses in summaries and metrics.
const (
	statusOK   = "ok"
	statusFail = "fail"
	statusSkip = "skip"
)

// run executes h under name and writes one summary line for the update.
func run(c tele.Context, name string, h tele.HandlerFunc, extras ...slog.Attr) error {
	start := time.Now()
	ctx := tghelpers.WithHandler(c, name)
	err := h(c)
	status := statusOK
	if err != nil {
		status = statusFail
	}
	summarize(ctx, c, name, status, time.Since(start), err, extras...)
	return err
}

func summarize(ctx context.Context, c tele.Context, name, status string, took time.Duration, err error, extras ...slog.Attr) {
	metrics.ObserveHandler(name, status, took)
	msgs, kb := middleware.GetCounters(c)
	attrs := append([]slog.Attr{
		slog.String("status", status),
		slog.String("handler", name),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", logger.RoundMS(took)),
	}, extras...)
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", deriveErrorCode(err)),
		)
	}
	logger.Info(ctx, "tg", "handler.handled", attrs...)
}

func normalizeHandlerName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// deriveErrorCode prefers a Code() method anywhere in the chain and falls
// back to the error's type name.
func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return "UNKNOWN_ERROR"
	}
	return strings.ToUpper(t.Name())
}
