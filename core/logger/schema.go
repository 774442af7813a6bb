package logger

import "log/slog"

// keyOrder fixes where well-known keys appear in a line.
var keyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"update_id",
	"user_id",
	"chat_id",
	"handler",
	"conv_state",
	"cb_key",
	"duration_ms",
	"state",
	"next_state",
	"event_kind",
	"amount",
	"payment_hash",
	"paid",
	"backend",
	"messages",
	"kb",
	"mode",
	"listen",
	"http_code",
	"host",
	"db",
	"err",
	"err_code",
	"attempts",
}

var keyRanks = func() map[string]int {
	m := make(map[string]int, len(keyOrder))
	for i, k := range keyOrder {
		m[k] = i
	}
	return m
}()

func keyRank(key string) int {
	if r, ok := keyRanks[key]; ok {
		return r
	}
	return len(keyOrder)
}

func levelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARN"
	case l >= slog.LevelInfo:
		return "INFO"
	}
	return "DEBUG"
}
