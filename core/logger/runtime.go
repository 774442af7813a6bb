package logger

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// updateMeta identifies the update a log line belongs to. It travels in the
// context as one value and is copied on every change.
type updateMeta struct {
	rid      string
	updateID int
	userID   int64
	chatID   int64
	handler  string
	state    string
}

type metaKey struct{}

func metaFrom(ctx context.Context) updateMeta {
	if ctx == nil {
		return updateMeta{}
	}
	m, _ := ctx.Value(metaKey{}).(updateMeta)
	return m
}

func withMeta(ctx context.Context, edit func(*updateMeta)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	m := metaFrom(ctx)
	edit(&m)
	return context.WithValue(ctx, metaKey{}, m)
}

func WithRID(ctx context.Context, rid string) context.Context {
	return withMeta(ctx, func(m *updateMeta) { m.rid = rid })
}

// WithUpdateMeta records the Telegram update, user and chat ids.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	return withMeta(ctx, func(m *updateMeta) {
		m.updateID, m.userID, m.chatID = updateID, userID, chatID
	})
}

// WithHandler names the handler serving the update. Empty names are ignored.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		return orBackground(ctx)
	}
	return withMeta(ctx, func(m *updateMeta) { m.handler = handler })
}

// WithConversationState records the user's conversation step so payment and
// store logs below the flow carry it as conv_state.
func WithConversationState(ctx context.Context, state string) context.Context {
	if state == "" {
		return orBackground(ctx)
	}
	return withMeta(ctx, func(m *updateMeta) { m.state = state })
}

func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func RIDFrom(ctx context.Context) string               { return metaFrom(ctx).rid }
func UpdateIDFrom(ctx context.Context) int             { return metaFrom(ctx).updateID }
func UserIDFrom(ctx context.Context) int64             { return metaFrom(ctx).userID }
func ChatIDFrom(ctx context.Context) int64             { return metaFrom(ctx).chatID }
func HandlerFrom(ctx context.Context) string           { return metaFrom(ctx).handler }
func ConversationStateFrom(ctx context.Context) string { return metaFrom(ctx).state }

// addContextFields copies the update identity into f without overriding
// attrs the caller set. Zero values are left out.
func addContextFields(ctx context.Context, f fields) {
	m := metaFrom(ctx)
	for _, kv := range []struct {
		key string
		val any
		set bool
	}{
		{"rid", m.rid, m.rid != ""},
		{"update_id", m.updateID, m.updateID != 0},
		{"user_id", m.userID, m.userID != 0},
		{"chat_id", m.chatID, m.chatID != 0},
		{"handler", m.handler, m.handler != ""},
		{"conv_state", m.state, m.state != ""},
	} {
		if _, taken := f[kv.key]; kv.set && !taken {
			f[kv.key] = kv.val
		}
	}
}

// Sanitize drops control and format runes except tab and newline.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			return -1
		}
		return r
	}, s)
}

// SanitizeLimit sanitizes s and cuts it to max runes.
func SanitizeLimit(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(Sanitize(s))
	return string(r[:min(len(r), max)])
}

// BuildRID returns "updateID:chatID:userID".
func BuildRID(updateID int, chatID, userID int64) string {
	return fmt.Sprintf("%d:%d:%d", updateID, chatID, userID)
}

// CompactRID rewrites each rid segment in base36 and joins them with dots.
// Anything that is not three integers is returned unchanged.
func CompactRID(rid string) string {
	parts := strings.Split(strings.TrimSpace(rid), ":")
	if len(parts) != 3 {
		return rid
	}
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return rid
		}
		parts[i] = strconv.FormatInt(n, 36)
	}
	return strings.Join(parts, ".")
}
