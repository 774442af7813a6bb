package logger

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"
)

type logFormat int

const (
	formatJSON logFormat = iota
	formatKV
)

const timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"

// boundAttr is an attribute added through WithAttrs together with the group
// path that was open at the time.
type boundAttr struct {
	prefix string
	attr   slog.Attr
}

// handler renders records as single lines with a stable key order.
type handler struct {
	level  slog.Leveler
	w      io.Writer
	format logFormat
	bound  []boundAttr
	prefix string
}

func newHandler(level slog.Leveler, w io.Writer, format logFormat) *handler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &handler{level: level, w: w, format: format}
}

func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *handler) Handle(ctx context.Context, r slog.Record) error {
	f := fields{
		"ts":    r.Time.UTC().Format(timeFormatMillis),
		"level": levelName(r.Level),
	}
	for _, b := range h.bound {
		f.add(b.prefix, b.attr)
	}
	r.Attrs(func(a slog.Attr) bool {
		f.add(h.prefix, a)
		return true
	})
	addContextFields(ctx, f)

	if rid, ok := f["rid"].(string); ok {
		f["rid"] = CompactRID(rid)
	}
	if ev, _ := f["event"].(string); ev == "" {
		f["event"] = cmp.Or(r.Message, "unknown")
	}
	if comp, _ := f["component"].(string); comp == "" {
		f["component"] = "app"
	}
	if st, ok := f["status"].(string); ok {
		f["status"] = strings.ToLower(st)
	}

	_, err := h.w.Write(f.encode(h.format))
	return err
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.bound = slices.Clip(h.bound)
	for _, a := range attrs {
		c.bound = append(c.bound, boundAttr{prefix: h.prefix, attr: a})
	}
	return &c
}

func (h *handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = joinKey(h.prefix, name)
	return &c
}

type fields map[string]any

// add flattens groups into dotted keys and drops empty values.
func (f fields) add(prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	key := joinKey(prefix, a.Key)
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			f.add(key, child)
		}
		return
	}
	if key == "" {
		return
	}
	if k, val, ok := normalizeValue(key, v); ok {
		f[k] = val
	}
}

func (f fields) encode(format logFormat) []byte {
	var b bytes.Buffer
	if format == formatJSON {
		b.WriteByte('{')
	}
	for i, k := range f.orderedKeys() {
		if format == formatJSON {
			if i > 0 {
				b.WriteByte(',')
			}
			writeJSON(&b, k)
			b.WriteByte(':')
			writeJSON(&b, f[k])
			continue
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(kvValue(f[k]))
	}
	if format == formatJSON {
		b.WriteByte('}')
	}
	b.WriteByte('\n')
	return b.Bytes()
}

// orderedKeys lists known keys in schema order followed by the rest sorted.
func (f fields) orderedKeys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		if c := cmp.Compare(keyRank(a), keyRank(b)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return keys
}

func normalizeValue(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		s := strings.TrimSpace(v.String())
		return key, s, s != ""
	case slog.KindDuration:
		return durationKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	case slog.KindAny:
		switch x := v.Any().(type) {
		case nil:
			return key, nil, false
		case error:
			return key, x.Error(), true
		case time.Duration:
			return durationKey(key), RoundMS(x).Milliseconds(), true
		case fmt.Stringer:
			s := x.String()
			return key, s, s != ""
		default:
			return key, fmt.Sprint(x), true
		}
	}
	return key, v.Any(), true
}

// durationKey makes every duration key end in _ms.
func durationKey(key string) string {
	if strings.HasSuffix(key, "_ms") {
		return key
	}
	return key + "_ms"
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

func writeJSON(b *bytes.Buffer, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		data, _ = json.Marshal(fmt.Sprint(v))
	}
	b.Write(data)
}

func kvValue(v any) string {
	s := fmt.Sprint(v)
	if strings.ContainsFunc(s, needsQuote) {
		return strconv.Quote(s)
	}
	return s
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}
