package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ParseCallbackData splits callback data into a key and payload.
// Telebot encodes named buttons as \f<unique>|<payload>; buttons built without
// a unique name carry raw data, which is returned whole as the key.
func ParseCallbackData(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	raw := cb.Data
	if !strings.HasPrefix(raw, "\f") {
		return strings.TrimSpace(raw), ""
	}
	parts := strings.SplitN(strings.TrimPrefix(raw, "\f"), "|", 2)
	key := strings.TrimSpace(parts[0])
	payload := ""
	if len(parts) == 2 {
		payload = parts[1]
	}
	return key, payload
}

// CallbackKey returns the key of the callback carried by c.
func CallbackKey(c tele.Context) string {
	k, _ := ParseCallbackData(c.Callback())
	return k
}
