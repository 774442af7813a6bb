package callbacks

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestParseCallbackData(t *testing.T) {
	cases := []struct {
		name         string
		cb           *tele.Callback
		key, payload string
	}{
		{"nil", nil, "", ""},
		{"raw", &tele.Callback{Data: "lightning1"}, "lightning1", ""},
		{"raw with pipe", &tele.Callback{Data: "lnabc|x"}, "lnabc|x", ""},
		{"unique set", &tele.Callback{Unique: "reset", Data: "42"}, "reset", "42"},
		{"encoded", &tele.Callback{Data: "\freset|42"}, "reset", "42"},
		{"encoded no payload", &tele.Callback{Data: "\freset"}, "reset", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key, payload := ParseCallbackData(tc.cb)
			if key != tc.key || payload != tc.payload {
				t.Fatalf("got (%q, %q), want (%q, %q)", key, payload, tc.key, tc.payload)
			}
		})
	}
}
