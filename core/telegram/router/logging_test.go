package router

import (
	"errors"
	"fmt"
	"testing"
)

type codedErr struct{ code string }

func (e codedErr) Error() string { return "coded" }
func (e codedErr) Code() string  { return e.code }

func TestNormalizeHandlerName(t *testing.T) {
	cases := map[string]string{
		"":           "unknown",
		"  ":         "unknown",
		"/start":     "start",
		"/Reset All": "reset_all",
		"flow":       "flow",
	}
	for in, want := range cases {
		if got := normalizeHandlerName(in); got != want {
			t.Errorf("normalizeHandlerName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDeriveErrorCode(t *testing.T) {
	if got := deriveErrorCode(nil); got != "" {
		t.Fatalf("nil error code = %q", got)
	}
	if got := deriveErrorCode(codedErr{code: "lnbits 5xx"}); got != "LNBITS_5XX" {
		t.Fatalf("direct code = %q", got)
	}
	wrapped := fmt.Errorf("create invoice: %w", codedErr{code: "LNBITS_AUTH"})
	if got := deriveErrorCode(wrapped); got != "LNBITS_AUTH" {
		t.Fatalf("wrapped code = %q", got)
	}
	if got := deriveErrorCode(codedErr{code: " "}); got != "CODEDERR" {
		t.Fatalf("blank code should fall back to type name, got %q", got)
	}
	if got := deriveErrorCode(errors.New("plain")); got != "ERRORSTRING" {
		t.Fatalf("plain error code = %q", got)
	}
}
