package telegram

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	coreconfig "github.com/m3rciful/satsbot/core/config"

	tele "gopkg.in/telebot.v4"
)

type scriptedTransport struct {
	errs  []error
	calls int
	body  []string
}

func (s *scriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s.calls++
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		s.body = append(s.body, string(b))
	}
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
}

func TestRetryTransportReplaysDialFailures(t *testing.T) {
	dial := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	base := &scriptedTransport{errs: []error{dial, dial}}
	rt := &retryTransport{base: base, retries: 3, backoff: time.Millisecond}

	req, _ := http.NewRequest(http.MethodPost, "https://api.telegram.org/botX/sendMessage", strings.NewReader("text=hi"))
	resp, err := rt.RoundTrip(req)
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	resp.Body.Close()
	if base.calls != 3 {
		t.Fatalf("calls = %d", base.calls)
	}
	for _, b := range base.body {
		if b != "text=hi" {
			t.Fatalf("replayed body = %q", b)
		}
	}
}

func TestRetryTransportKeepsPermanentErrors(t *testing.T) {
	base := &scriptedTransport{errs: []error{errors.New("x509: certificate signed by unknown authority")}}
	rt := &retryTransport{base: base, retries: 3, backoff: time.Millisecond}
	req, _ := http.NewRequest(http.MethodGet, "https://api.telegram.org/botX/getMe", nil)
	if _, err := rt.RoundTrip(req); err == nil {
		t.Fatal("expected error")
	}
	if base.calls != 1 {
		t.Fatalf("calls = %d", base.calls)
	}
}

func TestNewPollerFollowsRunMode(t *testing.T) {
	cfg := &coreconfig.Config{}
	cfg.Telegram.RunMode = coreconfig.RunModeLongpoll
	lp, ok := newPoller(cfg).(*tele.LongPoller)
	if !ok || lp.Timeout != defaultLongPollTimeout {
		t.Fatalf("longpoll poller = %#v", lp)
	}

	cfg.Telegram.RunMode = coreconfig.RunModeWebhook
	cfg.Webhook = coreconfig.WebhookConfig{URL: "https://bot.example/hook", Listen: "0.0.0.0", Port: 8443}
	wh, ok := newPoller(cfg).(*tele.Webhook)
	if !ok || wh.Listen != "0.0.0.0:8443" || wh.Endpoint.PublicURL != "https://bot.example/hook" {
		t.Fatalf("webhook poller = %#v", wh)
	}
}
