package telegram

import (
	"fmt"
	"net"
	"net/http"
	"time"

	coreconfig "github.com/m3rciful/satsbot/core/config"
	"github.com/m3rciful/satsbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

const defaultLongPollTimeout = 10 * time.Second

func newPoller(cfg *coreconfig.Config) tele.Poller {
	if cfg.Telegram.RunMode == coreconfig.RunModeWebhook {
		return &tele.Webhook{
			Listen:   fmt.Sprintf("%s:%d", cfg.Webhook.Listen, cfg.Webhook.Port),
			Endpoint: &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
		}
	}
	timeout := defaultLongPollTimeout
	if cfg.Telegram.LongPollTimeoutSeconds > 0 {
		timeout = time.Duration(cfg.Telegram.LongPollTimeoutSeconds) * time.Second
	}
	return &tele.LongPoller{Timeout: timeout}
}

// newAPIClient returns the HTTP client for Bot API calls. Requests that
// fail before reaching Telegram are retried a few times.
func newAPIClient() *http.Client {
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: &retryTransport{base: base, retries: 3, backoff: 2 * time.Second},
	}
}

type retryTransport struct {
	base    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	for attempt := 1; err != nil && attempt <= t.retries && sender.Transient(err); attempt++ {
		if req.Body != nil && req.GetBody == nil {
			break
		}
		timer := time.NewTimer(t.backoff * time.Duration(attempt))
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}

		retry := req.Clone(req.Context())
		if req.GetBody != nil {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return nil, bodyErr
			}
			retry.Body = body
		}
		resp, err = t.base.RoundTrip(retry)
	}
	return resp, err
}
