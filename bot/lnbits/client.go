// Package lnbits is a small client for the LNbits wallet API: invoice creation
// and payment status lookup.
package lnbits

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m3rciful/satsbot/core/logger"
	"github.com/m3rciful/satsbot/core/metrics"
)

// DefaultTimeout bounds a single API call when Config.Timeout is zero.
const DefaultTimeout = 10 * time.Second

const maxErrorBody = 4 << 10

// ErrMalformedResponse is returned when a 2xx response cannot be decoded or
// lacks required fields.
var ErrMalformedResponse = &malformedError{}

type malformedError struct{}

func (*malformedError) Error() string { return "lnbits: malformed response" }
func (*malformedError) Code() string  { return "LNBITS_MALFORMED" }

// APIError describes a non-2xx reply from LNbits.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("lnbits: status %d", e.StatusCode)
	}
	return fmt.Sprintf("lnbits: status %d: %s", e.StatusCode, e.Detail)
}

// Code classifies the error for handler summaries.
func (e *APIError) Code() string {
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return "LNBITS_AUTH"
	case e.StatusCode >= 500:
		return "LNBITS_5XX"
	default:
		return "LNBITS_4XX"
	}
}

// Config holds client settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// HTTPClient overrides the default client; its timeout is left untouched.
	HTTPClient *http.Client
}

// InvoiceRequest is the body of an incoming-payment request.
type InvoiceRequest struct {
	Amount int64
	Memo   string
}

// Invoice is a created lightning invoice.
type Invoice struct {
	PaymentHash    string `json:"payment_hash"`
	PaymentRequest string `json:"payment_request"`
}

// Status reports whether an invoice was paid.
type Status struct {
	Paid bool `json:"paid"`
}

// Client talks to a single LNbits wallet. It never retries.
type Client struct {
	baseURL *url.URL
	apiKey  string
	http    *http.Client
}

// New validates cfg and builds a Client.
func New(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("lnbits: base url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("lnbits: invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("lnbits: unsupported base url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("lnbits: api key is required")
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: u, apiKey: cfg.APIKey, http: hc}, nil
}

func (c *Client) endpoint(parts ...string) string {
	return c.baseURL.JoinPath(parts...).String()
}

// CreateInvoice asks LNbits for an incoming invoice of req.Amount satoshis.
func (c *Client) CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error) {
	body, err := json.Marshal(struct {
		Out    bool   `json:"out"`
		Amount int64  `json:"amount"`
		Memo   string `json:"memo"`
	}{Out: false, Amount: req.Amount, Memo: req.Memo})
	if err != nil {
		return nil, fmt.Errorf("lnbits: encode invoice request: %w", err)
	}

	start := time.Now()
	var inv Invoice
	err = c.do(ctx, http.MethodPost, c.endpoint("api", "v1", "payments"), body, &inv)
	if err == nil && (inv.PaymentHash == "" || inv.PaymentRequest == "") {
		err = ErrMalformedResponse
	}
	took := time.Since(start)
	metrics.ObserveInvoice(err == nil, took)

	if err != nil {
		logger.Warn(ctx, "payments", "invoice.create",
			slog.String("status", "fail"),
			slog.Int64("amount", req.Amount),
			slog.Duration("duration", logger.RoundMS(took)),
			slog.String("err", err.Error()),
		)
		return nil, err
	}
	logger.Info(ctx, "payments", "invoice.create",
		slog.String("status", "ok"),
		slog.Int64("amount", req.Amount),
		slog.String("payment_hash", inv.PaymentHash),
		slog.Duration("duration", logger.RoundMS(took)),
	)
	return &inv, nil
}

// PaymentStatus reports whether the invoice with paymentHash has been paid.
func (c *Client) PaymentStatus(ctx context.Context, paymentHash string) (*Status, error) {
	if strings.TrimSpace(paymentHash) == "" {
		return nil, errors.New("lnbits: empty payment hash")
	}
	var raw struct {
		Paid *bool `json:"paid"`
	}
	start := time.Now()
	err := c.do(ctx, http.MethodGet, c.endpoint("api", "v1", "payments", paymentHash), nil, &raw)
	if err == nil && raw.Paid == nil {
		err = ErrMalformedResponse
	}
	if err != nil {
		logger.Warn(ctx, "payments", "payment.status",
			slog.String("status", "fail"),
			slog.String("payment_hash", paymentHash),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
			slog.String("err", err.Error()),
		)
		return nil, err
	}
	logger.Debug(ctx, "payments", "payment.status",
		slog.String("status", "ok"),
		slog.String("payment_hash", paymentHash),
		slog.Bool("paid", *raw.Paid),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return &Status{Paid: *raw.Paid}, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, rdr)
	if err != nil {
		return fmt.Errorf("lnbits: build request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("lnbits: %s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{StatusCode: resp.StatusCode, Detail: errorDetail(data)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// errorDetail extracts LNbits' {"detail": ...} message, falling back to the raw body.
func errorDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 {
		var s string
		if err := json.Unmarshal(payload.Detail, &s); err == nil {
			return s
		}
		return logger.SanitizeLimit(string(payload.Detail), 256)
	}
	return logger.SanitizeLimit(strings.TrimSpace(string(body)), 256)
}
