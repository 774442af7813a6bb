package flow

import (
	"context"
	"sync"

	"github.com/m3rciful/satsbot/bot/lnbits"
)

type fakeInvoices struct {
	mu    sync.Mutex
	calls []lnbits.InvoiceRequest

	CreateFn func(ctx context.Context, req lnbits.InvoiceRequest) (*lnbits.Invoice, error)
}

func (f *fakeInvoices) CreateInvoice(ctx context.Context, req lnbits.InvoiceRequest) (*lnbits.Invoice, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.CreateFn != nil {
		return f.CreateFn(ctx, req)
	}
	return &lnbits.Invoice{PaymentHash: "h1", PaymentRequest: "req1"}, nil
}

func (f *fakeInvoices) Calls() []lnbits.InvoiceRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]lnbits.InvoiceRequest(nil), f.calls...)
}

type fakePayments struct {
	hashes   []string
	StatusFn func(ctx context.Context, hash string) (*lnbits.Status, error)
}

func (f *fakePayments) PaymentStatus(ctx context.Context, hash string) (*lnbits.Status, error) {
	f.hashes = append(f.hashes, hash)
	if f.StatusFn != nil {
		return f.StatusFn(ctx, hash)
	}
	return &lnbits.Status{Paid: true}, nil
}

func int64p(v int64) *int64 { return &v }
