package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/m3rciful/satsbot/bot/config"
	"github.com/m3rciful/satsbot/bot/flow"
	"github.com/m3rciful/satsbot/bot/lnbits"
	coretelegram "github.com/m3rciful/satsbot/core/telegram"
	"github.com/m3rciful/satsbot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

type sentMsg struct {
	text   string
	markup *tele.ReplyMarkup
	edit   bool
}

// fakeContext implements the parts of tele.Context the adapter touches.
type fakeContext struct {
	tele.Context

	user *tele.User
	text string
	args []string
	cb   *tele.Callback
	vals map[string]any
	sent []sentMsg
}

func newTextContext(userID int64, text string) *fakeContext {
	return &fakeContext{user: &tele.User{ID: userID}, text: text, args: strings.Fields(text)}
}

func newCallbackContext(userID int64, data string) *fakeContext {
	return &fakeContext{user: &tele.User{ID: userID}, cb: &tele.Callback{Data: data}}
}

func (f *fakeContext) Sender() *tele.User       { return f.user }
func (f *fakeContext) Chat() *tele.Chat         { return &tele.Chat{ID: f.user.ID} }
func (f *fakeContext) Update() tele.Update      { return tele.Update{ID: 1} }
func (f *fakeContext) Text() string             { return f.text }
func (f *fakeContext) Args() []string           { return f.args }
func (f *fakeContext) Callback() *tele.Callback { return f.cb }

func (f *fakeContext) Get(key string) any {
	return f.vals[key]
}

func (f *fakeContext) Set(key string, val any) {
	if f.vals == nil {
		f.vals = make(map[string]any)
	}
	f.vals[key] = val
}

func (f *fakeContext) Send(what any, opts ...any) error {
	f.record(what, false, opts)
	return nil
}

func (f *fakeContext) EditOrSend(what any, opts ...any) error {
	f.record(what, true, opts)
	return nil
}

func (f *fakeContext) record(what any, edit bool, opts []any) {
	msg := sentMsg{edit: edit}
	msg.text, _ = what.(string)
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok {
			msg.markup = so.ReplyMarkup
		}
	}
	f.sent = append(f.sent, msg)
}

func (f *fakeContext) last(t *testing.T) sentMsg {
	t.Helper()
	if len(f.sent) != 1 {
		t.Fatalf("expected exactly one message, got %d", len(f.sent))
	}
	return f.sent[0]
}

type stubInvoices struct {
	err error
}

func (s stubInvoices) CreateInvoice(_ context.Context, req lnbits.InvoiceRequest) (*lnbits.Invoice, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &lnbits.Invoice{PaymentHash: "hash1", PaymentRequest: "lnbc1000n1test"}, nil
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, int64) (*state.Session, error) {
	return nil, errors.New("store down")
}
func (brokenStore) Save(context.Context, *state.Session) error { return errors.New("store down") }
func (brokenStore) Clear(context.Context, int64) error         { return errors.New("store down") }

func newTestApp(t *testing.T, inv flow.InvoiceCreator, store state.Store) *App {
	t.Helper()
	ctrl, err := flow.NewController(flow.Options{Invoices: inv, Texts: flow.DefaultTexts()})
	if err != nil {
		t.Fatalf("controller: %v", err)
	}
	if store == nil {
		store = state.NewMemoryStore(time.Hour)
	}
	svc, err := flow.NewService(ctrl, store, nil, time.Second)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	app, err := New(&config.Config{}, svc, nil)
	if err != nil {
		t.Fatalf("app: %v", err)
	}
	return app
}

func TestNewRequiresService(t *testing.T) {
	if _, err := New(&config.Config{}, nil, nil); err == nil {
		t.Fatalf("expected error for nil service")
	}
	if _, err := New(nil, nil, nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestBuildMarkup(t *testing.T) {
	if m := buildMarkup(nil); m != nil {
		t.Fatalf("expected nil markup without buttons")
	}
	m := buildMarkup([][]flow.Button{
		{{Label: "a", Data: "onchain"}},
		{{Label: "b", Data: "lightning1"}, {Label: "c", Data: "x"}},
	})
	if len(m.InlineKeyboard) != 2 {
		t.Fatalf("rows = %d", len(m.InlineKeyboard))
	}
	if got := m.InlineKeyboard[1][0].Data; got != "lightning1" {
		t.Fatalf("data = %q", got)
	}
	if got := m.InlineKeyboard[1][1].Text; got != "c" {
		t.Fatalf("text = %q", got)
	}
}

func TestStartSendsGreetingWithRails(t *testing.T) {
	app := newTestApp(t, stubInvoices{}, nil)
	c := newTextContext(7, "/start")
	if err := app.handleStart(c); err != nil {
		t.Fatalf("start: %v", err)
	}
	msg := c.last(t)
	texts := flow.DefaultTexts()
	if msg.text != texts.Greeting || msg.edit {
		t.Fatalf("unexpected greeting %+v", msg)
	}
	if msg.markup == nil || len(msg.markup.InlineKeyboard) != 2 {
		t.Fatalf("expected two button rows, got %+v", msg.markup)
	}
	if d := msg.markup.InlineKeyboard[0][0].Data; d != flow.RailOnchain {
		t.Fatalf("first rail = %q", d)
	}
	if d := msg.markup.InlineKeyboard[1][0].Data; d != flow.RailLightning {
		t.Fatalf("second rail = %q", d)
	}
	if !app.InProgress(7) {
		t.Fatalf("expected conversation in progress after /start")
	}
}

func TestLightningPurchaseEndToEnd(t *testing.T) {
	app := newTestApp(t, stubInvoices{}, nil)
	texts := flow.DefaultTexts()

	if err := app.handleStart(newTextContext(9, "/start")); err != nil {
		t.Fatalf("start: %v", err)
	}

	c := newCallbackContext(9, flow.RailLightning)
	if err := app.handleCallback(c); err != nil {
		t.Fatalf("rail: %v", err)
	}
	if msg := c.last(t); !msg.edit || msg.text != texts.AmountPrompt {
		t.Fatalf("expected edited amount prompt, got %+v", msg)
	}

	c = newTextContext(9, "1000")
	if err := app.ManagerHandler(c); err != nil {
		t.Fatalf("amount: %v", err)
	}
	msg := c.last(t)
	if msg.text != "lnbc1000n1test" {
		t.Fatalf("expected payment request, got %q", msg.text)
	}
	if msg.markup == nil || msg.markup.InlineKeyboard[0][0].Data != "lnhash1" {
		t.Fatalf("expected paid button, got %+v", msg.markup)
	}

	c = newCallbackContext(9, "lnhash1")
	if err := app.handleCallback(c); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if msg := c.last(t); !msg.edit || msg.text != texts.CardPrompt {
		t.Fatalf("expected card prompt, got %+v", msg)
	}

	c = newTextContext(9, "4111 1111 1111 1111")
	if err := app.ManagerHandler(c); err != nil {
		t.Fatalf("card: %v", err)
	}
	msg = c.last(t)
	if msg.text == texts.CardInvalid || !strings.Contains(msg.text, "411111******1111") {
		t.Fatalf("expected accepted card, got %q", msg.text)
	}
}

func TestCallbackWithoutConversationIsIgnored(t *testing.T) {
	app := newTestApp(t, stubInvoices{}, nil)
	c := newCallbackContext(11, flow.RailLightning)
	if err := app.handleCallback(c); err != nil {
		t.Fatalf("callback: %v", err)
	}
	if len(c.sent) != 0 {
		t.Fatalf("expected no replies, got %+v", c.sent)
	}
	if app.InProgress(11) {
		t.Fatalf("callback must not open a conversation")
	}
}

func TestInvoiceFailureRepliesAndReturnsError(t *testing.T) {
	apiErr := &lnbits.APIError{StatusCode: 500, Detail: "boom"}
	app := newTestApp(t, stubInvoices{err: apiErr}, nil)
	_ = app.handleStart(newTextContext(5, "/start"))
	_ = app.handleCallback(newCallbackContext(5, flow.RailLightning))

	c := newTextContext(5, "250")
	err := app.ManagerHandler(c)
	if !errors.Is(err, apiErr) {
		t.Fatalf("expected api error, got %v", err)
	}
	if msg := c.last(t); msg.text != flow.DefaultTexts().InvoiceFailed {
		t.Fatalf("expected invoice failure text, got %q", msg.text)
	}
}

func TestStoreFailureSendsGenericError(t *testing.T) {
	app := newTestApp(t, stubInvoices{}, brokenStore{})
	c := newTextContext(3, "/start")
	if err := app.handleStart(c); err == nil {
		t.Fatalf("expected store error")
	}
	if msg := c.last(t); msg.text != flow.DefaultTexts().GenericError {
		t.Fatalf("expected generic error, got %q", msg.text)
	}
	if !app.InProgress(3) {
		t.Fatalf("store errors should route text to the flow")
	}
}

func TestResetClearsConversation(t *testing.T) {
	app := newTestApp(t, stubInvoices{}, nil)
	_ = app.handleStart(newTextContext(21, "/start"))

	c := newTextContext(1, "21")
	if err := app.handleReset(c); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if !strings.Contains(c.last(t).text, "21") {
		t.Fatalf("unexpected reply %q", c.sent[0].text)
	}
	if app.InProgress(21) {
		t.Fatalf("conversation should be gone")
	}

	c = newTextContext(1, "abc")
	if err := app.handleReset(c); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if !strings.HasPrefix(c.last(t).text, "invalid user id") {
		t.Fatalf("unexpected reply %q", c.sent[0].text)
	}
}

func TestSessionBackendDefaultsToMemory(t *testing.T) {
	cfg := &config.Config{}
	store, locker, err := sessionBackend(cfg, nil)
	if err != nil || store == nil || locker == nil {
		t.Fatalf("memory backend: %v", err)
	}

	cfg.Session.Backend = config.BackendRedis
	if _, _, err := sessionBackend(cfg, nil); err == nil {
		t.Fatalf("expected error without redis client")
	}
	cfg.Session.Backend = config.BackendPostgres
	if _, _, err := sessionBackend(cfg, nil); err == nil {
		t.Fatalf("expected error without database")
	}
}

func TestRegistryRoutesRailsAndPaidButtons(t *testing.T) {
	app := newTestApp(t, stubInvoices{}, nil)
	reg := coretelegram.NewRegistry()
	if err := app.registerCallbacks(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	if got := reg.ListCallbacks(); len(got) != 2 || got[0] != flow.RailLightning || got[1] != flow.RailOnchain {
		t.Fatalf("callbacks = %v", got)
	}
	texts := flow.DefaultTexts()

	_ = app.handleStart(newTextContext(13, "/start"))

	onchain, ok := reg.GetCallback(flow.RailOnchain)
	if !ok {
		t.Fatal("onchain rail not registered")
	}
	c := newCallbackContext(13, flow.RailOnchain)
	if err := onchain(c); err != nil {
		t.Fatalf("onchain: %v", err)
	}
	if len(c.sent) != 0 {
		t.Fatalf("onchain rail is not offered yet, got %+v", c.sent)
	}

	lightning, _ := reg.GetCallback(flow.RailLightning)
	c = newCallbackContext(13, flow.RailLightning)
	if err := lightning(c); err != nil {
		t.Fatalf("lightning: %v", err)
	}
	if msg := c.last(t); msg.text != texts.AmountPrompt {
		t.Fatalf("expected amount prompt, got %q", msg.text)
	}

	if err := app.ManagerHandler(newTextContext(13, "1000")); err != nil {
		t.Fatalf("amount: %v", err)
	}
	if _, ok := reg.GetCallback("lnhash1"); ok {
		t.Fatal("paid buttons must not be registered")
	}
	c = newCallbackContext(13, "lnhash1")
	if err := reg.CallbackNotFound()(c); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if msg := c.last(t); msg.text != texts.CardPrompt {
		t.Fatalf("expected card prompt, got %q", msg.text)
	}

	if err := app.registerCallbacks(reg); err == nil {
		t.Fatal("registering the rails twice should fail")
	}
}
