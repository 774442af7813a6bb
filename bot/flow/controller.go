package flow

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/m3rciful/satsbot/bot/lnbits"
	"github.com/m3rciful/satsbot/core/metrics"
)

// maxCallbackData is Telegram's limit on inline button data.
const maxCallbackData = 64

// InvoiceCreator creates lightning invoices.
type InvoiceCreator interface {
	CreateInvoice(ctx context.Context, req lnbits.InvoiceRequest) (*lnbits.Invoice, error)
}

// PaymentChecker looks up whether an invoice was paid.
type PaymentChecker interface {
	PaymentStatus(ctx context.Context, paymentHash string) (*lnbits.Status, error)
}

// Options configure a Controller.
type Options struct {
	Invoices InvoiceCreator
	// Payments is required when VerifyPaid is set.
	Payments PaymentChecker
	// VerifyPaid makes the "paid" button check the invoice before moving on.
	VerifyPaid bool
	Texts      Texts
}

// Result is the outcome of one event. Conversation carries the next state.
// Err, when set, has already been turned into a user message in Actions.
type Result struct {
	Conversation Conversation
	Actions      []Action
	Err          error
	// Transition names the table row that matched; empty when the event was ignored.
	Transition string
}

type handlerFunc func(ctx context.Context, conv Conversation, ev Event) (Conversation, []Action, error)

type transition struct {
	name string
	// from is empty for rows that apply in every state.
	from State
	on   EventKind
	when func(conv Conversation, ev Event) bool
	do   handlerFunc
}

func (t transition) matches(conv Conversation, ev Event) bool {
	if t.from != "" && t.from != conv.State {
		return false
	}
	if t.on != ev.Kind {
		return false
	}
	return t.when == nil || t.when(conv, ev)
}

// Controller runs the payment conversation.
type Controller struct {
	invoices   InvoiceCreator
	payments   PaymentChecker
	verifyPaid bool
	texts      Texts

	table     []transition
	fallbacks []transition
}

// NewController validates opts and builds the transition table.
func NewController(opts Options) (*Controller, error) {
	if opts.Invoices == nil {
		return nil, errors.New("flow: invoice creator is required")
	}
	if opts.VerifyPaid && opts.Payments == nil {
		return nil, errors.New("flow: payment checker is required when verify_paid is enabled")
	}
	c := &Controller{
		invoices:   opts.Invoices,
		payments:   opts.Payments,
		verifyPaid: opts.VerifyPaid,
		texts:      opts.Texts.WithDefaults(),
	}

	// First matching row wins; fallbacks are tried only when no row matched.
	c.table = []transition{
		{name: "greet", from: StateStart, on: EventStart, do: c.greet},
		{name: "choose_lightning", from: StateStart, on: EventRail, when: railIs(RailLightning), do: c.askAmount},
		{name: "create_invoice", from: StateAwaitingAmount, on: EventText, when: isAmount, do: c.createInvoice},
		{name: "confirm_payment", from: StateAwaitingAmount, on: EventConfirm, when: isConfirmation, do: c.confirmPayment},
		{name: "accept_card", from: StateAwaitingCardDetails, on: EventText, when: isCardNumber, do: c.acceptCard},
		{name: "reject_card", from: StateAwaitingCardDetails, on: EventText, do: c.rejectCard},
	}
	c.fallbacks = []transition{
		{name: "restart", on: EventStart, do: c.greet},
	}
	return c, nil
}

// Texts returns the copy in use, defaults applied.
func (c *Controller) Texts() Texts { return c.texts }

// Handle applies ev to conv. Events with no matching row leave conv unchanged
// and produce no actions. Handle never panics on handler errors; they are
// reported in Result.Err with conv unchanged.
func (c *Controller) Handle(ctx context.Context, conv Conversation, ev Event) Result {
	if !conv.State.Valid() {
		conv.State = StateStart
	}
	t, ok := c.lookup(conv, ev)
	if !ok {
		return Result{Conversation: conv}
	}
	next, actions, err := t.do(ctx, conv, ev)
	if err != nil {
		return Result{Conversation: conv, Actions: actions, Err: err, Transition: t.name}
	}
	return Result{Conversation: next, Actions: actions, Transition: t.name}
}

func (c *Controller) lookup(conv Conversation, ev Event) (transition, bool) {
	for _, t := range c.table {
		if t.matches(conv, ev) {
			return t, true
		}
	}
	for _, t := range c.fallbacks {
		if t.matches(conv, ev) {
			return t, true
		}
	}
	return transition{}, false
}

func railIs(rail string) func(Conversation, Event) bool {
	return func(_ Conversation, ev Event) bool { return ev.Payload == rail }
}

func isAmount(_ Conversation, ev Event) bool {
	_, ok := parseAmount(ev.Payload)
	return ok
}

func isConfirmation(_ Conversation, ev Event) bool {
	return strings.HasPrefix(ev.Payload, confirmPrefix)
}

func isCardNumber(_ Conversation, ev Event) bool {
	_, ok := parseCardNumber(ev.Payload)
	return ok
}

func (c *Controller) greet(_ context.Context, conv Conversation, _ Event) (Conversation, []Action, error) {
	next := conv.reset()
	return next, []Action{message(c.texts.Greeting,
		[]Button{{Label: c.texts.OnchainButton, Data: RailOnchain}},
		[]Button{{Label: c.texts.LightningButton, Data: RailLightning}},
	)}, nil
}

func (c *Controller) askAmount(_ context.Context, conv Conversation, _ Event) (Conversation, []Action, error) {
	conv.State = StateAwaitingAmount
	return conv, []Action{edit(c.texts.AmountPrompt)}, nil
}

func (c *Controller) createInvoice(ctx context.Context, conv Conversation, ev Event) (Conversation, []Action, error) {
	amount, _ := parseAmount(ev.Payload)
	inv, err := c.invoices.CreateInvoice(ctx, lnbits.InvoiceRequest{
		Amount: amount,
		Memo:   strconv.FormatInt(conv.UserID, 10),
	})
	if err != nil {
		return conv, []Action{message(c.texts.InvoiceFailed)}, err
	}

	conv = conv.issue(inv.PaymentHash, amount)
	return conv, []Action{message(inv.PaymentRequest, []Button{
		{Label: c.texts.PaidButton, Data: confirmData(inv.PaymentHash)},
	})}, nil
}

// confirmData tags hash for the "paid" button, cut to Telegram's limit.
// The full hash stays in the conversation.
func confirmData(hash string) string {
	data := confirmPrefix + hash
	if len(data) > maxCallbackData {
		data = data[:maxCallbackData]
	}
	return data
}

func (c *Controller) confirmPayment(ctx context.Context, conv Conversation, ev Event) (Conversation, []Action, error) {
	ref := strings.TrimPrefix(ev.Payload, confirmPrefix)
	inv, known := conv.invoiceFor(ref)
	if !known {
		inv = IssuedInvoice{Hash: ref}
	}

	if c.verifyPaid {
		st, err := c.payments.PaymentStatus(ctx, inv.Hash)
		if err != nil {
			metrics.IncConfirmation("failed")
			return conv, []Action{message(c.texts.PaymentCheckFailed)}, err
		}
		if !st.Paid {
			metrics.IncConfirmation("unpaid")
			return conv, []Action{message(c.texts.PaymentNotReceived)}, nil
		}
	}
	metrics.IncConfirmation("accepted")
	if known {
		amount := inv.Amount
		conv.PaymentReference = inv.Hash
		conv.PendingAmount = &amount
	}
	conv.State = StateAwaitingCardDetails
	return conv, []Action{edit(c.texts.CardPrompt)}, nil
}

func (c *Controller) acceptCard(_ context.Context, conv Conversation, ev Event) (Conversation, []Action, error) {
	card, _ := parseCardNumber(ev.Payload)
	conv.CardNumber = MaskCard(card)
	conv.State = StateCompleted

	amount := ""
	if conv.PendingAmount != nil {
		amount = strconv.FormatInt(*conv.PendingAmount, 10)
	}
	text := strings.NewReplacer("{card}", conv.CardNumber, "{amount}", amount).Replace(c.texts.CardAccepted)
	return conv, []Action{message(text)}, nil
}

func (c *Controller) rejectCard(_ context.Context, conv Conversation, _ Event) (Conversation, []Action, error) {
	return conv, []Action{message(c.texts.CardInvalid)}, nil
}
