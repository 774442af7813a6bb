// Package flow holds the payment conversation: its states, the events that
// drive it, and the transition table that maps one to the other. It knows
// nothing about Telegram; the adapter translates updates into Events and
// renders the returned Actions.
package flow

import (
	"slices"
	"strings"
)

// State is a conversation step.
type State string

const (
	StateStart               State = "start"
	StateAwaitingAmount      State = "awaiting_amount"
	StateAwaitingCardDetails State = "awaiting_card_details"
	StateCompleted           State = "completed"
)

// Valid reports whether s is one of the defined states.
func (s State) Valid() bool {
	switch s {
	case StateStart, StateAwaitingAmount, StateAwaitingCardDetails, StateCompleted:
		return true
	}
	return false
}

// maxIssuedInvoices bounds how many invoices a conversation remembers.
const maxIssuedInvoices = 10

// IssuedInvoice is an invoice handed out in the current conversation.
type IssuedInvoice struct {
	Hash   string
	Amount int64
}

// Conversation is the per-user session. PendingAmount and PaymentReference
// describe the invoice the user is paying; Invoices keeps every invoice
// issued since the last start, oldest first, so any earlier "paid" button
// still resolves.
type Conversation struct {
	UserID           int64
	State            State
	PendingAmount    *int64
	PaymentReference string
	Invoices         []IssuedInvoice
	CardNumber       string
}

// NewConversation returns a conversation at the start of the flow.
func NewConversation(userID int64) Conversation {
	return Conversation{UserID: userID, State: StateStart}
}

func (c Conversation) equal(o Conversation) bool {
	if c.UserID != o.UserID || c.State != o.State ||
		c.PaymentReference != o.PaymentReference || c.CardNumber != o.CardNumber ||
		!slices.Equal(c.Invoices, o.Invoices) {
		return false
	}
	switch {
	case c.PendingAmount == nil && o.PendingAmount == nil:
		return true
	case c.PendingAmount == nil || o.PendingAmount == nil:
		return false
	default:
		return *c.PendingAmount == *o.PendingAmount
	}
}

// reset drops everything collected so far and returns to the start state.
func (c Conversation) reset() Conversation {
	return NewConversation(c.UserID)
}

// issue records a new invoice as the one being paid.
func (c Conversation) issue(hash string, amount int64) Conversation {
	invoices := append(slices.Clone(c.Invoices), IssuedInvoice{Hash: hash, Amount: amount})
	if len(invoices) > maxIssuedInvoices {
		invoices = invoices[len(invoices)-maxIssuedInvoices:]
	}
	c.Invoices = invoices
	c.PaymentReference = hash
	c.PendingAmount = &amount
	return c
}

// invoiceFor finds the issued invoice a button reference points to. ref may
// be cut short by Telegram's callback data limit, so it matches as a prefix;
// the newest match wins.
func (c Conversation) invoiceFor(ref string) (IssuedInvoice, bool) {
	if ref == "" {
		return IssuedInvoice{}, false
	}
	for i := len(c.Invoices) - 1; i >= 0; i-- {
		if strings.HasPrefix(c.Invoices[i].Hash, ref) {
			return c.Invoices[i], true
		}
	}
	if c.PaymentReference != "" && strings.HasPrefix(c.PaymentReference, ref) {
		inv := IssuedInvoice{Hash: c.PaymentReference}
		if c.PendingAmount != nil {
			inv.Amount = *c.PendingAmount
		}
		return inv, true
	}
	return IssuedInvoice{}, false
}
