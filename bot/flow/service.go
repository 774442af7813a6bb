package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/satsbot/core/logger"
	"github.com/m3rciful/satsbot/core/metrics"
	"github.com/m3rciful/satsbot/core/telegram/state"
)

// Session data keys.
const (
	keyPendingAmount    = "pending_amount"
	keyPaymentReference = "payment_reference"
	keyCardNumber       = "card_number"
	keyInvoices         = "invoices"
)

// DefaultLockTimeout bounds how long Dispatch waits for the user's lock.
const DefaultLockTimeout = 15 * time.Second

// Service binds the Controller to a conversation store and a per-user lock,
// so events for one user are handled one at a time while different users
// proceed independently.
type Service struct {
	ctrl        *Controller
	store       state.Store
	locker      state.Locker
	lockTimeout time.Duration
}

// NewService wires ctrl to store and locker. A nil locker falls back to a
// process-local one.
func NewService(ctrl *Controller, store state.Store, locker state.Locker, lockTimeout time.Duration) (*Service, error) {
	if ctrl == nil {
		return nil, errors.New("flow: nil controller")
	}
	if store == nil {
		return nil, errors.New("flow: nil store")
	}
	if locker == nil {
		locker = state.NewMemoryLocker()
	}
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Service{ctrl: ctrl, store: store, locker: locker, lockTimeout: lockTimeout}, nil
}

// Controller returns the wrapped controller.
func (s *Service) Controller() *Controller { return s.ctrl }

// Dispatch handles ev for userID. Only a start event may open a conversation;
// anything else from a user without one is ignored. The returned error covers
// store and lock failures; API failures are reported in Result.Err.
func (s *Service) Dispatch(ctx context.Context, userID int64, ev Event) (Result, error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	unlock, err := s.locker.Lock(lockCtx, userID)
	cancel()
	if err != nil {
		return Result{}, fmt.Errorf("flow: lock user %d: %w", userID, err)
	}
	defer unlock()

	conv, found, err := s.load(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	if !found && ev.Kind != EventStart {
		logger.Debug(ctx, "flow", "event.ignored",
			slog.Int64("user_id", userID),
			slog.String("event_kind", string(ev.Kind)),
			slog.String("reason", "no_conversation"),
		)
		return Result{Conversation: conv}, nil
	}

	ctx = logger.WithConversationState(ctx, string(conv.State))
	start := time.Now()
	res := s.ctrl.Handle(ctx, conv, ev)
	from, to := conv.State, res.Conversation.State

	if !found || !res.Conversation.equal(conv) {
		if err := s.store.Save(ctx, toSession(res.Conversation)); err != nil {
			return res, fmt.Errorf("flow: save conversation: %w", err)
		}
	}

	if res.Transition == "" {
		logger.Debug(ctx, "flow", "event.ignored",
			slog.Int64("user_id", userID),
			slog.String("state", string(from)),
			slog.String("event_kind", string(ev.Kind)),
			slog.String("reason", "no_transition"),
		)
		return res, nil
	}

	if from != to {
		metrics.IncTransition(string(from), string(to))
	}
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.String("state", string(from)),
		slog.String("next_state", string(to)),
		slog.String("event_kind", string(ev.Kind)),
		slog.String("handler", res.Transition),
		slog.Int("actions", len(res.Actions)),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	}
	if res.Err != nil {
		attrs[0] = slog.String("status", "fail")
		attrs = append(attrs, slog.String("err", logger.SanitizeLimit(res.Err.Error(), 256)))
		logger.Warn(ctx, "flow", "transition", attrs...)
		return res, nil
	}
	logger.Info(ctx, "flow", "transition", attrs...)
	return res, nil
}

// InProgress reports whether userID has a live conversation.
func (s *Service) InProgress(ctx context.Context, userID int64) (bool, error) {
	_, err := s.store.Get(ctx, userID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, state.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Reset drops the stored conversation for userID.
func (s *Service) Reset(ctx context.Context, userID int64) error {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	unlock, err := s.locker.Lock(lockCtx, userID)
	cancel()
	if err != nil {
		return fmt.Errorf("flow: lock user %d: %w", userID, err)
	}
	defer unlock()
	if err := s.store.Clear(ctx, userID); err != nil {
		return fmt.Errorf("flow: clear conversation: %w", err)
	}
	logger.Info(ctx, "flow", "conversation.reset", slog.Int64("user_id", userID))
	return nil
}

func (s *Service) load(ctx context.Context, userID int64) (Conversation, bool, error) {
	sess, err := s.store.Get(ctx, userID)
	if errors.Is(err, state.ErrNotFound) {
		return NewConversation(userID), false, nil
	}
	if err != nil {
		return Conversation{}, false, fmt.Errorf("flow: load conversation: %w", err)
	}
	return fromSession(sess), true, nil
}

func toSession(c Conversation) *state.Session {
	sess := state.NewSession(c.UserID, state.State(c.State))
	if c.PendingAmount != nil {
		sess.Set(keyPendingAmount, strconv.FormatInt(*c.PendingAmount, 10))
	}
	sess.Set(keyPaymentReference, c.PaymentReference)
	sess.Set(keyInvoices, encodeInvoices(c.Invoices))
	sess.Set(keyCardNumber, c.CardNumber)
	return sess
}

func fromSession(sess *state.Session) Conversation {
	conv := Conversation{UserID: sess.UserID, State: State(sess.State)}
	if !conv.State.Valid() {
		conv.State = StateStart
	}
	if n, ok := sess.Int64(keyPendingAmount); ok {
		conv.PendingAmount = &n
	}
	conv.PaymentReference, _ = sess.Value(keyPaymentReference)
	if v, ok := sess.Value(keyInvoices); ok {
		conv.Invoices = decodeInvoices(v)
	}
	conv.CardNumber, _ = sess.Value(keyCardNumber)
	return conv
}

// encodeInvoices stores invoices as "hash:amount" pairs joined by ";".
func encodeInvoices(invoices []IssuedInvoice) string {
	parts := make([]string, 0, len(invoices))
	for _, inv := range invoices {
		parts = append(parts, inv.Hash+":"+strconv.FormatInt(inv.Amount, 10))
	}
	return strings.Join(parts, ";")
}

// decodeInvoices skips malformed pairs.
func decodeInvoices(v string) []IssuedInvoice {
	var out []IssuedInvoice
	for _, part := range strings.Split(v, ";") {
		hash, amount, ok := strings.Cut(part, ":")
		if !ok || hash == "" {
			continue
		}
		n, err := strconv.ParseInt(amount, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, IssuedInvoice{Hash: hash, Amount: n})
	}
	return out
}
