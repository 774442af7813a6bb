package flow

// EventKind discriminates Event variants.
type EventKind string

const (
	EventStart   EventKind = "start"
	EventRail    EventKind = "rail"
	EventText    EventKind = "text"
	EventConfirm EventKind = "confirm"
)

// Rails offered on the greeting keyboard. The values double as callback data.
const (
	RailOnchain   = "onchain"
	RailLightning = "lightning1"
)

// confirmPrefix tags "paid" button data; the rest is the payment hash.
const confirmPrefix = "ln"

// Event is an inbound user action. Payload holds the rail for EventRail, the
// message text for EventText and the button data for EventConfirm.
type Event struct {
	Kind    EventKind
	Payload string
}

// StartCommand is the /start command.
func StartCommand() Event { return Event{Kind: EventStart} }

// RailSelected is a press on one of the rail buttons.
func RailSelected(rail string) Event { return Event{Kind: EventRail, Payload: rail} }

// AmountEntered is a free-text message. Text typed in the card details step
// arrives as the same event; the current state decides how it is read.
func AmountEntered(text string) Event { return Event{Kind: EventText, Payload: text} }

// PaymentConfirmed is a press on a "paid" button carrying ref as its data.
func PaymentConfirmed(ref string) Event { return Event{Kind: EventConfirm, Payload: ref} }

// ParseCallback classifies raw button data. Known rails become RailSelected;
// everything else is a confirmation whose prefix the transition table checks.
func ParseCallback(data string) Event {
	switch data {
	case RailOnchain, RailLightning:
		return RailSelected(data)
	}
	return PaymentConfirmed(data)
}
