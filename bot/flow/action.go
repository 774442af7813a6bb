package flow

// Button is an inline button whose Data re-enters the flow via ParseCallback.
type Button struct {
	Label string
	Data  string
}

// Action is an outbound message.
type Action struct {
	Text    string
	Buttons [][]Button
	// Edit replaces the message carrying the pressed button instead of sending a new one.
	Edit bool
}

func message(text string, buttons ...[]Button) Action {
	return Action{Text: text, Buttons: buttons}
}

func edit(text string, buttons ...[]Button) Action {
	return Action{Text: text, Buttons: buttons, Edit: true}
}
