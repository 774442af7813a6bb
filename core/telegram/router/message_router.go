package router

import (
	tg "github.com/m3rciful/satsbot/core/telegram"
	tghelpers "github.com/m3rciful/satsbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// FSM is the conversation side of the text route.
type FSM interface {
	InProgress(userID int64) bool
	ManagerHandler(c tele.Context) error
}

// TextRoutes sends plain text from users with a conversation in progress to
// fsm. Any other text is dropped with a skip summary.
func TextRoutes(fsm FSM) []tg.Route {
	return []tg.Route{{
		Endpoint: tele.OnText,
		Handler: func(c tele.Context) error {
			if u := c.Sender(); u != nil && fsm.InProgress(u.ID) {
				return run(c, "fsm", fsm.ManagerHandler)
			}
			summarize(tghelpers.WithHandler(c, "unknown_text"), c, "unknown_text", statusSkip, 0, nil)
			return nil
		},
	}}
}
