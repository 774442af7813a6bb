// Package commands describes slash commands for the registry.
package commands

import tele "gopkg.in/telebot.v4"

// Command is a slash command handler with its menu entry.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands run for the configured admin only. They are never
	// listed in the menu, same as Hidden ones.
	AdminOnly bool
	Hidden    bool
}
