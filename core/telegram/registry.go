package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/m3rciful/satsbot/core/logger"
	"github.com/m3rciful/satsbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

// Registry maps slash commands and callback keys to handlers. Callback data
// with no registered key goes to the not-found handler.
type Registry struct {
	commands map[string]commands.Command

	mu        sync.RWMutex
	callbacks map[string]tele.HandlerFunc
	notFound  tele.HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]commands.Command),
		callbacks: make(map[string]tele.HandlerFunc),
		notFound: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
		},
	}
}

// RegisterCommand adds cmd under name, which must start with a slash.
// Invalid and duplicate registrations are logged and skipped.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) {
	reason := ""
	switch {
	case !strings.HasPrefix(name, "/") || len(name) < 2:
		reason = "bad_name"
	case cmd.Handler == nil || cmd.Description == "":
		reason = "incomplete"
	case r.commands[name].Handler != nil:
		reason = "duplicate"
	}
	if reason != "" {
		logger.Warn(context.Background(), "tg", "command.skip",
			slog.String("name", name),
			slog.String("reason", reason),
		)
		return
	}
	r.commands[name] = cmd
}

// Commands returns the registered commands keyed by name.
func (r *Registry) Commands() map[string]commands.Command { return r.commands }

// ListCommands returns the commands sorted by name. With visibleOnly, hidden
// and admin commands are left out.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	var list []tele.Command
	for _, name := range slices.Sorted(maps.Keys(r.commands)) {
		cmd := r.commands[name]
		if visibleOnly && (cmd.Hidden || cmd.AdminOnly) {
			continue
		}
		list = append(list, tele.Command{Text: name, Description: cmd.Description})
	}
	return list
}

// RegisterCallback binds handler to the exact callback key.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if key == "" || handler == nil {
		return fmt.Errorf("telegram: invalid callback registration %q", key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.callbacks[key]; ok {
		return fmt.Errorf("telegram: callback %q already registered", key)
	}
	r.callbacks[key] = handler
	return nil
}

func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns the registered keys sorted.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.callbacks))
}

// SetCallbackNotFound replaces the handler for unregistered keys.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.notFound = h
	r.mu.Unlock()
}

func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.notFound
}

// InitBotCommands publishes the visible commands to the Telegram menu.
func InitBotCommands(bot *tele.Bot, reg *Registry) {
	if err := bot.SetCommands(reg.ListCommands(true)); err != nil {
		logger.Error(context.Background(), "tg", "commands.set",
			slog.String("err", err.Error()),
		)
	}
}
