package router

import (
	"context"
	"log/slog"

	"github.com/m3rciful/satsbot/core/logger"
	tg "github.com/m3rciful/satsbot/core/telegram"
	"github.com/m3rciful/satsbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures the admin gate of AdminOnly commands.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes returns one route per registered command. Each run is
// summarized under the command name without its slash.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	adminOnly := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for endpoint, cmd := range cmds {
		name := normalizeHandlerName(endpoint)
		h := func(c tele.Context) error { return run(c, name, cmd.Handler) }
		if cmd.AdminOnly {
			h = adminOnly(h)
		}
		routes = append(routes, tg.Route{Endpoint: endpoint, Handler: h})
	}

	logger.Debug(context.Background(), "tg", "routes.wired",
		slog.Int("commands", len(cmds)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}
