package server

import (
	"log/slog"

	"socialapp/internal/middleware"
	"socialapp/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// websocketUpgradeRequired rejects plain HTTP requests to websocket routes.
func websocketUpgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// WebsocketHandler streams the caller's realtime notifications.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		subject, _ := conn.Locals(middleware.SubjectLocal).(string)
		if subject == "" {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(subject, conn)
		if err != nil {
			observability.Logger.Warn("websocket registration rejected",
				slog.String("subject", subject),
				slog.String("error", err.Error()),
			)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		observability.Logger.Debug("websocket connected", slog.String("subject", subject))
		go client.WritePump()
		client.ReadPump()
	})
}
