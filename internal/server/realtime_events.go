package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"inkwell/internal/middleware"
	"inkwell/internal/notifications"
	"inkwell/internal/observability"
)

// StartRealtimeRelay subscribes to every user's notification channel and
// records each event that reaches Redis. Without Redis it does nothing.
// The subscription ends when ctx is cancelled.
func (s *Server) StartRealtimeRelay(ctx context.Context) error {
	if !s.notifier.Enabled() {
		return nil
	}
	return s.notifier.StartPatternSubscriber(ctx, s.relayEvent)
}

func (s *Server) relayEvent(username, payload string) {
	var ev notifications.Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		middleware.Logger.Warn("malformed realtime event",
			slog.String("recipient", username),
			slog.String("error", err.Error()))
		return
	}

	kind := "unknown"
	if ev.Notification != nil {
		kind = string(ev.Notification.Type)
	}
	observability.RealtimeEvents.WithLabelValues(kind).Inc()
	middleware.Logger.Debug("realtime notification relayed",
		slog.String("recipient", username),
		slog.String("type", kind))
}
