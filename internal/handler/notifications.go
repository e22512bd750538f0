package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/uis-platform/uisapi/internal/reqlog"
)

// Notification is one server-sent event.
type Notification struct {
	Event string
	Data  []byte
}

// Subscriber hands out notification feeds. The returned func unsubscribes;
// the channel is closed when the feed ends.
type Subscriber interface {
	Subscribe() (<-chan Notification, func())
}

// NotificationHandler streams change notifications as server-sent events.
type NotificationHandler struct {
	Hub       Subscriber
	Heartbeat time.Duration
}

// Stream holds the connection open until the client leaves or the hub
// closes (GET /api/v3/ftpNotifications).
func (h *NotificationHandler) Stream(c echo.Context) error {
	feed, unsubscribe := h.Hub.Subscribe()
	defer unsubscribe()

	ctx := c.Request().Context()
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(res, ": connected\n\n"); err != nil {
		return nil
	}
	res.Flush()

	buf := reqlog.FromContext(ctx)
	buf.Info("Notification stream opened")
	sent := 0
	defer func() { buf.Infof("Notification stream closed after %d events", sent) }()

	heartbeat := time.NewTicker(h.Heartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-feed:
			if !ok {
				return nil
			}
			if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", n.Event, n.Data); err != nil {
				return nil
			}
			res.Flush()
			sent++
		case <-heartbeat.C:
			if _, err := fmt.Fprint(res, ": heartbeat\n\n"); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}
