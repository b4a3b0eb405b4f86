package server

import (
	"context"
	"net/http"
	"time"

	"github.com/reachplan/optimizer/internal/events"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// EventsStreamHandler streams run lifecycle events to websocket clients.
// Each connection gets its own bus subscription; slow clients drop events
// rather than stalling runs.
type EventsStreamHandler struct {
	eventBus *events.Bus
	log      zerolog.Logger
}

// NewEventsStreamHandler creates a new events stream handler.
func NewEventsStreamHandler(eventBus *events.Bus, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		eventBus: eventBus,
		log:      log.With().Str("component", "events_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/events/stream (websocket upgrade).
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The API is CORS-open; the websocket follows the same policy.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	ch, cancel := h.eventBus.Subscribe(64)
	defer cancel()

	h.log.Debug().Str("remote", r.RemoteAddr).Msg("Event stream connected")

	ctx := r.Context()
	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return

		case <-pingTicker.C:
			pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Ping(pingCtx)
			pingCancel()
			if err != nil {
				h.log.Debug().Err(err).Msg("Event stream ping failed")
				return
			}

		case event, ok := <-ch:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			writeCtx, writeCancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, event)
			writeCancel()
			if err != nil {
				h.log.Debug().Err(err).Msg("Event stream write failed")
				return
			}
		}
	}
}
