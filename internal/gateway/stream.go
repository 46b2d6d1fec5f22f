// ABOUTME: Server-sent event stream of committed notifications for one deployment
// ABOUTME: Each SSE event is named after the notification kind and carries its JSON

package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/2389/coven-acl/internal/notify"
)

// keepaliveInterval spaces SSE comments that keep idle proxies from closing the stream.
const keepaliveInterval = 25 * time.Second

func (g *Gateway) handleEventStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := g.ledger.Status(id); err != nil {
		g.sendLedgerError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		g.logger.Error("streaming not supported")
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	notifications, subID := g.broadcaster.Subscribe(r.Context(), id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	g.writeSSEEvent(w, "ready", map[string]string{"deployment_id": id, "subscription": subID})
	flusher.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			_, _ = fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case n, ok := <-notifications:
			if !ok {
				// broadcaster closed: the gateway is shutting down
				return
			}
			g.writeNotification(w, n)
			flusher.Flush()
		}
	}
}

func (g *Gateway) writeNotification(w http.ResponseWriter, n notify.Notification) {
	switch {
	case n.Access != nil:
		g.writeSSEEvent(w, n.Kind(), toEvent(*n.Access, n.At))
	case n.Transfer != nil:
		g.writeSSEEvent(w, n.Kind(), toTransfer(*n.Transfer, n.At))
	}
}

// writeSSEEvent writes a single SSE event to the response writer.
func (g *Gateway) writeSSEEvent(w http.ResponseWriter, event string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		g.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	_, _ = fmt.Fprintf(w, "event: %s\n", event)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}
