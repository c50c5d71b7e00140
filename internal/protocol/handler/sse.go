package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	dErrors "stagepass/pkg/domain-errors"
	"stagepass/pkg/platform/httputil"
)

// keepaliveInterval is how often an SSE comment is written so proxies don't
// drop an idle feed.
const keepaliveInterval = 15 * time.Second

// HandleQueueFeed handles GET /events/{eventID}/queue. It streams the
// event's validation queue as server-sent events: a snapshot of the live
// requests first, then every queue change until the client disconnects.
func (h *Handler) HandleQueueFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}

	snapshot, updates, cancel, err := h.service.ValidationFeed(ctx, callerID, eventID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	defer cancel()

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "streaming unsupported"))
		return
	}
	startSSE(w)

	for _, req := range snapshot {
		writeSSE(w, "snapshot", FromRequest(req))
	}
	flusher.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case update, open := <-updates:
			if !open {
				return
			}
			writeSSE(w, "update", FromUpdate(update))
			flusher.Flush()
		}
	}
}

// HandleTicketFeed handles GET /tickets/{ticketID}/feed. It streams changes
// to one ticket to its holder, which is how a holder sees the verdict land
// without polling.
func (h *Handler) HandleTicketFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	ticketID, ok := h.ticketID(w, r)
	if !ok {
		return
	}

	changes, cancel, err := h.service.TicketFeed(ctx, callerID, ticketID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	defer cancel()

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "streaming unsupported"))
		return
	}
	startSSE(w)
	flusher.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case t, open := <-changes:
			if !open {
				return
			}
			writeSSE(w, "ticket", FromTicket(&t))
			flusher.Flush()
		}
	}
}

func startSSE(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
}

func writeSSE(w http.ResponseWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
