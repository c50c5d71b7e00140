// Package handler wires the ticket protocol endpoints to the protocol
// controller. It is a thin layer: parsing and envelope writing here,
// every decision in the service.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"stagepass/internal/protocol"
	id "stagepass/pkg/domain"
	dErrors "stagepass/pkg/domain-errors"
	"stagepass/pkg/platform/httputil"
	"stagepass/pkg/requestcontext"
)

// Handler wires protocol endpoints to the protocol service.
type Handler struct {
	service *protocol.Service
	logger  *slog.Logger
}

func New(service *protocol.Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterPublic mounts the endpoints that need no authentication.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/events", h.HandleListEvents)
	r.Get("/events/{eventID}", h.HandleGetEvent)
}

// Register mounts the authenticated endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Post("/events", h.HandleCreateEvent)
	r.Post("/events/{eventID}/purchase", h.HandlePurchase)
	r.Post("/events/{eventID}/validation-request", h.HandleRequestValidation)
	r.Delete("/events/{eventID}/validation-request", h.HandleCancelValidation)
	r.Post("/events/{eventID}/validate", h.HandleValidate)
	r.Get("/events/{eventID}/queue", h.HandleQueueFeed)
	r.Get("/tickets", h.HandleListTickets)
	r.Get("/tickets/{ticketID}", h.HandleGetTicket)
	r.Get("/tickets/{ticketID}/feed", h.HandleTicketFeed)
}

// HandleCreateEvent handles POST /events.
func (h *Handler) HandleCreateEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	ev, err := h.service.CreateEvent(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "event creation failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromEvent(ev))
}

// HandleListEvents handles GET /events.
func (h *Handler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.ListEvents(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEvents(events))
}

// HandleGetEvent handles GET /events/{eventID}.
func (h *Handler) HandleGetEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}
	ev, err := h.service.GetEvent(r.Context(), eventID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEvent(ev))
}

// HandlePurchase handles POST /events/{eventID}/purchase.
func (h *Handler) HandlePurchase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}

	t, err := h.service.Purchase(ctx, userID, eventID)
	if err != nil {
		h.logger.ErrorContext(ctx, "purchase failed",
			"request_id", requestcontext.RequestID(ctx),
			"event_id", eventID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "purchase completed",
		"request_id", requestcontext.RequestID(ctx),
		"ticket_id", t.TicketID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromTicket(t))
}

// HandleRequestValidation handles POST /events/{eventID}/validation-request.
func (h *Handler) HandleRequestValidation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}

	if err := h.service.RequestValidation(ctx, userID, eventID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleCancelValidation handles DELETE /events/{eventID}/validation-request.
func (h *Handler) HandleCancelValidation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}

	existed, err := h.service.CancelValidation(ctx, userID, eventID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CancelResponse{Cancelled: existed})
}

// HandleValidate handles POST /events/{eventID}/validate.
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	callerID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}

	req, ok := httputil.Decode[ValidateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	holderID, err := req.ParsedUserID()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	verdict, err := h.service.Validate(ctx, callerID, eventID, holderID)
	if err != nil {
		h.logger.ErrorContext(ctx, "validation failed",
			"request_id", requestID,
			"event_id", eventID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ValidateResponse{Validation: string(verdict)})
}

// HandleListTickets handles GET /tickets.
func (h *Handler) HandleListTickets(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	tickets, err := h.service.ListTickets(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromTickets(tickets))
}

// HandleGetTicket handles GET /tickets/{ticketID}.
func (h *Handler) HandleGetTicket(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	ticketID, ok := h.ticketID(w, r)
	if !ok {
		return
	}
	t, err := h.service.GetTicket(r.Context(), userID, ticketID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromTicket(t))
}

func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	userID := requestcontext.UserID(r.Context())
	if userID.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.UserID{}, false
	}
	return userID, true
}

func (h *Handler) eventID(w http.ResponseWriter, r *http.Request) (id.EventID, bool) {
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid event id"))
		return id.EventID{}, false
	}
	return eventID, true
}

func (h *Handler) ticketID(w http.ResponseWriter, r *http.Request) (id.TicketID, bool) {
	ticketID, err := id.ParseTicketID(chi.URLParam(r, "ticketID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid ticket id"))
		return "", false
	}
	return ticketID, true
}
