// Package authority is the HTTP client for the external issuance/validation
// authority. The authority mints tickets (binding a holder to an event) and
// adjudicates presented proof material by consulting the ownership ledger.
//
// Every call is a blocking, bounded-timeout network operation. A timeout or
// transport error is always surfaced as a failure, never coerced into a
// verdict.
package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	id "stagepass/pkg/domain"
	dErrors "stagepass/pkg/domain-errors"
)

// NewEventResult is the authority's response to event registration.
type NewEventResult struct {
	EventID  id.EventID
	EventKey string
}

// MintResult is the proof material returned by a successful mint. The
// txReceipt references the ledger append the authority performed.
type MintResult struct {
	TicketID  id.TicketID
	Cid       id.Cid
	TxReceipt id.TxReceipt
}

// Client is the authority contract consumed by the protocol controller.
type Client interface {
	NewEvent(ctx context.Context) (NewEventResult, error)
	Mint(ctx context.Context, userID id.UserID, eventID id.EventID, eventKey string) (MintResult, error)
	Validate(ctx context.Context, userID id.UserID, eventID id.EventID, cid id.Cid, txReceipt id.TxReceipt) (bool, error)
}

// HTTPClient talks to a real authority over HTTP+JSON with a shared
// capability token header. A circuit breaker fails fast when the authority
// has been unreachable, so a flood of purchases doesn't pile up on a dead
// host.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
	breaker *Breaker
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient overrides the underlying http.Client (tests).
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPClient) { h.client = c }
}

// WithBreaker overrides the default circuit breaker.
func WithBreaker(b *Breaker) HTTPOption {
	return func(h *HTTPClient) { h.breaker = b }
}

// NewHTTPClient constructs a client for the authority at baseURL. timeout
// bounds every call including connection setup.
func NewHTTPClient(baseURL, token string, timeout time.Duration, opts ...HTTPOption) *HTTPClient {
	h := &HTTPClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
		breaker: NewBreaker(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

const capabilityHeader = "X-Capability-Token"

type mintRequest struct {
	UserID   string `json:"userID"`
	EventID  string `json:"eventID"`
	EventKey string `json:"eventKey"`
}

type mintResponse struct {
	TicketID  string `json:"ticketID"`
	Cid       string `json:"cid"`
	TxReceipt string `json:"txReceipt"`
}

type newEventResponse struct {
	EventID  string `json:"eventID"`
	EventKey string `json:"eventKey"`
}

type validateRequest struct {
	UserID         string `json:"userID"`
	CurrentEventID string `json:"currentEventID"`
	Cid            string `json:"cid"`
	TxReceipt      string `json:"txReceipt"`
}

type validateResponse struct {
	Validation bool `json:"validation"`
}

// NewEvent registers a new event with the authority and returns its
// capability key.
func (h *HTTPClient) NewEvent(ctx context.Context) (NewEventResult, error) {
	var resp newEventResponse
	if err := h.do(ctx, http.MethodGet, "/newEvent", nil, &resp); err != nil {
		return NewEventResult{}, err
	}
	eventID, err := id.ParseEventID(resp.EventID)
	if err != nil {
		return NewEventResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "authority returned malformed event id")
	}
	return NewEventResult{EventID: eventID, EventKey: resp.EventKey}, nil
}

// Mint asks the authority to bind the holder to the event. The authority
// rejects a wrong event key; that rejection surfaces as CodeValidation.
func (h *HTTPClient) Mint(ctx context.Context, userID id.UserID, eventID id.EventID, eventKey string) (MintResult, error) {
	req := mintRequest{UserID: userID.String(), EventID: eventID.String(), EventKey: eventKey}
	var resp mintResponse
	if err := h.do(ctx, http.MethodPost, "/mintTicket", req, &resp); err != nil {
		return MintResult{}, err
	}
	ticketID, err := id.ParseTicketID(resp.TicketID)
	if err != nil {
		return MintResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "authority returned malformed ticket id")
	}
	return MintResult{
		TicketID:  ticketID,
		Cid:       id.Cid(resp.Cid),
		TxReceipt: id.TxReceipt(resp.TxReceipt),
	}, nil
}

// Validate asks the authority whether the presented proof matches the
// ledger's latest ownership entry. The boolean is only meaningful when err
// is nil.
func (h *HTTPClient) Validate(ctx context.Context, userID id.UserID, eventID id.EventID, cid id.Cid, txReceipt id.TxReceipt) (bool, error) {
	req := validateRequest{
		UserID:         userID.String(),
		CurrentEventID: eventID.String(),
		Cid:            string(cid),
		TxReceipt:      string(txReceipt),
	}
	var resp validateResponse
	if err := h.do(ctx, http.MethodPost, "/validate", req, &resp); err != nil {
		return false, err
	}
	return resp.Validation, nil
}

func (h *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	if h.breaker.IsOpen() {
		return dErrors.New(dErrors.CodeUnavailable, "authority circuit open")
	}

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode authority request")
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reader)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to build authority request")
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set(capabilityHeader, h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.breaker.RecordFailure()
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return dErrors.Wrap(err, dErrors.CodeTimeout, "authority call timed out")
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "authority unreachable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		h.breaker.RecordSuccess()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to decode authority response")
		}
		return nil
	case resp.StatusCode >= 500:
		h.breaker.RecordFailure()
		return dErrors.Newf(dErrors.CodeUnavailable, "authority returned %d", resp.StatusCode)
	default:
		// 4xx means the authority processed and rejected the request
		// (wrong event key, malformed proof). Not a breaker failure.
		h.breaker.RecordSuccess()
		return dErrors.Newf(dErrors.CodeValidation, "authority rejected request with %d", resp.StatusCode)
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

var _ Client = (*HTTPClient)(nil)
