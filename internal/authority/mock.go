package authority

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"stagepass/internal/ledger"
	id "stagepass/pkg/domain"
	dErrors "stagepass/pkg/domain-errors"
)

// MockClient is a deterministic in-process authority backed by the real
// ledger service. It mints proof material, performs the corresponding
// ledger append as the issuer principal, and adjudicates validate calls by
// consulting the ledger, mirroring the external authority's contract
// closely enough for service tests and local runs. A configurable latency
// mimics real-world network calls.
type MockClient struct {
	Ledger    *ledger.Service
	Principal id.PrincipalID
	Latency   time.Duration

	mu sync.Mutex
	// eventKeys holds the capability secret per registered event.
	eventKeys map[id.EventID]string
	// proofs maps minted (cid, txReceipt) pairs back to their ticket, the
	// way the real authority infers the ticket from presented proof.
	proofs map[proofKey]id.TicketID
	minted int
}

type proofKey struct {
	cid       id.Cid
	txReceipt id.TxReceipt
}

// NewMockClient builds a mock authority appending to the given ledger as
// principal.
func NewMockClient(ledgerSvc *ledger.Service, principal id.PrincipalID) *MockClient {
	return &MockClient{
		Ledger:    ledgerSvc,
		Principal: principal,
		eventKeys: make(map[id.EventID]string),
		proofs:    make(map[proofKey]id.TicketID),
	}
}

func (c *MockClient) NewEvent(_ context.Context) (NewEventResult, error) {
	time.Sleep(c.Latency)
	c.mu.Lock()
	defer c.mu.Unlock()
	eventID := id.EventID(uuid.New())
	key := "key_" + uuid.NewString()
	c.eventKeys[eventID] = key
	return NewEventResult{EventID: eventID, EventKey: key}, nil
}

// RegisterEvent seeds an event with a known key; tests use this to control
// fixtures instead of round-tripping NewEvent.
func (c *MockClient) RegisterEvent(eventID id.EventID, eventKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventKeys[eventID] = eventKey
}

func (c *MockClient) Mint(ctx context.Context, userID id.UserID, eventID id.EventID, eventKey string) (MintResult, error) {
	time.Sleep(c.Latency)
	c.mu.Lock()
	key, ok := c.eventKeys[eventID]
	if !ok || key != eventKey {
		c.mu.Unlock()
		return MintResult{}, dErrors.New(dErrors.CodeValidation, "event key does not match")
	}
	c.minted++
	result := MintResult{
		TicketID:  id.TicketID(fmt.Sprintf("tkt_%06d", c.minted)),
		Cid:       id.Cid("bafy" + uuid.NewString()),
		TxReceipt: id.TxReceipt("0x" + uuid.NewString()),
	}
	c.proofs[proofKey{result.Cid, result.TxReceipt}] = result.TicketID
	c.mu.Unlock()

	if _, err := c.Ledger.LogTicketOwnership(ctx, c.Principal, result.TicketID, eventID, userID, "", ""); err != nil {
		return MintResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "authority failed to record ownership")
	}
	return result, nil
}

func (c *MockClient) Validate(ctx context.Context, userID id.UserID, eventID id.EventID, cid id.Cid, txReceipt id.TxReceipt) (bool, error) {
	time.Sleep(c.Latency)
	c.mu.Lock()
	ticketID, ok := c.proofs[proofKey{cid, txReceipt}]
	c.mu.Unlock()
	if !ok {
		// Forged or mismatched proof: no ledger entry was ever minted
		// for this (cid, txReceipt) pair.
		return false, nil
	}

	history, err := c.Ledger.History(ctx, ticketID)
	if err != nil {
		return false, err
	}
	if len(history) == 0 {
		return false, nil
	}
	latest := history[len(history)-1]
	return latest.EventID == eventID && latest.UserID == userID, nil
}

var _ Client = (*MockClient)(nil)
