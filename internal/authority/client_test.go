package authority

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "stagepass/pkg/domain"
	dErrors "stagepass/pkg/domain-errors"
)

func TestHTTPClient_Mint(t *testing.T) {
	userID := id.UserID(uuid.New())
	eventID := id.EventID(uuid.New())

	t.Run("success returns proof material", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/mintTicket", r.URL.Path)
			require.Equal(t, "secret-token", r.Header.Get("X-Capability-Token"))

			var req map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, userID.String(), req["userID"])
			require.Equal(t, "K2", req["eventKey"])

			json.NewEncoder(w).Encode(map[string]string{
				"ticketID":  "tkt_000001",
				"cid":       "bafyabc",
				"txReceipt": "0x123",
			})
		}))
		defer srv.Close()

		client := NewHTTPClient(srv.URL, "secret-token", time.Second)
		result, err := client.Mint(context.Background(), userID, eventID, "K2")
		require.NoError(t, err)
		assert.Equal(t, id.TicketID("tkt_000001"), result.TicketID)
		assert.Equal(t, id.Cid("bafyabc"), result.Cid)
		assert.Equal(t, id.TxReceipt("0x123"), result.TxReceipt)
	})

	t.Run("server error is a network failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		client := NewHTTPClient(srv.URL, "", time.Second)
		_, err := client.Mint(context.Background(), userID, eventID, "K2")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	})

	t.Run("authority rejection is not a network failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		client := NewHTTPClient(srv.URL, "", time.Second)
		_, err := client.Mint(context.Background(), userID, eventID, "wrong-key")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("unreachable host is a network failure", func(t *testing.T) {
		client := NewHTTPClient("http://127.0.0.1:1", "", 200*time.Millisecond)
		_, err := client.Mint(context.Background(), userID, eventID, "K2")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable) || dErrors.HasCode(err, dErrors.CodeTimeout))
	})
}

func TestHTTPClient_Validate(t *testing.T) {
	userID := id.UserID(uuid.New())
	eventID := id.EventID(uuid.New())

	t.Run("decodes verdict", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/validate", r.URL.Path)
			var req map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, eventID.String(), req["currentEventID"])
			json.NewEncoder(w).Encode(map[string]bool{"validation": true})
		}))
		defer srv.Close()

		client := NewHTTPClient(srv.URL, "", time.Second)
		valid, err := client.Validate(context.Background(), userID, eventID, "bafyabc", "0x123")
		require.NoError(t, err)
		assert.True(t, valid)
	})

	t.Run("timeout is never a verdict", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
			json.NewEncoder(w).Encode(map[string]bool{"validation": true})
		}))
		defer srv.Close()

		client := NewHTTPClient(srv.URL, "", 50*time.Millisecond)
		_, err := client.Validate(context.Background(), userID, eventID, "bafyabc", "0x123")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout) || dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}

func TestHTTPClient_BreakerFailsFast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	breaker := NewBreaker(WithFailureThreshold(2), WithCooldown(time.Minute))
	client := NewHTTPClient(srv.URL, "", time.Second, WithBreaker(breaker))
	ctx := context.Background()
	userID := id.UserID(uuid.New())
	eventID := id.EventID(uuid.New())

	for i := 0; i < 2; i++ {
		_, err := client.Mint(ctx, userID, eventID, "K")
		require.Error(t, err)
	}
	require.True(t, breaker.IsOpen())

	_, err := client.Mint(ctx, userID, eventID, "K")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
}
