package coreapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pots-hq/pots/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(&config.CoreAPIConfig{BaseURL: server.URL, Timeout: 5 * time.Second})
}

func TestCreateUser(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/user", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req CreateUserRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Ada", req.FirstName)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(CreateUserResponse{UserID: "u-1"})
	})

	userID, err := client.CreateUser(context.Background(), &CreateUserRequest{FirstName: "Ada"}, "tok-123")
	require.NoError(t, err)
	assert.Equal(t, "u-1", userID)
}

func TestGetUserDetails(t *testing.T) {
	t.Run("Existing User", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/user", r.URL.Path)
			_ = json.NewEncoder(w).Encode(UserDetails{ID: "u-1", Status: UserVerified})
		})

		details, err := client.GetUserDetails(context.Background(), "tok")
		require.NoError(t, err)
		require.NotNil(t, details)
		assert.Equal(t, UserVerified, details.Status)
	})

	t.Run("No User Yet Returns Nil", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte("null"))
		})

		details, err := client.GetUserDetails(context.Background(), "tok")
		require.NoError(t, err)
		assert.Nil(t, details)
	})
}

func TestAPIError(t *testing.T) {
	t.Run("Carries Server Detail", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"detail":"deposit window closed"}`))
		})

		err := client.AcceptTerms(context.Background(), "p-1", "tok")
		require.Error(t, err)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
		assert.Equal(t, "deposit window closed", apiErr.Message)
	})

	t.Run("Falls Back To HTTP Status Text", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := client.GetPot(context.Background(), "p-1", "tok")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadGateway, apiErr.Status)
		assert.Contains(t, apiErr.Message, "502")
	})
}

func TestPotEndpoints(t *testing.T) {
	t.Run("Deposit Sends Amount", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/pots/p-1/deposit", r.URL.Path)
			var body map[string]float64
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, 25.0, body["amount"])
			w.WriteHeader(http.StatusNoContent)
		})

		require.NoError(t, client.Deposit(context.Background(), "p-1", 25.0, "tok"))
	})

	t.Run("Pot ID Is Path Escaped", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/pots/p%2F1", r.URL.RawPath)
			_ = json.NewEncoder(w).Encode(Pot{ID: "p/1"})
		})

		pot, err := client.GetPot(context.Background(), "p/1", "tok")
		require.NoError(t, err)
		require.NotNil(t, pot)
	})

	t.Run("Create Pot Returns ID", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/pots", r.URL.Path)
			_ = json.NewEncoder(w).Encode(CreatePotResponse{PotID: "p-9"})
		})

		potID, err := client.CreatePot(context.Background(), &CreatePotRequest{PotFactoryID: "pf-1"}, "tok")
		require.NoError(t, err)
		assert.Equal(t, "p-9", potID)
	})
}

func TestAdminEndpoints(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/admin/deposits/pot/p-1":
			_ = json.NewEncoder(w).Encode([]Deposit{{ID: "d-1", PotID: "p-1", Status: DepositCompleted}})
		case "/api/cards/c-1/activate":
			var req ActivateCardRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "1234", req.Code)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	deposits, err := client.GetAdminDepositsByPot(context.Background(), "p-1", "tok")
	require.NoError(t, err)
	require.Len(t, deposits, 1)
	assert.Equal(t, DepositCompleted, deposits[0].Status)

	err = client.ActivateCard(context.Background(), "c-1", &ActivateCardRequest{ExternalID: "x", Code: "1234"}, "tok")
	require.NoError(t, err)
}
