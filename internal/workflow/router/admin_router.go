package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pots-hq/pots/internal/auth"
	"github.com/pots-hq/pots/internal/coreapi"
)

// AdminRouter is a thin read-mostly proxy over the core platform's
// back-office endpoints. Authorisation is enforced by the platform against
// the forwarded bearer token.
type AdminRouter struct {
	api *coreapi.Client
}

// NewAdminRouter creates a new AdminRouter instance
func NewAdminRouter(api *coreapi.Client) *AdminRouter {
	return &AdminRouter{api: api}
}

// HandleListUsers handles GET /api/admin/users
func (ar *AdminRouter) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	proxyList(w, r, ar.api.GetAdminUsers)
}

// HandleListPots handles GET /api/admin/pots
func (ar *AdminRouter) HandleListPots(w http.ResponseWriter, r *http.Request) {
	proxyList(w, r, ar.api.GetAdminPots)
}

// HandleListPotFactories handles GET /api/admin/potFactories
func (ar *AdminRouter) HandleListPotFactories(w http.ResponseWriter, r *http.Request) {
	proxyList(w, r, ar.api.GetAdminPotFactories)
}

// HandleListCards handles GET /api/admin/cards
func (ar *AdminRouter) HandleListCards(w http.ResponseWriter, r *http.Request) {
	proxyList(w, r, ar.api.GetAdminCards)
}

// HandleListDeposits handles GET /api/admin/deposits
// Optional filters: ?potId= | ?potFactoryId= | ?userId=
func (ar *AdminRouter) HandleListDeposits(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	var deposits []coreapi.Deposit
	var err error
	switch {
	case query.Get("potId") != "":
		deposits, err = ar.api.GetAdminDepositsByPot(r.Context(), query.Get("potId"), token)
	case query.Get("potFactoryId") != "":
		deposits, err = ar.api.GetAdminDepositsByPotFactory(r.Context(), query.Get("potFactoryId"), token)
	case query.Get("userId") != "":
		deposits, err = ar.api.GetAdminDepositsByUser(r.Context(), query.Get("userId"), token)
	default:
		deposits, err = ar.api.GetAdminDeposits(r.Context(), token)
	}
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, deposits)
}

// HandleActivateCard handles POST /api/admin/cards/{cardID}/activate
// Request body: coreapi.ActivateCardRequest
func (ar *AdminRouter) HandleActivateCard(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(w, r)
	if !ok {
		return
	}

	cardID := r.PathValue("cardID")
	if cardID == "" {
		http.Error(w, "card ID is required", http.StatusBadRequest)
		return
	}

	var req coreapi.ActivateCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := ar.api.ActivateCard(r.Context(), cardID, &req, token); err != nil {
		writeUpstreamError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// proxyList forwards a list endpoint, passing the caller's bearer token
// through to the platform.
func proxyList[T any](w http.ResponseWriter, r *http.Request, fetch func(ctx context.Context, token string) ([]T, error)) {
	token, ok := bearerToken(w, r)
	if !ok {
		return
	}

	items, err := fetch(r.Context(), token)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

// bearerToken pulls the raw token from the request's auth context.
func bearerToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	authCtx := auth.GetAuthContext(r.Context())
	if authCtx == nil || authCtx.Token == "" {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return "", false
	}
	return authCtx.Token, true
}

// writeUpstreamError maps a core platform failure onto the response,
// preserving the platform's status and detail where available.
func writeUpstreamError(w http.ResponseWriter, err error) {
	var apiErr *coreapi.APIError
	if errors.As(err, &apiErr) {
		http.Error(w, apiErr.Message, apiErr.Status)
		return
	}
	http.Error(w, "upstream request failed: "+err.Error(), http.StatusBadGateway)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
