package coreapi

import (
	"context"
	"fmt"
	"net/http"
)

// Admin read endpoints back the back-office views. They require a token whose
// identity carries the admin role; authorisation is enforced by the platform.

// GetAdminUsers lists all users.
func (c *Client) GetAdminUsers(ctx context.Context, token string) ([]UserDetails, error) {
	var users []UserDetails
	if err := c.doJSON(ctx, http.MethodGet, "/api/admin/users", token, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// GetAdminPots lists all pots.
func (c *Client) GetAdminPots(ctx context.Context, token string) ([]Pot, error) {
	var pots []Pot
	if err := c.doJSON(ctx, http.MethodGet, "/api/admin/pots", token, nil, &pots); err != nil {
		return nil, err
	}
	return pots, nil
}

// GetAdminPotFactories lists all pot factories.
func (c *Client) GetAdminPotFactories(ctx context.Context, token string) ([]PotFactoryDetails, error) {
	var factories []PotFactoryDetails
	if err := c.doJSON(ctx, http.MethodGet, "/api/admin/potFactories", token, nil, &factories); err != nil {
		return nil, err
	}
	return factories, nil
}

// GetAdminCards lists all reward cards.
func (c *Client) GetAdminCards(ctx context.Context, token string) ([]CardDetails, error) {
	var cards []CardDetails
	if err := c.doJSON(ctx, http.MethodGet, "/api/admin/cards", token, nil, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

// GetAdminDeposits lists all deposits.
func (c *Client) GetAdminDeposits(ctx context.Context, token string) ([]Deposit, error) {
	var deposits []Deposit
	if err := c.doJSON(ctx, http.MethodGet, "/api/admin/deposits", token, nil, &deposits); err != nil {
		return nil, err
	}
	return deposits, nil
}

// GetAdminDepositsByPotFactory lists deposits made under one pot factory.
func (c *Client) GetAdminDepositsByPotFactory(ctx context.Context, potFactoryID, token string) ([]Deposit, error) {
	var deposits []Deposit
	path := fmt.Sprintf("/api/admin/deposits/potFactory/%s", pathEscape(potFactoryID))
	if err := c.doJSON(ctx, http.MethodGet, path, token, nil, &deposits); err != nil {
		return nil, err
	}
	return deposits, nil
}

// GetAdminDepositsByPot lists deposits made into one pot.
func (c *Client) GetAdminDepositsByPot(ctx context.Context, potID, token string) ([]Deposit, error) {
	var deposits []Deposit
	path := fmt.Sprintf("/api/admin/deposits/pot/%s", pathEscape(potID))
	if err := c.doJSON(ctx, http.MethodGet, path, token, nil, &deposits); err != nil {
		return nil, err
	}
	return deposits, nil
}

// GetAdminDepositsByUser lists deposits made by one user.
func (c *Client) GetAdminDepositsByUser(ctx context.Context, userID, token string) ([]Deposit, error) {
	var deposits []Deposit
	path := fmt.Sprintf("/api/admin/deposits/user/%s", pathEscape(userID))
	if err := c.doJSON(ctx, http.MethodGet, path, token, nil, &deposits); err != nil {
		return nil, err
	}
	return deposits, nil
}

// ActivateCard activates a reward card with its activation code.
func (c *Client) ActivateCard(ctx context.Context, cardID string, req *ActivateCardRequest, token string) error {
	path := fmt.Sprintf("/api/cards/%s/activate", pathEscape(cardID))
	return c.doJSON(ctx, http.MethodPost, path, token, req, nil)
}
