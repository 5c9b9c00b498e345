package coreapi

import (
	"context"
	"fmt"
	"net/http"
)

// GetPotFactories lists all pot factories visible to the user.
func (c *Client) GetPotFactories(ctx context.Context, token string) ([]PotFactoryDetails, error) {
	var factories []PotFactoryDetails
	if err := c.doJSON(ctx, http.MethodGet, "/api/potFactories", token, nil, &factories); err != nil {
		return nil, err
	}
	return factories, nil
}

// GetPotFactoryDetails returns a single pot factory with its offers, or nil
// when it does not exist.
func (c *Client) GetPotFactoryDetails(ctx context.Context, potFactoryID, token string) (*PotFactoryDetails, error) {
	var factory *PotFactoryDetails
	path := fmt.Sprintf("/api/potFactories/%s", pathEscape(potFactoryID))
	if err := c.doJSON(ctx, http.MethodGet, path, token, nil, &factory); err != nil {
		return nil, err
	}
	return factory, nil
}

// CreatePot creates a pot from the given offer and returns its id.
func (c *Client) CreatePot(ctx context.Context, req *CreatePotRequest, token string) (string, error) {
	var resp CreatePotResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/pots", token, req, &resp); err != nil {
		return "", err
	}
	return resp.PotID, nil
}

// GetPot returns a pot by id, or nil while the platform is still
// materialising a just-created pot.
func (c *Client) GetPot(ctx context.Context, potID, token string) (*Pot, error) {
	var pot *Pot
	path := fmt.Sprintf("/api/pots/%s", pathEscape(potID))
	if err := c.doJSON(ctx, http.MethodGet, path, token, nil, &pot); err != nil {
		return nil, err
	}
	return pot, nil
}

// AcceptTerms records the user's acceptance of the pot's terms.
func (c *Client) AcceptTerms(ctx context.Context, potID, token string) error {
	path := fmt.Sprintf("/api/pots/%s/accept-terms", pathEscape(potID))
	return c.doJSON(ctx, http.MethodPost, path, token, nil, nil)
}

// AbandonPot abandons a draft pot.
func (c *Client) AbandonPot(ctx context.Context, potID, token string) error {
	path := fmt.Sprintf("/api/pots/%s/abandon", pathEscape(potID))
	return c.doJSON(ctx, http.MethodPost, path, token, nil, nil)
}

// Deposit initiates a deposit of the given amount into the pot.
func (c *Client) Deposit(ctx context.Context, potID string, amount float64, token string) error {
	path := fmt.Sprintf("/api/pots/%s/deposit", pathEscape(potID))
	body := map[string]float64{"amount": amount}
	return c.doJSON(ctx, http.MethodPost, path, token, body, nil)
}

// SendFunds instructs the platform to pull the deposit amount from the
// user's linked account into the pot.
func (c *Client) SendFunds(ctx context.Context, potID string, amount float64, token string) error {
	path := fmt.Sprintf("/api/pots/%s/send-funds", pathEscape(potID))
	body := map[string]float64{"amount": amount}
	return c.doJSON(ctx, http.MethodPost, path, token, body, nil)
}
