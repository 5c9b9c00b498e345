package coreapi

import (
	"context"
	"fmt"
	"net/http"
)

// CreateUser registers a new user with the core platform and returns the
// external user id assigned to them.
func (c *Client) CreateUser(ctx context.Context, req *CreateUserRequest, token string) (string, error) {
	var resp CreateUserResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/user", token, req, &resp); err != nil {
		return "", err
	}
	return resp.UserID, nil
}

// GetUserDetails returns the authenticated user's record, or nil when the
// platform has no user for this identity yet.
func (c *Client) GetUserDetails(ctx context.Context, token string) (*UserDetails, error) {
	var details *UserDetails
	if err := c.doJSON(ctx, http.MethodGet, "/api/user", token, nil, &details); err != nil {
		return nil, err
	}
	return details, nil
}

// GetUserBankAccount returns the user's linked bank account, or nil when none
// has been linked.
func (c *Client) GetUserBankAccount(ctx context.Context, token string) (*BankAccount, error) {
	var account *BankAccount
	if err := c.doJSON(ctx, http.MethodGet, "/api/user/bank-account", token, nil, &account); err != nil {
		return nil, err
	}
	return account, nil
}

// GetUserPots lists the authenticated user's pots.
func (c *Client) GetUserPots(ctx context.Context, token string) ([]Pot, error) {
	var pots []Pot
	if err := c.doJSON(ctx, http.MethodGet, "/api/user/pots", token, nil, &pots); err != nil {
		return nil, err
	}
	return pots, nil
}

// LinkAccount starts open-banking account linking against the given
// payment institution.
func (c *Client) LinkAccount(ctx context.Context, institutionID, token string) error {
	body := map[string]string{"institutionId": institutionID}
	return c.doJSON(ctx, http.MethodPost, "/api/user/link-account", token, body, nil)
}

// UnlinkAccount removes the user's linked bank account.
func (c *Client) UnlinkAccount(ctx context.Context, token string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/user/unlink-account", token, nil, nil)
}

// StartVerification kicks off (or resumes) identity verification.
func (c *Client) StartVerification(ctx context.Context, token string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/user/verify", token, nil, nil)
}

// GetPaymentInstitutions lists the banks available for account linking.
func (c *Client) GetPaymentInstitutions(ctx context.Context, token string) ([]PaymentInstitution, error) {
	var institutions []PaymentInstitution
	if err := c.doJSON(ctx, http.MethodGet, "/api/data/institutions", token, nil, &institutions); err != nil {
		return nil, err
	}
	return institutions, nil
}

// GetEmploymentStatuses lists the employment status reference data.
func (c *Client) GetEmploymentStatuses(ctx context.Context, token string) ([]ReferenceItem, error) {
	var items []ReferenceItem
	if err := c.doJSON(ctx, http.MethodGet, "/api/data/employment-status", token, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetIndustries lists the industry reference data.
func (c *Client) GetIndustries(ctx context.Context, token string) ([]ReferenceItem, error) {
	var items []ReferenceItem
	if err := c.doJSON(ctx, http.MethodGet, "/api/data/industries", token, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetOccupations lists occupations belonging to an industry.
func (c *Client) GetOccupations(ctx context.Context, industryID, token string) ([]ReferenceItem, error) {
	var items []ReferenceItem
	path := fmt.Sprintf("/api/data/occupations?industryId=%s", pathEscape(industryID))
	if err := c.doJSON(ctx, http.MethodGet, path, token, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetSourceOfFunds lists the source-of-funds reference data.
func (c *Client) GetSourceOfFunds(ctx context.Context, token string) ([]ReferenceItem, error) {
	var items []ReferenceItem
	if err := c.doJSON(ctx, http.MethodGet, "/api/data/source-of-funds", token, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}
