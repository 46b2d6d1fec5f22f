// ABOUTME: Client calls for the token bound to a deployment
// ABOUTME: Mint, transfer from the caller, and balance lookups

package client

import (
	"context"
	"net/http"

	"github.com/2389/coven-acl/internal/api"
	"github.com/2389/coven-acl/internal/identity"
)

// Mint creates amount new tokens for to. The caller must be admin or authorized.
func (c *Client) Mint(ctx context.Context, id string, to identity.Identity, amount uint64) (*api.Transfer, error) {
	return c.tokenCall(ctx, id, "mint", to, amount)
}

// Transfer moves amount from the caller's balance to to.
func (c *Client) Transfer(ctx context.Context, id string, to identity.Identity, amount uint64) (*api.Transfer, error) {
	return c.tokenCall(ctx, id, "transfer", to, amount)
}

func (c *Client) tokenCall(ctx context.Context, id, op string, to identity.Identity, amount uint64) (*api.Transfer, error) {
	var tr api.Transfer
	req := api.TokenRequest{To: to.String(), Amount: amount}
	if err := c.do(ctx, http.MethodPost, deploymentPath(id, "token", op), true, req, &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

// Balance returns holder's balance.
func (c *Client) Balance(ctx context.Context, id string, holder identity.Identity) (*api.BalanceResponse, error) {
	var resp api.BalanceResponse
	if err := c.do(ctx, http.MethodGet, deploymentPath(id, "token", "balances", holder.String()), true, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
