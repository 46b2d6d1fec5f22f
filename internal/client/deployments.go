// ABOUTME: Client calls for login and deployment lifecycle
// ABOUTME: Login signs a fresh challenge with the caller's key and keeps the issued token

package client

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/2389/coven-acl/internal/api"
	"github.com/2389/coven-acl/internal/auth"
	"github.com/2389/coven-acl/internal/identity"
)

// Login proves control of key to the gateway and stores the bearer token
// it issues on the client.
func (c *Client) Login(ctx context.Context, key *identity.Key) (*api.LoginResponse, error) {
	var resp api.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", false, auth.SignLogin(key, time.Now()), &resp); err != nil {
		return nil, err
	}
	c.token = resp.Token
	return &resp, nil
}

// Deploy creates a deployment administered by the caller. Empty name or
// symbol take the gateway's configured defaults.
func (c *Client) Deploy(ctx context.Context, tokenName, tokenSymbol string) (*api.Deployment, error) {
	var d api.Deployment
	req := api.DeployRequest{TokenName: tokenName, TokenSymbol: tokenSymbol}
	if err := c.do(ctx, http.MethodPost, "/api/deployments", true, req, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDeployments returns every deployment in creation order.
func (c *Client) ListDeployments(ctx context.Context) ([]api.Deployment, error) {
	var resp struct {
		Deployments []api.Deployment `json:"deployments"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/deployments", true, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Deployments, nil
}

// Status returns a deployment and its live state.
func (c *Client) Status(ctx context.Context, id string) (*api.DeploymentStatus, error) {
	var st api.DeploymentStatus
	if err := c.do(ctx, http.MethodGet, deploymentPath(id), true, nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func deploymentPath(id string, parts ...string) string {
	p := "/api/deployments/" + url.PathEscape(id)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}
