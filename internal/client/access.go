// ABOUTME: Client calls for the admin role and authorizations
// ABOUTME: Every mutating call returns the event the gateway committed

package client

import (
	"context"
	"net/http"

	"github.com/2389/coven-acl/internal/api"
	"github.com/2389/coven-acl/internal/identity"
)

// Admin returns the current admin of a deployment.
func (c *Client) Admin(ctx context.Context, id string) (identity.Identity, error) {
	var resp api.AdminResponse
	if err := c.do(ctx, http.MethodGet, deploymentPath(id, "admin"), true, nil, &resp); err != nil {
		return identity.Null, err
	}
	return resp.Admin, nil
}

// SetAdmin hands the admin role to newAdmin. Only the current admin may call it.
func (c *Client) SetAdmin(ctx context.Context, id string, newAdmin identity.Identity) (*api.Event, error) {
	var ev api.Event
	req := api.AdminRequest{Admin: newAdmin.String()}
	if err := c.do(ctx, http.MethodPut, deploymentPath(id, "admin"), true, req, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Authorize grants subject authorization.
func (c *Client) Authorize(ctx context.Context, id string, subject identity.Identity) (*api.Event, error) {
	var ev api.Event
	req := api.AuthorizeRequest{Identity: subject.String()}
	if err := c.do(ctx, http.MethodPost, deploymentPath(id, "authorizations"), true, req, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Deauthorize revokes subject's authorization.
func (c *Client) Deauthorize(ctx context.Context, id string, subject identity.Identity) (*api.Event, error) {
	var ev api.Event
	if err := c.do(ctx, http.MethodDelete, deploymentPath(id, "authorizations", subject.String()), true, nil, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// IsAuthorized reports whether subject is currently authorized.
func (c *Client) IsAuthorized(ctx context.Context, id string, subject identity.Identity) (bool, error) {
	var resp api.AuthorizationResponse
	if err := c.do(ctx, http.MethodGet, deploymentPath(id, "authorizations", subject.String()), true, nil, &resp); err != nil {
		return false, err
	}
	return resp.Authorized, nil
}
