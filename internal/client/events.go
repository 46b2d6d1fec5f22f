// ABOUTME: Client calls for event history, the audit trail and the live SSE stream
// ABOUTME: StreamEvents decodes each server-sent event into an access event or a transfer

package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/2389/coven-acl/internal/api"
	"github.com/2389/coven-acl/internal/identity"
)

// Events returns the full access and token history of a deployment.
func (c *Client) Events(ctx context.Context, id string) (*api.EventsResponse, error) {
	var resp api.EventsResponse
	if err := c.do(ctx, http.MethodGet, deploymentPath(id, "events"), true, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AuditQuery filters the audit trail. Zero fields do not filter.
type AuditQuery struct {
	Caller  identity.Identity
	Action  string
	Outcome string
	Limit   int
}

func (q AuditQuery) encode() string {
	v := url.Values{}
	if !q.Caller.IsNull() {
		v.Set("caller", q.Caller.Hex())
	}
	if q.Action != "" {
		v.Set("action", q.Action)
	}
	if q.Outcome != "" {
		v.Set("outcome", q.Outcome)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

// Audit returns audit entries for a deployment, newest first.
func (c *Client) Audit(ctx context.Context, id string, q AuditQuery) ([]api.AuditEntry, error) {
	var resp struct {
		Entries []api.AuditEntry `json:"entries"`
	}
	if err := c.do(ctx, http.MethodGet, deploymentPath(id, "audit")+q.encode(), true, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// StreamEvent is one server-sent event. Exactly one of Access and Transfer
// is set, except for the initial "ready" event which carries neither.
type StreamEvent struct {
	Name     string
	Access   *api.Event
	Transfer *api.Transfer
}

// StreamEvents follows a deployment's live events until ctx is cancelled,
// the server closes the stream, or fn returns an error.
func (c *Client) StreamEvents(ctx context.Context, id string, fn func(StreamEvent) error) error {
	req, err := c.newRequest(ctx, http.MethodGet, deploymentPath(id, "events", "stream"), true, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("opening event stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	var name, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if name == "" {
				continue
			}
			ev, err := parseStreamEvent(name, data)
			if err != nil {
				return err
			}
			if err := fn(ev); err != nil {
				return err
			}
			name, data = "", ""
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("reading event stream: %w", err)
	}
	return ctx.Err()
}

func parseStreamEvent(name, data string) (StreamEvent, error) {
	ev := StreamEvent{Name: name}
	switch name {
	case "ready":
	case "transfer":
		ev.Transfer = &api.Transfer{}
		if err := json.Unmarshal([]byte(data), ev.Transfer); err != nil {
			return ev, fmt.Errorf("decoding %s event: %w", name, err)
		}
	default:
		ev.Access = &api.Event{}
		if err := json.Unmarshal([]byte(data), ev.Access); err != nil {
			return ev, fmt.Errorf("decoding %s event: %w", name, err)
		}
	}
	return ev, nil
}
