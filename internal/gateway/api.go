// ABOUTME: HTTP API routes and handlers for deployments, access control and tokens
// ABOUTME: The caller is always the authenticated identity; bodies never name it

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/2389/coven-acl/internal/accesscontrol"
	"github.com/2389/coven-acl/internal/api"
	"github.com/2389/coven-acl/internal/auth"
	"github.com/2389/coven-acl/internal/identity"
	"github.com/2389/coven-acl/internal/ledger"
	"github.com/2389/coven-acl/internal/store"
	"github.com/2389/coven-acl/internal/token"
)

// maxBodyBytes bounds request bodies; every request here is a few fields.
const maxBodyBytes = 64 << 10

var errEmptyBody = errors.New("request body is required")

// Handler returns the gateway's HTTP routes.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	authed := auth.Middleware(g.tokens)
	protect := func(h http.HandlerFunc) http.Handler { return authed(h) }

	// No auth
	mux.HandleFunc("GET /health", g.handleHealth)
	mux.HandleFunc("POST /api/auth/login", g.handleLogin)

	mux.Handle("POST /api/deployments", protect(g.handleDeploy))
	mux.Handle("GET /api/deployments", protect(g.handleListDeployments))
	mux.Handle("GET /api/deployments/{id}", protect(g.handleGetDeployment))

	mux.Handle("GET /api/deployments/{id}/admin", protect(g.handleGetAdmin))
	mux.Handle("PUT /api/deployments/{id}/admin", protect(g.handleSetAdmin))
	mux.Handle("POST /api/deployments/{id}/authorizations", protect(g.handleAuthorize))
	mux.Handle("GET /api/deployments/{id}/authorizations/{identity}", protect(g.handleGetAuthorization))
	mux.Handle("DELETE /api/deployments/{id}/authorizations/{identity}", protect(g.handleDeauthorize))

	mux.Handle("GET /api/deployments/{id}/events", protect(g.handleEvents))
	mux.Handle("GET /api/deployments/{id}/events/stream", protect(g.handleEventStream))
	mux.Handle("GET /api/deployments/{id}/audit", protect(g.handleAudit))

	mux.Handle("POST /api/deployments/{id}/token/mint", protect(g.handleMint))
	mux.Handle("POST /api/deployments/{id}/token/transfer", protect(g.handleTransfer))
	mux.Handle("GET /api/deployments/{id}/token/balances/{identity}", protect(g.handleBalance))

	return mux
}

func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	caller, err := g.signatures.Verify(&req)
	if err != nil {
		g.logger.Info("login rejected", "error", err)
		if errors.Is(err, auth.ErrNonceCacheFull) {
			w.Header().Set("Retry-After", "60")
			g.sendJSONError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		g.sendJSONError(w, http.StatusUnauthorized, err.Error())
		return
	}

	expiresAt := time.Now().Add(g.config.Auth.TokenTTL).UTC().Truncate(time.Second)
	tok, err := g.tokens.Generate(caller, g.config.Auth.TokenTTL)
	if err != nil {
		g.logger.Error("failed to issue token", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.logger.Info("login", "identity", caller.Hex())
	g.writeJSON(w, http.StatusOK, api.LoginResponse{Token: tok, Identity: caller, ExpiresAt: expiresAt})
}

func (g *Gateway) handleDeploy(w http.ResponseWriter, r *http.Request) {
	var req api.DeployRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.TokenName == "" {
		req.TokenName = g.config.Token.Name
	}
	if req.TokenSymbol == "" {
		req.TokenSymbol = g.config.Token.Symbol
	}

	d, err := g.ledger.Deploy(r.Context(), auth.MustCallerFromContext(r.Context()), req.TokenName, req.TokenSymbol)
	if err != nil {
		g.sendLedgerError(w, err)
		return
	}
	g.writeJSON(w, http.StatusCreated, toDeployment(*d))
}

func (g *Gateway) handleListDeployments(w http.ResponseWriter, r *http.Request) {
	deployments, err := g.ledger.Deployments(r.Context())
	if err != nil {
		g.sendLedgerError(w, err)
		return
	}

	out := make([]api.Deployment, 0, len(deployments))
	for _, d := range deployments {
		out = append(out, toDeployment(*d))
	}
	g.writeJSON(w, http.StatusOK, map[string][]api.Deployment{"deployments": out})
}

func (g *Gateway) handleGetDeployment(w http.ResponseWriter, r *http.Request) {
	st, err := g.ledger.Status(r.PathValue("id"))
	if err != nil {
		g.sendLedgerError(w, err)
		return
	}
	g.writeJSON(w, http.StatusOK, toStatus(st))
}

func (g *Gateway) handleGetAdmin(w http.ResponseWriter, r *http.Request) {
	admin, err := g.ledger.Admin(r.PathValue("id"))
	if err != nil {
		g.sendLedgerError(w, err)
		return
	}
	g.writeJSON(w, http.StatusOK, api.AdminResponse{Admin: admin})
}

func (g *Gateway) handleSetAdmin(w http.ResponseWriter, r *http.Request) {
	var req api.AdminRequest
	if err := decodeJSON(w, r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	newAdmin, err := parseIdentity("admin", req.Admin)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	ev, err := g.ledger.SetAdmin(r.Context(), r.PathValue("id"), auth.MustCallerFromContext(r.Context()), newAdmin)
	if err != nil {
		g.sendLedgerError(w, err)
		return
	}
	g.writeJSON(w, http.StatusOK, toEvent(ev, time.Time{}))
}

func (g *Gateway) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	var req api.AuthorizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	subject, err := parseIdentity("identity", req.Identity)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	ev, err := g.ledger.Authorize(r.Context(), r.PathValue("id"), auth.MustCallerFromContext(r.Context()), subject)
	if err != nil {
		g.sendLedgerError(w, err)
		return
	}
	g.writeJSON(w, http.StatusOK, toEvent(ev, time.Time{}))
}

func (g *Gateway) handleDeauthorize(w http.ResponseWriter, r *http.Request) {
	subject, err := parseIdentity("identity", r.PathValue("identity"))
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	ev, err := g.ledger.Deauthorize(r.Context(), r.PathValue("id"), auth.MustCallerFromContext(r.Context()), subject)
	if err != nil {
		g.sendLedgerError(w, err)
		return
	}
	g.writeJSON(w, http.StatusOK, toEvent(ev, time.Time{}))
}

func (g *Gateway) handleGetAuthorization(w http.ResponseWriter, r *http.Request) {
	subject, err := parseIdentity("identity", r.PathValue("identity"))
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	ok, err := g.ledger.IsAuthorized(r.PathValue("id"), subject)
	if err != nil {
		g.sendLedgerError(w, err)
		return
	}
	g.writeJSON(w, http.StatusOK, api.AuthorizationResponse{Identity: subject, Authorized: ok})
}

func (g *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	accessRecords, err := g.ledger.AccessEvents(r.Context(), id)
	if err != nil {
		g.sendLedgerError(w, err)
		return
	}
	tokenRecords, err := g.ledger.TokenEvents(r.Context(), id)
	if err != nil {
		g.sendLedgerError(w, err)
		return
	}

	resp := api.EventsResponse{
		Access: make([]api.Event, 0, len(accessRecords)),
		Token:  make([]api.Transfer, 0, len(tokenRecords)),
	}
	for _, rec := range accessRecords {
		resp.Access = append(resp.Access, toEvent(rec.Event, rec.RecordedAt))
	}
	for _, rec := range tokenRecords {
		resp.Token = append(resp.Token, toTransfer(rec.Event, rec.RecordedAt))
	}
	g.writeJSON(w, http.StatusOK, resp)
}

func (g *Gateway) handleAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f store.AuditFilter

	if v := q.Get("caller"); v != "" {
		caller, err := parseIdentity("caller", v)
		if err != nil {
			g.sendJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Caller = &caller
	}
	if v := q.Get("action"); v != "" {
		action := store.AuditAction(v)
		f.Action = &action
	}
	if v := q.Get("outcome"); v != "" {
		outcome := store.AuditOutcome(v)
		f.Outcome = &outcome
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			g.sendJSONError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		f.Limit = limit
	}

	entries, err := g.ledger.Audit(r.Context(), r.PathValue("id"), f)
	if err != nil {
		g.sendLedgerError(w, err)
		return
	}

	out := make([]api.AuditEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, toAuditEntry(e))
	}
	g.writeJSON(w, http.StatusOK, map[string][]api.AuditEntry{"entries": out})
}

func (g *Gateway) handleMint(w http.ResponseWriter, r *http.Request) {
	g.handleTokenCall(w, r, g.ledger.Mint)
}

func (g *Gateway) handleTransfer(w http.ResponseWriter, r *http.Request) {
	g.handleTokenCall(w, r, g.ledger.Transfer)
}

type tokenCall func(ctx context.Context, id string, caller, to identity.Identity, amount uint64) (token.TransferEvent, error)

func (g *Gateway) handleTokenCall(w http.ResponseWriter, r *http.Request, call tokenCall) {
	var req api.TokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseIdentity("to", req.To)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	ev, err := call(r.Context(), r.PathValue("id"), auth.MustCallerFromContext(r.Context()), to, req.Amount)
	if err != nil {
		g.sendLedgerError(w, err)
		return
	}
	g.writeJSON(w, http.StatusOK, toTransfer(ev, time.Time{}))
}

func (g *Gateway) handleBalance(w http.ResponseWriter, r *http.Request) {
	holder, err := parseIdentity("identity", r.PathValue("identity"))
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := r.PathValue("id")
	st, err := g.ledger.Status(id)
	if err != nil {
		g.sendLedgerError(w, err)
		return
	}
	balance, err := g.ledger.BalanceOf(id, holder)
	if err != nil {
		g.sendLedgerError(w, err)
		return
	}
	g.writeJSON(w, http.StatusOK, api.BalanceResponse{Identity: holder, Balance: balance, Symbol: st.Deployment.TokenSymbol})
}

// parseIdentity parses a request identity. The null identity parses fine
// here; whether it is acceptable is for the access control layer to decide.
func parseIdentity(field, s string) (identity.Identity, error) {
	if s == "" {
		return identity.Null, fmt.Errorf("%s is required", field)
	}
	id, err := identity.Parse(s)
	if err != nil {
		return identity.Null, fmt.Errorf("invalid %s: %v", field, err)
	}
	return id, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return errors.New("invalid JSON body")
	}
	return nil
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, accesscontrol.ErrNotAdmin), errors.Is(err, accesscontrol.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, accesscontrol.ErrInvalidAddress),
		errors.Is(err, token.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidToken):
		return http.StatusBadRequest
	case errors.Is(err, token.ErrInsufficientBalance):
		return http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (g *Gateway) sendLedgerError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		g.logger.Error("request failed", "error", err)
		g.sendJSONError(w, status, "internal server error")
		return
	}
	if status == http.StatusNotFound {
		g.sendJSONError(w, status, "deployment not found")
		return
	}
	g.sendJSONError(w, status, err.Error())
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	g.writeJSON(w, status, api.ErrorResponse{Error: message})
}
