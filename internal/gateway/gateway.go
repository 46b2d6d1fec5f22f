// ABOUTME: Gateway orchestrator that serves the access control HTTP API
// ABOUTME: Owns the store, ledger, broadcaster and auth verifiers; TCP or tailnet listener

package gateway

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/coven-acl/internal/api"
	"github.com/2389/coven-acl/internal/auth"
	"github.com/2389/coven-acl/internal/config"
	"github.com/2389/coven-acl/internal/ledger"
	"github.com/2389/coven-acl/internal/notify"
	"github.com/2389/coven-acl/internal/store"
)

// Gateway hosts AccessControl deployments behind an authenticated HTTP API.
type Gateway struct {
	config      *config.Config
	store       store.Store
	ledger      *ledger.Ledger
	broadcaster *notify.Broadcaster
	tokens      *auth.JWTVerifier
	signatures  *auth.SignatureVerifier
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger
	startedAt   time.Time
}

const shutdownTimeout = 5 * time.Second

// New creates a Gateway with the configured store and restores all
// persisted deployments.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := store.Open(cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	gw, err := NewWithStore(ctx, cfg, s, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return gw, nil
}

// NewWithStore creates a Gateway over an already opened store. The gateway
// takes ownership of s and closes it on Shutdown.
func NewWithStore(ctx context.Context, cfg *config.Config, s store.Store, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	tokens, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("creating token verifier: %w", err)
	}

	broadcaster := notify.NewBroadcaster(logger)
	l := ledger.New(s, broadcaster, logger)
	if err := l.Load(ctx); err != nil {
		broadcaster.Close()
		return nil, fmt.Errorf("loading ledger: %w", err)
	}

	gw := &Gateway{
		config:      cfg,
		store:       s,
		ledger:      l,
		broadcaster: broadcaster,
		tokens:      tokens,
		signatures:  auth.NewSignatureVerifier(cfg.Auth.SignatureMaxAge),
		logger:      logger.With("component", "gateway"),
		startedAt:   time.Now(),
	}

	gw.httpServer = &http.Server{Handler: gw.Handler(), ReadHeaderTimeout: 10 * time.Second}
	return gw, nil
}

// Ledger exposes the hosted deployments, for in-process callers.
func (g *Gateway) Ledger() *ledger.Ledger {
	return g.ledger
}

// Run listens, serves until ctx is cancelled or the server fails, then shuts down.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.setupListener(ctx)
	if err != nil {
		return err
	}

	served := make(chan error, 1)
	go func() { served <- g.httpServer.Serve(ln) }()

	var runErr error
	select {
	case <-ctx.Done():
		g.logger.Info("stopping", "reason", context.Cause(ctx))
	case err := <-served:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("serving http: %w", err)
			g.logger.Error("http server stopped", "error", err)
		}
	}

	// ctx may already be done, so shutdown gets its own deadline
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return errors.Join(runErr, g.Shutdown(shutdownCtx))
}

func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		if g.config.Server.HTTPAddr != "" {
			g.logger.Warn("server.http_addr is ignored when tailscale is enabled", "http_addr", g.config.Server.HTTPAddr)
		}
		return g.listenTailnet(ctx)
	}

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", g.config.Server.HTTPAddr, err)
	}
	g.logger.Info("starting gateway", "http_addr", ln.Addr().String())
	return ln, nil
}

// tailnetServer builds the tsnet node from config. The auth key falls back
// to $TS_AUTHKEY and the state dir to <data dir>/tailscale.
func tailnetServer(cfg config.TailscaleConfig) (*tsnet.Server, error) {
	key := cmp.Or(cfg.AuthKey, os.Getenv("TS_AUTHKEY"))
	if key == "" {
		return nil, errors.New("tailscale needs an auth key: set tailscale.auth_key or TS_AUTHKEY")
	}
	dir := cmp.Or(cfg.StateDir, filepath.Join(config.DefaultDataDir(), "tailscale"))
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}
	return &tsnet.Server{
		Hostname:  cfg.Hostname,
		Dir:       dir,
		AuthKey:   key,
		Ephemeral: cfg.Ephemeral,
	}, nil
}

// listenTailnet brings the node up and serves plain HTTP on its port 80.
func (g *Gateway) listenTailnet(ctx context.Context) (net.Listener, error) {
	srv, err := tailnetServer(g.config.Tailscale)
	if err != nil {
		return nil, err
	}

	g.logger.Info("joining tailnet", "hostname", srv.Hostname, "state_dir", srv.Dir, "ephemeral", srv.Ephemeral)
	st, err := srv.Up(ctx)
	if err != nil {
		_ = srv.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	g.logger.Info("tailnet node up", tailnetAttrs(st)...)

	ln, err := srv.Listen("tcp", ":80")
	if err != nil {
		_ = srv.Close()
		return nil, fmt.Errorf("listening on tailnet: %w", err)
	}
	g.tsnetServer = srv
	return ln, nil
}

func tailnetAttrs(st *ipnstate.Status) []any {
	attrs := make([]any, 0, 4)
	if len(st.TailscaleIPs) > 0 {
		attrs = append(attrs, "ip", st.TailscaleIPs[0].String())
	}
	if st.Self != nil {
		attrs = append(attrs, "dns_name", st.Self.DNSName)
	}
	return attrs
}

// Shutdown stops the HTTP server, closes live streams and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	// closing subscriber channels ends open event streams, which would
	// otherwise hold Shutdown until ctx expires
	g.broadcaster.Close()
	g.signatures.Close()

	errs := []error{wrapClose("http server", g.httpServer.Shutdown(ctx))}
	if g.tsnetServer != nil {
		errs = append(errs, wrapClose("tailnet node", g.tsnetServer.Close()))
	}
	errs = append(errs, wrapClose("store", g.store.Close()))
	return errors.Join(errs...)
}

func wrapClose(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("closing %s: %w", what, err)
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	g.writeJSON(w, http.StatusOK, api.Health{
		Status:      "ok",
		Deployments: g.ledger.Loaded(),
		Uptime:      time.Since(g.startedAt).Round(time.Second).String(),
	})
}
