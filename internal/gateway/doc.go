// Package gateway serves hosted AccessControl deployments over HTTP.
//
// # Overview
//
// The Gateway owns the store, the ledger that holds every deployment in
// memory, the notification broadcaster and the two auth verifiers. It
// listens on plain TCP or, when tailscale is enabled, as a tsnet node on
// the tailnet.
//
// # HTTP API
//
// Everything under /api except login requires a bearer token. The token's
// subject is the caller of every operation.
//
//   - POST /api/auth/login - Exchange a signed challenge for a bearer token
//   - POST /api/deployments - Deploy; the caller becomes admin
//   - GET /api/deployments/{id} - Deployment status
//   - GET|PUT /api/deployments/{id}/admin - Read or transfer the admin role
//   - POST /api/deployments/{id}/authorizations - Authorize an identity
//   - GET|DELETE /api/deployments/{id}/authorizations/{identity} - Check or revoke
//   - GET /api/deployments/{id}/events - Full event history
//   - GET /api/deployments/{id}/events/stream - Live events (SSE)
//   - GET /api/deployments/{id}/audit - Accepted and rejected calls
//   - POST /api/deployments/{id}/token/mint - Mint (admin or authorized)
//   - POST /api/deployments/{id}/token/transfer - Transfer from the caller
//   - GET /api/deployments/{id}/token/balances/{identity} - Balance
//   - GET /health - Liveness: status, hosted deployment count and uptime
//
// Errors are JSON objects with a single "error" field. Permission failures
// are 403, malformed input 400, unknown deployments 404 and overdrawn
// transfers 409.
//
// # SSE Streaming
//
// The stream opens with a ready event and then carries one event per
// committed notification, named by its kind:
//
//	event: authorization_changed
//	data: {"seq":2,"kind":"authorization_changed",...}
//
//	event: transfer
//	data: {"seq":1,"from":"0x0000...","amount":100,...}
//
// Shutdown closes the broadcaster first, which ends every open stream.
package gateway
