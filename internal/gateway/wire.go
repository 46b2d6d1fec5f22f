// ABOUTME: Conversions from domain records to API wire types
// ABOUTME: Keeps JSON shapes out of the ledger and store packages

package gateway

import (
	"time"

	"github.com/2389/coven-acl/internal/accesscontrol"
	"github.com/2389/coven-acl/internal/api"
	"github.com/2389/coven-acl/internal/ledger"
	"github.com/2389/coven-acl/internal/store"
	"github.com/2389/coven-acl/internal/token"
)

func toDeployment(d store.Deployment) api.Deployment {
	return api.Deployment{
		ID:          d.ID,
		Deployer:    d.Deployer,
		TokenName:   d.TokenName,
		TokenSymbol: d.TokenSymbol,
		CreatedAt:   d.CreatedAt,
	}
}

func toStatus(s ledger.Status) api.DeploymentStatus {
	return api.DeploymentStatus{
		Deployment:   toDeployment(s.Deployment),
		Admin:        s.Admin,
		TotalSupply:  s.TotalSupply,
		AccessEvents: s.AccessEvents,
		TokenEvents:  s.TokenEvents,
	}
}

func toEvent(e accesscontrol.Event, at time.Time) api.Event {
	out := api.Event{Seq: e.Seq, Kind: string(e.Kind), Caller: e.Caller, RecordedAt: at}
	switch e.Kind {
	case accesscontrol.KindAdminChanged:
		out.Previous, out.Current = &e.Previous, &e.Current
	case accesscontrol.KindAuthorizationChanged:
		out.Subject, out.Status = &e.Subject, &e.Status
	}
	return out
}

func toTransfer(e token.TransferEvent, at time.Time) api.Transfer {
	return api.Transfer{
		Seq:        e.Seq,
		Caller:     e.Caller,
		From:       e.From,
		To:         e.To,
		Amount:     e.Amount,
		Mint:       e.IsMint(),
		RecordedAt: at,
	}
}

func toAuditEntry(e store.AuditEntry) api.AuditEntry {
	return api.AuditEntry{
		ID:        e.ID,
		Caller:    e.Caller,
		Action:    string(e.Action),
		Target:    e.Target,
		Outcome:   string(e.Outcome),
		Error:     e.Error,
		Timestamp: e.Timestamp,
	}
}
