package contract

import "context"

// Runner is the single upstream surface the message-ingestion
// collaborator calls: one free-text user turn in, plain reply text out.
type Runner interface {
	HandleTurn(ctx context.Context, externalID, text string) (string, error)
}

// MemoryStore keeps a short rolling transcript per tenant so the
// planner sees recent context. It never caches stock or balances;
// every tool re-reads current state.
type MemoryStore interface {
	ReadTranscript(ctx context.Context, tenantKey string) (string, error)
	AppendTurn(ctx context.Context, tenantKey, userText, reply string) error
}
