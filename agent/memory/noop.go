package memory

import "context"

// Noop drops everything. Used when no Redis is configured; every turn
// then stands alone, which is acceptable for the local REPL.
type Noop struct{}

func (Noop) ReadTranscript(context.Context, string) (string, error) { return "", nil }

func (Noop) AppendTurn(context.Context, string, string, string) error { return nil }
