// Package store provides tenant-scoped, race-safe mutations and
// queries over the catalog, the stock-movement log, and the credit
// ledger. Guarded mutations (sales, negative adjustments, stock-in
// undo) are expressed as single conditional updates so that two
// concurrent turns can never both pass a stock guard.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kiranaops/kirana-agent/match"
)

var (
	// ErrNotFound covers entity-absent and not-owned-by-tenant alike;
	// callers must not be able to distinguish another tenant's rows
	// from missing ones.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput rejects zero/negative quantities and blank names.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDuplicate rejects an exact-name duplicate item or alias.
	ErrDuplicate = errors.New("duplicate")
)

// InsufficientStockError reports a stock guard rejection with the
// current stock so the agent can tell the shopkeeper what is left.
type InsufficientStockError struct {
	ItemID    int64
	ItemName  string
	Have      int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: have %d, requested %d", e.ItemName, e.Have, e.Requested)
}

// UndoBlockedError reports an undo whose reversal would drive stock
// negative (stock-in already sold through).
type UndoBlockedError struct {
	Label string
	Have  int64
	Need  int64
}

func (e *UndoBlockedError) Error() string {
	return fmt.Sprintf("cannot undo %s: reversal needs %d but only %d in stock", e.Label, e.Need, e.Have)
}

// AmbiguousMatchError reports multiple non-exact matches. The operation
// refuses to guess: auto-selecting on fuzzy similarity risks posting
// against the wrong item or party.
type AmbiguousMatchError struct {
	Query      string
	Candidates []match.Result
}

func (e *AmbiguousMatchError) Error() string {
	names := make([]string, 0, len(e.Candidates))
	for _, c := range e.Candidates {
		names = append(names, c.Name)
	}
	return fmt.Sprintf("ambiguous match for %q: %s", e.Query, strings.Join(names, ", "))
}

// Store is the repository contract shared by the Postgres and the
// in-memory implementation. Every method takes an explicit tenant id
// and verifies ownership before mutating.
type Store interface {
	// EnsureTenant returns the tenant for an external chat identity,
	// creating it on first contact.
	EnsureTenant(ctx context.Context, externalID string) (*Tenant, error)
	GetTenant(ctx context.Context, tenantID int64) (*Tenant, error)

	Items(ctx context.Context, tenantID int64) ([]Item, error)
	ItemByID(ctx context.Context, tenantID, itemID int64) (*Item, error)
	CreateItem(ctx context.Context, tenantID int64, name string, unit *string, minStock int64) (*Item, error)
	AddAlias(ctx context.Context, tenantID, itemID int64, alias string) (*Item, error)
	SetMinStock(ctx context.Context, tenantID, itemID, minStock int64) (*Item, error)

	RecordSale(ctx context.Context, tenantID, itemID, qty int64, price *decimal.Decimal) (*SaleResult, error)
	AddStock(ctx context.Context, tenantID int64, in AddStockInput) (*StockResult, error)
	AdjustStock(ctx context.Context, tenantID, itemID, qty int64, reason string) (*StockResult, error)

	Parties(ctx context.Context, tenantID int64) ([]LedgerParty, error)
	AddDebt(ctx context.Context, tenantID int64, partyName string, amount decimal.Decimal, note *string) (*LedgerResult, error)
	ReceivePayment(ctx context.Context, tenantID int64, partyName string, amount decimal.Decimal, note *string) (*LedgerResult, error)

	LowStock(ctx context.Context, tenantID int64, limit int) ([]Item, error)
	DailySummary(ctx context.Context, tenantID int64, day time.Time) (*DaySummary, error)
	RecentActions(ctx context.Context, tenantID int64, limit int) ([]Action, error)

	UndoTransaction(ctx context.Context, tenantID, txID int64) (*UndoResult, error)
	UndoLedgerEntry(ctx context.Context, tenantID, entryID int64) (*UndoResult, error)
}

const resolveCandidateLimit = 5

// resolveItem picks one item for a free-text name. Exactness is a hard
// gate: with more than one candidate, only an exact top hit is
// auto-selected; otherwise the caller gets AmbiguousMatchError with the
// candidate list for clarification.
func resolveItem(items []Item, name string) (*Item, error) {
	rows := make([]match.ItemRow, 0, len(items))
	for _, it := range items {
		rows = append(rows, match.ItemRow{ID: it.ID, Name: it.Name, Aliases: it.Aliases})
	}

	ranked := match.RankItems(name, rows, resolveCandidateLimit)
	id, err := pickOne(name, ranked)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID == id {
			return &items[i], nil
		}
	}
	return nil, fmt.Errorf("%w: item %q", ErrNotFound, name)
}

// resolveParty mirrors resolveItem over ledger parties.
func resolveParty(parties []LedgerParty, name string) (*LedgerParty, error) {
	rows := make([]match.PartyRow, 0, len(parties))
	for _, p := range parties {
		rows = append(rows, match.PartyRow{ID: p.ID, Name: p.Name})
	}

	ranked := match.RankParties(name, rows, resolveCandidateLimit)
	id, err := pickOne(name, ranked)
	if err != nil {
		return nil, err
	}
	for i := range parties {
		if parties[i].ID == id {
			return &parties[i], nil
		}
	}
	return nil, fmt.Errorf("%w: party %q", ErrNotFound, name)
}

func pickOne(query string, ranked []match.Result) (int64, error) {
	switch {
	case len(ranked) == 0:
		return 0, fmt.Errorf("%w: %q", ErrNotFound, query)
	case len(ranked) == 1 || ranked[0].Exact:
		return ranked[0].ID, nil
	default:
		return 0, &AmbiguousMatchError{Query: query, Candidates: ranked}
	}
}

// dayWindow computes the [start, end) bounds of one local calendar day
// using the tenant's fixed offset. "Today" must match the shopkeeper's
// day, not UTC midnight.
func dayWindow(day time.Time, tzOffsetMin int) (time.Time, time.Time) {
	loc := time.FixedZone("store", tzOffsetMin*60)
	local := day.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.Add(24 * time.Hour)
}

func foldName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func hasAlias(it *Item, alias string) bool {
	folded := foldName(alias)
	if foldName(it.Name) == folded {
		return true
	}
	for _, a := range it.Aliases {
		if foldName(a) == folded {
			return true
		}
	}
	return false
}
