package store

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// DefaultMinStock is applied when an item is created without an
// explicit minimum-stock threshold.
const DefaultMinStock = 5

// DefaultTZOffsetMin is the store-local timezone offset for new
// tenants, in minutes east of UTC (Asia/Kolkata).
const DefaultTZOffsetMin = 330

// Tenant is one store: the isolation boundary. Every other row carries
// its id and no operation reads or writes across tenants. Created on
// first contact from a new external identity, never deleted.
type Tenant struct {
	bun.BaseModel `bun:"table:stores,alias:s"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	ExternalID  string    `bun:"external_id,notnull,unique" json:"external_id"`
	Name        string    `bun:"name,notnull,default:''" json:"name"`
	TZOffsetMin int       `bun:"tz_offset_min,notnull,default:330" json:"tz_offset_min"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// Item is one catalog entry. CurrentStock is only ever changed through
// a Transaction-producing operation; items are never deleted.
type Item struct {
	bun.BaseModel `bun:"table:items,alias:i"`

	ID           int64            `bun:"id,pk,autoincrement" json:"id"`
	StoreID      int64            `bun:"store_id,notnull" json:"store_id"`
	Name         string           `bun:"name,notnull" json:"name"`
	Aliases      []string         `bun:"aliases,array" json:"aliases,omitempty"`
	Unit         *string          `bun:"unit" json:"unit,omitempty"`
	CurrentStock int64            `bun:"current_stock,notnull,default:0" json:"current_stock"`
	MinStock     int64            `bun:"min_stock,notnull,default:5" json:"min_stock"`
	LastCost     *decimal.Decimal `bun:"last_cost,type:numeric" json:"last_cost,omitempty"`
	CreatedAt    time.Time        `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// LowOnStock reports whether the item is at or below its threshold.
func (i *Item) LowOnStock() bool {
	return i.CurrentStock <= i.MinStock
}

// ReorderQty suggests an order quantity that brings stock to at least
// double the threshold and never suggests less than the threshold
// itself, even when current stock is deeply negative-relative.
func (i *Item) ReorderQty() int64 {
	qty := i.MinStock*2 - i.CurrentStock
	if qty < i.MinStock {
		return i.MinStock
	}
	return qty
}

// TxKind tags a stock movement.
type TxKind string

const (
	TxSale    TxKind = "SALE"
	TxStockIn TxKind = "STOCK_IN"
	TxAdjust  TxKind = "ADJUST"
)

// Transaction is an immutable log line of one stock movement. Every
// stock mutation on an Item has exactly one Transaction row; the row is
// deleted only by the undo that reverses it.
type Transaction struct {
	bun.BaseModel `bun:"table:transactions,alias:t"`

	ID        int64            `bun:"id,pk,autoincrement" json:"id"`
	StoreID   int64            `bun:"store_id,notnull" json:"store_id"`
	Kind      TxKind           `bun:"kind,notnull" json:"kind"`
	ItemID    int64            `bun:"item_id,notnull" json:"item_id"`
	Qty       int64            `bun:"qty,notnull" json:"qty"`
	Amount    *decimal.Decimal `bun:"amount,type:numeric" json:"amount,omitempty"`
	CreatedAt time.Time        `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// StockDelta is the signed effect this transaction had on stock.
func (t *Transaction) StockDelta() int64 {
	switch t.Kind {
	case TxSale:
		return -t.Qty
	case TxStockIn:
		return t.Qty
	default:
		return t.Qty
	}
}

// LedgerParty is a counterparty who can owe or be owed money.
// Auto-created on first debt reference, never deleted.
type LedgerParty struct {
	bun.BaseModel `bun:"table:ledger_parties,alias:p"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	StoreID   int64     `bun:"store_id,notnull" json:"store_id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Phone     *string   `bun:"phone" json:"phone,omitempty"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// LedgerEntry is an immutable signed money movement against a party.
// Positive = party owes the store, negative = party paid. A party's
// balance is always the sum of its entries, never stored redundantly.
type LedgerEntry struct {
	bun.BaseModel `bun:"table:ledger_entries,alias:e"`

	ID        int64           `bun:"id,pk,autoincrement" json:"id"`
	StoreID   int64           `bun:"store_id,notnull" json:"store_id"`
	PartyID   int64           `bun:"party_id,notnull" json:"party_id"`
	Amount    decimal.Decimal `bun:"amount,type:numeric,notnull" json:"amount"`
	Note      *string         `bun:"note" json:"note,omitempty"`
	CreatedAt time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// AddStockInput identifies the target of a stock-in either by explicit
// item id or by free-text name (resolve-or-create).
type AddStockInput struct {
	ItemID      *int64
	Name        string
	Qty         int64
	Unit        *string
	CostPerUnit *decimal.Decimal
}

// SaleResult reports a recorded sale. LowStock warns that the item fell
// to or below its threshold; it never blocks the sale.
type SaleResult struct {
	Item     *Item        `json:"item"`
	Tx       *Transaction `json:"tx"`
	LowStock bool         `json:"low_stock"`
}

// StockResult reports a stock-in or adjustment. Created is set when the
// stock-in created the item on the fly.
type StockResult struct {
	Item    *Item        `json:"item"`
	Tx      *Transaction `json:"tx"`
	Created bool         `json:"created"`
}

// LedgerResult reports a debt or payment posting with the live derived
// balance. NegativeBalance flags that the store now owes the party; it
// is a warning, not an error.
type LedgerResult struct {
	Party           *LedgerParty    `json:"party"`
	Entry           *LedgerEntry    `json:"entry"`
	Balance         decimal.Decimal `json:"balance"`
	NegativeBalance bool            `json:"negative_balance"`
}

// DaySummary aggregates one local calendar day of a tenant's activity.
type DaySummary struct {
	Date         string          `json:"date"`
	SaleCount    int64           `json:"sale_count"`
	SaleQty      int64           `json:"sale_qty"`
	SaleTotal    decimal.Decimal `json:"sale_total"`
	StockInCount int64           `json:"stock_in_count"`
	StockInQty   int64           `json:"stock_in_qty"`
	AdjustCount  int64           `json:"adjust_count"`
	EntryCount   int64           `json:"entry_count"`
	DebtTotal    decimal.Decimal `json:"debt_total"`
	PaymentTotal decimal.Decimal `json:"payment_total"`
}

// ActionKind distinguishes the two undoable row types.
type ActionKind string

const (
	ActionTransaction ActionKind = "transaction"
	ActionLedgerEntry ActionKind = "ledger"
)

// Action is one recent undoable action, tagged with a stable short
// label (T<id> for transactions, L<id> for ledger entries) that the
// agent can quote back and later pass to undo.
type Action struct {
	Label     string           `json:"label"`
	Kind      ActionKind       `json:"kind"`
	ID        int64            `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	TxKind    TxKind           `json:"tx_kind,omitempty"`
	ItemName  string           `json:"item_name,omitempty"`
	Qty       int64            `json:"qty,omitempty"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	PartyName string           `json:"party_name,omitempty"`
	Note      *string          `json:"note,omitempty"`
}

// UndoResult reports a reversed action. Item carries post-reversal
// stock for transactions; Party is set for ledger entries.
type UndoResult struct {
	Label string       `json:"label"`
	Item  *Item        `json:"item,omitempty"`
	Party *LedgerParty `json:"party,omitempty"`
}
