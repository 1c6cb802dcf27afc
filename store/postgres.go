package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// DB is the Postgres-backed Store. Stock guards rely on the database's
// atomic conditional row updates: guard-and-decrement is one UPDATE
// statement, never a read-then-write pair.
type DB struct {
	db *bun.DB
}

var _ Store = (*DB)(nil)

// OpenPostgres connects to Postgres via pgdriver and wraps the
// connection in bun with the pg dialect.
func OpenPostgres(dsn string) *DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return &DB{db: bun.NewDB(sqldb, pgdialect.New())}
}

// NewDB wraps an existing bun handle (tests, custom pools).
func NewDB(db *bun.DB) *DB {
	return &DB{db: db}
}

// Init creates the schema if it does not exist yet.
func (d *DB) Init(ctx context.Context) error {
	models := []any{
		(*Tenant)(nil),
		(*Item)(nil),
		(*Transaction)(nil),
		(*LedgerParty)(nil),
		(*LedgerEntry)(nil),
	}
	for _, model := range models {
		if _, err := d.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	return nil
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) EnsureTenant(ctx context.Context, externalID string) (*Tenant, error) {
	if externalID == "" {
		return nil, fmt.Errorf("%w: external id is empty", ErrInvalidInput)
	}

	tenant := &Tenant{ExternalID: externalID, TZOffsetMin: DefaultTZOffsetMin}
	if _, err := d.db.NewInsert().
		Model(tenant).
		On("CONFLICT (external_id) DO NOTHING").
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("ensure tenant: %w", err)
	}

	// Re-read: the insert may have been a no-op under a concurrent
	// first contact.
	found := new(Tenant)
	err := d.db.NewSelect().Model(found).Where("s.external_id = ?", externalID).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tenant: %w", err)
	}
	return found, nil
}

func (d *DB) GetTenant(ctx context.Context, tenantID int64) (*Tenant, error) {
	tenant := new(Tenant)
	err := d.db.NewSelect().Model(tenant).Where("s.id = ?", tenantID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: tenant %d", ErrNotFound, tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("load tenant: %w", err)
	}
	return tenant, nil
}

func (d *DB) Items(ctx context.Context, tenantID int64) ([]Item, error) {
	var items []Item
	err := d.db.NewSelect().Model(&items).Where("i.store_id = ?", tenantID).Order("id ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

func (d *DB) ItemByID(ctx context.Context, tenantID, itemID int64) (*Item, error) {
	return itemByID(ctx, d.db, tenantID, itemID)
}

func itemByID(ctx context.Context, idb bun.IDB, tenantID, itemID int64) (*Item, error) {
	item := new(Item)
	err := idb.NewSelect().Model(item).Where("i.id = ? AND i.store_id = ?", itemID, tenantID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: item %d", ErrNotFound, itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("load item: %w", err)
	}
	return item, nil
}

func (d *DB) CreateItem(ctx context.Context, tenantID int64, name string, unit *string, minStock int64) (*Item, error) {
	if foldName(name) == "" {
		return nil, fmt.Errorf("%w: item name is empty", ErrInvalidInput)
	}
	if minStock < 0 {
		return nil, fmt.Errorf("%w: min stock must be >= 0", ErrInvalidInput)
	}

	exists, err := d.db.NewSelect().
		Model((*Item)(nil)).
		Where("i.store_id = ? AND lower(i.name) = ?", tenantID, foldName(name)).
		Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check item name: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: item %q", ErrDuplicate, name)
	}

	item := &Item{
		StoreID:  tenantID,
		Name:     name,
		Aliases:  []string{},
		Unit:     unit,
		MinStock: minStock,
	}
	if _, err := d.db.NewInsert().Model(item).Returning("*").Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	return item, nil
}

func (d *DB) AddAlias(ctx context.Context, tenantID, itemID int64, alias string) (*Item, error) {
	if foldName(alias) == "" {
		return nil, fmt.Errorf("%w: alias is empty", ErrInvalidInput)
	}

	item, err := d.ItemByID(ctx, tenantID, itemID)
	if err != nil {
		return nil, err
	}
	if hasAlias(item, alias) {
		return nil, fmt.Errorf("%w: alias %q", ErrDuplicate, alias)
	}

	item.Aliases = append(item.Aliases, alias)
	if _, err := d.db.NewUpdate().
		Model(item).
		Column("aliases").
		Where("i.id = ? AND i.store_id = ?", itemID, tenantID).
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("update aliases: %w", err)
	}
	return item, nil
}

func (d *DB) SetMinStock(ctx context.Context, tenantID, itemID, minStock int64) (*Item, error) {
	if minStock < 0 {
		return nil, fmt.Errorf("%w: min stock must be >= 0", ErrInvalidInput)
	}

	item := new(Item)
	res, err := d.db.NewUpdate().
		Model(item).
		Set("min_stock = ?", minStock).
		Where("id = ? AND store_id = ?", itemID, tenantID).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("set min stock: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, fmt.Errorf("%w: item %d", ErrNotFound, itemID)
	}
	return item, nil
}

func (d *DB) RecordSale(ctx context.Context, tenantID, itemID, qty int64, price *decimal.Decimal) (*SaleResult, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: qty must be positive", ErrInvalidInput)
	}

	out := &SaleResult{}
	err := d.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		item := new(Item)
		res, err := tx.NewUpdate().
			Model(item).
			Set("current_stock = current_stock - ?", qty).
			Where("id = ? AND store_id = ? AND current_stock >= ?", itemID, tenantID, qty).
			Returning("*").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			// Zero rows matched: a follow-up read distinguishes a
			// missing item from an insufficient-stock rejection.
			current, err := itemByID(ctx, tx, tenantID, itemID)
			if err != nil {
				return err
			}
			return &InsufficientStockError{
				ItemID:    current.ID,
				ItemName:  current.Name,
				Have:      current.CurrentStock,
				Requested: qty,
			}
		}

		trx := &Transaction{StoreID: tenantID, Kind: TxSale, ItemID: itemID, Qty: qty, Amount: price}
		if _, err := tx.NewInsert().Model(trx).Returning("*").Exec(ctx); err != nil {
			return fmt.Errorf("insert sale transaction: %w", err)
		}

		out.Item = item
		out.Tx = trx
		out.LowStock = item.LowOnStock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DB) AddStock(ctx context.Context, tenantID int64, in AddStockInput) (*StockResult, error) {
	if in.Qty <= 0 {
		return nil, fmt.Errorf("%w: qty must be positive", ErrInvalidInput)
	}

	out := &StockResult{}
	err := d.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		item, created, err := d.resolveOrCreateItem(ctx, tx, tenantID, in)
		if err != nil {
			return err
		}

		update := tx.NewUpdate().
			Model(item).
			Set("current_stock = current_stock + ?", in.Qty).
			Where("id = ? AND store_id = ?", item.ID, tenantID).
			Returning("*")
		if in.Unit != nil {
			update = update.Set("unit = ?", *in.Unit)
		}
		if in.CostPerUnit != nil {
			update = update.Set("last_cost = ?", *in.CostPerUnit)
		}
		if _, err := update.Exec(ctx); err != nil {
			return fmt.Errorf("increment stock: %w", err)
		}

		var amount *decimal.Decimal
		if in.CostPerUnit != nil {
			total := in.CostPerUnit.Mul(decimal.NewFromInt(in.Qty))
			amount = &total
		}
		trx := &Transaction{StoreID: tenantID, Kind: TxStockIn, ItemID: item.ID, Qty: in.Qty, Amount: amount}
		if _, err := tx.NewInsert().Model(trx).Returning("*").Exec(ctx); err != nil {
			return fmt.Errorf("insert stock-in transaction: %w", err)
		}

		out.Item = item
		out.Tx = trx
		out.Created = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DB) resolveOrCreateItem(ctx context.Context, tx bun.Tx, tenantID int64, in AddStockInput) (*Item, bool, error) {
	if in.ItemID != nil {
		item, err := itemByID(ctx, tx, tenantID, *in.ItemID)
		return item, false, err
	}
	if foldName(in.Name) == "" {
		return nil, false, fmt.Errorf("%w: item name is empty", ErrInvalidInput)
	}

	var items []Item
	if err := tx.NewSelect().Model(&items).Where("i.store_id = ?", tenantID).Order("id ASC").Scan(ctx); err != nil {
		return nil, false, fmt.Errorf("list items: %w", err)
	}

	item, err := resolveItem(items, in.Name)
	if err == nil {
		return item, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	fresh := &Item{
		StoreID:  tenantID,
		Name:     in.Name,
		Aliases:  []string{},
		Unit:     in.Unit,
		MinStock: DefaultMinStock,
	}
	if _, err := tx.NewInsert().Model(fresh).Returning("*").Exec(ctx); err != nil {
		return nil, false, fmt.Errorf("insert item: %w", err)
	}
	return fresh, true, nil
}

func (d *DB) AdjustStock(ctx context.Context, tenantID, itemID, qty int64, reason string) (*StockResult, error) {
	if qty == 0 {
		return nil, fmt.Errorf("%w: adjustment qty must be non-zero", ErrInvalidInput)
	}

	out := &StockResult{}
	err := d.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		item, err := applyGuardedDelta(ctx, tx, tenantID, itemID, qty)
		if err != nil {
			return err
		}

		trx := &Transaction{StoreID: tenantID, Kind: TxAdjust, ItemID: itemID, Qty: qty}
		if _, err := tx.NewInsert().Model(trx).Returning("*").Exec(ctx); err != nil {
			return fmt.Errorf("insert adjust transaction: %w", err)
		}

		out.Item = item
		out.Tx = trx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// applyGuardedDelta applies a signed stock delta. Negative deltas carry
// the cannot-go-below-zero guard in the statement itself.
func applyGuardedDelta(ctx context.Context, tx bun.Tx, tenantID, itemID, delta int64) (*Item, error) {
	item := new(Item)
	update := tx.NewUpdate().
		Model(item).
		Set("current_stock = current_stock + ?", delta).
		Where("id = ? AND store_id = ?", itemID, tenantID).
		Returning("*")
	if delta < 0 {
		update = update.Where("current_stock >= ?", -delta)
	}

	res, err := update.Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("apply stock delta: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		current, err := itemByID(ctx, tx, tenantID, itemID)
		if err != nil {
			return nil, err
		}
		return nil, &InsufficientStockError{
			ItemID:    current.ID,
			ItemName:  current.Name,
			Have:      current.CurrentStock,
			Requested: -delta,
		}
	}
	return item, nil
}

func (d *DB) Parties(ctx context.Context, tenantID int64) ([]LedgerParty, error) {
	var parties []LedgerParty
	err := d.db.NewSelect().Model(&parties).Where("p.store_id = ?", tenantID).Order("id ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list parties: %w", err)
	}
	return parties, nil
}

func (d *DB) AddDebt(ctx context.Context, tenantID int64, partyName string, amount decimal.Decimal, note *string) (*LedgerResult, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if foldName(partyName) == "" {
		return nil, fmt.Errorf("%w: party name is empty", ErrInvalidInput)
	}

	out := &LedgerResult{}
	err := d.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		party, err := d.resolvePartyTx(ctx, tx, tenantID, partyName)
		if errors.Is(err, ErrNotFound) {
			// First debt reference auto-creates the counterparty.
			party = &LedgerParty{StoreID: tenantID, Name: partyName}
			if _, err := tx.NewInsert().Model(party).Returning("*").Exec(ctx); err != nil {
				return fmt.Errorf("insert party: %w", err)
			}
		} else if err != nil {
			return err
		}
		return d.appendEntry(ctx, tx, out, party, amount, note)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DB) ReceivePayment(ctx context.Context, tenantID int64, partyName string, amount decimal.Decimal, note *string) (*LedgerResult, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if foldName(partyName) == "" {
		return nil, fmt.Errorf("%w: party name is empty", ErrInvalidInput)
	}

	out := &LedgerResult{}
	err := d.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// No auto-create on the payment side: a payment against an
		// unknown party is a data-entry problem, not a new customer.
		party, err := d.resolvePartyTx(ctx, tx, tenantID, partyName)
		if err != nil {
			return err
		}
		return d.appendEntry(ctx, tx, out, party, amount.Neg(), note)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DB) resolvePartyTx(ctx context.Context, tx bun.Tx, tenantID int64, name string) (*LedgerParty, error) {
	var parties []LedgerParty
	if err := tx.NewSelect().Model(&parties).Where("p.store_id = ?", tenantID).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list parties: %w", err)
	}
	return resolveParty(parties, name)
}

func (d *DB) appendEntry(ctx context.Context, tx bun.Tx, out *LedgerResult, party *LedgerParty, amount decimal.Decimal, note *string) error {
	entry := &LedgerEntry{StoreID: party.StoreID, PartyID: party.ID, Amount: amount, Note: note}
	if _, err := tx.NewInsert().Model(entry).Returning("*").Exec(ctx); err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}

	balance, err := partyBalance(ctx, tx, party.ID)
	if err != nil {
		return err
	}

	out.Party = party
	out.Entry = entry
	out.Balance = balance
	out.NegativeBalance = balance.IsNegative()
	return nil
}

// partyBalance is the live sum of the party's entries; balances are
// never stored redundantly.
func partyBalance(ctx context.Context, idb bun.IDB, partyID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := idb.NewSelect().
		Model((*LedgerEntry)(nil)).
		ColumnExpr("coalesce(sum(amount), 0)").
		Where("e.party_id = ?", partyID).
		Scan(ctx, &balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum party balance: %w", err)
	}
	return balance, nil
}

func (d *DB) LowStock(ctx context.Context, tenantID int64, limit int) ([]Item, error) {
	var items []Item
	q := d.db.NewSelect().
		Model(&items).
		Where("i.store_id = ? AND i.current_stock <= i.min_stock", tenantID).
		OrderExpr("(i.current_stock - i.min_stock) ASC, i.id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list low stock: %w", err)
	}
	return items, nil
}

func (d *DB) DailySummary(ctx context.Context, tenantID int64, day time.Time) (*DaySummary, error) {
	tenant, err := d.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	start, end := dayWindow(day, tenant.TZOffsetMin)

	type txAgg struct {
		Kind  TxKind          `bun:"kind"`
		Count int64           `bun:"cnt"`
		Qty   int64           `bun:"qty"`
		Total decimal.Decimal `bun:"total"`
	}
	var aggs []txAgg
	err = d.db.NewSelect().
		Model((*Transaction)(nil)).
		ColumnExpr("kind").
		ColumnExpr("count(*) AS cnt").
		ColumnExpr("coalesce(sum(qty), 0) AS qty").
		ColumnExpr("coalesce(sum(amount), 0) AS total").
		Where("t.store_id = ? AND t.created_at >= ? AND t.created_at < ?", tenantID, start, end).
		GroupExpr("kind").
		Scan(ctx, &aggs)
	if err != nil {
		return nil, fmt.Errorf("aggregate transactions: %w", err)
	}

	summary := &DaySummary{
		Date:         start.Format("2006-01-02"),
		SaleTotal:    decimal.Zero,
		DebtTotal:    decimal.Zero,
		PaymentTotal: decimal.Zero,
	}
	for _, a := range aggs {
		switch a.Kind {
		case TxSale:
			summary.SaleCount = a.Count
			summary.SaleQty = a.Qty
			summary.SaleTotal = a.Total
		case TxStockIn:
			summary.StockInCount = a.Count
			summary.StockInQty = a.Qty
		case TxAdjust:
			summary.AdjustCount = a.Count
		}
	}

	err = d.db.NewSelect().
		Model((*LedgerEntry)(nil)).
		ColumnExpr("count(*)").
		ColumnExpr("coalesce(sum(CASE WHEN amount > 0 THEN amount ELSE 0 END), 0)").
		ColumnExpr("coalesce(sum(CASE WHEN amount < 0 THEN -amount ELSE 0 END), 0)").
		Where("e.store_id = ? AND e.created_at >= ? AND e.created_at < ?", tenantID, start, end).
		Scan(ctx, &summary.EntryCount, &summary.DebtTotal, &summary.PaymentTotal)
	if err != nil {
		return nil, fmt.Errorf("aggregate ledger entries: %w", err)
	}

	return summary, nil
}

func (d *DB) RecentActions(ctx context.Context, tenantID int64, limit int) ([]Action, error) {
	if limit <= 0 {
		limit = 10
	}

	var txs []Transaction
	err := d.db.NewSelect().Model(&txs).Where("t.store_id = ?", tenantID).OrderExpr("t.id DESC").Limit(limit).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	var entries []LedgerEntry
	err = d.db.NewSelect().Model(&entries).Where("e.store_id = ?", tenantID).OrderExpr("e.id DESC").Limit(limit).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}

	itemNames, err := d.itemNames(ctx, tenantID, txs)
	if err != nil {
		return nil, err
	}
	partyNames, err := d.partyNames(ctx, tenantID, entries)
	if err != nil {
		return nil, err
	}

	actions := make([]Action, 0, len(txs)+len(entries))
	for i := range txs {
		actions = append(actions, transactionAction(&txs[i], itemNames[txs[i].ItemID]))
	}
	for i := range entries {
		actions = append(actions, ledgerAction(&entries[i], partyNames[entries[i].PartyID]))
	}
	sortActions(actions)
	if len(actions) > limit {
		actions = actions[:limit]
	}
	return actions, nil
}

func (d *DB) itemNames(ctx context.Context, tenantID int64, txs []Transaction) (map[int64]string, error) {
	ids := make([]int64, 0, len(txs))
	for _, t := range txs {
		ids = append(ids, t.ItemID)
	}
	names := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	var items []Item
	err := d.db.NewSelect().Model(&items).
		Column("id", "name").
		Where("i.store_id = ? AND i.id IN (?)", tenantID, bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load item names: %w", err)
	}
	for _, it := range items {
		names[it.ID] = it.Name
	}
	return names, nil
}

func (d *DB) partyNames(ctx context.Context, tenantID int64, entries []LedgerEntry) (map[int64]string, error) {
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.PartyID)
	}
	names := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	var parties []LedgerParty
	err := d.db.NewSelect().Model(&parties).
		Column("id", "name").
		Where("p.store_id = ? AND p.id IN (?)", tenantID, bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load party names: %w", err)
	}
	for _, p := range parties {
		names[p.ID] = p.Name
	}
	return names, nil
}

func (d *DB) UndoTransaction(ctx context.Context, tenantID, txID int64) (*UndoResult, error) {
	out := &UndoResult{Label: TransactionLabel(txID)}
	err := d.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// Ownership is re-verified here; the label alone is never
		// trusted.
		trx := new(Transaction)
		err := tx.NewSelect().Model(trx).Where("t.id = ? AND t.store_id = ?", txID, tenantID).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: transaction %d", ErrNotFound, txID)
		}
		if err != nil {
			return fmt.Errorf("load transaction: %w", err)
		}

		item, err := applyGuardedDelta(ctx, tx, tenantID, trx.ItemID, -trx.StockDelta())
		if err != nil {
			var insufficient *InsufficientStockError
			if errors.As(err, &insufficient) {
				return &UndoBlockedError{
					Label: out.Label,
					Have:  insufficient.Have,
					Need:  insufficient.Requested,
				}
			}
			return err
		}

		if _, err := tx.NewDelete().Model((*Transaction)(nil)).Where("id = ?", trx.ID).Exec(ctx); err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
		out.Item = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DB) UndoLedgerEntry(ctx context.Context, tenantID, entryID int64) (*UndoResult, error) {
	out := &UndoResult{Label: LedgerLabel(entryID)}
	err := d.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		entry := new(LedgerEntry)
		err := tx.NewSelect().Model(entry).Where("e.id = ? AND e.store_id = ?", entryID, tenantID).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: ledger entry %d", ErrNotFound, entryID)
		}
		if err != nil {
			return fmt.Errorf("load ledger entry: %w", err)
		}

		party := new(LedgerParty)
		err = tx.NewSelect().Model(party).Where("p.id = ? AND p.store_id = ?", entry.PartyID, tenantID).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: party %d", ErrNotFound, entry.PartyID)
		}
		if err != nil {
			return fmt.Errorf("load party: %w", err)
		}

		// Balances are derived, so deleting the entry is the whole
		// reversal.
		if _, err := tx.NewDelete().Model((*LedgerEntry)(nil)).Where("id = ?", entry.ID).Exec(ctx); err != nil {
			return fmt.Errorf("delete ledger entry: %w", err)
		}
		out.Party = party
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TransactionLabel is the stable short label quoted in replies and
// accepted by undo.
func TransactionLabel(id int64) string { return fmt.Sprintf("T%d", id) }

// LedgerLabel mirrors TransactionLabel for ledger entries.
func LedgerLabel(id int64) string { return fmt.Sprintf("L%d", id) }

func transactionAction(t *Transaction, itemName string) Action {
	return Action{
		Label:     TransactionLabel(t.ID),
		Kind:      ActionTransaction,
		ID:        t.ID,
		CreatedAt: t.CreatedAt,
		TxKind:    t.Kind,
		ItemName:  itemName,
		Qty:       t.Qty,
		Amount:    t.Amount,
	}
}

func ledgerAction(e *LedgerEntry, partyName string) Action {
	amount := e.Amount
	return Action{
		Label:     LedgerLabel(e.ID),
		Kind:      ActionLedgerEntry,
		ID:        e.ID,
		CreatedAt: e.CreatedAt,
		Amount:    &amount,
		PartyName: partyName,
		Note:      e.Note,
	}
}

func sortActions(actions []Action) {
	sort.SliceStable(actions, func(i, j int) bool {
		if actions[i].CreatedAt.Equal(actions[j].CreatedAt) {
			return actions[i].ID > actions[j].ID
		}
		return actions[i].CreatedAt.After(actions[j].CreatedAt)
	})
}
