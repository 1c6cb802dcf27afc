package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Mem is an in-memory Store with the same guard semantics as the
// Postgres implementation: every check-and-set runs under one lock, so
// two concurrent sales can never both pass the stock guard. Used by
// tests and by the local REPL when no database is configured.
type Mem struct {
	mu sync.Mutex

	seq         int64
	tenants     []*Tenant
	tenantByExt map[string]int64
	items       []*Item
	txs         []*Transaction
	parties     []*LedgerParty
	entries     []*LedgerEntry

	now func() time.Time
}

var _ Store = (*Mem)(nil)

func NewMem() *Mem {
	return &Mem{
		tenantByExt: make(map[string]int64),
		now:         time.Now,
	}
}

func (m *Mem) nextID() int64 {
	m.seq++
	return m.seq
}

func (m *Mem) EnsureTenant(_ context.Context, externalID string) (*Tenant, error) {
	if externalID == "" {
		return nil, fmt.Errorf("%w: external id is empty", ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.tenantByExt[externalID]; ok {
		return m.tenantLocked(id)
	}
	tenant := &Tenant{
		ID:          m.nextID(),
		ExternalID:  externalID,
		TZOffsetMin: DefaultTZOffsetMin,
		CreatedAt:   m.now().UTC(),
	}
	m.tenants = append(m.tenants, tenant)
	m.tenantByExt[externalID] = tenant.ID
	cp := *tenant
	return &cp, nil
}

func (m *Mem) GetTenant(_ context.Context, tenantID int64) (*Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tenantLocked(tenantID)
}

func (m *Mem) tenantLocked(tenantID int64) (*Tenant, error) {
	for _, t := range m.tenants {
		if t.ID == tenantID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: tenant %d", ErrNotFound, tenantID)
}

func (m *Mem) Items(_ context.Context, tenantID int64) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.itemsLocked(tenantID), nil
}

func (m *Mem) itemsLocked(tenantID int64) []Item {
	var out []Item
	for _, it := range m.items {
		if it.StoreID == tenantID {
			out = append(out, copyItem(it))
		}
	}
	return out
}

func (m *Mem) ItemByID(_ context.Context, tenantID, itemID int64) (*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, err := m.itemLocked(tenantID, itemID)
	if err != nil {
		return nil, err
	}
	cp := copyItem(it)
	return &cp, nil
}

func (m *Mem) itemLocked(tenantID, itemID int64) (*Item, error) {
	for _, it := range m.items {
		if it.ID == itemID && it.StoreID == tenantID {
			return it, nil
		}
	}
	return nil, fmt.Errorf("%w: item %d", ErrNotFound, itemID)
}

func (m *Mem) CreateItem(_ context.Context, tenantID int64, name string, unit *string, minStock int64) (*Item, error) {
	if foldName(name) == "" {
		return nil, fmt.Errorf("%w: item name is empty", ErrInvalidInput)
	}
	if minStock < 0 {
		return nil, fmt.Errorf("%w: min stock must be >= 0", ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, it := range m.items {
		if it.StoreID == tenantID && foldName(it.Name) == foldName(name) {
			return nil, fmt.Errorf("%w: item %q", ErrDuplicate, name)
		}
	}

	item := &Item{
		ID:        m.nextID(),
		StoreID:   tenantID,
		Name:      name,
		Aliases:   []string{},
		Unit:      unit,
		MinStock:  minStock,
		CreatedAt: m.now().UTC(),
	}
	m.items = append(m.items, item)
	cp := copyItem(item)
	return &cp, nil
}

func (m *Mem) AddAlias(_ context.Context, tenantID, itemID int64, alias string) (*Item, error) {
	if foldName(alias) == "" {
		return nil, fmt.Errorf("%w: alias is empty", ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	item, err := m.itemLocked(tenantID, itemID)
	if err != nil {
		return nil, err
	}
	if hasAlias(item, alias) {
		return nil, fmt.Errorf("%w: alias %q", ErrDuplicate, alias)
	}
	item.Aliases = append(item.Aliases, alias)
	cp := copyItem(item)
	return &cp, nil
}

func (m *Mem) SetMinStock(_ context.Context, tenantID, itemID, minStock int64) (*Item, error) {
	if minStock < 0 {
		return nil, fmt.Errorf("%w: min stock must be >= 0", ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	item, err := m.itemLocked(tenantID, itemID)
	if err != nil {
		return nil, err
	}
	item.MinStock = minStock
	cp := copyItem(item)
	return &cp, nil
}

func (m *Mem) RecordSale(_ context.Context, tenantID, itemID, qty int64, price *decimal.Decimal) (*SaleResult, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: qty must be positive", ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	item, err := m.itemLocked(tenantID, itemID)
	if err != nil {
		return nil, err
	}
	if item.CurrentStock < qty {
		return nil, &InsufficientStockError{
			ItemID:    item.ID,
			ItemName:  item.Name,
			Have:      item.CurrentStock,
			Requested: qty,
		}
	}

	item.CurrentStock -= qty
	trx := m.appendTxLocked(tenantID, TxSale, item.ID, qty, price)

	cp := copyItem(item)
	return &SaleResult{Item: &cp, Tx: trx, LowStock: item.LowOnStock()}, nil
}

func (m *Mem) appendTxLocked(tenantID int64, kind TxKind, itemID, qty int64, amount *decimal.Decimal) *Transaction {
	trx := &Transaction{
		ID:        m.nextID(),
		StoreID:   tenantID,
		Kind:      kind,
		ItemID:    itemID,
		Qty:       qty,
		Amount:    amount,
		CreatedAt: m.now().UTC(),
	}
	m.txs = append(m.txs, trx)
	cp := *trx
	return &cp
}

func (m *Mem) AddStock(_ context.Context, tenantID int64, in AddStockInput) (*StockResult, error) {
	if in.Qty <= 0 {
		return nil, fmt.Errorf("%w: qty must be positive", ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var item *Item
	created := false
	switch {
	case in.ItemID != nil:
		found, err := m.itemLocked(tenantID, *in.ItemID)
		if err != nil {
			return nil, err
		}
		item = found
	case foldName(in.Name) == "":
		return nil, fmt.Errorf("%w: item name is empty", ErrInvalidInput)
	default:
		resolved, err := resolveItem(m.itemsLocked(tenantID), in.Name)
		switch {
		case err == nil:
			item, _ = m.itemLocked(tenantID, resolved.ID)
		case isNotFound(err):
			item = &Item{
				ID:        m.nextID(),
				StoreID:   tenantID,
				Name:      in.Name,
				Aliases:   []string{},
				Unit:      in.Unit,
				MinStock:  DefaultMinStock,
				CreatedAt: m.now().UTC(),
			}
			m.items = append(m.items, item)
			created = true
		default:
			return nil, err
		}
	}

	item.CurrentStock += in.Qty
	if in.Unit != nil {
		item.Unit = in.Unit
	}
	var amount *decimal.Decimal
	if in.CostPerUnit != nil {
		cost := *in.CostPerUnit
		item.LastCost = &cost
		total := cost.Mul(decimal.NewFromInt(in.Qty))
		amount = &total
	}
	trx := m.appendTxLocked(tenantID, TxStockIn, item.ID, in.Qty, amount)

	cp := copyItem(item)
	return &StockResult{Item: &cp, Tx: trx, Created: created}, nil
}

func (m *Mem) AdjustStock(_ context.Context, tenantID, itemID, qty int64, _ string) (*StockResult, error) {
	if qty == 0 {
		return nil, fmt.Errorf("%w: adjustment qty must be non-zero", ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	item, err := m.itemLocked(tenantID, itemID)
	if err != nil {
		return nil, err
	}
	if qty < 0 && item.CurrentStock < -qty {
		return nil, &InsufficientStockError{
			ItemID:    item.ID,
			ItemName:  item.Name,
			Have:      item.CurrentStock,
			Requested: -qty,
		}
	}

	item.CurrentStock += qty
	trx := m.appendTxLocked(tenantID, TxAdjust, item.ID, qty, nil)

	cp := copyItem(item)
	return &StockResult{Item: &cp, Tx: trx}, nil
}

func (m *Mem) Parties(_ context.Context, tenantID int64) ([]LedgerParty, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.partiesLocked(tenantID), nil
}

func (m *Mem) partiesLocked(tenantID int64) []LedgerParty {
	var out []LedgerParty
	for _, p := range m.parties {
		if p.StoreID == tenantID {
			out = append(out, *p)
		}
	}
	return out
}

func (m *Mem) AddDebt(_ context.Context, tenantID int64, partyName string, amount decimal.Decimal, note *string) (*LedgerResult, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if foldName(partyName) == "" {
		return nil, fmt.Errorf("%w: party name is empty", ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	party, err := m.findPartyLocked(tenantID, partyName)
	if isNotFound(err) {
		party = &LedgerParty{
			ID:        m.nextID(),
			StoreID:   tenantID,
			Name:      partyName,
			CreatedAt: m.now().UTC(),
		}
		m.parties = append(m.parties, party)
	} else if err != nil {
		return nil, err
	}

	return m.appendEntryLocked(party, amount, note), nil
}

func (m *Mem) ReceivePayment(_ context.Context, tenantID int64, partyName string, amount decimal.Decimal, note *string) (*LedgerResult, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if foldName(partyName) == "" {
		return nil, fmt.Errorf("%w: party name is empty", ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	party, err := m.findPartyLocked(tenantID, partyName)
	if err != nil {
		return nil, err
	}
	return m.appendEntryLocked(party, amount.Neg(), note), nil
}

func (m *Mem) findPartyLocked(tenantID int64, name string) (*LedgerParty, error) {
	resolved, err := resolveParty(m.partiesLocked(tenantID), name)
	if err != nil {
		return nil, err
	}
	for _, p := range m.parties {
		if p.ID == resolved.ID {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: party %q", ErrNotFound, name)
}

func (m *Mem) appendEntryLocked(party *LedgerParty, amount decimal.Decimal, note *string) *LedgerResult {
	entry := &LedgerEntry{
		ID:        m.nextID(),
		StoreID:   party.StoreID,
		PartyID:   party.ID,
		Amount:    amount,
		Note:      note,
		CreatedAt: m.now().UTC(),
	}
	m.entries = append(m.entries, entry)

	balance := m.balanceLocked(party.ID)
	partyCopy := *party
	entryCopy := *entry
	return &LedgerResult{
		Party:           &partyCopy,
		Entry:           &entryCopy,
		Balance:         balance,
		NegativeBalance: balance.IsNegative(),
	}
}

func (m *Mem) balanceLocked(partyID int64) decimal.Decimal {
	balance := decimal.Zero
	for _, e := range m.entries {
		if e.PartyID == partyID {
			balance = balance.Add(e.Amount)
		}
	}
	return balance
}

func (m *Mem) LowStock(_ context.Context, tenantID int64, limit int) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Item
	for _, it := range m.items {
		if it.StoreID == tenantID && it.LowOnStock() {
			out = append(out, copyItem(it))
		}
	}
	// Most critical first.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CurrentStock-out[i].MinStock < out[j].CurrentStock-out[j].MinStock
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Mem) DailySummary(_ context.Context, tenantID int64, day time.Time) (*DaySummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tenant, err := m.tenantLocked(tenantID)
	if err != nil {
		return nil, err
	}
	start, end := dayWindow(day, tenant.TZOffsetMin)

	summary := &DaySummary{
		Date:         start.Format("2006-01-02"),
		SaleTotal:    decimal.Zero,
		DebtTotal:    decimal.Zero,
		PaymentTotal: decimal.Zero,
	}
	for _, t := range m.txs {
		if t.StoreID != tenantID || t.CreatedAt.Before(start) || !t.CreatedAt.Before(end) {
			continue
		}
		switch t.Kind {
		case TxSale:
			summary.SaleCount++
			summary.SaleQty += t.Qty
			if t.Amount != nil {
				summary.SaleTotal = summary.SaleTotal.Add(*t.Amount)
			}
		case TxStockIn:
			summary.StockInCount++
			summary.StockInQty += t.Qty
		case TxAdjust:
			summary.AdjustCount++
		}
	}
	for _, e := range m.entries {
		if e.StoreID != tenantID || e.CreatedAt.Before(start) || !e.CreatedAt.Before(end) {
			continue
		}
		summary.EntryCount++
		if e.Amount.IsPositive() {
			summary.DebtTotal = summary.DebtTotal.Add(e.Amount)
		} else {
			summary.PaymentTotal = summary.PaymentTotal.Add(e.Amount.Neg())
		}
	}
	return summary, nil
}

func (m *Mem) RecentActions(_ context.Context, tenantID int64, limit int) ([]Action, error) {
	if limit <= 0 {
		limit = 10
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	itemNames := make(map[int64]string)
	for _, it := range m.items {
		if it.StoreID == tenantID {
			itemNames[it.ID] = it.Name
		}
	}
	partyNames := make(map[int64]string)
	for _, p := range m.parties {
		if p.StoreID == tenantID {
			partyNames[p.ID] = p.Name
		}
	}

	var actions []Action
	count := 0
	for i := len(m.txs) - 1; i >= 0 && count < limit; i-- {
		if m.txs[i].StoreID == tenantID {
			actions = append(actions, transactionAction(m.txs[i], itemNames[m.txs[i].ItemID]))
			count++
		}
	}
	count = 0
	for i := len(m.entries) - 1; i >= 0 && count < limit; i-- {
		if m.entries[i].StoreID == tenantID {
			actions = append(actions, ledgerAction(m.entries[i], partyNames[m.entries[i].PartyID]))
			count++
		}
	}
	sortActions(actions)
	if len(actions) > limit {
		actions = actions[:limit]
	}
	return actions, nil
}

func (m *Mem) UndoTransaction(_ context.Context, tenantID, txID int64) (*UndoResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := -1
	for i, t := range m.txs {
		if t.ID == txID && t.StoreID == tenantID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: transaction %d", ErrNotFound, txID)
	}

	trx := m.txs[idx]
	item, err := m.itemLocked(tenantID, trx.ItemID)
	if err != nil {
		return nil, err
	}

	label := TransactionLabel(txID)
	reversal := -trx.StockDelta()
	if reversal < 0 && item.CurrentStock < -reversal {
		return nil, &UndoBlockedError{Label: label, Have: item.CurrentStock, Need: -reversal}
	}

	item.CurrentStock += reversal
	m.txs = append(m.txs[:idx], m.txs[idx+1:]...)

	cp := copyItem(item)
	return &UndoResult{Label: label, Item: &cp}, nil
}

func (m *Mem) UndoLedgerEntry(_ context.Context, tenantID, entryID int64) (*UndoResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := -1
	for i, e := range m.entries {
		if e.ID == entryID && e.StoreID == tenantID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: ledger entry %d", ErrNotFound, entryID)
	}

	entry := m.entries[idx]
	var party *LedgerParty
	for _, p := range m.parties {
		if p.ID == entry.PartyID && p.StoreID == tenantID {
			party = p
			break
		}
	}
	if party == nil {
		return nil, fmt.Errorf("%w: party %d", ErrNotFound, entry.PartyID)
	}

	m.entries = append(m.entries[:idx], m.entries[idx+1:]...)
	cp := *party
	return &UndoResult{Label: LedgerLabel(entryID), Party: &cp}, nil
}

func copyItem(it *Item) Item {
	cp := *it
	cp.Aliases = append([]string(nil), it.Aliases...)
	if it.LastCost != nil {
		cost := *it.LastCost
		cp.LastCost = &cost
	}
	return cp
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
