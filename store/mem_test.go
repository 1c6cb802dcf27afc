package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Mem, *Tenant) {
	t.Helper()
	m := NewMem()
	tenant, err := m.EnsureTenant(context.Background(), "wa:+919999000001")
	require.NoError(t, err)
	return m, tenant
}

func seedItem(t *testing.T, m *Mem, tenantID int64, name string, stock int64) *Item {
	t.Helper()
	item, err := m.CreateItem(context.Background(), tenantID, name, nil, DefaultMinStock)
	require.NoError(t, err)
	if stock > 0 {
		id := item.ID
		res, err := m.AddStock(context.Background(), tenantID, AddStockInput{ItemID: &id, Qty: stock})
		require.NoError(t, err)
		return res.Item
	}
	return item
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestEnsureTenantIdempotent(t *testing.T) {
	t.Parallel()

	m := NewMem()
	first, err := m.EnsureTenant(context.Background(), "wa:+911")
	require.NoError(t, err)
	second, err := m.EnsureTenant(context.Background(), "wa:+911")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, DefaultTZOffsetMin, first.TZOffsetMin)
}

func TestRecordSaleInsufficientStockLeavesStockUntouched(t *testing.T) {
	t.Parallel()

	m, tenant := newTestStore(t)
	item := seedItem(t, m, tenant.ID, "Maggi", 24)

	_, err := m.RecordSale(context.Background(), tenant.ID, item.ID, 30, nil)
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(24), insufficient.Have)
	assert.Equal(t, int64(30), insufficient.Requested)

	after, err := m.ItemByID(context.Background(), tenant.ID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(24), after.CurrentStock)
}

func TestRecordSaleLowStockWarning(t *testing.T) {
	t.Parallel()

	m, tenant := newTestStore(t)
	item := seedItem(t, m, tenant.ID, "Maggi", 6)

	res, err := m.RecordSale(context.Background(), tenant.ID, item.ID, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.Item.CurrentStock)
	assert.True(t, res.LowStock)
}

func TestRecordSaleUnknownItem(t *testing.T) {
	t.Parallel()

	m, tenant := newTestStore(t)
	_, err := m.RecordSale(context.Background(), tenant.ID, 12345, 1, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentSalesExactlyOneWins(t *testing.T) {
	t.Parallel()

	m, tenant := newTestStore(t)
	item := seedItem(t, m, tenant.ID, "Maggi", 5)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.RecordSale(context.Background(), tenant.ID, item.ID, 5, nil)
		}(i)
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		var ise *InsufficientStockError
		require.ErrorAs(t, err, &ise)
		insufficient++
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, insufficient)

	after, err := m.ItemByID(context.Background(), tenant.ID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), after.CurrentStock)
}

func TestStockEqualsSumOfTransactions(t *testing.T) {
	t.Parallel()

	m, tenant := newTestStore(t)
	ctx := context.Background()
	item := seedItem(t, m, tenant.ID, "Rice", 0)
	id := item.ID

	_, err := m.AddStock(ctx, tenant.ID, AddStockInput{ItemID: &id, Qty: 40})
	require.NoError(t, err)
	_, err = m.RecordSale(ctx, tenant.ID, id, 12, nil)
	require.NoError(t, err)
	_, err = m.AdjustStock(ctx, tenant.ID, id, -3, "spillage")
	require.NoError(t, err)
	_, err = m.AdjustStock(ctx, tenant.ID, id, 2, "recount")
	require.NoError(t, err)

	after, err := m.ItemByID(ctx, tenant.ID, id)
	require.NoError(t, err)

	var sum int64
	for _, trx := range m.txs {
		if trx.ItemID == id {
			sum += trx.StockDelta()
		}
	}
	assert.Equal(t, sum, after.CurrentStock)
	assert.Equal(t, int64(27), after.CurrentStock)
}

func TestAddStockCreatesItemOnEmptyCatalog(t *testing.T) {
	t.Parallel()

	m, tenant := newTestStore(t)
	unit := "pcs"
	cost := dec("30")
	res, err := m.AddStock(context.Background(), tenant.ID, AddStockInput{
		Name:        "Milk",
		Qty:         10,
		Unit:        &unit,
		CostPerUnit: &cost,
	})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, int64(10), res.Item.CurrentStock)
	assert.Equal(t, int64(DefaultMinStock), res.Item.MinStock)
	require.NotNil(t, res.Item.LastCost)
	assert.True(t, res.Item.LastCost.Equal(dec("30")))
	require.NotNil(t, res.Tx.Amount)
	assert.True(t, res.Tx.Amount.Equal(dec("300")))
}

func TestAddStockAmbiguousNameRefuses(t *testing.T) {
	t.Parallel()

	m, tenant := newTestStore(t)
	seedItem(t, m, tenant.ID, "Tata Salt", 0)
	seedItem(t, m, tenant.ID, "Tata Tea", 0)

	_, err := m.AddStock(context.Background(), tenant.ID, AddStockInput{Name: "tata", Qty: 5})
	var ambiguous *AmbiguousMatchError
	require.ErrorAs(t, err, &ambiguous)
	assert.Len(t, ambiguous.Candidates, 2)

	// No duplicate was created.
	items, err := m.Items(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestAdjustStockGuards(t *testing.T) {
	t.Parallel()

	m, tenant := newTestStore(t)
	item := seedItem(t, m, tenant.ID, "Oil", 4)

	_, err := m.AdjustStock(context.Background(), tenant.ID, item.ID, 0, "noop")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = m.AdjustStock(context.Background(), tenant.ID, item.ID, -5, "breakage")
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)

	res, err := m.AdjustStock(context.Background(), tenant.ID, item.ID, -4, "breakage")
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Item.CurrentStock)
}

func TestDebtThenPaymentBalance(t *testing.T) {
	t.Parallel()

	m, tenant := newTestStore(t)
	ctx := context.Background()

	debt, err := m.AddDebt(ctx, tenant.ID, "Ramesh", dec("450"), nil)
	require.NoError(t, err)
	assert.True(t, debt.Balance.Equal(dec("450")))

	payment, err := m.ReceivePayment(ctx, tenant.ID, "Ramesh", dec("200"), nil)
	require.NoError(t, err)
	assert.True(t, payment.Balance.Equal(dec("250")))
	assert.False(t, payment.NegativeBalance)

	// Paying the rest and more flips the balance negative: a warning,
	// never a rejection.
	over, err := m.ReceivePayment(ctx, tenant.ID, "Ramesh", dec("300"), nil)
	require.NoError(t, err)
	assert.True(t, over.Balance.Equal(dec("-50")))
	assert.True(t, over.NegativeBalance)
}

func TestReceivePaymentNeverAutoCreates(t *testing.T) {
	t.Parallel()

	m, tenant := newTestStore(t)
	_, err := m.ReceivePayment(context.Background(), tenant.ID, "Ghost", dec("100"), nil)
	assert.ErrorIs(t, err, ErrNotFound)

	parties, err := m.Parties(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Empty(t, parties)
}

func TestDebtPaymentRoundTripRestoresBalance(t *testing.T) {
	t.Parallel()

	m, tenant := newTestStore(t)
	ctx := context.Background()

	first, err := m.AddDebt(ctx, tenant.ID, "Sita", dec("120.50"), nil)
	require.NoError(t, err)
	prior := first.Balance

	_, err = m.AddDebt(ctx, tenant.ID, "Sita", dec("79.25"), nil)
	require.NoError(t, err)
	res, err := m.ReceivePayment(ctx, tenant.ID, "Sita", dec("79.25"), nil)
	require.NoError(t, err)
	assert.True(t, res.Balance.Equal(prior))
}

func TestLowStockOrderingAndReorderQty(t *testing.T) {
	t.Parallel()

	m, tenant := newTestStore(t)
	ctx := context.Background()

	a := seedItem(t, m, tenant.ID, "Atta", 2)      // deficit -3
	b := seedItem(t, m, tenant.ID, "Biscuit", 5)   // deficit 0
	seedItem(t, m, tenant.ID, "Chai", 50)          // healthy

	low, err := m.LowStock(ctx, tenant.ID, 10)
	require.NoError(t, err)
	require.Len(t, low, 2)
	assert.Equal(t, a.ID, low[0].ID)
	assert.Equal(t, b.ID, low[1].ID)

	assert.Equal(t, int64(8), low[0].ReorderQty()) // 5*2-2
	assert.Equal(t, int64(5), low[1].ReorderQty()) // 5*2-5

	deep := Item{CurrentStock: -20, MinStock: 5}
	assert.Equal(t, int64(30), deep.ReorderQty())
	healthyOnly := Item{CurrentStock: 100, MinStock: 5}
	assert.Equal(t, int64(5), healthyOnly.ReorderQty())
}

func TestLowStockEmptyWhenAllHealthy(t *testing.T) {
	t.Parallel()

	m, tenant := newTestStore(t)
	seedItem(t, m, tenant.ID, "Chai", 50)

	low, err := m.LowStock(context.Background(), tenant.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, low)
}

func TestUndoSaleRestoresStockAndIsNotReentrant(t *testing.T) {
	t.Parallel()

	m, tenant := newTestStore(t)
	ctx := context.Background()
	item := seedItem(t, m, tenant.ID, "Maggi", 24)

	sale, err := m.RecordSale(ctx, tenant.ID, item.ID, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(14), sale.Item.CurrentStock)

	undone, err := m.UndoTransaction(ctx, tenant.ID, sale.Tx.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(24), undone.Item.CurrentStock)

	_, err = m.UndoTransaction(ctx, tenant.ID, sale.Tx.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUndoStockInBlockedWhenSoldThrough(t *testing.T) {
	t.Parallel()

	m, tenant := newTestStore(t)
	ctx := context.Background()
	item := seedItem(t, m, tenant.ID, "Sugar", 0)
	id := item.ID

	stockIn, err := m.AddStock(ctx, tenant.ID, AddStockInput{ItemID: &id, Qty: 10})
	require.NoError(t, err)
	_, err = m.RecordSale(ctx, tenant.ID, id, 8, nil)
	require.NoError(t, err)

	_, err = m.UndoTransaction(ctx, tenant.ID, stockIn.Tx.ID)
	var blocked *UndoBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, int64(2), blocked.Have)
	assert.Equal(t, int64(10), blocked.Need)
}

func TestUndoAdjustReversesSignedQty(t *testing.T) {
	t.Parallel()

	m, tenant := newTestStore(t)
	ctx := context.Background()
	item := seedItem(t, m, tenant.ID, "Oil", 10)

	adj, err := m.AdjustStock(ctx, tenant.ID, item.ID, -4, "spillage")
	require.NoError(t, err)
	assert.Equal(t, int64(6), adj.Item.CurrentStock)

	undone, err := m.UndoTransaction(ctx, tenant.ID, adj.Tx.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), undone.Item.CurrentStock)
}

func TestUndoLedgerEntryDerivedBalance(t *testing.T) {
	t.Parallel()

	m, tenant := newTestStore(t)
	ctx := context.Background()

	debt, err := m.AddDebt(ctx, tenant.ID, "Ramesh", dec("450"), nil)
	require.NoError(t, err)
	payment, err := m.ReceivePayment(ctx, tenant.ID, "Ramesh", dec("200"), nil)
	require.NoError(t, err)

	undone, err := m.UndoLedgerEntry(ctx, tenant.ID, payment.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ramesh", undone.Party.Name)

	res, err := m.AddDebt(ctx, tenant.ID, "Ramesh", dec("0.01"), nil)
	require.NoError(t, err)
	assert.True(t, res.Balance.Equal(dec("450.01")))

	_, err = m.UndoLedgerEntry(ctx, tenant.ID, debt.Entry.ID)
	require.NoError(t, err)
	_, err = m.UndoLedgerEntry(ctx, tenant.ID, debt.Entry.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTenantIsolation(t *testing.T) {
	t.Parallel()

	m := NewMem()
	ctx := context.Background()
	a, err := m.EnsureTenant(ctx, "wa:+911")
	require.NoError(t, err)
	b, err := m.EnsureTenant(ctx, "wa:+912")
	require.NoError(t, err)

	item := seedItem(t, m, a.ID, "Maggi", 10)
	sale, err := m.RecordSale(ctx, a.ID, item.ID, 1, nil)
	require.NoError(t, err)

	_, err = m.ItemByID(ctx, b.ID, item.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.RecordSale(ctx, b.ID, item.ID, 1, nil)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.UndoTransaction(ctx, b.ID, sale.Tx.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	items, err := m.Items(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCreateItemAndAliasDuplicates(t *testing.T) {
	t.Parallel()

	m, tenant := newTestStore(t)
	ctx := context.Background()

	item, err := m.CreateItem(ctx, tenant.ID, "Parle-G", nil, DefaultMinStock)
	require.NoError(t, err)

	_, err = m.CreateItem(ctx, tenant.ID, "parle-g", nil, DefaultMinStock)
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = m.AddAlias(ctx, tenant.ID, item.ID, "biscuit")
	require.NoError(t, err)
	_, err = m.AddAlias(ctx, tenant.ID, item.ID, "Biscuit")
	assert.ErrorIs(t, err, ErrDuplicate)
	_, err = m.AddAlias(ctx, tenant.ID, item.ID, "Parle-G")
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestDailySummaryUsesStoreLocalDay(t *testing.T) {
	t.Parallel()

	m, tenant := newTestStore(t)
	ctx := context.Background()
	item := seedItem(t, m, tenant.ID, "Maggi", 100)

	// 20:00 UTC on Jan 1 is already past midnight on Jan 2 in the
	// store's +05:30 day.
	m.mu.Lock()
	m.now = func() time.Time { return time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC) }
	m.mu.Unlock()

	price := dec("140")
	_, err := m.RecordSale(ctx, tenant.ID, item.ID, 10, &price)
	require.NoError(t, err)
	_, err = m.AddDebt(ctx, tenant.ID, "Ramesh", dec("450"), nil)
	require.NoError(t, err)
	_, err = m.ReceivePayment(ctx, tenant.ID, "Ramesh", dec("200"), nil)
	require.NoError(t, err)

	jan2 := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	summary, err := m.DailySummary(ctx, tenant.ID, jan2)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-02", summary.Date)
	assert.Equal(t, int64(1), summary.SaleCount)
	assert.Equal(t, int64(10), summary.SaleQty)
	assert.True(t, summary.SaleTotal.Equal(dec("140")))
	assert.Equal(t, int64(2), summary.EntryCount)
	assert.True(t, summary.DebtTotal.Equal(dec("450")))
	assert.True(t, summary.PaymentTotal.Equal(dec("200")))

	jan1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	before, err := m.DailySummary(ctx, tenant.ID, jan1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), before.SaleCount)
}

func TestRecentActionsLabelsAndOrder(t *testing.T) {
	t.Parallel()

	m, tenant := newTestStore(t)
	ctx := context.Background()
	item := seedItem(t, m, tenant.ID, "Maggi", 30)

	sale, err := m.RecordSale(ctx, tenant.ID, item.ID, 2, nil)
	require.NoError(t, err)
	debt, err := m.AddDebt(ctx, tenant.ID, "Ramesh", dec("100"), nil)
	require.NoError(t, err)

	actions, err := m.RecentActions(ctx, tenant.ID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, actions)

	labels := make(map[string]Action, len(actions))
	for _, a := range actions {
		labels[a.Label] = a
	}
	saleAction, ok := labels[TransactionLabel(sale.Tx.ID)]
	require.True(t, ok)
	assert.Equal(t, ActionTransaction, saleAction.Kind)
	assert.Equal(t, "Maggi", saleAction.ItemName)
	assert.Equal(t, TxSale, saleAction.TxKind)

	debtAction, ok := labels[LedgerLabel(debt.Entry.ID)]
	require.True(t, ok)
	assert.Equal(t, ActionLedgerEntry, debtAction.Kind)
	assert.Equal(t, "Ramesh", debtAction.PartyName)
}
