package tool

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	contractx "github.com/kiranaops/kirana-agent/agent/contract"
	storex "github.com/kiranaops/kirana-agent/store"
)

const defaultListLimit = 10

func (e *executor) checkLowStock(ctx context.Context, args map[string]any) (contractx.ToolResult, error) {
	limit := argIntDefault(args, "limit", defaultListLimit)

	items, err := e.st.LowStock(ctx, e.tenant, limit)
	if err != nil {
		return contractx.ToolResult{}, err
	}
	if len(items) == 0 {
		return contractx.OK(ToolCheckLowStock, CodeNoLowStock, "Nothing is running low.", nil), nil
	}

	rows := make([]map[string]any, 0, len(items))
	for i := range items {
		rows = append(rows, itemData(&items[i]))
	}
	return contractx.OK(ToolCheckLowStock, CodeLowStockFound,
		fmt.Sprintf("%d item(s) at or below their threshold.", len(items)),
		map[string]any{"items": rows}), nil
}

func (e *executor) suggestReorder(ctx context.Context, args map[string]any) (contractx.ToolResult, error) {
	limit := argIntDefault(args, "limit", defaultListLimit)

	items, err := e.st.LowStock(ctx, e.tenant, limit)
	if err != nil {
		return contractx.ToolResult{}, err
	}
	if len(items) == 0 {
		return contractx.OK(ToolSuggestReorder, CodeNoReorderNeeded, "Stock levels are fine, nothing to reorder.", nil), nil
	}

	rows := make([]map[string]any, 0, len(items))
	for i := range items {
		entry := itemData(&items[i])
		entry["reorder_qty"] = items[i].ReorderQty()
		if items[i].LastCost != nil {
			entry["last_cost"] = items[i].LastCost.String()
			cost := items[i].LastCost.Mul(decimal.NewFromInt(items[i].ReorderQty()))
			entry["est_cost"] = cost.String()
		}
		rows = append(rows, entry)
	}
	return contractx.OK(ToolSuggestReorder, CodeReorderSuggested,
		fmt.Sprintf("Reorder suggestions for %d item(s).", len(items)),
		map[string]any{"items": rows}), nil
}

func (e *executor) getDailySummary(ctx context.Context, args map[string]any) (contractx.ToolResult, error) {
	day := time.Now()
	if raw := argString(args, "date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return invalid(ToolGetDailySummary, "date must look like 2026-01-31"), nil
		}
		day = parsed
	}

	sum, err := e.st.DailySummary(ctx, e.tenant, day)
	if err != nil {
		return contractx.ToolResult{}, err
	}

	data := map[string]any{
		"date":           sum.Date,
		"sale_count":     sum.SaleCount,
		"sale_qty":       sum.SaleQty,
		"sale_total":     sum.SaleTotal.String(),
		"stock_in_count": sum.StockInCount,
		"stock_in_qty":   sum.StockInQty,
		"adjust_count":   sum.AdjustCount,
		"debt_total":     sum.DebtTotal.String(),
		"payment_total":  sum.PaymentTotal.String(),
	}
	return contractx.OK(ToolGetDailySummary, CodeSummaryGenerated,
		fmt.Sprintf("Hisaab for %s: %d sale(s) worth ₹%s, udhar given ₹%s, collected ₹%s.",
			sum.Date, sum.SaleCount, sum.SaleTotal.StringFixed(2),
			sum.DebtTotal.StringFixed(2), sum.PaymentTotal.StringFixed(2)),
		data), nil
}

func (e *executor) listRecentActions(ctx context.Context, args map[string]any) (contractx.ToolResult, error) {
	limit := argIntDefault(args, "limit", defaultListLimit)

	actions, err := e.st.RecentActions(ctx, e.tenant, limit)
	if err != nil {
		return contractx.ToolResult{}, err
	}

	rows := make([]map[string]any, 0, len(actions))
	for _, a := range actions {
		entry := map[string]any{
			"label":      a.Label,
			"kind":       string(a.Kind),
			"created_at": a.CreatedAt.Format(time.RFC3339),
		}
		if a.Kind == storex.ActionTransaction {
			entry["tx_kind"] = string(a.TxKind)
			entry["item_name"] = a.ItemName
			entry["qty"] = a.Qty
		} else {
			entry["party_name"] = a.PartyName
		}
		if a.Amount != nil {
			entry["amount"] = a.Amount.String()
		}
		if a.Note != nil {
			entry["note"] = *a.Note
		}
		rows = append(rows, entry)
	}
	return contractx.OK(ToolListRecentActions, CodeRecentListed,
		fmt.Sprintf("Last %d action(s).", len(rows)),
		map[string]any{"actions": rows}), nil
}

func (e *executor) undoAction(ctx context.Context, args map[string]any) (contractx.ToolResult, error) {
	rawID := argString(args, "action_id")
	if rawID == "" {
		return invalid(ToolUndoAction, "action_id is required"), nil
	}

	kind, id, err := parseActionRef(argString(args, "action_type"), rawID)
	if err != nil {
		return invalid(ToolUndoAction, err.Error()), nil
	}

	var res *storex.UndoResult
	switch kind {
	case storex.ActionTransaction:
		res, err = e.st.UndoTransaction(ctx, e.tenant, id)
	case storex.ActionLedgerEntry:
		res, err = e.st.UndoLedgerEntry(ctx, e.tenant, id)
	}
	if err != nil {
		return fail(ToolUndoAction, err, false)
	}

	data := map[string]any{"label": res.Label}
	msg := fmt.Sprintf("Undid %s.", res.Label)
	if res.Item != nil {
		data["item_name"] = res.Item.Name
		data["current_stock"] = res.Item.CurrentStock
		msg = fmt.Sprintf("Undid %s, %s back to %d in stock.", res.Label, res.Item.Name, res.Item.CurrentStock)
	}
	if res.Party != nil {
		data["party_name"] = res.Party.Name
	}
	return contractx.OK(ToolUndoAction, CodeActionUndone, msg, data), nil
}

// parseActionRef accepts a label like T12 or L7, or a bare numeric id
// qualified by action_type ("transaction" or "ledger").
func parseActionRef(actionType, rawID string) (storex.ActionKind, int64, error) {
	rawID = strings.TrimSpace(rawID)
	upper := strings.ToUpper(rawID)

	if len(upper) > 1 && (upper[0] == 'T' || upper[0] == 'L') {
		id, err := strconv.ParseInt(upper[1:], 10, 64)
		if err == nil {
			if upper[0] == 'T' {
				return storex.ActionTransaction, id, nil
			}
			return storex.ActionLedgerEntry, id, nil
		}
	}

	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("action_id %q is neither a label like T12 nor a number", rawID)
	}
	switch strings.ToLower(strings.TrimSpace(actionType)) {
	case "transaction", "tx", "sale", "stock":
		return storex.ActionTransaction, id, nil
	case "ledger", "udhar", "credit":
		return storex.ActionLedgerEntry, id, nil
	default:
		return "", 0, fmt.Errorf("a bare numeric action_id needs action_type transaction or ledger")
	}
}
