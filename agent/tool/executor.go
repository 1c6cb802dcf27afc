package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	contractx "github.com/kiranaops/kirana-agent/agent/contract"
	storex "github.com/kiranaops/kirana-agent/store"
)

// executor carries the per-turn tenant binding. The tenant id is
// resolved once by the session and is not part of any tool's parameter
// surface.
type executor struct {
	st     storex.Store
	tenant int64
}

// NewExecutor returns an Executor bound to one tenant.
func NewExecutor(st storex.Store, tenantID int64) Executor {
	e := &executor{st: st, tenant: tenantID}
	return e.execute
}

func (e *executor) execute(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
	switch tool {
	case ToolSearchItems:
		return e.searchItems(ctx, args)
	case ToolRecordSale:
		return e.recordSale(ctx, args)
	case ToolRecordSaleBatch:
		return e.recordSaleBatch(ctx, args)
	case ToolAddStock:
		return e.addStock(ctx, args)
	case ToolAdjustStock:
		return e.adjustStock(ctx, args)
	case ToolAddItem:
		return e.addItem(ctx, args)
	case ToolAddItemAlias:
		return e.addItemAlias(ctx, args)
	case ToolSetMinStock:
		return e.setMinStock(ctx, args)
	case ToolAddDebt:
		return e.addDebt(ctx, args)
	case ToolReceivePayment:
		return e.receivePayment(ctx, args)
	case ToolCheckLowStock:
		return e.checkLowStock(ctx, args)
	case ToolSuggestReorder:
		return e.suggestReorder(ctx, args)
	case ToolGetDailySummary:
		return e.getDailySummary(ctx, args)
	case ToolListRecentActions:
		return e.listRecentActions(ctx, args)
	case ToolUndoAction:
		return e.undoAction(ctx, args)
	default:
		return contractx.Fail(tool, CodeUnknownTool, fmt.Sprintf("tool %q is not available", tool), nil), nil
	}
}

// fail maps a repository error onto the envelope taxonomy. A nil
// second return means the error was a business outcome; anything else
// is a persistence fault that must reach the session boundary.
func fail(tool string, err error, itemCtx bool) (contractx.ToolResult, error) {
	var insufficient *storex.InsufficientStockError
	if errors.As(err, &insufficient) {
		return contractx.Fail(tool, CodeInsufficient,
			fmt.Sprintf("Only %d of %q in stock, asked for %d.", insufficient.Have, insufficient.ItemName, insufficient.Requested),
			map[string]any{
				"item_id":       insufficient.ItemID,
				"item_name":     insufficient.ItemName,
				"current_stock": insufficient.Have,
				"requested":     insufficient.Requested,
			}), nil
	}

	var ambiguous *storex.AmbiguousMatchError
	if errors.As(err, &ambiguous) {
		return contractx.Fail(tool, CodeAmbiguousMatch,
			fmt.Sprintf("%q matches more than one entry, please pick one.", ambiguous.Query),
			map[string]any{"query": ambiguous.Query, "candidates": ambiguous.Candidates}), nil
	}

	var blocked *storex.UndoBlockedError
	if errors.As(err, &blocked) {
		return contractx.Fail(tool, CodeUndoFailed,
			fmt.Sprintf("Cannot undo %s: only %d left in stock but the reversal needs %d.", blocked.Label, blocked.Have, blocked.Need),
			map[string]any{"label": blocked.Label, "current_stock": blocked.Have, "needed": blocked.Need}), nil
	}

	if errors.Is(err, storex.ErrNotFound) {
		code := CodeNotFound
		if itemCtx {
			code = CodeItemNotFound
		}
		return contractx.Fail(tool, code, "No matching entry found for this store.", nil), nil
	}

	if errors.Is(err, storex.ErrInvalidInput) {
		return contractx.Fail(tool, CodeInvalidInput, err.Error(), nil), nil
	}

	return contractx.ToolResult{}, err
}

func errorsIsDuplicate(err error) bool {
	return errors.Is(err, storex.ErrDuplicate)
}

/* ------------------------------ argument helpers ------------------------------ */

func argString(args map[string]any, key string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// argInt64 accepts json.Number (the session decodes with UseNumber),
// plain float64, and numeric strings, since planner output is not
// strictly typed.
func argInt64(args map[string]any, key string) (int64, bool) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			if f, ferr := n.Float64(); ferr == nil && f == float64(int64(f)) {
				return int64(f), true
			}
			return 0, false
		}
		return i, true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// argDecimal parses money without ever passing through binary floating
// point when the source was textual.
func argDecimal(args map[string]any, key string) (decimal.Decimal, bool) {
	v, ok := args[key]
	if !ok || v == nil {
		return decimal.Zero, false
	}
	switch n := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case float64:
		return decimal.NewFromFloat(n), true
	default:
		return decimal.Zero, false
	}
}

func argIntDefault(args map[string]any, key string, def int) int {
	if v, ok := argInt64(args, key); ok && v > 0 {
		return int(v)
	}
	return def
}

func invalid(tool, message string) contractx.ToolResult {
	return contractx.Fail(tool, CodeInvalidInput, message, nil)
}

func itemData(it *storex.Item) map[string]any {
	data := map[string]any{
		"item_id":       it.ID,
		"name":          it.Name,
		"current_stock": it.CurrentStock,
		"min_stock":     it.MinStock,
	}
	if it.Unit != nil {
		data["unit"] = *it.Unit
	}
	if len(it.Aliases) > 0 {
		data["aliases"] = it.Aliases
	}
	return data
}
