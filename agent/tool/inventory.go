package tool

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	contractx "github.com/kiranaops/kirana-agent/agent/contract"
	"github.com/kiranaops/kirana-agent/match"
	storex "github.com/kiranaops/kirana-agent/store"
)

const defaultSearchLimit = 5

func (e *executor) searchItems(ctx context.Context, args map[string]any) (contractx.ToolResult, error) {
	query := argString(args, "query")
	if query == "" {
		return invalid(ToolSearchItems, "query is required"), nil
	}
	limit := argIntDefault(args, "limit", defaultSearchLimit)

	items, err := e.st.Items(ctx, e.tenant)
	if err != nil {
		return contractx.ToolResult{}, err
	}

	rows := make([]match.ItemRow, 0, len(items))
	byID := make(map[int64]*storex.Item, len(items))
	for i := range items {
		rows = append(rows, match.ItemRow{ID: items[i].ID, Name: items[i].Name, Aliases: items[i].Aliases})
		byID[items[i].ID] = &items[i]
	}

	ranked := match.RankItems(query, rows, limit)
	if len(ranked) == 0 {
		return contractx.Fail(ToolSearchItems, CodeNotFound,
			fmt.Sprintf("No item matching %q in the catalog.", query), nil), nil
	}

	candidates := make([]map[string]any, 0, len(ranked))
	for _, r := range ranked {
		entry := itemData(byID[r.ID])
		entry["score"] = r.Score
		entry["exact"] = r.Exact
		candidates = append(candidates, entry)
	}
	return contractx.OK(ToolSearchItems, CodeFound,
		fmt.Sprintf("Found %d matching item(s).", len(ranked)),
		map[string]any{"items": candidates}), nil
}

func (e *executor) recordSale(ctx context.Context, args map[string]any) (contractx.ToolResult, error) {
	itemID, ok := argInt64(args, "item_id")
	if !ok {
		return invalid(ToolRecordSale, "item_id is required"), nil
	}
	qty, ok := argInt64(args, "qty")
	if !ok || qty <= 0 {
		return invalid(ToolRecordSale, "qty must be a positive integer"), nil
	}
	var price *decimal.Decimal
	if p, ok := argDecimal(args, "price"); ok {
		price = &p
	}

	res, err := e.st.RecordSale(ctx, e.tenant, itemID, qty, price)
	if err != nil {
		return fail(ToolRecordSale, err, true)
	}

	data := itemData(res.Item)
	data["tx_label"] = storex.TransactionLabel(res.Tx.ID)
	data["qty"] = qty
	if price != nil {
		data["price"] = price.String()
	}
	msg := fmt.Sprintf("Sold %d x %s, %d left.", qty, res.Item.Name, res.Item.CurrentStock)
	if res.LowStock {
		data["low_stock"] = true
		msg += fmt.Sprintf(" Stock is at or below the threshold of %d.", res.Item.MinStock)
	}
	return contractx.OK(ToolRecordSale, CodeSaleRecorded, msg, data), nil
}

func (e *executor) recordSaleBatch(ctx context.Context, args map[string]any) (contractx.ToolResult, error) {
	raw, ok := args["items"].([]any)
	if !ok || len(raw) == 0 {
		return invalid(ToolRecordSaleBatch, "items must be a non-empty array"), nil
	}

	recorded := make([]map[string]any, 0, len(raw))
	failed := make([]map[string]any, 0)
	for i, lineRaw := range raw {
		line, ok := lineRaw.(map[string]any)
		if !ok {
			failed = append(failed, map[string]any{"line": i, "code": CodeInvalidInput, "message": "line is not an object"})
			continue
		}
		// Each line is guarded independently; one failure never rolls
		// back or blocks the others.
		res, err := e.recordSale(ctx, line)
		if err != nil {
			return contractx.ToolResult{}, err
		}
		if res.OK {
			entry := map[string]any{"line": i, "code": res.Code}
			for k, v := range res.Data {
				entry[k] = v
			}
			recorded = append(recorded, entry)
		} else {
			failed = append(failed, map[string]any{"line": i, "code": res.Code, "message": res.Message})
		}
	}

	data := map[string]any{"recorded": recorded, "failed": failed}
	if len(recorded) == 0 {
		return contractx.Fail(ToolRecordSaleBatch, CodeSaleFailed,
			fmt.Sprintf("None of the %d line(s) could be recorded.", len(raw)), data), nil
	}
	msg := fmt.Sprintf("Recorded %d of %d sale line(s).", len(recorded), len(raw))
	return contractx.OK(ToolRecordSaleBatch, CodeSaleRecorded, msg, data), nil
}

func (e *executor) addStock(ctx context.Context, args map[string]any) (contractx.ToolResult, error) {
	qty, ok := argInt64(args, "qty")
	if !ok || qty <= 0 {
		return invalid(ToolAddStock, "qty must be a positive integer"), nil
	}

	in := storex.AddStockInput{Qty: qty, Name: argString(args, "name")}
	if id, ok := argInt64(args, "item_id"); ok {
		in.ItemID = &id
	}
	if in.ItemID == nil && in.Name == "" {
		return invalid(ToolAddStock, "either item_id or name is required"), nil
	}
	if unit := argString(args, "unit"); unit != "" {
		in.Unit = &unit
	}
	if cost, ok := argDecimal(args, "cost_per_unit"); ok {
		in.CostPerUnit = &cost
	}

	res, err := e.st.AddStock(ctx, e.tenant, in)
	if err != nil {
		return fail(ToolAddStock, err, true)
	}

	data := itemData(res.Item)
	data["tx_label"] = storex.TransactionLabel(res.Tx.ID)
	data["qty"] = qty
	code := CodeStockAdded
	msg := fmt.Sprintf("Added %d to %s, now %d in stock.", qty, res.Item.Name, res.Item.CurrentStock)
	if res.Created {
		code = CodeItemCreated
		msg = fmt.Sprintf("Created %s and stocked %d.", res.Item.Name, qty)
	}
	return contractx.OK(ToolAddStock, code, msg, data), nil
}

func (e *executor) adjustStock(ctx context.Context, args map[string]any) (contractx.ToolResult, error) {
	itemID, ok := argInt64(args, "item_id")
	if !ok {
		return invalid(ToolAdjustStock, "item_id is required"), nil
	}
	qty, ok := argInt64(args, "qty")
	if !ok || qty == 0 {
		return invalid(ToolAdjustStock, "qty must be a non-zero integer"), nil
	}
	reason := argString(args, "reason")
	if reason == "" {
		return invalid(ToolAdjustStock, "reason is required"), nil
	}

	res, err := e.st.AdjustStock(ctx, e.tenant, itemID, qty, reason)
	if err != nil {
		return fail(ToolAdjustStock, err, true)
	}

	data := itemData(res.Item)
	data["tx_label"] = storex.TransactionLabel(res.Tx.ID)
	data["qty"] = qty
	data["reason"] = reason
	return contractx.OK(ToolAdjustStock, CodeStockAdjusted,
		fmt.Sprintf("Adjusted %s by %+d, now %d in stock.", res.Item.Name, qty, res.Item.CurrentStock), data), nil
}

func (e *executor) addItem(ctx context.Context, args map[string]any) (contractx.ToolResult, error) {
	name := argString(args, "name")
	if name == "" {
		return invalid(ToolAddItem, "name is required"), nil
	}
	minStock := int64(storex.DefaultMinStock)
	if v, ok := argInt64(args, "min_stock"); ok {
		if v < 0 {
			return invalid(ToolAddItem, "min_stock must be >= 0"), nil
		}
		minStock = v
	}
	var unit *string
	if u := argString(args, "unit"); u != "" {
		unit = &u
	}

	item, err := e.st.CreateItem(ctx, e.tenant, name, unit, minStock)
	if err != nil {
		if errorsIsDuplicate(err) {
			return contractx.Fail(ToolAddItem, CodeItemExists,
				fmt.Sprintf("An item named %q already exists.", name), nil), nil
		}
		return fail(ToolAddItem, err, true)
	}
	return contractx.OK(ToolAddItem, CodeItemAdded,
		fmt.Sprintf("Added %s to the catalog.", item.Name), itemData(item)), nil
}

func (e *executor) addItemAlias(ctx context.Context, args map[string]any) (contractx.ToolResult, error) {
	itemID, ok := argInt64(args, "item_id")
	if !ok {
		return invalid(ToolAddItemAlias, "item_id is required"), nil
	}
	alias := argString(args, "alias")
	if alias == "" {
		return invalid(ToolAddItemAlias, "alias is required"), nil
	}

	item, err := e.st.AddAlias(ctx, e.tenant, itemID, alias)
	if err != nil {
		if errorsIsDuplicate(err) {
			return contractx.Fail(ToolAddItemAlias, CodeAliasExists,
				fmt.Sprintf("%q already points at this item.", alias), nil), nil
		}
		return fail(ToolAddItemAlias, err, true)
	}
	return contractx.OK(ToolAddItemAlias, CodeAliasAdded,
		fmt.Sprintf("%s is now also known as %q.", item.Name, alias), itemData(item)), nil
}

func (e *executor) setMinStock(ctx context.Context, args map[string]any) (contractx.ToolResult, error) {
	itemID, ok := argInt64(args, "item_id")
	if !ok {
		return invalid(ToolSetMinStock, "item_id is required"), nil
	}
	minStock, ok := argInt64(args, "min_stock")
	if !ok || minStock < 0 {
		return invalid(ToolSetMinStock, "min_stock must be >= 0"), nil
	}

	item, err := e.st.SetMinStock(ctx, e.tenant, itemID, minStock)
	if err != nil {
		return fail(ToolSetMinStock, err, true)
	}
	return contractx.OK(ToolSetMinStock, CodeMinStockSet,
		fmt.Sprintf("Low-stock threshold for %s is now %d.", item.Name, minStock), itemData(item)), nil
}
