// Package tool is the fixed catalog of operations the planner may
// call. The set is closed and enumerable on purpose: bounded intents
// are a safety property, not an implementation accident. Every
// executor is constructed per turn, closed over one resolved tenant
// id, so no tool can reach across tenants from its parameter surface.
package tool

import (
	"context"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/kiranaops/kirana-agent/agent/contract"
	storex "github.com/kiranaops/kirana-agent/store"
)

const (
	ToolSearchItems       = "search_items"
	ToolRecordSale        = "record_sale"
	ToolRecordSaleBatch   = "record_sale_batch"
	ToolAddStock          = "add_stock"
	ToolAdjustStock       = "adjust_stock"
	ToolAddItem           = "add_item"
	ToolAddItemAlias      = "add_item_alias"
	ToolSetMinStock       = "set_min_stock"
	ToolAddDebt           = "add_debt"
	ToolReceivePayment    = "receive_payment"
	ToolCheckLowStock     = "check_low_stock"
	ToolSuggestReorder    = "suggest_reorder"
	ToolGetDailySummary   = "get_daily_summary"
	ToolListRecentActions = "list_recent_actions"
	ToolUndoAction        = "undo_action"
)

// Executor dispatches one tool call against a tenant-bound store. A
// returned error means a persistence fault; every business outcome,
// success or failure, arrives as a ToolResult envelope.
type Executor func(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error)

// Build returns the tool infos handed to the model and the executor
// bound to the given tenant.
func Build(st storex.Store, tenantID int64) ([]*schema.ToolInfo, Executor) {
	return Infos(), NewExecutor(st, tenantID)
}

// Infos enumerates the full catalog.
func Infos() []*schema.ToolInfo {
	saleLineParams := map[string]*schema.ParameterInfo{
		"item_id": {Type: schema.Integer, Desc: "Item id from search_items", Required: true},
		"qty":     {Type: schema.Integer, Desc: "Units sold, positive", Required: true},
		"price":   {Type: schema.Number, Desc: "Total sale amount in rupees, omit if unknown"},
	}

	return []*schema.ToolInfo{
		{
			Name: ToolSearchItems,
			Desc: "Search the store catalog by name or alias. Always search before recording a sale.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {Type: schema.String, Desc: "Item name as the shopkeeper said it", Required: true},
				"limit": {Type: schema.Integer, Desc: "Max results, default 5"},
			}),
		},
		{
			Name:        ToolRecordSale,
			Desc:        "Record a sale of one item and decrement its stock. Requires an explicit item_id.",
			ParamsOneOf: schema.NewParamsOneOfByParams(saleLineParams),
		},
		{
			Name: ToolRecordSaleBatch,
			Desc: "Record several sale lines at once. Lines succeed or fail independently.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"items": {
					Type:     schema.Array,
					Desc:     "Sale lines",
					Required: true,
					ElemInfo: &schema.ParameterInfo{Type: schema.Object, SubParams: saleLineParams},
				},
			}),
		},
		{
			Name: ToolAddStock,
			Desc: "Add stock to an item by id or by name; creates the item when the name is new.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"item_id":       {Type: schema.Integer, Desc: "Item id when already known"},
				"name":          {Type: schema.String, Desc: "Item name when no id is known"},
				"qty":           {Type: schema.Integer, Desc: "Units received, positive", Required: true},
				"unit":          {Type: schema.String, Desc: "Unit label like pcs or kg"},
				"cost_per_unit": {Type: schema.Number, Desc: "Purchase cost per unit in rupees"},
			}),
		},
		{
			Name: ToolAdjustStock,
			Desc: "Correct stock by a signed quantity for breakage, spillage, or recount.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"item_id": {Type: schema.Integer, Desc: "Item id", Required: true},
				"qty":     {Type: schema.Integer, Desc: "Signed change, non-zero", Required: true},
				"reason":  {Type: schema.String, Desc: "Why the stock is being corrected", Required: true},
			}),
		},
		{
			Name: ToolAddItem,
			Desc: "Create a new catalog item without stocking it.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"name":      {Type: schema.String, Desc: "Item display name", Required: true},
				"unit":      {Type: schema.String, Desc: "Unit label like pcs or kg"},
				"min_stock": {Type: schema.Integer, Desc: "Low-stock threshold, default 5"},
			}),
		},
		{
			Name: ToolAddItemAlias,
			Desc: "Attach an alternate spoken name to an existing item.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"item_id": {Type: schema.Integer, Desc: "Item id", Required: true},
				"alias":   {Type: schema.String, Desc: "Alias to add", Required: true},
			}),
		},
		{
			Name: ToolSetMinStock,
			Desc: "Change an item's low-stock threshold.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"item_id":   {Type: schema.Integer, Desc: "Item id", Required: true},
				"min_stock": {Type: schema.Integer, Desc: "New threshold, >= 0", Required: true},
			}),
		},
		{
			Name: ToolAddDebt,
			Desc: "Record udhar: the named customer now owes the store this amount. Creates the customer on first reference.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"party_name": {Type: schema.String, Desc: "Customer name", Required: true},
				"amount":     {Type: schema.Number, Desc: "Amount owed in rupees, positive", Required: true},
				"note":       {Type: schema.String, Desc: "Optional note, e.g. what was taken"},
			}),
		},
		{
			Name: ToolReceivePayment,
			Desc: "Record a payment from an existing customer against their udhar balance.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"party_name": {Type: schema.String, Desc: "Customer name", Required: true},
				"amount":     {Type: schema.Number, Desc: "Amount paid in rupees, positive", Required: true},
				"note":       {Type: schema.String, Desc: "Optional note"},
			}),
		},
		{
			Name: ToolCheckLowStock,
			Desc: "List items at or below their low-stock threshold, most critical first.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"limit": {Type: schema.Integer, Desc: "Max items, default 10"},
			}),
		},
		{
			Name: ToolSuggestReorder,
			Desc: "Suggest reorder quantities for items running low.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"limit": {Type: schema.Integer, Desc: "Max items, default 10"},
			}),
		},
		{
			Name: ToolGetDailySummary,
			Desc: "Hisaab for one store-local day: sales, stock-ins, udhar given and collected.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"date": {Type: schema.String, Desc: "Day as YYYY-MM-DD, omit for today"},
			}),
		},
		{
			Name: ToolListRecentActions,
			Desc: "List recent recorded actions with labels like T12 or L7 that undo_action accepts.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"limit": {Type: schema.Integer, Desc: "Max actions, default 10"},
			}),
		},
		{
			Name: ToolUndoAction,
			Desc: "Undo one recorded action by label or by type and id.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"action_type": {Type: schema.String, Desc: "transaction or ledger; omit when action_id is a label like T12"},
				"action_id":   {Type: schema.String, Desc: "Label like T12 or L7, or a bare numeric id", Required: true},
			}),
		},
	}
}
