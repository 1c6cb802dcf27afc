package tool

// Stable outcome codes: the machine-readable half of every envelope.
// The planner keys follow-up decisions off these, so they never change
// meaning.
const (
	CodeFound            = "FOUND"
	CodeNotFound         = "NOT_FOUND"
	CodeSaleRecorded     = "SALE_RECORDED"
	CodeSaleFailed       = "SALE_FAILED"
	CodeItemNotFound     = "ITEM_NOT_FOUND"
	CodeInsufficient     = "INSUFFICIENT_STOCK"
	CodeStockAdded       = "STOCK_ADDED"
	CodeItemCreated      = "ITEM_CREATED_AND_STOCKED"
	CodeStockAdjusted    = "STOCK_ADJUSTED"
	CodeAmbiguousMatch   = "AMBIGUOUS_MATCH"
	CodeInvalidInput     = "INVALID_INPUT"
	CodeItemAdded        = "ITEM_ADDED"
	CodeItemExists       = "ITEM_EXISTS"
	CodeAliasAdded       = "ALIAS_ADDED"
	CodeAliasExists      = "ALIAS_EXISTS"
	CodeMinStockSet      = "MIN_STOCK_SET"
	CodeDebtAdded        = "DEBT_ADDED"
	CodePaymentReceived  = "PAYMENT_RECEIVED"
	CodePartyNotFound    = "PARTY_NOT_FOUND"
	CodeLowStockFound    = "LOW_STOCK_FOUND"
	CodeNoLowStock       = "NO_LOW_STOCK"
	CodeReorderSuggested = "REORDER_SUGGESTED"
	CodeNoReorderNeeded  = "NO_REORDER_NEEDED"
	CodeSummaryGenerated = "SUMMARY_GENERATED"
	CodeRecentListed     = "RECENT_LISTED"
	CodeActionUndone     = "ACTION_UNDONE"
	CodeUndoFailed       = "UNDO_FAILED"
	CodeUnknownTool      = "UNKNOWN_TOOL"
)
