package tool

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/kiranaops/kirana-agent/agent/contract"
	storex "github.com/kiranaops/kirana-agent/store"
)

func (e *executor) addDebt(ctx context.Context, args map[string]any) (contractx.ToolResult, error) {
	name := argString(args, "party_name")
	if name == "" {
		return invalid(ToolAddDebt, "party_name is required"), nil
	}
	amount, ok := argDecimal(args, "amount")
	if !ok || !amount.IsPositive() {
		return invalid(ToolAddDebt, "amount must be a positive number"), nil
	}
	var note *string
	if n := argString(args, "note"); n != "" {
		note = &n
	}

	res, err := e.st.AddDebt(ctx, e.tenant, name, amount, note)
	if err != nil {
		return failParty(ToolAddDebt, err)
	}
	return contractx.OK(ToolAddDebt, CodeDebtAdded,
		fmt.Sprintf("%s now owes ₹%s in total.", res.Party.Name, res.Balance.StringFixed(2)),
		ledgerData(res)), nil
}

func (e *executor) receivePayment(ctx context.Context, args map[string]any) (contractx.ToolResult, error) {
	name := argString(args, "party_name")
	if name == "" {
		return invalid(ToolReceivePayment, "party_name is required"), nil
	}
	amount, ok := argDecimal(args, "amount")
	if !ok || !amount.IsPositive() {
		return invalid(ToolReceivePayment, "amount must be a positive number"), nil
	}
	var note *string
	if n := argString(args, "note"); n != "" {
		note = &n
	}

	res, err := e.st.ReceivePayment(ctx, e.tenant, name, amount, note)
	if err != nil {
		return failParty(ToolReceivePayment, err)
	}

	data := ledgerData(res)
	msg := fmt.Sprintf("Received ₹%s from %s, ₹%s still owed.",
		amount.StringFixed(2), res.Party.Name, res.Balance.StringFixed(2))
	if res.NegativeBalance {
		msg = fmt.Sprintf("Received ₹%s from %s. Careful: the store now owes them ₹%s.",
			amount.StringFixed(2), res.Party.Name, res.Balance.Neg().StringFixed(2))
	}
	return contractx.OK(ToolReceivePayment, CodePaymentReceived, msg, data), nil
}

// failParty is fail() with the party-flavored not-found code. Payments
// never auto-create a party, so an unknown name surfaces here.
func failParty(tool string, err error) (contractx.ToolResult, error) {
	if errors.Is(err, storex.ErrNotFound) {
		return contractx.Fail(tool, CodePartyNotFound, "No customer by that name in the ledger.", nil), nil
	}
	return fail(tool, err, false)
}

func ledgerData(res *storex.LedgerResult) map[string]any {
	data := map[string]any{
		"party_id":    res.Party.ID,
		"party_name":  res.Party.Name,
		"entry_label": storex.LedgerLabel(res.Entry.ID),
		"amount":      res.Entry.Amount.Abs().String(),
		"balance":     res.Balance.String(),
	}
	if res.NegativeBalance {
		data["negative_balance"] = true
	}
	if res.Entry.Note != nil {
		data["note"] = *res.Entry.Note
	}
	return data
}
