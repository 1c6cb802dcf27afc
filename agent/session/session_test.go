package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	storex "github.com/kiranaops/kirana-agent/store"
)

type fakeChatModel struct {
	responses []*schema.Message
	err       error
	calls     int
	seen      [][]*schema.Message
	boundInfo []*schema.ToolInfo
}

func (f *fakeChatModel) Generate(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.calls++
	f.seen = append(f.seen, append([]*schema.Message(nil), in...))
	if f.err != nil {
		return nil, f.err
	}
	idx := f.calls - 1
	if idx >= len(f.responses) {
		return nil, fmt.Errorf("no scripted response at call=%d", f.calls)
	}
	return f.responses[idx], nil
}

func (f *fakeChatModel) Stream(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

func (f *fakeChatModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	f.boundInfo = tools
	return f, nil
}

type appendRecord struct {
	tenantKey string
	userText  string
	reply     string
}

type fakeMemory struct {
	transcript string
	readErr    error
	appendErr  error
	appends    []appendRecord
}

func (f *fakeMemory) ReadTranscript(ctx context.Context, tenantKey string) (string, error) {
	if f.readErr != nil {
		return "", f.readErr
	}
	return f.transcript, nil
}

func (f *fakeMemory) AppendTurn(ctx context.Context, tenantKey, userText, reply string) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appends = append(f.appends, appendRecord{tenantKey: tenantKey, userText: userText, reply: reply})
	return nil
}

func assistantReply(text string) *schema.Message {
	return &schema.Message{Role: schema.Assistant, Content: text}
}

func assistantToolCall(id, name, args string) *schema.Message {
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{
			{ID: id, Function: schema.FunctionCall{Name: name, Arguments: args}},
		},
	}
}

func newTestRunner(t *testing.T, st storex.Store, mem *fakeMemory, model *fakeChatModel, cfg Config) *Runner {
	t.Helper()
	r, err := New(st, mem, model, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

func TestHandleTurnValidation(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, storex.NewMem(), &fakeMemory{}, &fakeChatModel{}, Config{})

	if _, err := r.HandleTurn(context.Background(), "  ", "hello"); !errors.Is(err, ErrInvalidExternalID) {
		t.Fatalf("expected ErrInvalidExternalID, got %v", err)
	}
	if _, err := r.HandleTurn(context.Background(), "wa:+911234567890", "   "); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestHandleTurnDirectReply(t *testing.T) {
	t.Parallel()

	model := &fakeChatModel{responses: []*schema.Message{assistantReply("Namaste! Kya bika aaj?")}}
	mem := &fakeMemory{}
	r := newTestRunner(t, storex.NewMem(), mem, model, Config{})

	reply, err := r.HandleTurn(context.Background(), "wa:+911234567890", "hello")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if reply != "Namaste! Kya bika aaj?" {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if model.calls != 1 {
		t.Fatalf("expected one model call, got %d", model.calls)
	}
	if len(mem.appends) != 1 || mem.appends[0].reply != reply {
		t.Fatalf("expected transcript append with reply, got %#v", mem.appends)
	}
	if len(model.boundInfo) == 0 {
		t.Fatal("expected tool catalog bound to the model")
	}
}

func TestHandleTurnToolCallFlow(t *testing.T) {
	t.Parallel()

	st := storex.NewMem()
	ctx := context.Background()
	tenant, err := st.EnsureTenant(ctx, "wa:+911234567890")
	if err != nil {
		t.Fatalf("EnsureTenant() error = %v", err)
	}
	stocked, err := st.AddStock(ctx, tenant.ID, storex.AddStockInput{Name: "Maggi", Qty: 24})
	if err != nil {
		t.Fatalf("AddStock() error = %v", err)
	}

	model := &fakeChatModel{
		responses: []*schema.Message{
			assistantToolCall("call-1", "record_sale",
				fmt.Sprintf(`{"item_id":%d,"qty":4}`, stocked.Item.ID)),
			assistantReply("Done, 4 Maggi sold. 20 left."),
		},
	}
	mem := &fakeMemory{}
	r := newTestRunner(t, st, mem, model, Config{})

	reply, err := r.HandleTurn(ctx, "wa:+911234567890", "4 maggi bik gaye")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if reply != "Done, 4 Maggi sold. 20 left." {
		t.Fatalf("unexpected reply: %q", reply)
	}

	item, err := st.ItemByID(ctx, tenant.ID, stocked.Item.ID)
	if err != nil {
		t.Fatalf("ItemByID() error = %v", err)
	}
	if item.CurrentStock != 20 {
		t.Fatalf("expected stock 20 after sale, got %d", item.CurrentStock)
	}

	// The second model call must carry the tool envelope back.
	if model.calls != 2 {
		t.Fatalf("expected two model calls, got %d", model.calls)
	}
	second := model.seen[1]
	last := second[len(second)-1]
	if last.Role != schema.Tool {
		t.Fatalf("expected trailing tool message, got role %s", last.Role)
	}
	if !strings.Contains(last.Content, `"SALE_RECORDED"`) {
		t.Fatalf("tool message missing outcome code: %s", last.Content)
	}
	if last.ToolCallID != "call-1" {
		t.Fatalf("tool message call id = %q", last.ToolCallID)
	}
}

func TestHandleTurnToolFailureFeedsBack(t *testing.T) {
	t.Parallel()

	st := storex.NewMem()
	ctx := context.Background()
	tenant, err := st.EnsureTenant(ctx, "wa:+911234567890")
	if err != nil {
		t.Fatalf("EnsureTenant() error = %v", err)
	}
	stocked, err := st.AddStock(ctx, tenant.ID, storex.AddStockInput{Name: "Maggi", Qty: 3})
	if err != nil {
		t.Fatalf("AddStock() error = %v", err)
	}

	model := &fakeChatModel{
		responses: []*schema.Message{
			assistantToolCall("call-1", "record_sale",
				fmt.Sprintf(`{"item_id":%d,"qty":30}`, stocked.Item.ID)),
			assistantReply("Sirf 3 bache hain, 30 nahi de sakte."),
		},
	}
	r := newTestRunner(t, st, &fakeMemory{}, model, Config{})

	reply, err := r.HandleTurn(ctx, "wa:+911234567890", "30 maggi")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if reply != "Sirf 3 bache hain, 30 nahi de sakte." {
		t.Fatalf("unexpected reply: %q", reply)
	}

	second := model.seen[1]
	last := second[len(second)-1]
	if !strings.Contains(last.Content, `"INSUFFICIENT_STOCK"`) {
		t.Fatalf("expected INSUFFICIENT_STOCK envelope, got %s", last.Content)
	}

	item, err := st.ItemByID(ctx, tenant.ID, stocked.Item.ID)
	if err != nil {
		t.Fatalf("ItemByID() error = %v", err)
	}
	if item.CurrentStock != 3 {
		t.Fatalf("stock must be unchanged after refused sale, got %d", item.CurrentStock)
	}
}

func TestHandleTurnMalformedArgsBecomeInvalidInput(t *testing.T) {
	t.Parallel()

	model := &fakeChatModel{
		responses: []*schema.Message{
			assistantToolCall("call-1", "record_sale", `{"item_id":`),
			assistantReply("Samajh nahi aaya, phir se batao."),
		},
	}
	r := newTestRunner(t, storex.NewMem(), &fakeMemory{}, model, Config{})

	reply, err := r.HandleTurn(context.Background(), "wa:+911234567890", "kuch becha")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if reply == "" {
		t.Fatal("expected a reply")
	}

	second := model.seen[1]
	last := second[len(second)-1]
	if !strings.Contains(last.Content, `"INVALID_INPUT"`) {
		t.Fatalf("expected INVALID_INPUT envelope, got %s", last.Content)
	}
}

func TestHandleTurnRoundCapFallback(t *testing.T) {
	t.Parallel()

	loop := assistantToolCall("call-x", "check_low_stock", `{}`)
	model := &fakeChatModel{responses: []*schema.Message{loop, loop, loop}}
	r := newTestRunner(t, storex.NewMem(), &fakeMemory{}, model, Config{MaxToolRounds: 2})

	reply, err := r.HandleTurn(context.Background(), "wa:+911234567890", "stock kaisa hai")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if reply != fallbackReply {
		t.Fatalf("expected fallback reply, got %q", reply)
	}
	if model.calls != 2 {
		t.Fatalf("expected model calls capped at 2, got %d", model.calls)
	}
}

func TestHandleTurnEmptyModelContentFallback(t *testing.T) {
	t.Parallel()

	model := &fakeChatModel{responses: []*schema.Message{assistantReply("   ")}}
	r := newTestRunner(t, storex.NewMem(), &fakeMemory{}, model, Config{})

	reply, err := r.HandleTurn(context.Background(), "wa:+911234567890", "hello")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if reply != fallbackReply {
		t.Fatalf("expected fallback reply, got %q", reply)
	}
}

func TestHandleTurnModelErrorBecomesApology(t *testing.T) {
	t.Parallel()

	model := &fakeChatModel{err: errors.New("upstream 500")}
	r := newTestRunner(t, storex.NewMem(), &fakeMemory{}, model, Config{})

	reply, err := r.HandleTurn(context.Background(), "wa:+911234567890", "hello")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if reply != apologyReply {
		t.Fatalf("expected apology reply, got %q", reply)
	}
}

func TestHandleTurnTranscriptInjectedIntoSystemPrompt(t *testing.T) {
	t.Parallel()

	model := &fakeChatModel{responses: []*schema.Message{assistantReply("ok")}}
	mem := &fakeMemory{transcript: "Shopkeeper: 4 maggi\nAssistant: Done, 20 left."}
	r := newTestRunner(t, storex.NewMem(), mem, model, Config{})

	if _, err := r.HandleTurn(context.Background(), "wa:+911234567890", "usko bhi 2 de do"); err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	system := model.seen[0][0]
	if system.Role != schema.System {
		t.Fatalf("first message should be system, got %s", system.Role)
	}
	if !strings.Contains(system.Content, "Done, 20 left.") {
		t.Fatal("system prompt missing transcript")
	}
}

func TestHandleTurnMemoryFailureDoesNotFailTurn(t *testing.T) {
	t.Parallel()

	model := &fakeChatModel{responses: []*schema.Message{assistantReply("ok")}}
	mem := &fakeMemory{readErr: errors.New("redis down"), appendErr: errors.New("redis down")}
	r := newTestRunner(t, storex.NewMem(), mem, model, Config{})

	reply, err := r.HandleTurn(context.Background(), "wa:+911234567890", "hello")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if reply != "ok" {
		t.Fatalf("unexpected reply: %q", reply)
	}
}
