package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/kiranaops/kirana-agent/agent/contract"
	toolx "github.com/kiranaops/kirana-agent/agent/tool"
)

// runToolLoop alternates model invocations and tool executions until
// the model answers in plain text or the round cap is hit. Every tool
// outcome, success or failure, is fed back as a tool message; only
// persistence faults abort the turn.
func (r *Runner) runToolLoop(ctx context.Context, st *graphState) (string, error) {
	execute := toolx.NewExecutor(r.st, st.Tenant.ID)

	messages := []*schema.Message{
		schema.SystemMessage(buildSystemPrompt(st.Tenant, st.Transcript)),
		schema.UserMessage(st.Text),
	}

	for round := 0; round < r.maxRounds; round++ {
		msg, err := r.toolModel.Generate(ctx, messages)
		if err != nil {
			return "", fmt.Errorf("%w: generate round=%d: %v", contractx.ErrModelInvoke, round, err)
		}
		if msg == nil {
			return "", fmt.Errorf("%w: nil model response at round=%d", contractx.ErrModelInvoke, round)
		}

		if len(msg.ToolCalls) == 0 {
			reply := strings.TrimSpace(msg.Content)
			if reply == "" {
				return fallbackReply, nil
			}
			return reply, nil
		}

		messages = append(messages, msg)

		for _, call := range msg.ToolCalls {
			result, err := r.executeCall(ctx, execute, call)
			if err != nil {
				return "", err
			}

			log.Debug().
				Str("turn_id", st.TurnID).
				Int64("tenant_id", st.Tenant.ID).
				Str("tool", result.Tool).
				Str("code", result.Code).
				Bool("ok", result.OK).
				Msg("tool executed")

			payload, err := json.Marshal(result)
			if err != nil {
				return "", fmt.Errorf("marshal tool result: %w", err)
			}
			messages = append(messages, schema.ToolMessage(string(payload), call.ID))
		}
	}

	log.Warn().
		Str("turn_id", st.TurnID).
		Int64("tenant_id", st.Tenant.ID).
		Int("rounds", r.maxRounds).
		Msg("tool loop hit round cap")
	return fallbackReply, nil
}

// executeCall decodes one tool call and dispatches it. Arguments are
// decoded with UseNumber so money and ids reach the tool layer as
// json.Number, never as float64. Malformed arguments become an
// INVALID_INPUT envelope the model can recover from.
func (r *Runner) executeCall(
	ctx context.Context,
	execute toolx.Executor,
	call schema.ToolCall,
) (contractx.ToolResult, error) {
	name := strings.TrimSpace(call.Function.Name)
	if name == "" {
		return contractx.Fail("", toolx.CodeInvalidInput, "tool call has no name", nil), nil
	}

	args := map[string]any{}
	if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
		dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
		dec.UseNumber()
		if err := dec.Decode(&args); err != nil {
			return contractx.Fail(name, toolx.CodeInvalidInput,
				fmt.Sprintf("arguments are not valid JSON: %v", err), nil), nil
		}
	}

	return execute(ctx, name, args)
}
