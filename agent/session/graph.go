package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	storex "github.com/kiranaops/kirana-agent/store"
)

type GraphInput struct {
	ExternalID string
	Text       string
	TurnID     string
}

type GraphOutput struct {
	Reply string
}

type graphState struct {
	ExternalID string
	Text       string
	TurnID     string
	Now        time.Time

	Tenant     *storex.Tenant
	Transcript string
	Reply      string
}

func (r *Runner) compileHandleTurnGraph(
	ctx context.Context,
) (compose.Runnable[GraphInput, GraphOutput], error) {
	graph := compose.NewGraph[GraphInput, GraphOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in GraphInput) (*graphState, error) {
			return validateRequest(in, r.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("load_tenant",
		compose.InvokableLambda(func(ctx context.Context, in *graphState) (*graphState, error) {
			tenant, err := r.st.EnsureTenant(ctx, in.ExternalID)
			if err != nil {
				return nil, fmt.Errorf("ensure tenant: %w", err)
			}
			in.Tenant = tenant
			return in, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_tenant: %w", err)
	}

	if err := graph.AddLambdaNode("read_memory",
		compose.InvokableLambda(func(ctx context.Context, in *graphState) (*graphState, error) {
			transcript, err := r.memory.ReadTranscript(ctx, in.ExternalID)
			if err != nil {
				// A lost transcript degrades context, not correctness.
				log.Warn().
					Err(err).
					Str("turn_id", in.TurnID).
					Msg("read transcript failed, continuing without history")
				transcript = ""
			}
			in.Transcript = transcript
			return in, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node read_memory: %w", err)
	}

	if err := graph.AddLambdaNode("run_tool_loop",
		compose.InvokableLambda(func(ctx context.Context, in *graphState) (*graphState, error) {
			reply, err := r.runToolLoop(ctx, in)
			if err != nil {
				return nil, err
			}
			in.Reply = reply
			return in, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node run_tool_loop: %w", err)
	}

	if err := graph.AddLambdaNode("write_memory",
		compose.InvokableLambda(func(ctx context.Context, in *graphState) (*graphState, error) {
			if err := r.memory.AppendTurn(ctx, in.ExternalID, in.Text, in.Reply); err != nil {
				log.Warn().
					Err(err).
					Str("turn_id", in.TurnID).
					Msg("append transcript failed")
			}
			return in, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node write_memory: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_reply",
		compose.InvokableLambda(func(ctx context.Context, in *graphState) (GraphOutput, error) {
			return GraphOutput{Reply: in.Reply}, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_reply: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "load_tenant"},
		{"load_tenant", "read_memory"},
		{"read_memory", "run_tool_loop"},
		{"run_tool_loop", "write_memory"},
		{"write_memory", "finalize_reply"},
		{"finalize_reply", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("session.handle_turn"))
	if err != nil {
		return nil, fmt.Errorf("compile session graph: %w", err)
	}
	return runner, nil
}

func validateRequest(in GraphInput, nowFn func() time.Time) (*graphState, error) {
	externalID := strings.TrimSpace(in.ExternalID)
	if externalID == "" {
		return nil, ErrInvalidExternalID
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrInvalidMessage
	}

	return &graphState{
		ExternalID: externalID,
		Text:       text,
		TurnID:     in.TurnID,
		Now:        nowFn().UTC(),
	}, nil
}
