// Package session drives one conversational turn end to end: resolve
// the tenant, read the transcript, run the bounded tool loop, write the
// transcript back, and produce the reply text.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/kiranaops/kirana-agent/agent/contract"
	memoryx "github.com/kiranaops/kirana-agent/agent/memory"
	promptx "github.com/kiranaops/kirana-agent/agent/prompt"
	toolx "github.com/kiranaops/kirana-agent/agent/tool"
	storex "github.com/kiranaops/kirana-agent/store"
)

var (
	ErrInvalidExternalID = errors.New("external id is empty")
	ErrInvalidMessage    = errors.New("message is empty")
)

// defaultMaxToolRounds bounds the planner loop. A turn that has not
// settled after this many model rounds gets the fallback reply instead
// of another invocation.
const defaultMaxToolRounds = 6

const fallbackReply = "Sorry, I could not finish that. Can you say it again, maybe in smaller pieces?"

const apologyReply = "Something went wrong on my side. Nothing was changed, please try again in a moment."

type Config struct {
	MaxToolRounds int
}

// Runner implements contract.Runner over a tenant-scoped store, a
// transcript memory, and a tool-calling chat model. The model is bound
// to the fixed tool catalog once at construction; the executor is
// rebuilt every turn because it closes over the resolved tenant.
type Runner struct {
	st        storex.Store
	memory    contractx.MemoryStore
	toolModel einomodel.ToolCallingChatModel

	graphRunner compose.Runnable[GraphInput, GraphOutput]

	maxRounds int
	now       func() time.Time
}

var _ contractx.Runner = (*Runner)(nil)

func New(
	st storex.Store,
	memory contractx.MemoryStore,
	chatModel einomodel.ToolCallingChatModel,
	cfg Config,
) (*Runner, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if memory == nil {
		memory = memoryx.Noop{}
	}

	maxRounds := cfg.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxToolRounds
	}

	toolModel, err := chatModel.WithTools(toolx.Infos())
	if err != nil {
		return nil, errors.Join(contractx.ErrModelInvoke, err)
	}

	r := &Runner{
		st:        st,
		memory:    memory,
		toolModel: toolModel,
		maxRounds: maxRounds,
		now:       time.Now,
	}

	graphRunner, err := r.compileHandleTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	r.graphRunner = graphRunner

	return r, nil
}

// HandleTurn runs one turn. Validation problems surface as errors;
// model and persistence faults are logged and turned into an apology so
// the chat layer always has something to send back.
func (r *Runner) HandleTurn(ctx context.Context, externalID, text string) (string, error) {
	turnID := uuid.NewString()

	out, err := r.graphRunner.Invoke(ctx, GraphInput{
		ExternalID: externalID,
		Text:       text,
		TurnID:     turnID,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidExternalID) || errors.Is(err, ErrInvalidMessage) {
			return "", err
		}
		log.Error().
			Err(err).
			Str("turn_id", turnID).
			Str("external_id", externalID).
			Msg("turn failed")
		return apologyReply, nil
	}
	return out.Reply, nil
}

// buildSystemPrompt injects the store identity and the rolling
// transcript into the static template.
func buildSystemPrompt(tenant *storex.Tenant, transcript string) string {
	var b strings.Builder
	b.WriteString(promptx.System())
	b.WriteString("\n\nStore: ")
	if tenant.Name != "" {
		b.WriteString(tenant.Name)
	} else {
		b.WriteString(tenant.ExternalID)
	}
	if transcript != "" {
		b.WriteString("\n\nRecent conversation:\n")
		b.WriteString(transcript)
	}
	return b.String()
}
