package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"

	"github.com/cortexre/cortexre/pkg/tools"
)

// runResearch drives the tool-calling loop: build the message window, let
// the model call tools until it produces text or the iteration cap trips.
// Unlike the guard stages, a model failure here fails the whole turn; there
// is nothing sensible to answer without research.
func (w *Workflow) runResearch(ctx context.Context, st *State) (*Update, error) {
	msgs := make([]go_openai.ChatCompletionMessage, 0, len(st.History)+2)
	msgs = append(msgs, st.History...)
	if len(msgs) == 0 {
		msgs = append(msgs, go_openai.ChatCompletionMessage{
			Role:    go_openai.ChatMessageRoleSystem,
			Content: w.systemPrompt,
		})
	}

	userContent := st.Query
	if st.Critique != "" {
		userContent = fmt.Sprintf("%s\n\nYour previous answer was rejected. Reviewer feedback:\n%s", st.Query, st.Critique)
	}
	msgs = append(msgs, go_openai.ChatCompletionMessage{
		Role:    go_openai.ChatMessageRoleUser,
		Content: userContent,
	})

	initial := len(st.History)
	toolDefs := openaiTools(w.registry)
	upd := &Update{ClearCritique: true}

	for iteration := 0; iteration < MaxToolIterations; iteration++ {
		resp, err := w.chat.ChatWithTools(ctx, msgs, toolDefs)
		if err != nil {
			return nil, errors.Wrap(err, "research completion")
		}
		msgs = append(msgs, resp)

		if len(resp.ToolCalls) == 0 {
			log.Debug().Int("iterations", iteration+1).Int("tool_calls", len(upd.ToolLog)).Msg("research produced draft")
			upd.DraftAnswer = ptr(resp.Content)
			upd.History = msgs[initial:]
			return upd, nil
		}

		for _, tc := range resp.ToolCalls {
			entry := w.executor.Execute(ctx, tools.Call{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: json.RawMessage(tc.Function.Arguments),
			}, w.registry)
			upd.ToolLog = append(upd.ToolLog, entry)

			stepType := StepTool
			if entry.Errored() {
				stepType = StepWarning
			}
			upd.Steps = append(upd.Steps, Step{
				Stage:   StageResearch.String(),
				Type:    stepType,
				Message: entry.ToolName,
				Data: map[string]any{
					"args":   entry.Args,
					"result": entry.Result,
				},
			})

			msgs = append(msgs, go_openai.ChatCompletionMessage{
				Role:       go_openai.ChatMessageRoleTool,
				Content:    stringifyResult(entry.Result),
				ToolCallID: tc.ID,
			})
		}
	}

	// Iteration cap: fall back to the last assistant text if there is one,
	// otherwise surface the last tool result raw rather than answer with
	// nothing.
	draft := lastAssistantText(msgs[initial:])
	if draft == "" && len(upd.ToolLog) > 0 {
		lastResult := upd.ToolLog[len(upd.ToolLog)-1].Result
		draft = fmt.Sprintf(
			"I gathered data but could not finish composing an answer. The most recent result was: %s",
			stringifyResult(lastResult),
		)
	}
	log.Warn().Int("max_iterations", MaxToolIterations).Msg("research hit tool iteration cap")
	upd.Steps = append(upd.Steps, Step{
		Stage:   StageResearch.String(),
		Type:    StepWarning,
		Message: "tool iteration cap reached",
		Data:    map[string]any{"max_iterations": MaxToolIterations},
	})
	upd.DraftAnswer = ptr(draft)
	upd.History = msgs[initial:]
	return upd, nil
}

// openaiTools converts the registry's definitions to the wire tool format.
func openaiTools(registry tools.Registry) []go_openai.Tool {
	defs := registry.List()
	out := make([]go_openai.Tool, 0, len(defs))
	for _, def := range defs {
		out = append(out, go_openai.Tool{
			Type: go_openai.ToolTypeFunction,
			Function: &go_openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}
	return out
}

func stringifyResult(result any) string {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(payload)
}

func lastAssistantText(msgs []go_openai.ChatCompletionMessage) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == go_openai.ChatMessageRoleAssistant && msgs[i].Content != "" {
			return msgs[i].Content
		}
	}
	return ""
}
