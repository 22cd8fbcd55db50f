package agent

import (
	"context"
	"testing"

	go_openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/cortexre/cortexre/pkg/llm"
	"github.com/cortexre/cortexre/pkg/tools"
)

// stubGuard scripts both guard checks. Errors come with the fail-open
// defaults applied, matching the production service contract.
type stubGuard struct {
	inputDecision  llm.InputDecision
	inputErr       error
	outputDecision llm.OutputDecision
	outputErr      error

	inputCalls  int
	outputCalls int
	lastNames   []string
}

func (g *stubGuard) CheckInput(ctx context.Context, query string) (llm.InputDecision, error) {
	g.inputCalls++
	if g.inputErr != nil {
		return llm.InputDecision{Allowed: true}, g.inputErr
	}
	return g.inputDecision, nil
}

func (g *stubGuard) CheckOutput(ctx context.Context, query string, knownNames []string, answer string) (llm.OutputDecision, error) {
	g.outputCalls++
	g.lastNames = knownNames
	if g.outputErr != nil {
		return llm.OutputDecision{Valid: true}, g.outputErr
	}
	return g.outputDecision, nil
}

func allowAllGuard() *stubGuard {
	return &stubGuard{
		inputDecision:  llm.InputDecision{Allowed: true},
		outputDecision: llm.OutputDecision{Valid: true},
	}
}

// stubCritique pops one scripted verdict per call; the last one repeats.
type stubCritique struct {
	verdicts []llm.CritiqueResult
	errs     []error
	calls    int
}

func (c *stubCritique) Critique(ctx context.Context, query string, toolLog []tools.LogEntry, draft string) (llm.CritiqueResult, error) {
	i := c.calls
	c.calls++
	if i >= len(c.verdicts) {
		i = len(c.verdicts) - 1
	}
	var err error
	if i < len(c.errs) {
		err = c.errs[i]
	}
	return c.verdicts[i], err
}

func approveVerdict() llm.CritiqueResult {
	return llm.CritiqueResult{
		Scores:        llm.Scores{Accuracy: 10, Completeness: 10, Clarity: 10, Format: 10},
		WeightedTotal: 100,
	}
}

func rejectVerdict(total float64, issues ...string) llm.CritiqueResult {
	return llm.CritiqueResult{
		Scores:        llm.Scores{Accuracy: 5, Completeness: 5, Clarity: 5, Format: 5},
		WeightedTotal: total,
		Issues:        issues,
	}
}

// stubChat pops one scripted assistant message per call and records every
// message window it was handed.
type stubChat struct {
	script []go_openai.ChatCompletionMessage
	err    error

	calls    int
	requests [][]go_openai.ChatCompletionMessage
}

func (c *stubChat) ChatWithTools(ctx context.Context, messages []go_openai.ChatCompletionMessage, toolDefs []go_openai.Tool) (go_openai.ChatCompletionMessage, error) {
	window := make([]go_openai.ChatCompletionMessage, len(messages))
	copy(window, messages)
	c.requests = append(c.requests, window)

	if c.err != nil {
		return go_openai.ChatCompletionMessage{}, c.err
	}
	i := c.calls
	c.calls++
	if i >= len(c.script) {
		i = len(c.script) - 1
	}
	return c.script[i], nil
}

func assistantText(content string) go_openai.ChatCompletionMessage {
	return go_openai.ChatCompletionMessage{
		Role:    go_openai.ChatMessageRoleAssistant,
		Content: content,
	}
}

func assistantToolCall(id, name, args string) go_openai.ChatCompletionMessage {
	return go_openai.ChatCompletionMessage{
		Role: go_openai.ChatMessageRoleAssistant,
		ToolCalls: []go_openai.ToolCall{{
			ID:   id,
			Type: go_openai.ToolTypeFunction,
			Function: go_openai.FunctionCall{
				Name:      name,
				Arguments: args,
			},
		}},
	}
}

type pingArgs struct {
	Value string `json:"value,omitempty"`
}

func testRegistry(t *testing.T) tools.Registry {
	t.Helper()
	registry := tools.NewInMemoryRegistry()
	def, err := tools.NewDefinition("ping", "answers pong",
		func(ctx context.Context, in pingArgs) (any, error) {
			return map[string]any{"pong": in.Value}, nil
		})
	require.NoError(t, err)
	require.NoError(t, registry.Register(def))
	return registry
}

func newTestWorkflow(t *testing.T, guard GuardService, critique CritiqueService, chat ChatClient, opts ...WorkflowOption) *Workflow {
	t.Helper()
	base := []WorkflowOption{
		WithSystemPrompt("You are a portfolio analyst."),
		WithKnownNames(func() ([]string, error) {
			return []string{"Alpha Tower", "Beta Plaza"}, nil
		}),
	}
	return NewWorkflow(guard, critique, chat, testRegistry(t), append(base, opts...)...)
}

func runTurn(t *testing.T, w *Workflow, query string) *State {
	t.Helper()
	st := NewTurnState(query, nil)
	require.NoError(t, w.Run(context.Background(), st))
	return st
}

func stagesOf(steps []Step) []string {
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.Stage)
	}
	return out
}
