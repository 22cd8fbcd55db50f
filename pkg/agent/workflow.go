package agent

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"

	"github.com/cortexre/cortexre/pkg/llm"
	"github.com/cortexre/cortexre/pkg/prompts"
	"github.com/cortexre/cortexre/pkg/tools"
)

// Hard limits of a single turn.
const (
	// MaxToolIterations bounds the assistant/tool round-trips in one
	// research pass.
	MaxToolIterations = 10

	// MaxInputChars is the mechanical length cap applied before any LLM
	// call.
	MaxInputChars = 500
)

// Stage identifies one node of the pipeline state machine.
type Stage int

const (
	StageInputGuard Stage = iota
	StageResearch
	StageCritique
	StageOutputGuard
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageInputGuard:
		return "input_guard"
	case StageResearch:
		return "research"
	case StageCritique:
		return "critique"
	case StageOutputGuard:
		return "output_guard"
	case StageDone:
		return "done"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// GuardService is the slice of the LLM layer the guard stages need.
type GuardService interface {
	CheckInput(ctx context.Context, query string) (llm.InputDecision, error)
	CheckOutput(ctx context.Context, query string, knownNames []string, answer string) (llm.OutputDecision, error)
}

// CritiqueService grades a draft against the question and the tool log.
type CritiqueService interface {
	Critique(ctx context.Context, query string, toolLog []tools.LogEntry, draft string) (llm.CritiqueResult, error)
}

// ChatClient is the tool-calling completion surface the research stage
// drives.
type ChatClient interface {
	ChatWithTools(ctx context.Context, messages []go_openai.ChatCompletionMessage, toolDefs []go_openai.Tool) (go_openai.ChatCompletionMessage, error)
}

// InvocationError marks a turn that aborted inside a stage. Callers should
// surface a generic failure to the user; the cause is for the logs.
type InvocationError struct {
	Stage Stage
	Err   error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invocation failed in stage %s: %v", e.Stage, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// Config holds the tunable bounds of the pipeline.
type Config struct {
	// MaxRevisions caps critique-driven revision cycles per turn.
	MaxRevisions int
	// ScoreThreshold is the weighted critique score (0-100) a draft must
	// reach to be approved.
	ScoreThreshold int
}

// DefaultConfig returns the production bounds.
func DefaultConfig() Config {
	return Config{MaxRevisions: 3, ScoreThreshold: 80}
}

// Workflow is the four-stage pipeline: input guard, tool-calling research,
// critique with bounded revisions, output guard.
type Workflow struct {
	cfg      Config
	guard    GuardService
	critique CritiqueService
	chat     ChatClient
	registry tools.Registry
	executor *tools.Executor

	systemPrompt string
	knownNames   func() ([]string, error)
}

// WorkflowOption customises a Workflow.
type WorkflowOption func(*Workflow)

// WithConfig overrides the default revision and score bounds.
func WithConfig(cfg Config) WorkflowOption {
	return func(w *Workflow) { w.cfg = cfg }
}

// WithExecutor replaces the default tool executor.
func WithExecutor(ex *tools.Executor) WorkflowOption {
	return func(w *Workflow) { w.executor = ex }
}

// WithKnownNames supplies the entity-name lookup the output guard checks
// answers against.
func WithKnownNames(fn func() ([]string, error)) WorkflowOption {
	return func(w *Workflow) { w.knownNames = fn }
}

// WithSystemPrompt replaces the embedded research system prompt.
func WithSystemPrompt(prompt string) WorkflowOption {
	return func(w *Workflow) { w.systemPrompt = prompt }
}

// NewWorkflow wires the pipeline together.
func NewWorkflow(guard GuardService, critique CritiqueService, chat ChatClient, registry tools.Registry, opts ...WorkflowOption) *Workflow {
	w := &Workflow{
		cfg:          DefaultConfig(),
		guard:        guard,
		critique:     critique,
		chat:         chat,
		registry:     registry,
		executor:     tools.NewExecutor(),
		systemPrompt: prompts.MustLoad("research_agent"),
		knownNames:   func() ([]string, error) { return nil, nil },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Run drives one turn through the state machine, mutating st in place. Any
// error or panic inside a stage aborts the turn as an InvocationError; no
// partial answer survives an abort.
func (w *Workflow) Run(ctx context.Context, st *State) (err error) {
	stage := StageInputGuard
	defer func() {
		if r := recover(); r != nil {
			err = &InvocationError{Stage: stage, Err: errors.Errorf("panic: %v", r)}
		}
	}()

	for stage != StageDone {
		log.Debug().Str("stage", stage.String()).Int("revision_count", st.RevisionCount).Msg("entering stage")
		upd, stageErr := w.runStage(ctx, stage, st)
		if stageErr != nil {
			return &InvocationError{Stage: stage, Err: stageErr}
		}
		st.Apply(upd)
		stage = w.next(stage, st)
	}
	return nil
}

func (w *Workflow) runStage(ctx context.Context, stage Stage, st *State) (*Update, error) {
	switch stage {
	case StageInputGuard:
		return w.runInputGuard(ctx, st)
	case StageResearch:
		return w.runResearch(ctx, st)
	case StageCritique:
		return w.runCritique(ctx, st)
	case StageOutputGuard:
		return w.runOutputGuard(ctx, st)
	default:
		return nil, errors.Errorf("no handler for stage %s", stage)
	}
}

// next computes the sole outgoing transition of each stage. The only
// branches are the early exit on block and the revise loop.
func (w *Workflow) next(stage Stage, st *State) Stage {
	switch stage {
	case StageInputGuard:
		if st.Blocked {
			return StageDone
		}
		return StageResearch
	case StageResearch:
		return StageCritique
	case StageCritique:
		if st.Critique != "" && st.RevisionCount < w.cfg.MaxRevisions {
			return StageResearch
		}
		return StageOutputGuard
	case StageOutputGuard:
		return StageDone
	default:
		return StageDone
	}
}
