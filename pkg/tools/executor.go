package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Call is a single tool invocation requested by the model.
type Call struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// LogEntry is one row of the per-turn tool audit trail. Result carries the
// tool output on success or a map with an "error" key on failure, never a
// Go error, so the trail is always JSON-serialisable and safe to feed back
// to the model.
type LogEntry struct {
	ToolName string         `json:"tool_name"`
	Args     map[string]any `json:"args"`
	Result   any            `json:"result"`
}

// Errored reports whether this entry recorded a failed invocation.
func (e LogEntry) Errored() bool {
	m, ok := e.Result.(map[string]any)
	if !ok {
		return false
	}
	_, has := m["error"]
	return has
}

// Executor runs tool calls against a registry, converting every failure mode
// (unknown tool, invalid arguments, handler error, panic) into a structured
// log entry instead of propagating.
type Executor struct {
	timeout time.Duration
}

// ExecutorOption customises an Executor.
type ExecutorOption func(*Executor)

// WithTimeout bounds each individual tool invocation.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = d }
}

// NewExecutor builds an Executor. The default per-call timeout is 30s.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{timeout: 30 * time.Second}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Execute runs one tool call and returns its audit-trail entry. It never
// returns an error: failures are encoded in the entry's Result so the
// research loop keeps going and the model can recover.
func (e *Executor) Execute(ctx context.Context, call Call, registry Registry) LogEntry {
	entry := LogEntry{
		ToolName: call.Name,
		Args:     decodeArgs(call.Arguments),
	}

	def, err := registry.Get(call.Name)
	if err != nil {
		log.Warn().Str("tool", call.Name).Msg("unknown tool requested")
		entry.Result = errorResult(errors.Errorf("unknown tool '%s'", call.Name))
		return entry
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	result, err := e.callSafely(ctx, def, call.Arguments)
	if err != nil {
		if IsToolError(err) {
			log.Info().Str("tool", call.Name).Str("reason", err.Error()).Msg("tool rejected arguments")
		} else {
			log.Error().Err(err).Str("tool", call.Name).Msg("tool execution failed")
		}
		entry.Result = errorResult(err)
		return entry
	}

	entry.Result = result
	return entry
}

// callSafely invokes the tool and converts panics into errors, so a bug in a
// single tool cannot abort the whole turn.
func (e *Executor) callSafely(ctx context.Context, def *Definition, args json.RawMessage) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("tool %s panicked: %v", def.Name, r)
		}
	}()
	return def.Call(ctx, args)
}

func decodeArgs(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return map[string]any{"_raw": string(raw)}
	}
	return args
}

func errorResult(err error) map[string]any {
	return map[string]any{"error": err.Error()}
}
