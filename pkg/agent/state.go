// Package agent contains the core of the assistant: the per-turn session
// state, the four pipeline stages, and the state machine that coordinates
// them with bounded retries.
package agent

import (
	go_openai "github.com/sashabaranov/go-openai"

	"github.com/cortexre/cortexre/pkg/llm"
	"github.com/cortexre/cortexre/pkg/tools"
)

// Step severity levels for the audit trail.
const (
	StepInfo    = "info"
	StepWarning = "warning"
	StepTool    = "tool"
)

// Step is one observational audit-trail entry. Steps never drive control
// flow.
type Step struct {
	Stage   string         `json:"stage"`
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// DraftRecord is one rejected draft with its critique scores, kept so the
// best draft can be recovered when the revision cap is reached.
type DraftRecord struct {
	Draft         string     `json:"draft"`
	WeightedTotal float64    `json:"weighted_total"`
	Scores        llm.Scores `json:"scores"`
}

// State is the single mutable context threaded through one turn. Stages
// never mutate it directly: they return an Update the orchestrator folds in
// via Apply.
type State struct {
	// Query is the raw user question, immutable once set for a turn.
	Query string

	// History is the full conversation, append-only across turns. The
	// first seededHistory messages came from the checkpoint store.
	History       []go_openai.ChatCompletionMessage
	seededHistory int

	// Input guard outputs.
	Blocked     bool
	BlockReason string

	// Research outputs.
	DraftAnswer string
	ToolLog     []tools.LogEntry

	// Critique outputs.
	Critique      string
	RevisionCount int
	DraftHistory  []DraftRecord

	// FinalAnswer is set exactly once, by the output guard or an early
	// exit. It is the only field external callers read.
	FinalAnswer string

	// Steps is the per-turn audit trail.
	Steps []Step
}

// NewTurnState creates the state for a fresh turn. ToolLog and Steps always
// start empty (the per-turn reset contract); history is copied so prior
// turns can never be mutated through this state.
func NewTurnState(query string, history []go_openai.ChatCompletionMessage) *State {
	st := &State{
		Query:         query,
		History:       make([]go_openai.ChatCompletionMessage, len(history)),
		seededHistory: len(history),
	}
	copy(st.History, history)
	return st
}

// NewMessages returns the messages appended during this turn, i.e. the
// portion of History that was not seeded from a checkpoint.
func (s *State) NewMessages() []go_openai.ChatCompletionMessage {
	return s.History[s.seededHistory:]
}

// Update is the partial state change a stage returns. Scalar fields are
// pointers (nil means unchanged); list fields are append-only accumulators.
type Update struct {
	Blocked       *bool
	BlockReason   *string
	DraftAnswer   *string
	FinalAnswer   *string
	RevisionCount *int

	// Critique sets the feedback; ClearCritique resets it. Setting both is
	// a programming error and ClearCritique wins.
	Critique      *string
	ClearCritique bool

	History      []go_openai.ChatCompletionMessage
	ToolLog      []tools.LogEntry
	DraftHistory []DraftRecord
	Steps        []Step
}

// Apply folds a partial update into the state.
func (s *State) Apply(u *Update) {
	if u == nil {
		return
	}
	if u.Blocked != nil {
		s.Blocked = *u.Blocked
	}
	if u.BlockReason != nil {
		s.BlockReason = *u.BlockReason
	}
	if u.DraftAnswer != nil {
		s.DraftAnswer = *u.DraftAnswer
	}
	if u.FinalAnswer != nil {
		s.FinalAnswer = *u.FinalAnswer
	}
	if u.RevisionCount != nil {
		s.RevisionCount = *u.RevisionCount
	}
	switch {
	case u.ClearCritique:
		s.Critique = ""
	case u.Critique != nil:
		s.Critique = *u.Critique
	}
	s.History = append(s.History, u.History...)
	s.ToolLog = append(s.ToolLog, u.ToolLog...)
	s.DraftHistory = append(s.DraftHistory, u.DraftHistory...)
	s.Steps = append(s.Steps, u.Steps...)
}

func ptr[T any](v T) *T {
	return &v
}
