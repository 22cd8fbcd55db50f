package agent

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cortexre/cortexre/pkg/events"
)

// Result is what one completed turn hands back to the caller.
type Result struct {
	FinalAnswer   string `json:"final_answer"`
	Blocked       bool   `json:"blocked"`
	BlockReason   string `json:"block_reason,omitempty"`
	RevisionCount int    `json:"revision_count"`
	Steps         []Step `json:"steps"`
}

// Service is the public entry point: it owns session persistence and event
// publication around the workflow.
type Service struct {
	workflow *Workflow
	store    CheckpointStore
	router   *events.Router
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithCheckpointStore replaces the default in-memory session store.
func WithCheckpointStore(store CheckpointStore) ServiceOption {
	return func(s *Service) { s.store = store }
}

// WithEventRouter enables step-event publication on router.
func WithEventRouter(router *events.Router) ServiceOption {
	return func(s *Service) { s.router = router }
}

// NewService wraps a workflow with session handling.
func NewService(workflow *Workflow, opts ...ServiceOption) *Service {
	s := &Service{
		workflow: workflow,
		store:    NewMemoryCheckpointStore(30 * time.Minute),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Invoke runs one turn for a session. Turns of the same session run
// strictly one at a time; a failed turn leaves the stored history untouched.
func (s *Service) Invoke(ctx context.Context, query, sessionID string) (*Result, error) {
	unlock := s.store.Lock(sessionID)
	defer unlock()

	started := time.Now()
	st := NewTurnState(query, s.store.History(sessionID))

	if err := s.workflow.Run(ctx, st); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("turn failed")
		return nil, err
	}

	if !st.Blocked {
		s.store.AppendHistory(sessionID, st.NewMessages()...)
	}
	s.publishSteps(sessionID, st.Steps)

	log.Info().
		Str("session_id", sessionID).
		Bool("blocked", st.Blocked).
		Int("revision_count", st.RevisionCount).
		Int("tool_calls", len(st.ToolLog)).
		Dur("duration", time.Since(started)).
		Msg("turn complete")

	return &Result{
		FinalAnswer:   st.FinalAnswer,
		Blocked:       st.Blocked,
		BlockReason:   st.BlockReason,
		RevisionCount: st.RevisionCount,
		Steps:         st.Steps,
	}, nil
}

func (s *Service) publishSteps(sessionID string, steps []Step) {
	if s.router == nil {
		return
	}
	for _, step := range steps {
		s.router.PublishStep(events.StepEvent{
			SessionID: sessionID,
			Stage:     step.Stage,
			Type:      step.Type,
			Message:   step.Message,
			Data:      step.Data,
		})
	}
}
