package agent

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
)

const msgNoDraft = "I was unable to produce an answer to your question. Please try rephrasing it."

// runOutputGuard makes the final pass over the approved draft: hallucinated
// entity names, leaked internals, formatting. It promotes either the draft
// or the guard's correction to the final answer; it never blocks a turn.
func (w *Workflow) runOutputGuard(ctx context.Context, st *State) (*Update, error) {
	if strings.TrimSpace(st.DraftAnswer) == "" {
		return &Update{
			FinalAnswer: ptr(msgNoDraft),
			Steps: []Step{{
				Stage:   StageOutputGuard.String(),
				Type:    StepWarning,
				Message: "no draft produced, returning fallback",
			}},
		}, nil
	}

	names, err := w.knownNames()
	if err != nil {
		log.Warn().Err(err).Msg("known-name lookup failed, output guard runs without names")
		names = nil
	}

	decision, err := w.guard.CheckOutput(ctx, st.Query, names, st.DraftAnswer)
	if err != nil {
		// Fail-open: ship the draft as-is.
		return &Update{
			FinalAnswer: ptr(st.DraftAnswer),
			Steps: []Step{{
				Stage:   StageOutputGuard.String(),
				Type:    StepWarning,
				Message: "output guard unavailable, returning draft",
				Data:    map[string]any{"error": err.Error()},
			}},
		}, nil
	}

	if !decision.Valid && decision.CorrectedAnswer != "" {
		return &Update{
			FinalAnswer: ptr(decision.CorrectedAnswer),
			Steps: []Step{{
				Stage:   StageOutputGuard.String(),
				Type:    StepInfo,
				Message: "answer corrected",
			}},
		}, nil
	}

	return &Update{
		FinalAnswer: ptr(st.DraftAnswer),
		Steps: []Step{{
			Stage:   StageOutputGuard.String(),
			Type:    StepInfo,
			Message: "answer validated",
		}},
	}, nil
}
