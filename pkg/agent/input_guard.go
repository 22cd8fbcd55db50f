package agent

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
)

// Block reasons produced by the mechanical pre-checks.
const (
	ReasonEmptyQuery   = "empty_query"
	ReasonQueryTooLong = "query_too_long"
)

// Canned user-facing responses for blocked turns.
const (
	msgEmptyQuery = "Please enter a question about the portfolio."
	msgTooLong    = "Your question is too long. Please keep it under 500 characters."
	msgOffTopic   = "I can only help with questions about the real-estate portfolio, such as property financials, tenants, or expense analysis."
)

// runInputGuard screens the query before any tool or model spend: mechanical
// checks first, then the LLM relevance/injection classifier.
func (w *Workflow) runInputGuard(ctx context.Context, st *State) (*Update, error) {
	query := strings.TrimSpace(st.Query)

	if query == "" {
		return blockUpdate(ReasonEmptyQuery, msgEmptyQuery), nil
	}
	if len([]rune(query)) > MaxInputChars {
		return blockUpdate(ReasonQueryTooLong, msgTooLong), nil
	}

	decision, err := w.guard.CheckInput(ctx, query)
	if err != nil {
		// Fail-open: the decision already defaults to allow, the
		// degradation only shows up in the audit trail.
		return &Update{
			Blocked: ptr(false),
			Steps: []Step{{
				Stage:   StageInputGuard.String(),
				Type:    StepWarning,
				Message: "input guard unavailable, allowing query",
				Data:    map[string]any{"error": err.Error()},
			}},
		}, nil
	}

	if !decision.Allowed {
		log.Info().Str("reason", decision.Reason).Msg("query blocked by input guard")
		reason := decision.Reason
		if reason == "" {
			reason = "off_topic"
		}
		return blockUpdate(reason, msgOffTopic), nil
	}

	return &Update{
		Blocked: ptr(false),
		Steps: []Step{{
			Stage:   StageInputGuard.String(),
			Type:    StepInfo,
			Message: "query allowed",
		}},
	}, nil
}

func blockUpdate(reason, message string) *Update {
	return &Update{
		Blocked:     ptr(true),
		BlockReason: ptr(reason),
		FinalAnswer: ptr(message),
		Steps: []Step{{
			Stage:   StageInputGuard.String(),
			Type:    StepInfo,
			Message: "query blocked",
			Data:    map[string]any{"reason": reason},
		}},
	}
}
