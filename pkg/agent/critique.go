package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/cortexre/cortexre/pkg/llm"
)

// runCritique grades the current draft. Approval sends it straight to the
// output guard. Rejection increments the revision count and either loops
// back to research with feedback, short-circuits on formatting-only fixes,
// or, at the cap, recovers the best-scoring draft seen so far.
func (w *Workflow) runCritique(ctx context.Context, st *State) (*Update, error) {
	// Nothing to review: grading an empty string would be nonsense. Let the
	// output guard produce the fallback.
	if strings.TrimSpace(st.DraftAnswer) == "" {
		return &Update{
			ClearCritique: true,
			Steps: []Step{{
				Stage:   StageCritique.String(),
				Type:    StepWarning,
				Message: "no draft to review",
			}},
		}, nil
	}

	result, err := w.critique.Critique(ctx, st.Query, st.ToolLog, st.DraftAnswer)
	if err != nil {
		// Fail-open: the result already defaults to approval.
		return &Update{
			ClearCritique: true,
			Steps: []Step{{
				Stage:   StageCritique.String(),
				Type:    StepWarning,
				Message: "critique unavailable, accepting draft",
				Data:    map[string]any{"error": err.Error()},
			}},
		}, nil
	}

	if result.ApprovedAt(w.cfg.ScoreThreshold) {
		return &Update{
			ClearCritique: true,
			Steps: []Step{{
				Stage:   StageCritique.String(),
				Type:    StepInfo,
				Message: "draft approved",
				Data:    map[string]any{"weighted_total": result.WeightedTotal},
			}},
		}, nil
	}

	record := DraftRecord{
		Draft:         st.DraftAnswer,
		WeightedTotal: result.WeightedTotal,
		Scores:        result.Scores,
	}
	newCount := st.RevisionCount + 1
	upd := &Update{
		RevisionCount: ptr(newCount),
		DraftHistory:  []DraftRecord{record},
	}

	// Cap reached: stop revising and salvage the strongest draft rather
	// than ship whatever happened to come last.
	if newCount >= w.cfg.MaxRevisions {
		candidates := append(append([]DraftRecord{}, st.DraftHistory...), record)
		best := bestDraft(candidates)
		log.Warn().
			Int("revisions", newCount).
			Float64("best_score", best.WeightedTotal).
			Msg("revision cap reached, selecting best draft")
		upd.ClearCritique = true
		upd.DraftAnswer = ptr(best.Draft)
		upd.Steps = []Step{{
			Stage:   StageCritique.String(),
			Type:    StepWarning,
			Message: "revision cap reached, using best draft",
			Data:    map[string]any{"best_score": best.WeightedTotal, "revisions": newCount},
		}}
		return upd, nil
	}

	// Formatting-only complaints come with the fix attached; another full
	// research pass would be waste.
	if result.FormattingOnly && result.RevisedAnswer != "" {
		upd.ClearCritique = true
		upd.DraftAnswer = ptr(result.RevisedAnswer)
		upd.Steps = []Step{{
			Stage:   StageCritique.String(),
			Type:    StepInfo,
			Message: "formatting fix applied",
			Data:    map[string]any{"weighted_total": result.WeightedTotal},
		}}
		return upd, nil
	}

	upd.Critique = ptr(feedbackText(result))
	upd.Steps = []Step{{
		Stage:   StageCritique.String(),
		Type:    StepInfo,
		Message: "draft rejected",
		Data: map[string]any{
			"weighted_total": result.WeightedTotal,
			"issues":         result.Issues,
			"revision":       newCount,
		},
	}}
	return upd, nil
}

// bestDraft returns the highest-scoring record; on a tie the earliest wins,
// so reruns of the same turn stay deterministic.
func bestDraft(records []DraftRecord) DraftRecord {
	best := records[0]
	for _, r := range records[1:] {
		if r.WeightedTotal > best.WeightedTotal {
			best = r
		}
	}
	return best
}

// feedbackText renders a critique result into the feedback block the
// research stage hands back to the model.
func feedbackText(result llm.CritiqueResult) string {
	var b strings.Builder
	b.WriteString("The previous answer had these issues:\n")
	for _, issue := range result.Issues {
		fmt.Fprintf(&b, "- %s\n", issue)
	}
	fmt.Fprintf(&b, "Scores: accuracy %d/10, completeness %d/10, clarity %d/10, format %d/10 (weighted total %.1f/100)\n",
		result.Scores.Accuracy, result.Scores.Completeness, result.Scores.Clarity, result.Scores.Format, result.WeightedTotal)
	if result.RevisedAnswer != "" {
		fmt.Fprintf(&b, "Suggested revision: %s\n", result.RevisedAnswer)
	}
	return b.String()
}
