package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/cortexre/cortexre/pkg/prompts"
	"github.com/cortexre/cortexre/pkg/tools"
)

// Critique score weights. Accuracy and completeness carry the decision;
// clarity and format are secondary. Per-dimension scores are 0–10, so the
// weighted total lands on a 0–100 scale.
const (
	WeightAccuracy     = 4.0
	WeightCompleteness = 3.0
	WeightClarity      = 1.5
	WeightFormat       = 1.5
)

// Scores holds the four per-dimension critique scores, each 0–10.
type Scores struct {
	Accuracy     int `json:"accuracy"`
	Completeness int `json:"completeness"`
	Clarity      int `json:"clarity"`
	Format       int `json:"format"`
}

// WeightedTotal folds the per-dimension scores into the 0–100 scale.
func (s Scores) WeightedTotal() float64 {
	return WeightAccuracy*float64(s.Accuracy) +
		WeightCompleteness*float64(s.Completeness) +
		WeightClarity*float64(s.Clarity) +
		WeightFormat*float64(s.Format)
}

// CritiqueResult is the structured verdict of one critique call.
type CritiqueResult struct {
	Scores         Scores
	WeightedTotal  float64
	Issues         []string
	RevisedAnswer  string
	FormattingOnly bool
}

// ApprovedAt reports whether the draft clears the acceptance threshold.
func (r CritiqueResult) ApprovedAt(threshold int) bool {
	return r.WeightedTotal >= float64(threshold)
}

// CritiqueService grades a draft answer against the question and the tool
// audit trail. On transport failure it defaults to approval (fail-open) and
// returns the error for auditing.
type CritiqueService struct {
	client Client
	prompt string
}

// NewCritiqueService builds a CritiqueService on top of client.
func NewCritiqueService(client Client) *CritiqueService {
	return &CritiqueService{
		client: client,
		prompt: prompts.MustLoad("critique_agent"),
	}
}

// Critique reviews draft against query and toolLog.
func (c *CritiqueService) Critique(ctx context.Context, query string, toolLog []tools.LogEntry, draft string) (CritiqueResult, error) {
	logJSON, err := json.MarshalIndent(toolLog, "", "  ")
	if err != nil {
		logJSON = []byte("[]")
	}
	user := fmt.Sprintf("User question: %s\n\nTool call log:\n%s\n\nDraft answer: %s", query, logJSON, draft)

	raw, err := c.client.Complete(ctx, CompletionRequest{
		System:       c.prompt,
		User:         user,
		JSONResponse: true,
	})
	if err != nil {
		log.Warn().Err(err).Msg("critique failed, defaulting to approve")
		return approveByDefault(), err
	}

	var wire struct {
		Scores         Scores   `json:"scores"`
		WeightedTotal  *float64 `json:"weighted_total"`
		Issues         []string `json:"issues"`
		RevisedAnswer  *string  `json:"revised_answer"`
		FormattingOnly bool     `json:"formatting_only"`
	}
	if err := decodeJSON(raw, &wire); err != nil {
		log.Warn().Err(err).Msg("critique returned unparseable response, defaulting to approve")
		return approveByDefault(), err
	}

	result := CritiqueResult{
		Scores:         wire.Scores,
		Issues:         wire.Issues,
		FormattingOnly: wire.FormattingOnly,
	}
	if wire.RevisedAnswer != nil {
		result.RevisedAnswer = *wire.RevisedAnswer
	}
	// Models occasionally omit or miscompute the total; the per-dimension
	// scores are authoritative in that case.
	if wire.WeightedTotal != nil && *wire.WeightedTotal > 0 {
		result.WeightedTotal = *wire.WeightedTotal
	} else {
		result.WeightedTotal = wire.Scores.WeightedTotal()
	}

	log.Info().
		Float64("weighted_total", result.WeightedTotal).
		Int("issues", len(result.Issues)).
		Bool("formatting_only", result.FormattingOnly).
		Msg("critique complete")
	return result, nil
}

func approveByDefault() CritiqueResult {
	return CritiqueResult{
		Scores:        Scores{Accuracy: 10, Completeness: 10, Clarity: 10, Format: 10},
		WeightedTotal: 100,
	}
}
