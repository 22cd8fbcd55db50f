package llm

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/cortexre/cortexre/pkg/prompts"
)

// InputDecision is the structured verdict of the input guard check.
type InputDecision struct {
	Allowed bool
	Reason  string
}

// OutputDecision is the structured verdict of the output guard check.
type OutputDecision struct {
	Valid           bool
	CorrectedAnswer string
}

// GuardService runs the LLM-backed input and output checks. A transport
// failure is returned as an error alongside the fail-open decision, so
// callers can record the degradation without branching on it.
type GuardService struct {
	client       Client
	inputPrompt  string
	outputPrompt string
}

// NewGuardService builds a GuardService on top of client.
func NewGuardService(client Client) *GuardService {
	return &GuardService{
		client:       client,
		inputPrompt:  prompts.MustLoad("input_guard"),
		outputPrompt: prompts.MustLoad("output_guard"),
	}
}

// CheckInput classifies a query for topic relevance and injection attempts.
// On service failure the decision defaults to allow (fail-open) and the
// error is returned for auditing.
func (g *GuardService) CheckInput(ctx context.Context, query string) (InputDecision, error) {
	raw, err := g.client.Complete(ctx, CompletionRequest{
		System:       g.inputPrompt,
		User:         query,
		JSONResponse: true,
	})
	if err != nil {
		log.Warn().Err(err).Msg("input guard failed, defaulting to allow")
		return InputDecision{Allowed: true}, err
	}

	var wire struct {
		Allowed *bool  `json:"allowed"`
		Reason  string `json:"reason"`
	}
	if err := decodeJSON(raw, &wire); err != nil {
		log.Warn().Err(err).Msg("input guard returned unparseable response, defaulting to allow")
		return InputDecision{Allowed: true}, err
	}

	decision := InputDecision{Allowed: true, Reason: wire.Reason}
	if wire.Allowed != nil {
		decision.Allowed = *wire.Allowed
	}
	log.Info().Bool("allowed", decision.Allowed).Str("reason", decision.Reason).Msg("input guard check complete")
	return decision, nil
}

var currencyStripper = strings.NewReplacer("$", "", "€", "", "£", "")

// CheckOutput validates a candidate answer against the known entity names.
// On service failure the decision defaults to valid (fail-open) and the
// error is returned for auditing.
func (g *GuardService) CheckOutput(ctx context.Context, query string, knownNames []string, answer string) (OutputDecision, error) {
	// Cheap pre-pass: the portfolio convention is plain formatted numbers,
	// so stray currency symbols are removed before the model sees the text.
	answer = currencyStripper.Replace(answer)

	user := "User question: " + query + "\n\n" +
		"Known property names: " + strings.Join(knownNames, ", ") + "\n\n" +
		"Candidate answer: " + answer

	raw, err := g.client.Complete(ctx, CompletionRequest{
		System:       g.outputPrompt,
		User:         user,
		JSONResponse: true,
	})
	if err != nil {
		log.Warn().Err(err).Msg("output guard failed, returning answer as-is")
		return OutputDecision{Valid: true}, err
	}

	var wire struct {
		Valid           *bool   `json:"valid"`
		CorrectedAnswer *string `json:"corrected_answer"`
	}
	if err := decodeJSON(raw, &wire); err != nil {
		log.Warn().Err(err).Msg("output guard returned unparseable response, returning answer as-is")
		return OutputDecision{Valid: true}, err
	}

	decision := OutputDecision{Valid: true}
	if wire.Valid != nil {
		decision.Valid = *wire.Valid
	}
	if wire.CorrectedAnswer != nil {
		decision.CorrectedAnswer = *wire.CorrectedAnswer
	}
	log.Info().
		Bool("valid", decision.Valid).
		Bool("has_correction", decision.CorrectedAnswer != "").
		Msg("output guard check complete")
	return decision, nil
}
