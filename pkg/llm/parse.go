package llm

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// decodeJSON parses a JSON object out of a model response, stripping the
// markdown fences some models add despite instructions.
func decodeJSON(raw string, v any) error {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		if len(lines) > 1 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
			lines = lines[1 : len(lines)-1]
		} else {
			lines = lines[1:]
		}
		text = strings.Join(lines, "\n")
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return errors.Wrap(err, "parse model response as JSON")
	}
	return nil
}
