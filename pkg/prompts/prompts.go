// Package prompts holds the system prompts for every LLM-backed stage,
// embedded at build time so the binary is self-contained.
package prompts

import (
	"embed"
	"strings"

	"github.com/pkg/errors"
)

//go:embed *.md
var files embed.FS

// Load returns the prompt with the given name (without extension).
func Load(name string) (string, error) {
	data, err := files.ReadFile(name + ".md")
	if err != nil {
		return "", errors.Wrapf(err, "load prompt %s", name)
	}
	return strings.TrimSpace(string(data)), nil
}

// MustLoad panics when the prompt is missing; prompts are embedded, so a
// missing one is a build defect.
func MustLoad(name string) string {
	prompt, err := Load(name)
	if err != nil {
		panic(err)
	}
	return prompt
}
