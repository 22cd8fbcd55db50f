package llm

import (
	"context"

	go_openai "github.com/sashabaranov/go-openai"
)

// stubClient is a scripted Client for exercising the guard and critique
// services without a network.
type stubClient struct {
	response string
	err      error

	lastRequest CompletionRequest
}

var _ Client = (*stubClient)(nil)

func (s *stubClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	s.lastRequest = req
	return s.response, s.err
}

func (s *stubClient) ChatWithTools(ctx context.Context, messages []go_openai.ChatCompletionMessage, toolDefs []go_openai.Tool) (go_openai.ChatCompletionMessage, error) {
	return go_openai.ChatCompletionMessage{}, s.err
}
