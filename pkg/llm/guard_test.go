package llm

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckInputAllows(t *testing.T) {
	client := &stubClient{response: `{"allowed": true, "reason": ""}`}
	svc := NewGuardService(client)

	decision, err := svc.CheckInput(context.Background(), "What is the NOI of Alpha Tower?")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestCheckInputBlocks(t *testing.T) {
	client := &stubClient{response: `{"allowed": false, "reason": "off_topic"}`}
	svc := NewGuardService(client)

	decision, err := svc.CheckInput(context.Background(), "write me a poem")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, "off_topic", decision.Reason)
}

func TestCheckInputFailsOpen(t *testing.T) {
	client := &stubClient{err: errors.New("connection refused")}
	svc := NewGuardService(client)

	decision, err := svc.CheckInput(context.Background(), "anything")
	require.Error(t, err)
	assert.True(t, decision.Allowed)
}

func TestCheckInputFailsOpenOnGarbage(t *testing.T) {
	client := &stubClient{response: "I think this is fine"}
	svc := NewGuardService(client)

	decision, err := svc.CheckInput(context.Background(), "anything")
	require.Error(t, err)
	assert.True(t, decision.Allowed)
}

func TestCheckOutputValid(t *testing.T) {
	client := &stubClient{response: `{"valid": true}`}
	svc := NewGuardService(client)

	decision, err := svc.CheckOutput(context.Background(), "q", []string{"Alpha Tower"}, "NOI is 600.00")
	require.NoError(t, err)
	assert.True(t, decision.Valid)
	assert.Empty(t, decision.CorrectedAnswer)
}

func TestCheckOutputCorrection(t *testing.T) {
	client := &stubClient{response: `{"valid": false, "corrected_answer": "NOI for Alpha Tower is 600.00"}`}
	svc := NewGuardService(client)

	decision, err := svc.CheckOutput(context.Background(), "q", []string{"Alpha Tower"}, "NOI for Alpa Towr is 600.00")
	require.NoError(t, err)
	assert.False(t, decision.Valid)
	assert.Equal(t, "NOI for Alpha Tower is 600.00", decision.CorrectedAnswer)
}

func TestCheckOutputStripsCurrencySymbols(t *testing.T) {
	client := &stubClient{response: `{"valid": true}`}
	svc := NewGuardService(client)

	_, err := svc.CheckOutput(context.Background(), "q", nil, "Revenue was $1,200.00 and €50.00")
	require.NoError(t, err)
	assert.NotContains(t, client.lastRequest.User, "$")
	assert.NotContains(t, client.lastRequest.User, "€")
	assert.Contains(t, client.lastRequest.User, "1,200.00")
}

func TestCheckOutputFailsOpen(t *testing.T) {
	client := &stubClient{err: errors.New("timeout")}
	svc := NewGuardService(client)

	decision, err := svc.CheckOutput(context.Background(), "q", nil, "the draft")
	require.Error(t, err)
	assert.True(t, decision.Valid)
}

func TestCheckOutputPassesKnownNames(t *testing.T) {
	client := &stubClient{response: `{"valid": true}`}
	svc := NewGuardService(client)

	_, err := svc.CheckOutput(context.Background(), "q", []string{"Alpha Tower", "Beta Plaza"}, "answer")
	require.NoError(t, err)
	assert.Contains(t, client.lastRequest.User, "Alpha Tower, Beta Plaza")
}
