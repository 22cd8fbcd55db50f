package agent

import (
	"testing"

	go_openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexre/cortexre/pkg/tools"
)

func TestNewTurnStateCopiesHistory(t *testing.T) {
	prior := []go_openai.ChatCompletionMessage{
		{Role: go_openai.ChatMessageRoleUser, Content: "original"},
	}
	st := NewTurnState("q", prior)

	st.History[0].Content = "mutated"
	assert.Equal(t, "original", prior[0].Content)

	assert.Empty(t, st.ToolLog)
	assert.Empty(t, st.Steps)
	assert.Empty(t, st.NewMessages())
}

func TestApplyScalarFields(t *testing.T) {
	st := &State{}
	st.Apply(&Update{
		Blocked:     ptr(true),
		BlockReason: ptr("off_topic"),
		FinalAnswer: ptr("done"),
	})

	assert.True(t, st.Blocked)
	assert.Equal(t, "off_topic", st.BlockReason)
	assert.Equal(t, "done", st.FinalAnswer)

	// nil pointers leave fields untouched
	st.Apply(&Update{})
	assert.True(t, st.Blocked)
	assert.Equal(t, "done", st.FinalAnswer)
}

func TestApplyAppendsLists(t *testing.T) {
	st := &State{}
	st.Apply(&Update{
		ToolLog: []tools.LogEntry{{ToolName: "a"}},
		Steps:   []Step{{Stage: "research", Message: "one"}},
	})
	st.Apply(&Update{
		ToolLog: []tools.LogEntry{{ToolName: "b"}},
		Steps:   []Step{{Stage: "research", Message: "two"}},
	})

	require.Len(t, st.ToolLog, 2)
	assert.Equal(t, "a", st.ToolLog[0].ToolName)
	assert.Equal(t, "b", st.ToolLog[1].ToolName)
	assert.Len(t, st.Steps, 2)
}

func TestApplyCritiqueClearWins(t *testing.T) {
	st := &State{Critique: "old feedback"}

	st.Apply(&Update{Critique: ptr("new feedback")})
	assert.Equal(t, "new feedback", st.Critique)

	st.Apply(&Update{Critique: ptr("ignored"), ClearCritique: true})
	assert.Empty(t, st.Critique)
}

func TestApplyNilUpdate(t *testing.T) {
	st := &State{FinalAnswer: "keep"}
	st.Apply(nil)
	assert.Equal(t, "keep", st.FinalAnswer)
}

func TestNewMessagesOnlyCoversThisTurn(t *testing.T) {
	prior := []go_openai.ChatCompletionMessage{
		{Role: go_openai.ChatMessageRoleUser, Content: "before"},
	}
	st := NewTurnState("q", prior)
	st.Apply(&Update{History: []go_openai.ChatCompletionMessage{
		{Role: go_openai.ChatMessageRoleUser, Content: "now"},
	}})

	msgs := st.NewMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "now", msgs[0].Content)
}
