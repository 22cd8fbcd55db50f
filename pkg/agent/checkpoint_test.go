package agent

import (
	"sync"
	"testing"
	"time"

	go_openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userMsg(content string) go_openai.ChatCompletionMessage {
	return go_openai.ChatCompletionMessage{Role: go_openai.ChatMessageRoleUser, Content: content}
}

func TestCheckpointRoundTrip(t *testing.T) {
	store := NewMemoryCheckpointStore(time.Hour)

	assert.Empty(t, store.History("s1"))

	store.AppendHistory("s1", userMsg("first"))
	store.AppendHistory("s1", userMsg("second"))

	history := store.History("s1")
	require.Len(t, history, 2)
	assert.Equal(t, "first", history[0].Content)
	assert.Equal(t, "second", history[1].Content)

	// Sessions are isolated.
	assert.Empty(t, store.History("s2"))
}

func TestCheckpointHistoryReturnsCopy(t *testing.T) {
	store := NewMemoryCheckpointStore(time.Hour)
	store.AppendHistory("s1", userMsg("original"))

	history := store.History("s1")
	history[0].Content = "mutated"

	assert.Equal(t, "original", store.History("s1")[0].Content)
}

func TestCheckpointAppendNothingIsNoop(t *testing.T) {
	store := NewMemoryCheckpointStore(time.Hour)
	store.AppendHistory("s1")
	assert.Empty(t, store.History("s1"))
}

func TestCheckpointExpiry(t *testing.T) {
	store := NewMemoryCheckpointStore(10 * time.Millisecond)
	store.AppendHistory("s1", userMsg("soon gone"))

	require.Len(t, store.History("s1"), 1)
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, store.History("s1"))
}

func TestCheckpointLockSerialisesSession(t *testing.T) {
	store := NewMemoryCheckpointStore(time.Hour)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			unlock := store.Lock("s1")
			defer unlock()
			store.AppendHistory("s1", userMsg("turn"))
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Len(t, order, 8)
	assert.Len(t, store.History("s1"), 8)
}
