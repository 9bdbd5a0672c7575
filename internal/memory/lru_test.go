package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/models"
)

func TestLRUStoreUnknownSessionIsEmpty(t *testing.T) {
	store := NewLRUStore(DefaultCapacity, 0)
	got, err := store.History(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, store.Len(), "history lazily registers the session")
}

func TestLRUStoreFIFOEviction(t *testing.T) {
	ctx := context.Background()
	store := NewLRUStore(DefaultCapacity, 0)

	const n = 23
	for i := 0; i < n; i++ {
		require.NoError(t, store.Append(ctx, "s", models.UserTurn(fmt.Sprintf("m%d", i))))
		hist, err := store.History(ctx, "s")
		require.NoError(t, err)
		assert.LessOrEqual(t, len(hist), DefaultCapacity)
	}

	hist, err := store.History(ctx, "s")
	require.NoError(t, err)
	require.Len(t, hist, DefaultCapacity)
	for i, turn := range hist {
		assert.Equal(t, fmt.Sprintf("m%d", n-DefaultCapacity+i), turn.Content)
	}
}

func TestLRUStoreHistoryIsACopy(t *testing.T) {
	ctx := context.Background()
	store := NewLRUStore(DefaultCapacity, 0)
	require.NoError(t, store.Append(ctx, "s", models.UserTurn("original")))

	hist, _ := store.History(ctx, "s")
	hist[0].Content = "mutated"

	again, _ := store.History(ctx, "s")
	assert.Equal(t, "original", again[0].Content)
}

func TestLRUStoreRejectsInvalidRole(t *testing.T) {
	store := NewLRUStore(DefaultCapacity, 0)
	err := store.Append(context.Background(), "s", models.Turn{Role: "tool", Content: "x"})
	assert.ErrorIs(t, err, models.ErrInvalidRole)

	hist, _ := store.History(context.Background(), "s")
	assert.Empty(t, hist)
}

func TestLRUStoreEvictsLeastRecentlyUsedSession(t *testing.T) {
	ctx := context.Background()
	store := NewLRUStore(DefaultCapacity, 2)

	require.NoError(t, store.Append(ctx, "a", models.UserTurn("a1")))
	require.NoError(t, store.Append(ctx, "b", models.UserTurn("b1")))
	// refresh a so b becomes the oldest
	_, _ = store.History(ctx, "a")
	require.NoError(t, store.Append(ctx, "c", models.UserTurn("c1")))

	assert.Equal(t, 2, store.Len())
	a, _ := store.History(ctx, "a")
	assert.Len(t, a, 1)
	b, _ := store.History(ctx, "b")
	assert.Empty(t, b, "b was evicted and comes back empty")
}

func TestLRUStoreSessionsDoNotInterfere(t *testing.T) {
	ctx := context.Background()
	store := NewLRUStore(DefaultCapacity, 0)

	var wg sync.WaitGroup
	for s := 0; s < 8; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			id := fmt.Sprintf("session-%d", s)
			for i := 0; i < 50; i++ {
				_ = store.Append(ctx, id, models.UserTurn(fmt.Sprintf("%s/%d", id, i)))
			}
		}(s)
	}
	wg.Wait()

	for s := 0; s < 8; s++ {
		id := fmt.Sprintf("session-%d", s)
		hist, err := store.History(ctx, id)
		require.NoError(t, err)
		require.Len(t, hist, DefaultCapacity)
		for i, turn := range hist {
			assert.Equal(t, fmt.Sprintf("%s/%d", id, 40+i), turn.Content)
		}
	}
}

func TestLRUStoreConcurrentSameSessionKeepsBound(t *testing.T) {
	ctx := context.Background()
	store := NewLRUStore(DefaultCapacity, 0)

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = store.Append(ctx, "shared", models.AssistantTurn("x"))
			}
		}()
	}
	wg.Wait()

	hist, _ := store.History(ctx, "shared")
	assert.Len(t, hist, DefaultCapacity)
}

func TestNewSelectsBackend(t *testing.T) {
	store, err := New(configFor("memory"), nil)
	require.NoError(t, err)
	assert.IsType(t, &LRUStore{}, store)

	_, err = New(configFor("redis"), nil)
	assert.Error(t, err)

	_, err = New(configFor("disk"), nil)
	assert.Error(t, err)
}

func TestLRUStoreAppendsTurnsAsOneUnit(t *testing.T) {
	ctx := context.Background()
	store := NewLRUStore(4, 0)

	require.NoError(t, store.Append(ctx, "s", models.UserTurn("q1"), models.AssistantTurn("a1")))
	require.NoError(t, store.Append(ctx, "s", models.UserTurn("q2"), models.AssistantTurn("a2")))
	require.NoError(t, store.Append(ctx, "s", models.UserTurn("q3"), models.AssistantTurn("a3")))

	err := store.Append(ctx, "s", models.UserTurn("q4"), models.Turn{Role: "tool", Content: "x"})
	require.ErrorIs(t, err, models.ErrInvalidRole)

	hist, err := store.History(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []models.Turn{
		models.UserTurn("q2"), models.AssistantTurn("a2"),
		models.UserTurn("q3"), models.AssistantTurn("a3"),
	}, hist)

	require.NoError(t, store.Append(ctx, "big", historyTurns(6)...))
	big, _ := store.History(ctx, "big")
	assert.Equal(t, historyTurns(6)[2:], big)
}

func TestLRUStoreClear(t *testing.T) {
	ctx := context.Background()
	store := NewLRUStore(DefaultCapacity, 0)
	require.NoError(t, store.Append(ctx, "s", models.UserTurn("q1")))
	require.NoError(t, store.Append(ctx, "other", models.UserTurn("keep")))

	require.NoError(t, store.Clear(ctx, "s"))
	require.NoError(t, store.Clear(ctx, "never-seen"))

	hist, _ := store.History(ctx, "s")
	assert.Empty(t, hist)
	kept, _ := store.History(ctx, "other")
	assert.Len(t, kept, 1)
}

func historyTurns(n int) []models.Turn {
	turns := make([]models.Turn, n)
	for i := range turns {
		turns[i] = models.UserTurn(fmt.Sprintf("t%d", i))
	}
	return turns
}
