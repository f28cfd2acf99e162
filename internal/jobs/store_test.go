package jobs

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreInitStartsAtZero(t *testing.T) {
	s := NewStore(10)
	s.Init("x1")

	progress, found := s.Get("x1")
	require.True(t, found)
	assert.Equal(t, ProgressQueued, progress)
}

func TestStoreGetUnknown(t *testing.T) {
	s := NewStore(10)

	progress, found := s.Get("missing")
	assert.False(t, found)
	assert.Equal(t, 0, progress)
}

func TestStoreSetIgnoresUnknownID(t *testing.T) {
	s := NewStore(10)

	assert.False(t, s.Set("missing", 100))
	_, found := s.Get("missing")
	assert.False(t, found, "Set must not create entries")
}

func TestStoreSetSupportsIntermediateValues(t *testing.T) {
	s := NewStore(10)
	s.Init("job")

	require.True(t, s.Set("job", 42))
	progress, _ := s.Get("job")
	assert.Equal(t, 42, progress)

	s.Set("job", 250)
	progress, _ = s.Get("job")
	assert.Equal(t, 100, progress)

	s.Set("job", -5)
	progress, _ = s.Get("job")
	assert.Equal(t, 0, progress)
}

func TestStoreEvictsOldestAtCapacity(t *testing.T) {
	s := NewStore(DefaultProgressCapacity)

	for i := 0; i < DefaultProgressCapacity; i++ {
		s.Init(fmt.Sprintf("batch-%d", i))
	}

	_, found := s.Get("batch-0")
	assert.False(t, found, "the first submitted id should be evicted")

	_, found = s.Get("batch-1")
	assert.True(t, found)
	_, found = s.Get(fmt.Sprintf("batch-%d", DefaultProgressCapacity-1))
	assert.True(t, found)
	assert.Equal(t, DefaultProgressCapacity-1, s.Len())
}

func TestStoreEvictionIgnoresCompletionAndReads(t *testing.T) {
	s := NewStore(3)
	s.Init("a")
	s.Set("a", ProgressDone)
	s.Init("b")

	// 参照しても削除順は変わらない
	s.Get("a")
	s.Init("c")

	_, found := s.Get("a")
	assert.False(t, found)
	_, found = s.Get("b")
	assert.True(t, found)
	_, found = s.Get("c")
	assert.True(t, found)
}

func TestStoreReinitMovesToNewest(t *testing.T) {
	s := NewStore(3)
	s.Init("a")
	s.Init("b")
	s.Set("a", 100)
	s.Init("a")

	progress, found := s.Get("a")
	require.True(t, found)
	assert.Equal(t, 0, progress, "re-submission resets progress")

	s.Init("c")
	_, found = s.Get("b")
	assert.False(t, found, "b is now the oldest entry")
	_, found = s.Get("a")
	assert.True(t, found)
}

func TestStoreEvict(t *testing.T) {
	s := NewStore(10)
	s.Init("a")
	s.Evict("a")
	s.Evict("never-added")

	_, found := s.Get("a")
	assert.False(t, found)
	assert.Equal(t, 0, s.Len())
}

func TestStoreInitUndoRemovesNewID(t *testing.T) {
	s := NewStore(10)
	undo := s.Init("a")
	undo()

	_, found := s.Get("a")
	assert.False(t, found)
	assert.Equal(t, 0, s.Len())
}

func TestStoreInitUndoRestoresPreviousEntry(t *testing.T) {
	s := NewStore(3)
	s.Init("a")
	s.Init("b")
	s.Set("a", 40)

	undo := s.Init("a")
	undo()

	progress, found := s.Get("a")
	require.True(t, found)
	assert.Equal(t, 40, progress)

	// a は元の位置に戻っているので先に押し出される
	s.Init("c")
	_, found = s.Get("a")
	assert.False(t, found)
	_, found = s.Get("b")
	assert.True(t, found)
}

func TestStoreInitUndoRestoresEvictedEntry(t *testing.T) {
	s := NewStore(3)
	s.Init("a")
	s.Set("a", 60)
	s.Init("b")

	undo := s.Init("c")
	_, found := s.Get("a")
	require.False(t, found)

	undo()
	progress, found := s.Get("a")
	require.True(t, found)
	assert.Equal(t, 60, progress)
	_, found = s.Get("c")
	assert.False(t, found)
	assert.Equal(t, 2, s.Len())

	s.Init("d")
	_, found = s.Get("a")
	assert.False(t, found, "a is still the oldest entry")
}

func TestStoreInitUndoKeepsLaterUpdates(t *testing.T) {
	s := NewStore(10)
	s.Init("a")
	s.Set("a", 40)

	undo := s.Init("a")
	s.Set("a", 70)
	undo()

	progress, found := s.Get("a")
	require.True(t, found)
	assert.Equal(t, 70, progress)
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore(50)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := fmt.Sprintf("%d-%d", g, i)
				s.Init(id)
				s.Set(id, 100)
				s.Get(id)
			}
		}(g)
	}
	wg.Wait()

	assert.Less(t, s.Len(), 50)
}
