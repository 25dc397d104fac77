package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// testItem is a simple struct for testing the generic queue
type testItem struct {
	ID   int
	Name string
}

func TestQueue_New(t *testing.T) {
	q := New[testItem]()
	assert.True(t, q.Empty())
	assert.Equal(t, 0, q.Len())
}

func TestQueue_Push(t *testing.T) {
	q := New[testItem]()

	q.Push(testItem{ID: 1, Name: "first"})
	assert.Equal(t, 1, q.Len())

	q.Push(testItem{ID: 2}, testItem{ID: 3})
	assert.Equal(t, 3, q.Len())
	assert.False(t, q.Empty())
}

func TestQueue_TakeAll(t *testing.T) {
	q := New[int]()
	q.Push(1, 2, 3)

	assert.Equal(t, []int{1, 2, 3}, q.Take(0))
	assert.True(t, q.Empty())
	assert.Empty(t, q.Take(0))
}

func TestQueue_TakeBatch(t *testing.T) {
	q := New[int]()
	q.Push(1, 2, 3, 4, 5)

	assert.Equal(t, []int{1, 2}, q.Take(2))
	assert.Equal(t, []int{3, 4}, q.Take(2))
	assert.Equal(t, []int{5}, q.Take(2))
	assert.True(t, q.Empty())
}

func TestQueue_TakeBatchDoesNotAlias(t *testing.T) {
	q := New[int]()
	q.Push(1, 2, 3)

	batch := q.Take(1)
	batch[0] = 99
	assert.Equal(t, []int{2, 3}, q.Take(0))
}

func TestQueue_RequeueKeepsOrder(t *testing.T) {
	q := New[int]()
	q.Push(1, 2, 3)

	failed := q.Take(2)
	q.Push(4)
	q.Requeue(failed...)

	assert.Equal(t, []int{1, 2, 3, 4}, q.Take(0))
}

func TestQueue_RequeueNothing(t *testing.T) {
	q := New[int]()
	q.Push(1)
	q.Requeue()
	assert.Equal(t, 1, q.Len())
}

func TestQueue_Concurrent(t *testing.T) {
	q := New[int]()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Push(n*100 + j)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1000, q.Len())
}

func TestQueue_ConcurrentTake(t *testing.T) {
	q := New[int]()
	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Push(j)
			}
		}()
	}
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				n := len(q.Take(7))
				mu.Lock()
				total += n
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 500, total+q.Len())
}
