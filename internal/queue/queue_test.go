package queue

import (
	"sync"
	"testing"
)

// testItem is a simple struct for testing the generic queue
type testItem struct {
	ID   int
	Name string
}

func TestQueue_New(t *testing.T) {
	q := New[testItem]()
	if q == nil {
		t.Fatal("expected non-nil queue")
	}
	if !q.Empty() {
		t.Error("expected empty queue")
	}
	if q.Len() != 0 {
		t.Errorf("expected length 0, got %d", q.Len())
	}
}

func TestQueue_Push(t *testing.T) {
	q := New[testItem]()

	q.Push(testItem{ID: 1, Name: "first"})
	if q.Len() != 1 {
		t.Errorf("expected length 1, got %d", q.Len())
	}

	q.Push(testItem{ID: 2}, testItem{ID: 3})
	if q.Len() != 3 {
		t.Errorf("expected length 3, got %d", q.Len())
	}
}

func TestQueue_Pop(t *testing.T) {
	q := New[testItem]()
	q.Push(testItem{ID: 1}, testItem{ID: 2})

	item, ok := q.Pop()
	if !ok || item.ID != 1 {
		t.Errorf("expected ID 1, got %d (ok=%v)", item.ID, ok)
	}
	item, ok = q.Pop()
	if !ok || item.ID != 2 {
		t.Errorf("expected ID 2, got %d (ok=%v)", item.ID, ok)
	}
	if _, ok = q.Pop(); ok {
		t.Error("expected ok=false on empty queue")
	}
}

func TestQueue_Requeue(t *testing.T) {
	q := New[testItem]()
	q.Push(testItem{ID: 3})
	q.Requeue(testItem{ID: 1}, testItem{ID: 2})

	got := q.Drain(0)
	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got))
	}
	for i, item := range got {
		if item.ID != i+1 {
			t.Errorf("position %d: expected ID %d, got %d", i, i+1, item.ID)
		}
	}
}

func TestQueue_Bounded(t *testing.T) {
	q := NewBounded[testItem](2)
	q.Push(testItem{ID: 1}, testItem{ID: 2}, testItem{ID: 3})

	if q.Len() != 2 {
		t.Errorf("expected length 2, got %d", q.Len())
	}
	if q.Dropped() != 1 {
		t.Errorf("expected 1 dropped, got %d", q.Dropped())
	}
	item, _ := q.Pop()
	if item.ID != 2 {
		t.Errorf("expected oldest survivor ID 2, got %d", item.ID)
	}

	q.Requeue(testItem{ID: 10}, testItem{ID: 11})
	if q.Len() != 2 {
		t.Errorf("expected length 2 after requeue, got %d", q.Len())
	}
	if q.Dropped() != 2 {
		t.Errorf("expected 2 dropped, got %d", q.Dropped())
	}
}

func TestQueue_Drain(t *testing.T) {
	q := New[testItem]()
	q.Push(testItem{ID: 1}, testItem{ID: 2}, testItem{ID: 3})

	batch := q.Drain(2)
	if len(batch) != 2 || batch[0].ID != 1 || batch[1].ID != 2 {
		t.Errorf("unexpected batch %+v", batch)
	}
	if q.Len() != 1 {
		t.Errorf("expected 1 remaining, got %d", q.Len())
	}

	rest := q.Drain(0)
	if len(rest) != 1 || rest[0].ID != 3 {
		t.Errorf("unexpected rest %+v", rest)
	}
	if !q.Empty() {
		t.Error("expected empty queue after drain")
	}
}

func TestQueue_Clear(t *testing.T) {
	q := New[testItem]()
	q.Push(testItem{ID: 1}, testItem{ID: 2})
	q.Clear()
	if !q.Empty() {
		t.Error("expected empty queue after clear")
	}
}

func TestQueue_Concurrent(t *testing.T) {
	q := New[testItem]()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			q.Push(testItem{ID: id})
		}(i)
	}
	wg.Wait()

	if q.Len() != 100 {
		t.Errorf("expected length 100, got %d", q.Len())
	}

	var popped int
	var mu sync.Mutex
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, ok := q.Pop(); ok; _, ok = q.Pop() {
				mu.Lock()
				popped++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if popped != 100 {
		t.Errorf("expected 100 popped, got %d", popped)
	}
}
