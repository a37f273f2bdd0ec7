package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/zensu/focusflow/internal/domain/model"
)

func testDelta(id string, seconds int64) Delta {
	return model.HeartbeatDelta{
		DeltaID:   id,
		SessionID: "s-1",
		UserID:    "alice",
		Seconds:   seconds,
		Timezone:  "UTC",
		Scopes:    []string{"global"},
	}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	if !q.Enqueue(ctx, testDelta("s-1#1", 5)) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	deltaChan := q.Dequeue(ctx)
	d := <-deltaChan
	if d.DeltaID != "s-1#1" {
		t.Errorf("expected s-1#1, got %v", d.DeltaID)
	}
	if d.Seconds != 5 {
		t.Errorf("expected 5 seconds, got %d", d.Seconds)
	}
}

func TestInMemoryQueue_Backpressure(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, testDelta("s-1#1", 1)) {
		t.Error("expected enqueue to succeed")
	}
	if !q.Enqueue(ctx, testDelta("s-1#2", 1)) {
		t.Error("expected enqueue to succeed")
	}

	// Full queue rejects instead of blocking.
	if q.Enqueue(ctx, testDelta("s-1#3", 1)) {
		t.Error("expected enqueue to fail when full")
	}

	// Draining one slot makes room again.
	deltaChan := q.Dequeue(ctx)
	<-deltaChan
	deadline := time.Now().Add(time.Second)
	for !q.Enqueue(ctx, testDelta("s-1#3", 1)) {
		if time.Now().After(deadline) {
			t.Fatal("expected enqueue to succeed after drain")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()

	if !q.Enqueue(ctx, testDelta("s-1#1", 1)) {
		t.Error("expected enqueue to succeed")
	}

	if err := q.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to report closed")
	}
	if err := q.Close(); err != nil {
		t.Errorf("second close should be a no-op, got: %v", err)
	}

	// Closed queue rejects new deltas but drains the backlog.
	if q.Enqueue(ctx, testDelta("s-1#2", 1)) {
		t.Error("expected enqueue to fail after close")
	}

	deltaChan := q.Dequeue(ctx)
	d, ok := <-deltaChan
	if !ok || d.DeltaID != "s-1#1" {
		t.Errorf("expected buffered delta after close, got %v (ok=%v)", d.DeltaID, ok)
	}
	if _, ok := <-deltaChan; ok {
		t.Error("expected dequeue channel to close after drain")
	}
}

func TestInMemoryQueue_ConcurrentProducers(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1000))
	ctx := context.Background()

	const producers = 10
	const perProducer = 50

	done := make(chan struct{})
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(ctx, testDelta(fmt.Sprintf("s-%d#%d", p, i), 1))
			}
		}(p)
	}
	for p := 0; p < producers; p++ {
		<-done
	}

	if l := q.Len(ctx); l != producers*perProducer {
		t.Errorf("expected %d queued deltas, got %d", producers*perProducer, l)
	}
}
