package engine

import (
	"testing"
	"time"
)

func TestQueueFIFO(t *testing.T) {
	var q eventQueue
	ts := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	q.Push(SignalEvent{Sym: "A", At: ts})
	q.Push(SignalEvent{Sym: "B", At: ts})
	q.Push(SignalEvent{Sym: "C", At: ts})

	for _, want := range []string{"A", "B", "C"} {
		ev, ok := q.Pop()
		if !ok {
			t.Fatal("queue exhausted early")
		}
		if ev.Symbol() != want {
			t.Fatalf("got %s, want %s", ev.Symbol(), want)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("expected empty queue")
	}
}

func TestQueueInterleavedPush(t *testing.T) {
	var q eventQueue
	ts := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	q.Push(SignalEvent{Sym: "A", At: ts})
	ev, _ := q.Pop()
	if ev.Symbol() != "A" {
		t.Fatalf("got %s", ev.Symbol())
	}
	// Events produced while handling go to the back.
	q.Push(SignalEvent{Sym: "B", At: ts})
	q.Push(SignalEvent{Sym: "C", At: ts})
	ev, _ = q.Pop()
	if ev.Symbol() != "B" {
		t.Fatalf("got %s, want B", ev.Symbol())
	}
}
