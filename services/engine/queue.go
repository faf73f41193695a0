package engine

// eventQueue is the single FIFO owned by the engine. Handlers push the events
// they produce to the back, so every consequence of a market event drains
// before the next timestamp is introduced.
type eventQueue struct {
	items []Event
}

func (q *eventQueue) Push(ev Event) {
	q.items = append(q.items, ev)
}

func (q *eventQueue) Pop() (Event, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	ev := q.items[0]
	q.items = q.items[1:]
	return ev, true
}

func (q *eventQueue) Len() int { return len(q.items) }
