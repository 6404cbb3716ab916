package motor

// Queue is an unbounded FIFO of pending commands. Enqueue never blocks and never
// rejects; the queue is bounded only by memory.
//
// Queue is not safe for concurrent use, it is owned by the control tick.
type Queue struct {
	items []Command
	head  int
}

// NewQueue creates an empty command queue
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends a command to the tail of the queue
func (q *Queue) Enqueue(c Command) {
	q.items = append(q.items, c)
}

// Dequeue removes and returns the command at the head of the queue
func (q *Queue) Dequeue() (Command, bool) {
	if q.head >= len(q.items) {
		return Command{}, false
	}

	c := q.items[q.head]
	q.items[q.head] = Command{}
	q.head++

	// compact once the consumed prefix dominates the backing array
	if q.head > 32 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		q.items = q.items[:n]
		q.head = 0
	}
	return c, true
}

// Len returns the number of pending commands
func (q *Queue) Len() int {
	return len(q.items) - q.head
}

// Empty reports whether there are no pending commands
func (q *Queue) Empty() bool {
	return q.Len() == 0
}

// Clear drops all pending commands
func (q *Queue) Clear() {
	clear(q.items)
	q.items = q.items[:0]
	q.head = 0
}

// Pending returns a copy of the pending commands in execution order
func (q *Queue) Pending() []Command {
	out := make([]Command, q.Len())
	copy(out, q.items[q.head:])
	return out
}
