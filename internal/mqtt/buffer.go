package mqtt

// bufferedMsg stores a serialized MQTT message for replay after
// reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer is a fixed-capacity FIFO that stores messages while
// disconnected. Oldest messages are dropped on overflow.
// Not safe for concurrent use; the caller must synchronize.
type ringBuffer struct {
	buf     []bufferedMsg
	head    int // next write position
	count   int
	dropped int // messages lost to overflow since last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{buf: make([]bufferedMsg, capacity)}
}

func (r *ringBuffer) push(msg bufferedMsg) {
	if r.count == len(r.buf) {
		// Overwrite oldest: head is already pointing at it.
		r.buf[r.head] = msg
		r.head = (r.head + 1) % len(r.buf)
		r.dropped++
		return
	}
	r.buf[r.head] = msg
	r.head = (r.head + 1) % len(r.buf)
	r.count++
}

// drainAll empties the buffer in arrival order and reports how many
// messages were dropped while it was full.
func (r *ringBuffer) drainAll() (msgs []bufferedMsg, dropped int) {
	dropped = r.dropped
	if r.count > 0 {
		msgs = make([]bufferedMsg, r.count)
		// Oldest item is at (head - count) mod capacity.
		start := (r.head - r.count + len(r.buf)) % len(r.buf)
		for i := 0; i < r.count; i++ {
			msgs[i] = r.buf[(start+i)%len(r.buf)]
		}
	}
	r.count = 0
	r.head = 0
	r.dropped = 0
	return msgs, dropped
}

func (r *ringBuffer) len() int {
	return r.count
}
