package mqtt

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer is a fixed-capacity FIFO of messages held while disconnected.
// Not safe for concurrent use.
type ringBuffer struct {
	buf   []bufferedMsg
	head  int // next write position
	count int
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &ringBuffer{buf: make([]bufferedMsg, capacity)}
}

// push appends msg, overwriting the oldest entry when full. It reports
// whether an entry was dropped.
func (r *ringBuffer) push(msg bufferedMsg) (dropped bool) {
	r.buf[r.head] = msg
	r.head = (r.head + 1) % len(r.buf)
	if r.count == len(r.buf) {
		return true
	}
	r.count++
	return false
}

// drain returns the buffered messages oldest first and empties the buffer.
func (r *ringBuffer) drain() []bufferedMsg {
	if r.count == 0 {
		return nil
	}
	out := make([]bufferedMsg, r.count)
	start := (r.head - r.count + len(r.buf)) % len(r.buf)
	for i := range out {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	r.count = 0
	r.head = 0
	return out
}

func (r *ringBuffer) len() int {
	return r.count
}
