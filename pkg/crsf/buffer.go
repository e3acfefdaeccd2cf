package crsf

// DefaultBufferSize is the default capacity of a Buffer.
const DefaultBufferSize = 4096

// Buffer accumulates stream bytes until frames can be decoded.
// It never grows beyond its capacity: when full, the oldest bytes
// are dropped so the most recent link activity is preserved.
type Buffer struct {
	data []byte
}

// NewBuffer creates a Buffer with the given capacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &Buffer{data: make([]byte, 0, capacity)}
}

// Cap returns the capacity.
func (b *Buffer) Cap() int {
	return cap(b.data)
}

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Bytes returns the buffered bytes. The slice is only valid until the
// next call to Append, Consume or Reset.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Append adds p and returns how many bytes were dropped to stay within
// capacity. An append larger than the capacity keeps only its trailing
// bytes.
func (b *Buffer) Append(p []byte) (dropped int) {
	capacity := cap(b.data)
	if len(p) > capacity {
		dropped = len(p) - capacity
		p = p[dropped:]
	}
	if over := len(b.data) + len(p) - capacity; over > 0 {
		b.Consume(over)
		dropped += over
	}
	b.data = append(b.data, p...)
	return
}

// Consume removes the first n bytes and moves the rest to the front.
func (b *Buffer) Consume(n int) {
	if n <= 0 {
		return
	}
	if n >= len(b.data) {
		b.data = b.data[:0]
		return
	}
	b.data = b.data[:copy(b.data, b.data[n:])]
}

// Reset discards all buffered bytes.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
}
