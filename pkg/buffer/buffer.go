// Package buffer implements the cursor-based byte accumulator used by
// both sides of a socket context: a read-side drain target and a
// write-side backpressure queue. It is not thread-safe; each owner
// holds exclusive access inside its loop.
package buffer

const defaultCap = 1024

// Buffer is a contiguous byte container with a read cursor idx into a
// backing store. Logical contents are store[idx:]. Read advances idx;
// Write appends, compacting the consumed prefix first when the append
// would exceed capacity but the logical size still fits.
type Buffer struct {
	store []byte
	idx   int
}

// New returns an empty Buffer with a small pre-allocated backing array.
func New() *Buffer {
	return &Buffer{store: make([]byte, 0, defaultCap)}
}

// Len returns the number of unread bytes.
func (b *Buffer) Len() int { return len(b.store) - b.idx }

// Bytes returns the unread slice; it is invalidated by the next Write.
func (b *Buffer) Bytes() []byte { return b.store[b.idx:] }

// ReadAll drains and returns every unread byte, resetting the buffer.
func (b *Buffer) ReadAll() []byte {
	out := make([]byte, b.Len())
	copy(out, b.store[b.idx:])
	b.store = b.store[:0]
	b.idx = 0
	return out
}

// Read drains up to n unread bytes.
func (b *Buffer) Read(n int) []byte {
	if n > b.Len() {
		n = b.Len()
	}
	out := make([]byte, n)
	copy(out, b.store[b.idx:b.idx+n])
	b.idx += n
	return out
}

// Write appends data, compacting the consumed prefix when the backing
// store's capacity would otherwise be exceeded.
func (b *Buffer) Write(data []byte) {
	end := len(b.store) + len(data)
	if end > cap(b.store) {
		logicalLen := end - b.idx
		if logicalLen <= cap(b.store) {
			copy(b.store, b.store[b.idx:])
			b.store = b.store[:len(b.store)-b.idx]
			b.idx = 0
		} else {
			grown := make([]byte, len(b.store)-b.idx, end-b.idx+1)
			copy(grown, b.store[b.idx:])
			b.store = grown
			b.idx = 0
		}
	}
	b.store = append(b.store, data...)
}

// Reset discards all contents, keeping the backing array.
func (b *Buffer) Reset() {
	b.store = b.store[:0]
	b.idx = 0
}
