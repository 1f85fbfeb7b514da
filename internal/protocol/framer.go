package protocol

// Framer turns an append-only inbound byte stream into frames. It is not safe
// for concurrent use; the transport hands bytes over through an inbox and the
// scheduler loop owns the Framer.
type Framer struct {
	buf     []byte
	dropped int
}

// Write appends received bytes. It never fails.
func (f *Framer) Write(p []byte) (int, error) {
	f.buf = append(f.buf, p...)
	return len(p), nil
}

// Buffered returns the number of bytes not yet consumed.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// Dropped returns how many bytes were discarded while resynchronizing.
func (f *Framer) Dropped() int {
	return f.dropped
}

// Next extracts the next complete frame. It returns false when more input is
// needed; unmatched leading bytes are dropped one at a time until a header
// is found. The returned frame owns its bytes.
func (f *Framer) Next() (Frame, []byte, bool) {
	for len(f.buf) >= 2 {
		if f.buf[0] != Header0 || f.buf[1] != Header1 {
			f.buf = f.buf[1:]
			f.dropped++
			continue
		}
		if len(f.buf) < HeaderLen {
			return Frame{}, nil, false
		}
		n := Overhead + int(f.buf[4])
		if len(f.buf) < n {
			return Frame{}, nil, false
		}

		raw := make([]byte, n)
		copy(raw, f.buf[:n])
		f.buf = f.buf[n:]
		f.compact()

		frame, _, _ := Parse(raw)
		return frame, raw, true
	}
	return Frame{}, nil, false
}

// compact releases the consumed prefix once the buffer drains.
func (f *Framer) compact() {
	if len(f.buf) == 0 {
		f.buf = nil
	}
}
