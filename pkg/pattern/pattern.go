package pattern

import (
	"bytes"
	"fmt"
	"os"
)

// LCG constants shared by every component. Seed 0 is canonical so that an
// object written by one worker can be read back and verified by any other.
const (
	mulA = 1664525
	addC = 1013904223

	// DefaultSize is the ring size: 1 MiB, power of two so offsets map to
	// indexes with a mask instead of a modulo.
	DefaultSize = 1 << 20

	// DefaultSeed is the canonical seed.
	DefaultSeed = 0
)

// Buffer is a position-addressable deterministic byte ring. The logical byte
// stream is the periodic extension of the ring: the byte at absolute stream
// offset o lives at index o & (size-1).
type Buffer struct {
	data []byte
	mask int64
	seed int64
}

// New allocates and fills a pattern ring. size must be a power of two.
func New(size int64, seed int64) (*Buffer, error) {
	if size <= 0 || size&(size-1) != 0 {
		return nil, fmt.Errorf("pattern buffer size must be a power of two, got %d", size)
	}
	b := &Buffer{
		data: make([]byte, size),
		mask: size - 1,
		seed: seed,
	}
	for i := int64(0); i < size; i++ {
		b.data[i] = byte((i*mulA + addC + seed) % 255)
	}
	return b, nil
}

// Default returns a ring with the canonical size and seed.
func Default() *Buffer {
	b, _ := New(DefaultSize, DefaultSeed)
	return b
}

// Size returns the ring size in bytes.
func (b *Buffer) Size() int64 { return int64(len(b.data)) }

// At returns the pattern byte at absolute stream offset.
func (b *Buffer) At(offset int64) byte {
	return b.data[offset&b.mask]
}

// Fill copies pattern bytes for the stream window [offset, offset+len(dst))
// into dst, wrapping around the ring as needed.
func (b *Buffer) Fill(dst []byte, offset int64) {
	copied := 0
	for copied < len(dst) {
		idx := (offset + int64(copied)) & b.mask
		n := copy(dst[copied:], b.data[idx:])
		copied += n
	}
}

// Verify compares chunk against the pattern stream starting at offset.
// The comparison runs in at most two segments per ring revolution, never
// buffering. On mismatch it returns the absolute stream offset of the first
// differing byte and false.
func (b *Buffer) Verify(chunk []byte, offset int64) (int64, bool) {
	checked := 0
	for checked < len(chunk) {
		idx := (offset + int64(checked)) & b.mask
		n := len(chunk) - checked
		if avail := int(int64(len(b.data)) - idx); n > avail {
			n = avail
		}
		if !bytes.Equal(chunk[checked:checked+n], b.data[idx:idx+int64(n)]) {
			for i := 0; i < n; i++ {
				if chunk[checked+i] != b.data[idx+int64(i)] {
					return offset + int64(checked+i), false
				}
			}
		}
		checked += n
	}
	return 0, true
}

// Materialize writes size pattern bytes (stream offset 0 onward) to path.
// An existing file of exactly the requested size is reused untouched, so
// repeated runs skip regenerating multi-megabyte upload sources.
func (b *Buffer) Materialize(path string, size int64) error {
	if st, err := os.Stat(path); err == nil && st.Size() == size {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create pattern file: %w", err)
	}
	defer f.Close()

	written := int64(0)
	for written < size {
		n := size - written
		if n > int64(len(b.data)) {
			n = int64(len(b.data))
		}
		idx := written & b.mask
		if avail := int64(len(b.data)) - idx; n > avail {
			n = avail
		}
		if _, err := f.Write(b.data[idx : idx+n]); err != nil {
			return fmt.Errorf("failed to write pattern file: %w", err)
		}
		written += n
	}
	return nil
}
