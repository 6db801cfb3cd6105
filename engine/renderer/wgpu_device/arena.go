package wgpu_device

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// arena streams per draw data into one GPU buffer. Writes are appended on the CPU at aligned
// offsets and uploaded with a single WriteBuffer before the commands reading them are submitted.
type arena struct {
	align    int
	capacity int
	data     []byte
	buffer   *wgpu.Buffer
}

func newArena(dev *wgpu.Device, label string, usage wgpu.BufferUsage, align, capacity int) (*arena, error) {
	buf, err := dev.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  uint64(capacity),
		Usage: usage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", label, err)
	}
	a := newCPUArena(align, capacity)
	a.buffer = buf
	return a, nil
}

func newCPUArena(align, capacity int) *arena {
	return &arena{
		align:    align,
		capacity: capacity,
		data:     make([]byte, 0, capacity),
	}
}

// push appends b at the next aligned offset.
//
// Returns:
//   - int: the byte offset of b
//   - bool: false when b does not fit in what is left of the arena
func (a *arena) push(b []byte) (int, bool) {
	off := alignUp(len(a.data), a.align)
	if off+len(b) > a.capacity {
		return 0, false
	}
	a.data = append(a.data, make([]byte, off-len(a.data))...)
	a.data = append(a.data, b...)
	return off, true
}

// fits reports whether an empty arena can hold n bytes.
func (a *arena) fits(n int) bool {
	return n <= a.capacity
}

func (a *arena) upload(q *wgpu.Queue) {
	if len(a.data) == 0 || a.buffer == nil {
		return
	}
	a.data = append(a.data, make([]byte, alignUp(len(a.data), 4)-len(a.data))...)
	q.WriteBuffer(a.buffer, 0, a.data)
}

func (a *arena) reset() {
	a.data = a.data[:0]
}

func (a *arena) release() {
	if a.buffer != nil {
		a.buffer.Release()
		a.buffer = nil
	}
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}
