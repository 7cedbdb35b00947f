package audio

import "beatbox/pkg/ring"

// Buffer is one pooled chunk of captured samples. Start is the absolute
// frame index of Data[0] since the stream started. Ownership moves
// through four stations: free queue -> callback -> filled queue ->
// analysis -> free queue. Exactly one owner at a time.
type Buffer struct {
	Data  []float32
	Start uint64
}

// BufferPool is the fixed set of capture buffers shared between the
// audio callback and the analysis goroutine. No buffer is created or
// destroyed after construction; exhaustion makes the callback drop the
// period instead of allocating.
type BufferPool struct {
	free   *ring.Queue[*Buffer]
	filled *ring.Queue[*Buffer]
	count  int
	size   int
}

// NewBufferPool creates count buffers of size samples each, all parked
// on the free queue.
func NewBufferPool(count, size int) *BufferPool {
	p := &BufferPool{
		free:   ring.New[*Buffer](count),
		filled: ring.New[*Buffer](count),
		count:  count,
		size:   size,
	}
	for i := 0; i < count; i++ {
		p.free.Push(&Buffer{Data: make([]float32, 0, size)})
	}
	return p
}

// TakeFree hands an empty buffer to the callback, or reports exhaustion.
//
// Performance Critical (Hot Path).
func (p *BufferPool) TakeFree() (*Buffer, bool) {
	return p.free.Pop()
}

// ReturnFree parks a buffer back on the free queue. Analysis side.
func (p *BufferPool) ReturnFree(b *Buffer) bool {
	b.Data = b.Data[:0]
	return p.free.Push(b)
}

// PushFilled publishes a captured buffer to the analysis side.
//
// Performance Critical (Hot Path).
func (p *BufferPool) PushFilled(b *Buffer) bool {
	return p.filled.Push(b)
}

// PopFilled takes the next captured buffer, oldest first.
func (p *BufferPool) PopFilled() (*Buffer, bool) {
	return p.filled.Pop()
}

// FreeLen reports free-queue occupancy for telemetry.
func (p *BufferPool) FreeLen() int {
	return p.free.Len()
}

// FilledLen reports filled-queue occupancy for telemetry.
func (p *BufferPool) FilledLen() int {
	return p.filled.Len()
}

// Count reports the fixed number of pooled buffers.
func (p *BufferPool) Count() int {
	return p.count
}

// BufferSize reports the per-buffer sample capacity.
func (p *BufferPool) BufferSize() int {
	return p.size
}
