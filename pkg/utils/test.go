package utils

import (
	"math"
	"math/rand"
	"sync"
)

// MockTransport implements the Transport interface for testing. It is
// safe for concurrent use so asynchronous fan-out loops can be
// asserted on from the test goroutine.
type MockTransport struct {
	mu     sync.Mutex
	sent   []any
	closed bool
}

// Send stores the payload for later inspection instead of transmitting.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, data)
	return nil
}

// Close satisfies the Transport interface and records the call.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Payloads returns a copy of everything sent so far.
func (m *MockTransport) Payloads() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]any, len(m.sent))
	copy(out, m.sent)
	return out
}

// SentCount reports how many payloads were sent.
func (m *MockTransport) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// Closed reports whether Close was called.
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GenerateSineWave returns size samples of a sine at the given frequency,
// scaled to 0.9 full scale.
func GenerateSineWave(size int, sampleRate, frequency float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = float32(math.Sin(2*math.Pi*frequency*t) * 0.9)
	}
	return buffer
}

// GenerateComplexWave returns a 440 Hz fundamental plus two harmonics.
func GenerateComplexWave(size int, sampleRate float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2 // 440Hz fundamental + harmonics
		buffer[i] = float32(signal * 0.9)
	}
	return buffer
}

// GenerateNoiseBurst returns size samples of silence with a seeded white
// noise burst of burstLen samples starting at offset. Deterministic for a
// given seed.
func GenerateNoiseBurst(size, offset, burstLen int, amplitude float64, seed int64) []float32 {
	buffer := make([]float32, size)
	r := rand.New(rand.NewSource(seed))
	for i := offset; i < offset+burstLen && i < size; i++ {
		buffer[i] = float32((r.Float64()*2 - 1) * amplitude)
	}
	return buffer
}

// GenerateDecayBurst returns a burst whose amplitude falls exponentially
// from amplitude toward zero over burstLen samples, preceded and followed
// by silence. decayPerSample is the per-sample multiplier, e.g. 0.999.
func GenerateDecayBurst(size, offset, burstLen int, amplitude, decayPerSample float64, seed int64) []float32 {
	buffer := make([]float32, size)
	r := rand.New(rand.NewSource(seed))
	env := amplitude
	for i := offset; i < offset+burstLen && i < size; i++ {
		buffer[i] = float32((r.Float64()*2 - 1) * env)
		env *= decayPerSample
	}
	return buffer
}

// FindPeakBin returns the index of the largest magnitude in
// [startBin, endBin], clamped to the slice bounds.
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
