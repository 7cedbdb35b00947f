package audio

import (
	"math"
	"testing"
)

func TestSamplesPerBeat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tempoBPM   int
		sampleRate float64
		want       float64
	}{
		{120, 48000, 24000},
		{60, 48000, 48000},
		{240, 48000, 12000},
		{100, 44100, 26460},
		{40, 48000, 72000},
	}

	for _, tt := range tests {
		got := SamplesPerBeat(tt.tempoBPM, tt.sampleRate)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("SamplesPerBeat(%d, %.0f) = %v, want %v",
				tt.tempoBPM, tt.sampleRate, got, tt.want)
		}
	}
}

func TestIsBeatFrameIntegerGrid(t *testing.T) {
	t.Parallel()

	// 120 BPM at 48kHz puts a beat on every 24000th frame exactly.
	spb := SamplesPerBeat(120, 48000)

	for _, frame := range []uint64{0, 24000, 48000, 2400000} {
		if !IsBeatFrame(frame, spb) {
			t.Errorf("IsBeatFrame(%d) = false, want true", frame)
		}
	}
	for _, frame := range []uint64{1, 23999, 24001, 47999, 48001} {
		if IsBeatFrame(frame, spb) {
			t.Errorf("IsBeatFrame(%d) = true, want false", frame)
		}
	}
}

func TestIsBeatFrameFractionalGrid(t *testing.T) {
	t.Parallel()

	// 130 BPM at 44.1kHz gives a fractional beat period. Every beat
	// interval must still land on exactly one frame.
	spb := SamplesPerBeat(130, 44100)
	if spb == math.Trunc(spb) {
		t.Fatalf("expected fractional period, got %v", spb)
	}

	const beats = 10
	limit := uint64(math.Ceil(spb * beats))

	count := 0
	for frame := uint64(0); frame < limit; frame++ {
		if IsBeatFrame(frame, spb) {
			count++
		}
	}
	if count != beats {
		t.Errorf("counted %d beat frames over %d beats, want %d", count, beats, beats)
	}
}

func TestMetronomeClick(t *testing.T) {
	t.Parallel()

	m := NewMetronome(48000)
	click := m.Click()

	// 20ms at 48kHz.
	if got := len(click); got != 960 {
		t.Errorf("click length = %d, want 960", got)
	}
	for i, s := range click {
		if s < -1 || s >= 1 {
			t.Fatalf("click[%d] = %v outside [-1, 1)", i, s)
		}
	}

	if got := len(NewMetronome(44100).Click()); got != 882 {
		t.Errorf("44.1kHz click length = %d, want 882", got)
	}
}

func TestMetronomeClickDeterministic(t *testing.T) {
	t.Parallel()

	a := NewMetronome(48000).Click()
	b := NewMetronome(48000).Click()

	if len(a) != len(b) {
		t.Fatalf("click lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("clicks diverge at sample %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func BenchmarkIsBeatFrame(b *testing.B) {
	spb := SamplesPerBeat(120, 48000)
	var hits int

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if IsBeatFrame(uint64(i), spb) {
			hits++
		}
	}
	_ = hits
}
