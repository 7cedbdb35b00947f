package audio

import "testing"

func TestPaStreamMonoPassThrough(t *testing.T) {
	t.Parallel()

	var gotIn []float32
	s := &paStream{
		inChannels:  1,
		outChannels: 1,
		cb: func(in, out []float32) {
			gotIn = append(gotIn[:0], in...)
			for i := range out {
				out[i] = 0.25
			}
		},
	}

	in := []float32{0.1, 0.2, 0.3, 0.4}
	out := make([]float32, 4)
	s.process(in, out)

	for i := range in {
		if gotIn[i] != in[i] {
			t.Fatalf("callback input[%d] = %v, want %v", i, gotIn[i], in[i])
		}
	}
	for i := range out {
		if out[i] != 0.25 {
			t.Fatalf("out[%d] = %v, want 0.25", i, out[i])
		}
	}
}

func TestPaStreamStereoDownmixAndFanOut(t *testing.T) {
	t.Parallel()

	const frames = 4
	s := &paStream{
		inChannels:  2,
		outChannels: 2,
		monoIn:      make([]float32, frames),
		monoOut:     make([]float32, frames),
		cb: func(in, out []float32) {
			// Echo the downmixed capture into the playback buffer.
			copy(out, in)
		},
	}

	// Interleaved stereo: left and right average to 0.3, 0.5, 0.7, 0.9.
	in := []float32{0.2, 0.4, 0.4, 0.6, 0.6, 0.8, 0.8, 1.0}
	out := make([]float32, frames*2)
	s.process(in, out)

	want := []float32{0.3, 0.5, 0.7, 0.9}
	for f := 0; f < frames; f++ {
		if diff := out[2*f] - want[f]; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("out frame %d left = %v, want %v", f, out[2*f], want[f])
		}
		if out[2*f] != out[2*f+1] {
			t.Errorf("out frame %d channels differ: %v vs %v", f, out[2*f], out[2*f+1])
		}
	}
}

func TestPaStreamProcessAllocs(t *testing.T) {
	const frames = 512
	s := &paStream{
		inChannels:  2,
		outChannels: 2,
		monoIn:      make([]float32, frames),
		monoOut:     make([]float32, frames),
		cb:          func(in, out []float32) {},
	}

	in := make([]float32, frames*2)
	out := make([]float32, frames*2)

	allocs := testing.AllocsPerRun(100, func() {
		s.process(in, out)
	})
	if allocs > 0 {
		t.Errorf("downmix allocated memory: got %.1f allocs, want 0", allocs)
	}
}
