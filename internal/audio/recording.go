package audio

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"beatbox/internal/config"
	applog "beatbox/internal/log"
)

// Recorder writes captured mono samples to a WAV file. Write runs on
// the analysis goroutine, never on the audio callback, so file I/O
// cannot stall the stream. Close must be called after the writing
// goroutine has stopped.
type Recorder struct {
	file      *os.File
	enc       *wav.Encoder
	buf       *audio.IntBuffer
	scale     float64
	active    atomic.Int32
	closeOnce sync.Once

	written    uint64
	maxSamples uint64 // 0 means unlimited
}

// NewRecorder creates the target file and a WAV encoder for it. The
// stream is mono; bitDepth must be 16, 24 or 32. A positive maxDuration
// stops the recording once that much audio has been written.
func NewRecorder(path string, sampleRate float64, bitDepth int, maxDuration time.Duration) (*Recorder, error) {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported bit depth %d, use 16, 24 or 32", bitDepth)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create recording file: %w", err)
	}

	r := &Recorder{
		file:  file,
		enc:   wav.NewEncoder(file, int(sampleRate), bitDepth, 1, 1),
		scale: float64(int64(1)<<(bitDepth-1)) - 1,
		buf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: 1,
				SampleRate:  int(sampleRate),
			},
			Data:           make([]int, config.MaxBufferFrames),
			SourceBitDepth: bitDepth,
		},
	}
	if maxDuration > 0 {
		r.maxSamples = uint64(maxDuration.Seconds() * sampleRate)
	}
	r.active.Store(1)
	return r, nil
}

// Write appends one capture period, clamping samples to [-1, 1]. Writes
// after Close or after the duration cap are silently ignored.
func (r *Recorder) Write(samples []float32) error {
	if r.active.Load() != 1 {
		return nil
	}

	if len(samples) > cap(r.buf.Data) {
		samples = samples[:cap(r.buf.Data)]
	}
	r.buf.Data = r.buf.Data[:len(samples)]
	for i, s := range samples {
		v := float64(s)
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		r.buf.Data[i] = int(v * r.scale)
	}

	if err := r.enc.Write(r.buf); err != nil {
		return fmt.Errorf("wav write: %w", err)
	}
	r.written += uint64(len(samples))

	if r.maxSamples > 0 && r.written >= r.maxSamples {
		r.active.Store(0)
		applog.Infof("recording: duration cap reached after %d samples", r.written)
	}
	return nil
}

// Written reports the number of samples written so far.
func (r *Recorder) Written() uint64 {
	return r.written
}

// Close finalizes the WAV header and closes the file. Idempotent.
func (r *Recorder) Close() error {
	r.active.Store(0)

	var err error
	r.closeOnce.Do(func() {
		if cerr := r.enc.Close(); cerr != nil {
			err = fmt.Errorf("close wav encoder: %w", cerr)
		}
		if cerr := r.file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close recording file: %w", cerr)
		}
	})
	return err
}
