// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"time"

	"github.com/gordonklaus/portaudio"

	"beatbox/internal/config"
)

// StreamCallback processes one duplex period. in holds the captured
// mono samples, out is the mono playback buffer to fill. Both slices
// are only valid for the duration of the call.
type StreamCallback func(in, out []float32)

// Stream is an opened duplex connection to an audio clock.
type Stream interface {
	Start() error
	Stop() error
	Close() error
}

// Backend opens duplex streams. PortAudioBackend talks to hardware;
// SimBackend is a deterministic stand-in driven by tests and fixtures.
type Backend interface {
	Open(cfg StreamConfig, cb StreamCallback) (Stream, error)
}

// StreamConfig carries the device and format parameters for Open.
type StreamConfig struct {
	SampleRate      float64
	FramesPerBuffer int
	InputDevice     int
	OutputDevice    int
	InputChannels   int
	OutputChannels  int
	LowLatency      bool
}

// StreamConfigFrom extracts the stream parameters from the application
// configuration.
func StreamConfigFrom(cfg *config.Config) StreamConfig {
	return StreamConfig{
		SampleRate:      cfg.Audio.SampleRate,
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
		InputDevice:     cfg.Audio.InputDevice,
		OutputDevice:    cfg.Audio.OutputDevice,
		InputChannels:   cfg.Audio.InputChannels,
		OutputChannels:  cfg.Audio.OutputChannels,
		LowLatency:      cfg.Audio.LowLatency,
	}
}

// PortAudioBackend opens full-duplex hardware streams. Initialize must
// have been called before Open.
type PortAudioBackend struct{}

func (PortAudioBackend) Open(cfg StreamConfig, cb StreamCallback) (Stream, error) {
	inputDevice, err := InputDevice(cfg.InputDevice)
	if err != nil {
		return nil, fmt.Errorf("%w: input device: %v", ErrHardware, err)
	}
	outputDevice, err := OutputDevice(cfg.OutputDevice)
	if err != nil {
		return nil, fmt.Errorf("%w: output device: %v", ErrHardware, err)
	}

	var inLatency, outLatency time.Duration
	if cfg.LowLatency {
		inLatency = inputDevice.DefaultLowInputLatency
		outLatency = outputDevice.DefaultLowOutputLatency
	} else {
		inLatency = inputDevice.DefaultHighInputLatency
		outLatency = outputDevice.DefaultHighOutputLatency
	}

	s := &paStream{
		cb:          cb,
		inChannels:  cfg.InputChannels,
		outChannels: cfg.OutputChannels,
		monoIn:      make([]float32, cfg.FramesPerBuffer),
		monoOut:     make([]float32, cfg.FramesPerBuffer),
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: cfg.InputChannels,
			Device:   inputDevice,
			Latency:  inLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: cfg.OutputChannels,
			Device:   outputDevice,
			Latency:  outLatency,
		},
		FramesPerBuffer: cfg.FramesPerBuffer,
		SampleRate:      cfg.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, s.process)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStreamOpen, err)
	}
	s.stream = stream
	return s, nil
}

// paStream adapts PortAudio's interleaved buffers to the engine's mono
// callback contract.
type paStream struct {
	stream      *portaudio.Stream
	cb          StreamCallback
	inChannels  int
	outChannels int
	monoIn      []float32
	monoOut     []float32
}

func (s *paStream) Start() error {
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("%w: start: %v", ErrStreamFailure, err)
	}
	return nil
}

func (s *paStream) Stop() error {
	if err := s.stream.Stop(); err != nil {
		return fmt.Errorf("%w: stop: %v", ErrStreamFailure, err)
	}
	return nil
}

func (s *paStream) Close() error {
	if err := s.stream.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", ErrStreamFailure, err)
	}
	return nil
}

// process downmixes multichannel capture to mono and fans the mono
// click out to all output channels.
// Performance Critical (Hot Path): pre-allocated scratch only.
func (s *paStream) process(in, out []float32) {
	var monoIn []float32
	if s.inChannels == 1 {
		monoIn = in
	} else {
		frames := len(in) / s.inChannels
		monoIn = s.monoIn[:frames]
		inv := 1.0 / float32(s.inChannels)
		for f := 0; f < frames; f++ {
			var sum float32
			base := f * s.inChannels
			for c := 0; c < s.inChannels; c++ {
				sum += in[base+c]
			}
			monoIn[f] = sum * inv
		}
	}

	if s.outChannels == 1 {
		s.cb(monoIn, out)
		return
	}

	frames := len(out) / s.outChannels
	monoOut := s.monoOut[:frames]
	s.cb(monoIn, monoOut)
	for f := 0; f < frames; f++ {
		base := f * s.outChannels
		for c := 0; c < s.outChannels; c++ {
			out[base+c] = monoOut[f]
		}
	}
}
