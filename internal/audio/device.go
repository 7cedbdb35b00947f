package audio

import (
	"time"

	"github.com/gordonklaus/portaudio"
)

// Device describes an audio device for listings and the TUI.
type Device struct {
	ID                int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	InputLatencyLow   time.Duration
	InputLatencyHigh  time.Duration
	OutputLatencyLow  time.Duration
	OutputLatencyHigh time.Duration
}

// Duplex reports whether the device can carry the mic capture and the
// click track at the same time.
func (d Device) Duplex() bool {
	return d.MaxInputChannels > 0 && d.MaxOutputChannels > 0
}

// Role names what the device can do: Duplex, Input or Output.
func (d Device) Role() string {
	switch {
	case d.Duplex():
		return "Duplex"
	case d.MaxInputChannels > 0:
		return "Input"
	case d.MaxOutputChannels > 0:
		return "Output"
	}
	return "None"
}

func deviceFromInfo(id int, info *portaudio.DeviceInfo) Device {
	return Device{
		ID:                id,
		Name:              info.Name,
		MaxInputChannels:  info.MaxInputChannels,
		MaxOutputChannels: info.MaxOutputChannels,
		DefaultSampleRate: info.DefaultSampleRate,
		InputLatencyLow:   info.DefaultLowInputLatency,
		InputLatencyHigh:  info.DefaultHighInputLatency,
		OutputLatencyLow:  info.DefaultLowOutputLatency,
		OutputLatencyHigh: info.DefaultHighOutputLatency,
	}
}

// GetDevices enumerates the audio devices visible to PortAudio. It
// initializes and terminates the subsystem itself; both calls are
// reference counted, so a live stream is unaffected.
func GetDevices() ([]Device, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	defer Terminate()

	infos, err := paDevices()
	if err != nil {
		return nil, err
	}

	devices := make([]Device, 0, len(infos))
	for i, info := range infos {
		devices = append(devices, deviceFromInfo(i, info))
	}
	return devices, nil
}
