package audio

import (
	"fmt"
	"time"

	"github.com/gordonklaus/portaudio"

	"beatbox/internal/config"
)

// Seams over the PortAudio library so device selection is testable
// without hardware. Production code never swaps these.
var (
	paLibInitialize    = portaudio.Initialize
	paLibTerminate     = portaudio.Terminate
	paLibDevices       = portaudio.Devices
	paLibDefaultInput  = portaudio.DefaultInputDevice
	paLibDefaultOutput = portaudio.DefaultOutputDevice
)

// Initialize brings up the PortAudio subsystem. Pair every call with
// Terminate; the library reference counts both.
func Initialize() error {
	if err := paLibInitialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate releases the PortAudio subsystem brought up by Initialize.
func Terminate() error {
	if err := paLibTerminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// InputDevice resolves deviceID to a capture device. MinDeviceID (-1)
// selects the system default. The mic signal enters through this
// device, so it must support input.
func InputDevice(deviceID int) (*portaudio.DeviceInfo, error) {
	if deviceID == config.MinDeviceID {
		return paLibDefaultInput()
	}

	devices, err := paDevices()
	if err != nil {
		return nil, err
	}
	if deviceID < 0 || deviceID >= len(devices) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDevice, deviceID)
	}
	if devices[deviceID].MaxInputChannels == 0 {
		return nil, fmt.Errorf("%w: device %d does not support input", ErrInvalidDevice, deviceID)
	}
	return devices[deviceID], nil
}

// OutputDevice resolves deviceID to a playback device. MinDeviceID
// (-1) selects the system default. The click track plays through this
// device, so it must support output.
func OutputDevice(deviceID int) (*portaudio.DeviceInfo, error) {
	if deviceID == config.MinDeviceID {
		return paLibDefaultOutput()
	}

	devices, err := paDevices()
	if err != nil {
		return nil, err
	}
	if deviceID < 0 || deviceID >= len(devices) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDevice, deviceID)
	}
	if devices[deviceID].MaxOutputChannels == 0 {
		return nil, fmt.Errorf("%w: device %d does not support output", ErrInvalidDevice, deviceID)
	}
	return devices[deviceID], nil
}

// ListDevices prints every device with its role, channel counts,
// default sample rate and latency ranges. A Duplex role means the
// device can carry both the mic capture and the click track.
func ListDevices() error {
	devices, err := GetDevices()
	if err != nil {
		return err
	}

	fmt.Printf("\nAvailable Audio Devices\n\n")

	for _, d := range devices {
		fmt.Printf("[%d] %s (%s)\n", d.ID, d.Name, d.Role())
		fmt.Printf("    Input channels: %d, Output channels: %d\n", d.MaxInputChannels, d.MaxOutputChannels)
		fmt.Printf("    Default sample rate: %.0f Hz\n", d.DefaultSampleRate)
		if d.MaxInputChannels > 0 {
			fmt.Printf("    Input latency: Low=%.2fms, High=%.2fms\n", ms(d.InputLatencyLow), ms(d.InputLatencyHigh))
		}
		if d.MaxOutputChannels > 0 {
			fmt.Printf("    Output latency: Low=%.2fms, High=%.2fms\n", ms(d.OutputLatencyLow), ms(d.OutputLatencyHigh))
		}
		fmt.Println()
	}

	return nil
}

func ms(d time.Duration) float64 {
	return d.Seconds() * 1000
}

// paDevices returns all devices the library reports. A nil result is
// normalized to an empty slice.
func paDevices() ([]*portaudio.DeviceInfo, error) {
	devices, err := paLibDevices()
	if err != nil {
		return nil, err
	}
	if devices == nil {
		devices = []*portaudio.DeviceInfo{}
	}
	return devices, nil
}
