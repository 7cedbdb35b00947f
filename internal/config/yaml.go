// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"beatbox/internal/log"
	"beatbox/pkg/bitint"
)

// LoadConfig loads configuration from a YAML file specified by path. If
// path is empty, it searches default locations ("config.yaml"). If no
// file is found, it uses built-in defaults. After loading, environment
// variable overrides are applied and the final configuration is
// validated.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		// Potential locations for the config file.
		candidates := []string{
			"config.yaml",
			// TODO: Add platform-specific paths, e.g.
			// filepath.Join(os.Getenv("HOME"), ".config/beatbox/config.yaml").
		}
		found := false
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				found = true
				break
			}
		}
		if !found {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment overrides win over file values.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks ranges and cross-field constraints. It returns the
// first violation found.
func (c *Config) Validate() error {
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		return fmt.Errorf("audio.sample_rate %v outside [%d, %d]", c.Audio.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if c.Audio.FramesPerBuffer <= 0 || c.Audio.FramesPerBuffer > MaxBufferFrames {
		return fmt.Errorf("audio.frames_per_buffer %d outside (0, %d]", c.Audio.FramesPerBuffer, MaxBufferFrames)
	}
	if c.Audio.TempoBPM < MinTempoBPM || c.Audio.TempoBPM > MaxTempoBPM {
		return fmt.Errorf("audio.tempo_bpm %d outside [%d, %d]", c.Audio.TempoBPM, MinTempoBPM, MaxTempoBPM)
	}
	if c.Audio.InputChannels < 1 || c.Audio.InputChannels > 2 {
		return fmt.Errorf("audio.input_channels %d outside [1, 2]", c.Audio.InputChannels)
	}
	if c.Audio.OutputChannels < 1 || c.Audio.OutputChannels > 2 {
		return fmt.Errorf("audio.output_channels %d outside [1, 2]", c.Audio.OutputChannels)
	}
	if c.Audio.BufferCount < 2 {
		return fmt.Errorf("audio.buffer_count %d too small, need at least 2", c.Audio.BufferCount)
	}
	if c.Audio.BufferSize < c.Analysis.WindowSize {
		return fmt.Errorf("audio.buffer_size %d smaller than analysis.onset_window_size %d", c.Audio.BufferSize, c.Analysis.WindowSize)
	}

	if !bitint.IsPowerOfTwo(c.Analysis.WindowSize) {
		return fmt.Errorf("analysis.onset_window_size %d is not a power of 2", c.Analysis.WindowSize)
	}
	if c.Analysis.HopSize <= 0 || c.Analysis.HopSize > c.Analysis.WindowSize {
		return fmt.Errorf("analysis.onset_hop_size %d outside (0, %d]", c.Analysis.HopSize, c.Analysis.WindowSize)
	}
	if c.Analysis.MedianHalfWindow < 1 {
		return fmt.Errorf("analysis.median_half_window %d too small, need at least 1", c.Analysis.MedianHalfWindow)
	}
	if c.Analysis.ThresholdOffset < 0 {
		return fmt.Errorf("analysis.threshold_offset %v is negative", c.Analysis.ThresholdOffset)
	}
	if c.Analysis.MinChunkSize < c.Analysis.WindowSize {
		return fmt.Errorf("analysis.min_chunk_size %d smaller than the onset window %d", c.Analysis.MinChunkSize, c.Analysis.WindowSize)
	}
	if !bitint.IsPowerOfTwo(c.Analysis.FeatureWindowSize) {
		return fmt.Errorf("analysis.feature_window_size %d is not a power of 2", c.Analysis.FeatureWindowSize)
	}
	if c.Analysis.FeatureWindowSize < c.Analysis.WindowSize {
		return fmt.Errorf("analysis.feature_window_size %d smaller than the onset window %d", c.Analysis.FeatureWindowSize, c.Analysis.WindowSize)
	}
	if c.Analysis.ClassifierLevel != 1 && c.Analysis.ClassifierLevel != 2 {
		return fmt.Errorf("analysis.classifier_level %d must be 1 or 2", c.Analysis.ClassifierLevel)
	}

	if c.Calibration.SamplesPerSound < 1 {
		return fmt.Errorf("calibration.samples_per_sound %d too small, need at least 1", c.Calibration.SamplesPerSound)
	}
	if c.Calibration.ThresholdMargin < 1.0 {
		return fmt.Errorf("calibration.threshold_margin %v below 1.0", c.Calibration.ThresholdMargin)
	}

	if c.Recording.Enabled {
		if c.Recording.Format != "wav" {
			return fmt.Errorf("recording.format %q unsupported, only wav", c.Recording.Format)
		}
		switch c.Recording.BitDepth {
		case 16, 24, 32:
		default:
			return fmt.Errorf("recording.bit_depth %d unsupported, use 16, 24 or 32", c.Recording.BitDepth)
		}
	}

	if c.Transport.UDPEnabled {
		if !strings.Contains(c.Transport.UDPTargetAddress, ":") {
			return fmt.Errorf("transport.udp_target_address %q appears invalid (missing port?)", c.Transport.UDPTargetAddress)
		}
	}
	if c.Transport.TelemetryInterval <= 0 {
		return fmt.Errorf("transport.telemetry_interval %v must be positive", c.Transport.TelemetryInterval)
	}

	return nil
}

// applyEnvOverrides applies ENV_* variables on top of whatever the file
// (or the defaults) provided.
func (c *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Debug = bVal
			log.Debugf("configuration: overriding debug from env: %v", bVal)
		}
	}

	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = bVal
			log.Debugf("configuration: overriding transport.udp_enabled from env: %v", bVal)
		}
	}
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
		log.Debugf("configuration: overriding transport.udp_target_address from env: %s", val)
	}
	if val, ok := os.LookupEnv("ENV_TELEMETRY_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.TelemetryInterval = dur
			log.Debugf("configuration: overriding transport.telemetry_interval from env: %s", dur)
		}
	}
	if val, ok := os.LookupEnv("ENV_WS_PORT"); ok {
		c.Transport.WebSocketPort = val
		log.Debugf("configuration: overriding transport.websocket_port from env: %s", val)
	}
}
