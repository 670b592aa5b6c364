package voicechat

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// AudioDevice represents an output-capable audio device
type AudioDevice struct {
	ID                int
	Name              string
	MaxOutputChannels int
	DefaultSampleRate float64
	IsDefault         bool
	HostAPI           string
}

func (d AudioDevice) String() string {
	marker := ""
	if d.IsDefault {
		marker = " (Default)"
	}
	return fmt.Sprintf("%d: %s%s - %d channels, %.0f Hz [%s]",
		d.ID, d.Name, marker, d.MaxOutputChannels, d.DefaultSampleRate, d.HostAPI)
}

// AudioDeviceManager enumerates output devices through PortAudio.
type AudioDeviceManager struct {
	mu      sync.RWMutex
	devices []AudioDevice
	infos   []*portaudio.DeviceInfo
	logger  *Logger
}

func NewAudioDeviceManager(logger *Logger) *AudioDeviceManager {
	if logger == nil {
		logger = GetGlobalLogger()
	}
	return &AudioDeviceManager{
		logger: logger.WithComponent("AudioDeviceManager"),
	}
}

// Initialize initializes PortAudio and loads the device list
func (adm *AudioDeviceManager) Initialize() error {
	adm.mu.Lock()
	defer adm.mu.Unlock()

	if err := portaudio.Initialize(); err != nil {
		adm.logger.WithError(err).Error("Failed to initialize PortAudio")
		return NewDeviceError(err)
	}

	if err := adm.refreshDevices(); err != nil {
		adm.logger.WithError(err).Error("Failed to refresh device list")
		return NewDeviceError(err)
	}

	adm.logger.WithField("device_count", len(adm.devices)).Debug("Audio device manager initialized")
	return nil
}

// Cleanup terminates PortAudio
func (adm *AudioDeviceManager) Cleanup() {
	adm.mu.Lock()
	defer adm.mu.Unlock()

	if err := portaudio.Terminate(); err != nil {
		adm.logger.WithError(err).Error("Failed to terminate PortAudio")
	}
}

func (adm *AudioDeviceManager) refreshDevices() error {
	adm.devices = adm.devices[:0]
	adm.infos = adm.infos[:0]

	defaultOutput, err := portaudio.DefaultOutputDevice()
	if err != nil {
		adm.logger.WithError(err).Warn("No default output device")
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return err
	}

	for i, dev := range devices {
		if dev.MaxOutputChannels == 0 {
			continue
		}
		hostAPIName := "Unknown"
		if dev.HostApi != nil {
			hostAPIName = dev.HostApi.Name
		}
		adm.devices = append(adm.devices, AudioDevice{
			ID:                i,
			Name:              dev.Name,
			MaxOutputChannels: dev.MaxOutputChannels,
			DefaultSampleRate: dev.DefaultSampleRate,
			IsDefault:         defaultOutput != nil && dev == defaultOutput,
			HostAPI:           hostAPIName,
		})
		adm.infos = append(adm.infos, dev)
	}

	return nil
}

// GetOutputDevices returns a copy of the output devices
func (adm *AudioDeviceManager) GetOutputDevices() []AudioDevice {
	adm.mu.RLock()
	defer adm.mu.RUnlock()

	devices := make([]AudioDevice, len(adm.devices))
	copy(devices, adm.devices)
	return devices
}

// resolve returns the PortAudio device for id, or the default output when id is nil.
func (adm *AudioDeviceManager) resolve(id *int) (*portaudio.DeviceInfo, error) {
	adm.mu.RLock()
	defer adm.mu.RUnlock()

	for i, device := range adm.devices {
		if id == nil && device.IsDefault {
			return adm.infos[i], nil
		}
		if id != nil && device.ID == *id {
			return adm.infos[i], nil
		}
	}
	if id == nil {
		return nil, fmt.Errorf("no default output device found")
	}
	return nil, fmt.Errorf("output device with ID %d not found", *id)
}

// ValidateDevice checks that the device can take the requested stream.
func (adm *AudioDeviceManager) ValidateDevice(id *int, channels int, sampleRate float64) error {
	info, err := adm.resolve(id)
	if err != nil {
		return err
	}
	if info.MaxOutputChannels < channels {
		return fmt.Errorf("device '%s' supports max %d output channels, requested %d",
			info.Name, info.MaxOutputChannels, channels)
	}
	if sampleRate > 0 && info.DefaultSampleRate > 0 {
		ratio := sampleRate / info.DefaultSampleRate
		if ratio < 0.5 || ratio > 2.0 {
			adm.logger.WithField("device_name", info.Name).
				WithField("device_sample_rate", info.DefaultSampleRate).
				WithField("requested_sample_rate", sampleRate).
				Warn("Sample rate significantly different from device default")
		}
	}
	return nil
}

// ListOutputDevices initializes PortAudio just long enough to enumerate outputs.
func ListOutputDevices(logger *Logger) ([]AudioDevice, error) {
	dm := NewAudioDeviceManager(logger)
	if err := dm.Initialize(); err != nil {
		return nil, err
	}
	defer dm.Cleanup()
	return dm.GetOutputDevices(), nil
}

// FormatDeviceList renders devices one per line.
func FormatDeviceList(devices []AudioDevice) string {
	if len(devices) == 0 {
		return "  (no output devices)\n"
	}
	var sb strings.Builder
	for _, device := range devices {
		sb.WriteString("  ")
		sb.WriteString(device.String())
		sb.WriteString("\n")
	}
	return sb.String()
}
