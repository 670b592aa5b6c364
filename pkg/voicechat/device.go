package voicechat

import (
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/gordonklaus/portaudio"
)

const (
	outputChannels  = 2
	resampleQuality = 4
)

// AudioConfig describes the output stream.
type AudioConfig struct {
	SampleRate int
	BufferSize int
	DeviceID   *int
}

func NewAudioConfig() *AudioConfig {
	return &AudioConfig{
		SampleRate: 48000,
		BufferSize: 1024,
	}
}

// OutputDevice is a Sink backed by a PortAudio stereo stream. It plays the
// head of its source list and moves on to the next when it drains.
type OutputDevice struct {
	mu      sync.Mutex
	rate    beep.SampleRate
	sources []queuedSource
	paused  bool
	buf     [][2]float64

	devices *AudioDeviceManager
	stream  *portaudio.Stream
	logger  *Logger
}

type queuedSource struct {
	streamer beep.Streamer
	src      Source
}

func newOutputDevice(rate beep.SampleRate, logger *Logger) *OutputDevice {
	if logger == nil {
		logger = GetGlobalLogger()
	}
	return &OutputDevice{
		rate:   rate,
		logger: logger.WithComponent("OutputDevice"),
	}
}

// OpenOutputDevice opens and starts the output stream. Failure here leaves
// the process without any way to play audio.
func OpenOutputDevice(config *AudioConfig, logger *Logger) (*OutputDevice, error) {
	if config == nil {
		config = NewAudioConfig()
	}

	d := newOutputDevice(beep.SampleRate(config.SampleRate), logger)
	d.devices = NewAudioDeviceManager(logger)
	if err := d.devices.Initialize(); err != nil {
		return nil, err
	}

	info, err := d.devices.resolve(config.DeviceID)
	if err == nil {
		err = d.devices.ValidateDevice(config.DeviceID, outputChannels, float64(config.SampleRate))
	}
	if err != nil {
		d.devices.Cleanup()
		return nil, NewDeviceError(err)
	}

	params := portaudio.HighLatencyParameters(nil, info)
	params.Output.Channels = outputChannels
	params.SampleRate = float64(config.SampleRate)
	params.FramesPerBuffer = config.BufferSize

	stream, err := portaudio.OpenStream(params, d.process)
	if err != nil {
		d.devices.Cleanup()
		return nil, NewDeviceError(err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		d.devices.Cleanup()
		return nil, NewDeviceError(err)
	}
	d.stream = stream

	d.logger.WithField("device", info.Name).
		WithField("sample_rate", config.SampleRate).
		Info("Output stream started")
	return d, nil
}

// process is the PortAudio callback; out is interleaved stereo.
func (d *OutputDevice) process(out []float32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	frames := len(out) / outputChannels
	if cap(d.buf) < frames {
		d.buf = make([][2]float64, frames)
	}

	filled := 0
	for !d.paused && filled < frames && len(d.sources) > 0 {
		head := d.sources[0]
		chunk := d.buf[:frames-filled]
		n, ok := head.streamer.Stream(chunk)
		for i := 0; i < n; i++ {
			out[(filled+i)*outputChannels] = float32(chunk[i][0])
			out[(filled+i)*outputChannels+1] = float32(chunk[i][1])
		}
		filled += n
		if !ok || n == 0 {
			d.popLocked()
		}
	}

	for i := filled * outputChannels; i < len(out); i++ {
		out[i] = 0
	}
}

func (d *OutputDevice) popLocked() {
	if len(d.sources) == 0 {
		return
	}
	head := d.sources[0]
	if err := head.src.Close(); err != nil {
		d.logger.WithError(err).Debug("Closing finished source")
	}
	d.sources[0] = queuedSource{}
	d.sources = d.sources[1:]
}

func (d *OutputDevice) Append(src Source) {
	var streamer beep.Streamer = src
	if from := src.Format().SampleRate; from != 0 && from != d.rate {
		streamer = beep.Resample(resampleQuality, from, d.rate, src)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.sources = append(d.sources, queuedSource{streamer: streamer, src: src})
}

func (d *OutputDevice) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.paused = true
}

func (d *OutputDevice) Play() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.paused = false
}

// Stop drops every queued source. The stream keeps running.
func (d *OutputDevice) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for len(d.sources) > 0 {
		d.popLocked()
	}
}

func (d *OutputDevice) SkipOne() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.popLocked()
}

func (d *OutputDevice) Empty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sources) == 0
}

func (d *OutputDevice) Paused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paused
}

// Close stops the stream and releases PortAudio.
func (d *OutputDevice) Close() error {
	d.Stop()
	if d.stream == nil {
		return nil
	}
	var firstErr error
	if err := d.stream.Stop(); err != nil {
		firstErr = err
	}
	if err := d.stream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	d.stream = nil
	if d.devices != nil {
		d.devices.Cleanup()
	}
	return firstErr
}
