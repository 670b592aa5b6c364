package voicechat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputDevice_ProcessDrainsHead(t *testing.T) {
	d := newOutputDevice(44100, NewNopLogger())
	src := newSliceSource(3, 0.5, 44100)
	d.Append(src)
	require.False(t, d.Empty())

	out := make([]float32, 4*outputChannels)
	d.process(out)

	assert.Equal(t, []float32{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0, 0}, out)
	assert.True(t, d.Empty())
	assert.True(t, src.closed)
}

func TestOutputDevice_PlaysSourcesInOrder(t *testing.T) {
	d := newOutputDevice(44100, NewNopLogger())
	first := newSliceSource(2, 0.25, 44100)
	second := newSliceSource(2, -0.25, 44100)
	d.Append(first)
	d.Append(second)

	out := make([]float32, 4*outputChannels)
	d.process(out)

	assert.Equal(t, []float32{0.25, 0.25, 0.25, 0.25, -0.25, -0.25, -0.25, -0.25}, out)
	assert.True(t, first.closed)
}

func TestOutputDevice_PausedOutputsSilence(t *testing.T) {
	d := newOutputDevice(44100, NewNopLogger())
	d.Append(newSliceSource(8, 0.5, 44100))
	d.Pause()
	assert.True(t, d.Paused())

	out := []float32{1, 1, 1, 1}
	d.process(out)
	assert.Equal(t, []float32{0, 0, 0, 0}, out)
	assert.False(t, d.Empty(), "a paused device keeps its source")

	d.Play()
	d.process(out)
	assert.Equal(t, []float32{0.5, 0.5, 0.5, 0.5}, out)
}

func TestOutputDevice_StopAndSkip(t *testing.T) {
	d := newOutputDevice(44100, NewNopLogger())
	a := newSliceSource(8, 0.1, 44100)
	b := newSliceSource(8, 0.2, 44100)
	c := newSliceSource(8, 0.3, 44100)
	d.Append(a)
	d.Append(b)
	d.Append(c)

	d.SkipOne()
	assert.True(t, a.closed)
	assert.False(t, b.closed)
	assert.False(t, d.Empty())

	d.Stop()
	assert.True(t, b.closed)
	assert.True(t, c.closed)
	assert.True(t, d.Empty())

	// SkipOne on an empty device is a no-op.
	d.SkipOne()
	assert.True(t, d.Empty())
}

func TestOutputDevice_PauseSurvivesStop(t *testing.T) {
	d := newOutputDevice(44100, NewNopLogger())
	d.Pause()
	d.Stop()
	d.Append(newSliceSource(4, 0.5, 44100))

	assert.True(t, d.Paused())
	out := make([]float32, 2)
	d.process(out)
	assert.Equal(t, []float32{0, 0}, out)
}

func TestOutputDevice_ResamplesForeignRate(t *testing.T) {
	d := newOutputDevice(48000, NewNopLogger())
	src := newSliceSource(240, 0.5, 24000)
	d.Append(src)
	require.False(t, d.Empty())

	out := make([]float32, 1024*outputChannels)
	d.process(out)
	d.process(out)

	assert.True(t, d.Empty())
	assert.True(t, src.closed)
}

func TestOutputDevice_CloseWithoutStream(t *testing.T) {
	d := newOutputDevice(44100, NewNopLogger())
	d.Append(newSliceSource(4, 0.5, 44100))

	assert.NoError(t, d.Close())
	assert.True(t, d.Empty())
}

func TestNewAudioConfig(t *testing.T) {
	c := NewAudioConfig()
	assert.Equal(t, 48000, c.SampleRate)
	assert.Equal(t, 1024, c.BufferSize)
	assert.Nil(t, c.DeviceID)
}

func TestFormatDeviceList(t *testing.T) {
	assert.Equal(t, "  (no output devices)\n", FormatDeviceList(nil))

	out := FormatDeviceList([]AudioDevice{
		{ID: 0, Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 48000, IsDefault: true, HostAPI: "ALSA"},
	})
	assert.Contains(t, out, "0: Speakers (Default) - 2 channels, 48000 Hz [ALSA]")
}
