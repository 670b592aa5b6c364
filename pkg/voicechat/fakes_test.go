package voicechat

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gopxl/beep/v2"
)

// fakeSource is a silent clip tagged with the payload it was decoded from.
type fakeSource struct {
	id     string
	closed atomic.Bool
}

func (s *fakeSource) Stream(samples [][2]float64) (int, bool) { return 0, false }
func (s *fakeSource) Err() error                              { return nil }
func (s *fakeSource) Format() beep.Format                     { return beep.Format{} }

func (s *fakeSource) Close() error {
	s.closed.Store(true)
	return nil
}

// sliceSource streams a fixed set of frames.
type sliceSource struct {
	samples [][2]float64
	pos     int
	format  beep.Format
	closed  bool
}

func newSliceSource(frames int, value float64, rate beep.SampleRate) *sliceSource {
	samples := make([][2]float64, frames)
	for i := range samples {
		samples[i] = [2]float64{value, value}
	}
	return &sliceSource{
		samples: samples,
		format:  beep.Format{SampleRate: rate, NumChannels: 2, Precision: 2},
	}
}

func (s *sliceSource) Stream(samples [][2]float64) (int, bool) {
	if s.pos >= len(s.samples) {
		return 0, false
	}
	n := copy(samples, s.samples[s.pos:])
	s.pos += n
	return n, true
}

func (s *sliceSource) Err() error          { return nil }
func (s *sliceSource) Format() beep.Format { return s.format }

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

// fakeDecoder tags each source with the payload text. Payloads starting
// with "bad" fail to decode.
type fakeDecoder struct {
	mu      sync.Mutex
	decoded []string
}

func (d *fakeDecoder) Decode(payload AudioPayload) (Source, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if strings.HasPrefix(string(payload), "bad") {
		return nil, errors.New("corrupt header")
	}
	d.decoded = append(d.decoded, string(payload))
	return &fakeSource{id: string(payload)}, nil
}

func (d *fakeDecoder) Decoded() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.decoded...)
}

// fakeSink records every call in order. Sources stay queued until finish
// is called, which stands in for the hardware draining them.
type fakeSink struct {
	mu      sync.Mutex
	ops     []string
	sources []*fakeSource
	paused  bool
}

func (s *fakeSink) record(op string) {
	s.ops = append(s.ops, op)
}

func (s *fakeSink) Append(src Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fs := src.(*fakeSource)
	s.record("append:" + fs.id)
	s.sources = append(s.sources, fs)
}

func (s *fakeSink) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("pause")
	s.paused = true
}

func (s *fakeSink) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("play")
	s.paused = false
}

func (s *fakeSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("stop")
	for _, src := range s.sources {
		_ = src.Close()
	}
	s.sources = nil
}

func (s *fakeSink) SkipOne() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("skip")
	if len(s.sources) > 0 {
		_ = s.sources[0].Close()
		s.sources = s.sources[1:]
	}
}

func (s *fakeSink) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sources) == 0
}

// finish drains the sink unless it is paused.
func (s *fakeSink) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		return
	}
	s.sources = nil
}

func (s *fakeSink) Ops() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ops...)
}

func (s *fakeSink) Playing() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sources))
	for _, src := range s.sources {
		ids = append(ids, src.id)
	}
	return ids
}

func (s *fakeSink) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// recordingEmitter counts emitted events.
type recordingEmitter struct {
	mu     sync.Mutex
	events []EventType
}

func (e *recordingEmitter) Emit(eventType EventType) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, eventType)
}

func (e *recordingEmitter) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.events)
}

func (e *recordingEmitter) Events() []EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]EventType(nil), e.events...)
}
