package voicechat

import (
	"context"
	"sync/atomic"
	"time"
)

const DefaultPollInterval = 500 * time.Millisecond

// PlaybackMonitor tracks a coarse Playing/Stopped state. Playing is set by
// explicit messages; Stopped is set when a poll finds the sink drained, at
// which point EventAudioPlaybackCompleted is emitted once.
//
// Pause and resume do not touch the state: a paused sink still holds its
// source, is not empty, and so never looks completed.
type PlaybackMonitor struct {
	states   chan PlaybackState
	sink     *SharedSink
	emitter  EventEmitter
	interval time.Duration
	current  atomic.Value
	logger   *Logger
}

func NewPlaybackMonitor(sink *SharedSink, emitter EventEmitter, interval time.Duration, logger *Logger) *PlaybackMonitor {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = GetGlobalLogger()
	}
	m := &PlaybackMonitor{
		states:   make(chan PlaybackState, 1),
		sink:     sink,
		emitter:  emitter,
		interval: interval,
		logger:   logger.WithComponent("PlaybackMonitor"),
	}
	m.current.Store(Stopped)
	return m
}

// NotifyPlaying delivers a "playback started" message, waiting for room in
// the channel. A free slot is always taken; it fails only if the channel is
// full and ctx is done first.
func (m *PlaybackMonitor) NotifyPlaying(ctx context.Context) error {
	select {
	case m.states <- Playing:
		return nil
	default:
	}
	select {
	case m.states <- Playing:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryNotifyPlaying is the non-blocking form. A full channel already holds a
// pending message, so dropping this one changes nothing.
func (m *PlaybackMonitor) TryNotifyPlaying() {
	select {
	case m.states <- Playing:
	default:
	}
}

// State returns the last state recorded by the monitor loop.
func (m *PlaybackMonitor) State() PlaybackState {
	return m.current.Load().(PlaybackState)
}

// Run waits on whichever comes first, a state message or a poll tick, until ctx is done.
func (m *PlaybackMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	state := m.State()
	for {
		select {
		case <-ctx.Done():
			return nil
		case next := <-m.states:
			state = next
			m.current.Store(state)
		case <-ticker.C:
			if state != Playing {
				continue
			}
			if m.drained() {
				state = Stopped
				m.current.Store(state)
				m.logger.LogPlaybackEvent("playback_completed", nil)
				if m.emitter != nil {
					m.emitter.Emit(EventAudioPlaybackCompleted)
				}
			}
		}
	}
}

// drained is false when the sink is busy or missing; the next tick tries again.
func (m *PlaybackMonitor) drained() bool {
	empty := false
	err := m.sink.TryWith(func(sink Sink) error {
		empty = sink.Empty()
		return nil
	})
	if err != nil {
		m.logger.WithError(err).Debug("Skipping poll")
		return false
	}
	return empty
}
