package voicechat

import "sync"

// SharedSink owns the one output sink. It is shared by the consumer, the
// transport controls and the monitor; every accessor takes the lock without
// blocking and reports contention as ErrBusy.
type SharedSink struct {
	mu   sync.Mutex
	sink Sink
}

func NewSharedSink() *SharedSink {
	return &SharedSink{}
}

// Install sets the sink instance. It blocks for the lock and is meant to be
// called once, when the output device is brought up.
func (s *SharedSink) Install(sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

// Installed reports whether a sink is present. It returns false when the lock is contended.
func (s *SharedSink) Installed() bool {
	if !s.mu.TryLock() {
		return false
	}
	defer s.mu.Unlock()
	return s.sink != nil
}

// TryWith runs fn against the sink while holding the lock.
// It returns ErrBusy if the lock is held and ErrNoActiveAudio if no sink is installed.
func (s *SharedSink) TryWith(fn func(Sink) error) error {
	if !s.mu.TryLock() {
		return ErrBusy
	}
	defer s.mu.Unlock()

	if s.sink == nil {
		return ErrNoActiveAudio
	}
	return fn(s.sink)
}
