package voicechat

import "sync"

// LastAudioCache keeps the most recently dispatched payload for replay.
type LastAudioCache struct {
	mu      sync.Mutex
	payload AudioPayload
}

func NewLastAudioCache() *LastAudioCache {
	return &LastAudioCache{}
}

// Store replaces the cached payload, or returns ErrBusy if the cache is locked.
func (c *LastAudioCache) Store(payload AudioPayload) error {
	if !c.mu.TryLock() {
		return ErrBusy
	}
	defer c.mu.Unlock()
	c.payload = payload.Clone()
	return nil
}

// Load returns a copy of the cached payload. ok is false when nothing was stored yet.
func (c *LastAudioCache) Load() (payload AudioPayload, ok bool, err error) {
	if !c.mu.TryLock() {
		return nil, false, ErrBusy
	}
	defer c.mu.Unlock()
	if c.payload == nil {
		return nil, false, nil
	}
	return c.payload.Clone(), true, nil
}

// TryWith runs fn with the cached payload while holding the lock.
// fn is not called when the cache is empty.
func (c *LastAudioCache) TryWith(fn func(AudioPayload) error) error {
	if !c.mu.TryLock() {
		return ErrBusy
	}
	defer c.mu.Unlock()
	if c.payload == nil {
		return nil
	}
	return fn(c.payload.Clone())
}
