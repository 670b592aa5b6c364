package voicechat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAudioQueue_TryEnqueueRejectsWhenFull(t *testing.T) {
	q := NewAudioQueue()

	require.NoError(t, q.TryEnqueue(AudioPayload("a")))
	assert.Equal(t, 1, q.Len())

	err := q.TryEnqueue(AudioPayload("b"))
	assert.True(t, errors.Is(err, ErrQueueFull))
	assert.Equal(t, ErrCodeQueueFull, ErrorCode(err))

	assert.Equal(t, AudioPayload("a"), <-q.Receive())
	assert.Equal(t, 0, q.Len())
}

func TestAudioQueue_EnqueueWaitsForSlot(t *testing.T) {
	q := NewAudioQueue()
	require.NoError(t, q.TryEnqueue(AudioPayload("first")))

	done := make(chan error, 1)
	go func() {
		done <- q.Enqueue(context.Background(), AudioPayload("second"))
	}()

	select {
	case <-done:
		t.Fatal("Enqueue returned while the slot was occupied")
	case <-time.After(30 * time.Millisecond):
	}

	assert.Equal(t, AudioPayload("first"), <-q.Receive())
	require.NoError(t, <-done)
	assert.Equal(t, AudioPayload("second"), <-q.Receive())
}

func TestAudioQueue_EnqueueHonoursContext(t *testing.T) {
	q := NewAudioQueue()
	require.NoError(t, q.TryEnqueue(AudioPayload("first")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := q.Enqueue(ctx, AudioPayload("second"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, q.Len())
}

func TestAudioQueue_PreservesSubmissionOrder(t *testing.T) {
	q := NewAudioQueue()
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, p := range []string{"1", "2", "3"} {
			assert.NoError(t, q.Enqueue(ctx, AudioPayload(p)))
		}
	}()

	var got []string
	for i := 0; i < 3; i++ {
		got = append(got, string(<-q.Receive()))
	}
	wg.Wait()
	assert.Equal(t, []string{"1", "2", "3"}, got)
}

func TestLastAudioCache(t *testing.T) {
	c := NewLastAudioCache()

	_, ok, err := c.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	called := false
	require.NoError(t, c.TryWith(func(AudioPayload) error {
		called = true
		return nil
	}))
	assert.False(t, called, "fn must not run on an empty cache")

	original := AudioPayload("clip")
	require.NoError(t, c.Store(original))
	original[0] = 'X'

	got, ok, err := c.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, AudioPayload("clip"), got)

	require.NoError(t, c.Store(AudioPayload("newer")))
	got, _, _ = c.Load()
	assert.Equal(t, AudioPayload("newer"), got)
}

func TestLastAudioCache_BusyWhileLocked(t *testing.T) {
	c := NewLastAudioCache()
	require.NoError(t, c.Store(AudioPayload("clip")))

	err := c.TryWith(func(AudioPayload) error {
		assert.ErrorIs(t, c.Store(AudioPayload("other")), ErrBusy)
		_, _, loadErr := c.Load()
		assert.ErrorIs(t, loadErr, ErrBusy)
		return nil
	})
	require.NoError(t, err)
}

func TestSharedSink(t *testing.T) {
	s := NewSharedSink()
	assert.False(t, s.Installed())

	err := s.TryWith(func(Sink) error { return nil })
	assert.ErrorIs(t, err, ErrNoActiveAudio)
	assert.Equal(t, "No audio is currently playing", err.Error())

	sink := &fakeSink{}
	s.Install(sink)
	assert.True(t, s.Installed())

	err = s.TryWith(func(inner Sink) error {
		assert.ErrorIs(t, s.TryWith(func(Sink) error { return nil }), ErrBusy)
		assert.False(t, s.Installed())
		inner.Pause()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"pause"}, sink.Ops())
}

func TestAudioQueue_EnqueueTakesFreeSlotWithDoneContext(t *testing.T) {
	q := NewAudioQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, q.Enqueue(ctx, AudioPayload("first")))
	assert.ErrorIs(t, q.Enqueue(ctx, AudioPayload("second")), context.Canceled)
	assert.Equal(t, AudioPayload("first"), <-q.Receive())
}
