package remote

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/Speshl/gorrc_remote/internal/drive"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	lock sync.Mutex
	cmds []string
}

func (r *recordingSender) Send(ctx context.Context, cmd string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.cmds = append(r.cmds, cmd)
	return nil
}

func (r *recordingSender) take() []string {
	r.lock.Lock()
	defer r.lock.Unlock()
	cmds := r.cmds
	r.cmds = nil
	return cmds
}

func newTestSession() (*Session, *recordingSender) {
	sender := &recordingSender{}
	dispatcher := drive.NewDispatcher(sender, drive.QueryProtocol{}, drive.Options{})
	return NewSession(uuid.New(), dispatcher, 80), sender
}

func TestMoveClampsAndMaps(t *testing.T) {
	s, sender := newTestSession()

	require.NoError(t, s.Move(context.Background(), 500, -40))
	assert.Equal(t, []string{"ud=128&lr=255"}, sender.take())

	throttle, steering := s.Current()
	assert.Equal(t, 128, throttle)
	assert.Equal(t, 255, steering)
}

func TestMoveDropsInvalidSamples(t *testing.T) {
	s, sender := newTestSession()

	assert.ErrorIs(t, s.Move(context.Background(), math.NaN(), 0), drive.ErrInvalidInput)
	assert.Empty(t, sender.take())
}

func TestDisengagePathsAllStop(t *testing.T) {
	paths := map[string]func(*Session, context.Context) error{
		"release":   (*Session).Release,
		"interrupt": (*Session).Interrupt,
		"stop":      (*Session).Stop,
	}
	for name, disengage := range paths {
		t.Run(name, func(t *testing.T) {
			s, sender := newTestSession()
			require.NoError(t, s.Move(context.Background(), 80, 80))
			sender.take()

			require.NoError(t, disengage(s, context.Background()))
			assert.Equal(t, []string{"ud=0&lr=0"}, sender.take())

			throttle, steering := s.Current()
			assert.Zero(t, throttle)
			assert.Zero(t, steering)
		})
	}
}

func TestFollow(t *testing.T) {
	tests := []struct {
		angle    float64
		drive    bool
		expected string
	}{
		{0, true, "ud=185&lr=0"},
		{45, true, "ud=185&lr=255"},
		{-22.5, false, "ud=0&lr=-128"},
		{90, true, "ud=185&lr=255"},
	}
	for _, tc := range tests {
		s, sender := newTestSession()
		require.NoError(t, s.Follow(context.Background(), tc.angle, tc.drive))
		assert.Equal(t, []string{tc.expected}, sender.take(), "angle %v drive %v", tc.angle, tc.drive)
	}
}

func TestReleaseDuringKeepAliveEndsNeutral(t *testing.T) {
	s, sender := newTestSession()
	require.NoError(t, s.Move(context.Background(), 80, -80))
	sender.take()

	ctx, cancel := context.WithCancel(context.Background())
	released := make(chan error, 1)
	var once sync.Once
	source := func() (int, int) {
		throttle, steering := s.Current()
		// the release lands after the keepalive has already read the stick
		once.Do(func() {
			go func() { released <- s.Release(context.Background()) }()
			time.Sleep(5 * time.Millisecond)
		})
		return throttle, steering
	}

	done := make(chan error, 1)
	go func() {
		done <- s.dispatcher.Run(ctx, time.Millisecond, source)
	}()

	select {
	case err := <-released:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("release never completed")
	}
	time.Sleep(10 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	cmds := sender.take()
	require.NotEmpty(t, cmds)
	assert.Equal(t, "ud=0&lr=0", cmds[len(cmds)-1])
	for i, cmd := range cmds {
		if cmd == "ud=0&lr=0" {
			assert.Len(t, cmds, i+1, "nothing may follow the stop: %v", cmds)
			break
		}
	}
}
