package gamepad

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/0xcafed00d/joystick"
	"github.com/Speshl/gorrc_remote/internal/config"
	"github.com/Speshl/gorrc_remote/internal/drive"
	"github.com/Speshl/gorrc_remote/internal/remote"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJoystick struct {
	lock   sync.Mutex
	states []joystick.State
	err    error
	closed bool
}

func (f *fakeJoystick) AxisCount() int   { return 2 }
func (f *fakeJoystick) ButtonCount() int { return 4 }
func (f *fakeJoystick) Name() string     { return "fake pad" }

func (f *fakeJoystick) Read() (joystick.State, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if len(f.states) == 0 {
		if f.err != nil {
			return joystick.State{}, f.err
		}
		return joystick.State{AxisData: []int{0, 0}}, nil
	}
	state := f.states[0]
	f.states = f.states[1:]
	return state, nil
}

func (f *fakeJoystick) Close() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.closed = true
}

type fakeController struct {
	lock  sync.Mutex
	calls []string
}

func (f *fakeController) record(call string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.calls = append(f.calls, call)
	return nil
}

func (f *fakeController) Move(ctx context.Context, dx, dy float64) error {
	return f.record(fmt.Sprintf("move %v %v", dx, dy))
}
func (f *fakeController) Release(ctx context.Context) error   { return f.record("release") }
func (f *fakeController) Interrupt(ctx context.Context) error { return f.record("interrupt") }
func (f *fakeController) Stop(ctx context.Context) error      { return f.record("stop") }

func (f *fakeController) recorded() []string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]string(nil), f.calls...)
}

func testConfig() config.GamepadConfig {
	return config.GamepadConfig{
		Enabled:      true,
		SteerAxis:    0,
		ThrottleAxis: 1,
		StopButton:   1,
		PollRate:     time.Millisecond,
	}
}

func TestNewGamepadRejectsMissingAxis(t *testing.T) {
	cfg := testConfig()
	cfg.ThrottleAxis = 5
	js := &fakeJoystick{}

	_, err := NewGamepad(cfg, js, HalfExtent)
	assert.Error(t, err)
	assert.True(t, js.closed)
}

func TestApply(t *testing.T) {
	cfg := testConfig()
	cfg.InvertSteer = true
	g, err := NewGamepad(cfg, &fakeJoystick{}, HalfExtent)
	require.NoError(t, err)
	controller := &fakeController{}
	ctx := context.Background()

	states := []joystick.State{
		{AxisData: []int{100, -200}},
		{AxisData: []int{-16000, -32767}},
		{AxisData: []int{-16000, -32767}, Buttons: 1 << 1},
		{AxisData: []int{-16000, -32767}, Buttons: 1 << 1},
		{AxisData: []int{0, 0}},
		{AxisData: []int{0, 5000}},
		{AxisData: []int{0, 0}},
	}
	for _, state := range states {
		g.apply(ctx, state, controller)
	}

	// resting noise is ignored and a held stop button only stops once
	assert.Equal(t, []string{
		"move 16000 -32767",
		"stop",
		"move 0 5000",
		"release",
	}, controller.recorded())
}

func TestStartInterruptsOnReadFailure(t *testing.T) {
	js := &fakeJoystick{
		states: []joystick.State{{AxisData: []int{0, -32767}}},
		err:    errors.New("device unplugged"),
	}
	g, err := NewGamepad(testConfig(), js, HalfExtent)
	require.NoError(t, err)
	controller := &fakeController{}

	err = g.Start(context.Background(), controller)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device unplugged")
	assert.Equal(t, []string{"move 0 -32767", "interrupt"}, controller.recorded())
	assert.True(t, js.closed)
}

func TestStartStopsOnCancel(t *testing.T) {
	g, err := NewGamepad(testConfig(), &fakeJoystick{}, HalfExtent)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, g.Start(ctx, &fakeController{}), context.Canceled)
}

type querySender struct {
	cmds []string
}

func (q *querySender) Send(ctx context.Context, cmd string) error {
	q.cmds = append(q.cmds, cmd)
	return nil
}

func TestPartialDeflectionIsProportional(t *testing.T) {
	tests := []struct {
		name     string
		axes     []int
		expected string
	}{
		{"six percent forward", []int{0, -1966}, "ud=15&lr=0"},
		{"half forward", []int{0, -16384}, "ud=128&lr=0"},
		{"half right quarter back", []int{16384, 8192}, "ud=-64&lr=128"},
		{"full forward left", []int{-32767, -32767}, "ud=255&lr=-255"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sender := &querySender{}
			dispatcher := drive.NewDispatcher(sender, drive.QueryProtocol{}, drive.Options{})
			session := remote.NewSession(uuid.New(), dispatcher, 80)

			g, err := NewGamepad(testConfig(), &fakeJoystick{}, 80)
			require.NoError(t, err)

			g.apply(context.Background(), joystick.State{AxisData: tc.axes}, session)
			assert.Equal(t, []string{tc.expected}, sender.cmds)
		})
	}
}
