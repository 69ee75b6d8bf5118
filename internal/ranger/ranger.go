package ranger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Speshl/gorrc_remote/internal/config"
	"github.com/Speshl/gorrc_remote/internal/vehicle"
	log "github.com/sirupsen/logrus"
	"github.com/stianeikeland/go-rpio/v4"
)

const (
	// SoundSpeed is in cm per microsecond.
	SoundSpeed = 0.0343

	triggerPulse = 10 * time.Microsecond
	// echoTimeout covers the sensor's 4m range there and back
	echoTimeout = 30 * time.Millisecond
	// pings closer together than this pick up the previous ping's echoes
	minPingInterval = 60 * time.Millisecond
)

var ErrNoEcho = errors.New("ranger never started an echo")

type pin interface {
	High()
	Low()
	Read() rpio.State
}

// HCSR04 measures distance with an ultrasonic trigger/echo sensor on two gpio pins.
type HCSR04 struct {
	cfg config.CommandConfig

	lock    sync.Mutex
	trigger pin
	echo    pin

	lastPing     time.Time
	lastDistance float64
	lastErr      error

	now   func() time.Time
	sleep func(time.Duration)
}

func NewHCSR04(cfg config.CommandConfig) *HCSR04 {
	return &HCSR04{
		cfg:   cfg,
		now:   time.Now,
		sleep: time.Sleep,
	}
}

func (h *HCSR04) Init() error {
	err := rpio.Open()
	if err != nil {
		return fmt.Errorf("failed opening rpio: %w", err)
	}

	trigger := rpio.Pin(h.cfg.TriggerGPIO)
	trigger.Output()
	trigger.Low()

	echo := rpio.Pin(h.cfg.EchoGPIO)
	echo.Input()

	h.lock.Lock()
	h.trigger = trigger
	h.echo = echo
	h.lock.Unlock()

	log.Printf("ranger added: trigger gpio %d echo gpio %d", h.cfg.TriggerGPIO, h.cfg.EchoGPIO)
	return nil
}

// Distance fires one ping, or repeats the last reading when the previous ping is too recent.
func (h *HCSR04) Distance() (float64, error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	if h.trigger == nil || h.echo == nil {
		return 0, errors.New("ranger not initialized")
	}

	if !h.lastPing.IsZero() && h.now().Sub(h.lastPing) < minPingInterval {
		return h.lastDistance, h.lastErr
	}

	h.lastDistance, h.lastErr = h.ping()
	return h.lastDistance, h.lastErr
}

// ping measures once. An echo that never ends is nothing in range.
func (h *HCSR04) ping() (float64, error) {
	h.trigger.High()
	h.sleep(triggerPulse)
	h.trigger.Low()

	h.lastPing = h.now()
	deadline := h.lastPing.Add(echoTimeout)
	start, ok := h.waitFor(rpio.High, deadline)
	if !ok {
		return 0, ErrNoEcho
	}
	end, ok := h.waitFor(rpio.Low, deadline)
	if !ok {
		return vehicle.FarDistance, nil
	}
	return EchoDistance(end.Sub(start)), nil
}

func (h *HCSR04) waitFor(state rpio.State, deadline time.Time) (time.Time, bool) {
	for {
		now := h.now()
		if h.echo.Read() == state {
			return now, true
		}
		if now.After(deadline) {
			return now, false
		}
	}
}

// EchoDistance converts the echo pulse width into cm to the obstacle.
func EchoDistance(echo time.Duration) float64 {
	micros := float64(echo) / float64(time.Microsecond)
	return micros * SoundSpeed / 2
}
