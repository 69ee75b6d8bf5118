package gamepad

import (
	"context"
	"fmt"
	"time"

	"github.com/0xcafed00d/joystick"
	"github.com/Speshl/gorrc_remote/internal/config"
	log "github.com/sirupsen/logrus"
)

const (
	// HalfExtent is the largest axis reading the joystick reports.
	HalfExtent = 32767.0
	// CenterZone is how far from center a stick must move before it counts as held.
	CenterZone = 1024
)

// Controller receives the stick as pointer movements.
type Controller interface {
	Move(ctx context.Context, dx, dy float64) error
	Release(ctx context.Context) error
	Interrupt(ctx context.Context) error
	Stop(ctx context.Context) error
}

type Gamepad struct {
	cfg config.GamepadConfig
	js  joystick.Joystick
	// extent is the half extent of the controller the stick is scaled to
	extent float64

	engaged     bool
	stopPressed bool
}

// Open opens the configured joystick. Axis readings are scaled so a full deflection moves the controller by extent.
func Open(cfg config.GamepadConfig, extent float64) (*Gamepad, error) {
	js, err := joystick.Open(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("failed opening joystick %d - %w", cfg.Device, err)
	}
	log.Printf("controller found: %s (%d axes, %d buttons)", js.Name(), js.AxisCount(), js.ButtonCount())
	return NewGamepad(cfg, js, extent)
}

func NewGamepad(cfg config.GamepadConfig, js joystick.Joystick, extent float64) (*Gamepad, error) {
	if cfg.SteerAxis >= js.AxisCount() || cfg.ThrottleAxis >= js.AxisCount() {
		js.Close()
		return nil, fmt.Errorf("joystick %s has %d axes, need axis %d and %d", js.Name(), js.AxisCount(), cfg.SteerAxis, cfg.ThrottleAxis)
	}
	return &Gamepad{
		cfg:    cfg,
		js:     js,
		extent: extent,
	}, nil
}

// Start polls the joystick until ctx is done. A read failure interrupts the controller and ends the loop.
func (g *Gamepad) Start(ctx context.Context, controller Controller) error {
	ticker := time.NewTicker(g.cfg.PollRate)
	defer ticker.Stop()
	defer g.js.Close()

	for {
		select {
		case <-ctx.Done():
			log.Printf("stopping gamepad: %s", ctx.Err().Error())
			return ctx.Err()
		case <-ticker.C:
			state, err := g.js.Read()
			if err != nil {
				interruptErr := controller.Interrupt(ctx)
				if interruptErr != nil {
					log.Errorf("failed stopping after gamepad loss - %s", interruptErr.Error())
				}
				return fmt.Errorf("reading joystick - %w", err)
			}
			g.apply(ctx, state, controller)
		}
	}
}

func (g *Gamepad) apply(ctx context.Context, state joystick.State, controller Controller) {
	stopPressed := g.buttonPressed(state, g.cfg.StopButton)
	if stopPressed {
		if !g.stopPressed {
			g.engaged = false
			// errors are logged by the dispatcher
			_ = controller.Stop(ctx)
		}
		g.stopPressed = true
		return
	}
	g.stopPressed = false

	dx, dy := g.offset(state)
	if abs(dx) < CenterZone && abs(dy) < CenterZone {
		if g.engaged {
			g.engaged = false
			_ = controller.Release(ctx)
		}
		return
	}

	g.engaged = true
	_ = controller.Move(ctx, g.scale(dx), g.scale(dy))
}

func (g *Gamepad) scale(value int) float64 {
	return float64(value) * g.extent / HalfExtent
}

// offset returns the stick as a pointer offset, right and down positive.
func (g *Gamepad) offset(state joystick.State) (int, int) {
	dx := axis(state, g.cfg.SteerAxis)
	dy := axis(state, g.cfg.ThrottleAxis)
	if g.cfg.InvertSteer {
		dx = -dx
	}
	if g.cfg.InvertThrottle {
		dy = -dy
	}
	return dx, dy
}

func (g *Gamepad) buttonPressed(state joystick.State, button int) bool {
	if button < 0 || button >= 32 {
		return false
	}
	return state.Buttons&(1<<uint32(button)) != 0
}

func axis(state joystick.State, index int) int {
	if index < 0 || index >= len(state.AxisData) {
		return 0
	}
	return state.AxisData[index]
}

func abs(value int) int {
	if value < 0 {
		return -value
	}
	return value
}
