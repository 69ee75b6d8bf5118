package pipwm

import (
	"fmt"
	"math"

	"github.com/Speshl/gorrc_remote/internal/config"
	"github.com/Speshl/gorrc_remote/internal/vehicle"
	log "github.com/sirupsen/logrus"
	"github.com/stianeikeland/go-rpio/v4"
)

const (
	Frequency   = 100000 // 10us per tick
	CycleLength = uint32(2000)
	TickMicros  = 10.0
)

// CommandDriver drives an H-bridge (direction pins plus a speed pwm) and a steering servo from the Pi's own pwm.
type CommandDriver struct {
	cfg config.CommandConfig

	forward rpio.Pin
	reverse rpio.Pin
	speed   rpio.Pin
	steer   Servo
}

type Servo struct {
	name     string
	inverted bool
	offset   float64
	servo    rpio.Pin
	maxValue uint32
	minValue uint32
}

func NewCommand(cfg config.CommandConfig) *CommandDriver {
	return &CommandDriver{
		cfg: cfg,
	}
}

func (c *CommandDriver) Init() error {
	err := rpio.Open()
	if err != nil {
		return fmt.Errorf("failed opening rpio: %w", err)
	}

	c.forward = rpio.Pin(c.cfg.ForwardGPIO)
	c.reverse = rpio.Pin(c.cfg.ReverseGPIO)
	c.forward.Output()
	c.reverse.Output()

	c.speed = rpio.Pin(c.cfg.SpeedGPIO)
	c.speed.Mode(rpio.Pwm)
	c.speed.Freq(Frequency)

	for _, servoCfg := range vehicle.OutputServos(c.cfg.ServoCfgs) {
		if servoCfg.Name != vehicle.SteerOutput {
			continue
		}
		c.steer = Servo{
			name:     servoCfg.Name,
			inverted: servoCfg.Inverted,
			offset:   float64(servoCfg.Offset) / 100,
			servo:    rpio.Pin(c.cfg.ServoGPIO),
			maxValue: pulseTicks(servoCfg.MaxPulse),
			minValue: pulseTicks(servoCfg.MinPulse),
		}
	}
	c.steer.servo.Mode(rpio.Pwm)
	c.steer.servo.Freq(Frequency)
	log.Printf("servo added: %s on gpio %d", c.steer.name, c.cfg.ServoGPIO)

	c.CenterAll()
	return nil
}

func (c *CommandDriver) Stop() error {
	c.CenterAll()
	err := rpio.Close()
	if err != nil {
		return fmt.Errorf("failed closing rpio: %w", err)
	}
	return nil
}

func (c *CommandDriver) CenterAll() {
	log.Println("centering all servos")
	c.setThrottle(0)
	c.steer.servo.DutyCycle((c.steer.maxValue+c.steer.minValue)/2, CycleLength)
}

func (c *CommandDriver) SetMany(cmds []vehicle.DriverCommand) error {
	for i := range cmds {
		err := c.Set(cmds[i])
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *CommandDriver) Set(cmd vehicle.DriverCommand) error {
	switch cmd.Name {
	case vehicle.ThrottleOutput:
		c.setThrottle(cmd.Value / cmd.Max)
	case vehicle.SteerOutput:
		c.steer.servo.DutyCycle(servoDuty(c.steer, cmd), CycleLength)
	}
	return nil
}

// setThrottle takes -1 to 1, the sign picks the direction pin and the magnitude the speed duty.
func (c *CommandDriver) setThrottle(value float64) {
	switch {
	case value > 0:
		c.reverse.Low()
		c.forward.High()
	case value < 0:
		c.forward.Low()
		c.reverse.High()
	default:
		c.forward.Low()
		c.reverse.Low()
	}
	c.speed.DutyCycle(speedDuty(value), CycleLength)
}

func speedDuty(value float64) uint32 {
	return uint32(math.Round(math.Min(math.Abs(value), 1) * float64(CycleLength)))
}

func servoDuty(servo Servo, cmd vehicle.DriverCommand) uint32 {
	offset := servo.offset * (cmd.Max - cmd.Min)
	mappedValue := vehicle.MapToRange(cmd.Value+offset, cmd.Min, cmd.Max, float64(servo.minValue), float64(servo.maxValue))
	if servo.inverted {
		mappedValue = float64(servo.maxValue+servo.minValue) - mappedValue
	}
	return uint32(math.Round(mappedValue))
}

func pulseTicks(pulseMicros float64) uint32 {
	return uint32(math.Round(pulseMicros / TickMicros))
}
