package command

import (
	"fmt"

	"github.com/Speshl/gorrc_remote/internal/config"
	"github.com/Speshl/gorrc_remote/internal/vehicle"
	"github.com/googolgl/go-i2c"
	"github.com/googolgl/go-pca9685"
	log "github.com/sirupsen/logrus"
)

const (
	MaxValue = 1.0
	MinValue = 0.0
	MidValue = 0.5
	AcRange  = pca9685.ServoRangeDef
)

// CommandDriver drives the esc and steering servo from a PCA9685 board on i2c.
type CommandDriver struct {
	cfg    config.CommandConfig
	servos map[string]Servo
	driver *pca9685.PCA9685
}

type Servo struct {
	name     string
	inverted bool
	offset   float64
	servo    *pca9685.Servo
}

func NewCommand(cfg config.CommandConfig) *CommandDriver {
	return &CommandDriver{
		cfg: cfg,
	}
}

func (c *CommandDriver) Init() error {
	i2c, err := i2c.New(c.cfg.Address, c.cfg.I2CDevice)
	if err != nil {
		return fmt.Errorf("error starting i2c with address - %w", err)
	}

	c.driver, err = pca9685.New(i2c, nil)
	if err != nil {
		return fmt.Errorf("error getting servo driver - %w", err)
	}

	servoCfgs := vehicle.OutputServos(c.cfg.ServoCfgs)
	servos := make(map[string]Servo, len(servoCfgs))
	for i := range servoCfgs {
		name := servoCfgs[i].Name
		servos[name] = Servo{
			name:     name,
			inverted: servoCfgs[i].Inverted,
			offset:   float64(servoCfgs[i].Offset) / 100,
			servo: c.driver.ServoNew(servoCfgs[i].Channel, &pca9685.ServOptions{
				AcRange:  AcRange,
				MinPulse: float32(servoCfgs[i].MinPulse),
				MaxPulse: float32(servoCfgs[i].MaxPulse),
			}),
		}
		log.Printf("servo added: %s on channel %d", name, servoCfgs[i].Channel)
	}
	c.servos = servos
	c.CenterAll()
	return nil
}

func (c *CommandDriver) Stop() error {
	c.CenterAll()
	return nil
}

func (c *CommandDriver) CenterAll() {
	log.Println("centering all servos")
	for i := range c.servos {
		err := c.servos[i].servo.Fraction(MidValue)
		if err != nil {
			log.Warnf("failed centering %s - %s", c.servos[i].name, err.Error())
		}
	}
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
	val, ok := c.servos[cmd.Name]
	if !ok {
		return nil
	}

	mappedValue := fraction(val, cmd)
	err := val.servo.Fraction(float32(mappedValue))
	if err != nil {
		return fmt.Errorf("failed setting servo value - name: %s value: %.2f - error: %w", cmd.Name, mappedValue, err)
	}
	return nil
}

// fraction maps a command onto the 0-1 pulse range of the servo, with the mid offset in percent of the range.
func fraction(servo Servo, cmd vehicle.DriverCommand) float64 {
	offset := servo.offset * (cmd.Max - cmd.Min)
	mappedValue := vehicle.MapToRange(cmd.Value+offset, cmd.Min, cmd.Max, MinValue, MaxValue)
	if servo.inverted {
		mappedValue = MaxValue - mappedValue
	}
	return mappedValue
}
