package logdriver

import (
	"sync"

	"github.com/Speshl/gorrc_remote/internal/vehicle"
	log "github.com/sirupsen/logrus"
)

// CommandDriver logs outputs instead of driving hardware. Used on the bench and when no driver is configured.
type CommandDriver struct {
	lock   sync.RWMutex
	values map[string]float64
}

func NewCommand() *CommandDriver {
	return &CommandDriver{
		values: make(map[string]float64, 2),
	}
}

func (c *CommandDriver) Init() error {
	log.Println("using log command driver, no outputs will move")
	return nil
}

func (c *CommandDriver) Stop() error {
	return nil
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
	c.lock.Lock()
	defer c.lock.Unlock()

	if prev, ok := c.values[cmd.Name]; !ok || prev != cmd.Value {
		log.Debugf("%s: %.2f", cmd.Name, cmd.Value)
	}
	c.values[cmd.Name] = cmd.Value
	return nil
}

func (c *CommandDriver) Value(name string) float64 {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.values[name]
}
