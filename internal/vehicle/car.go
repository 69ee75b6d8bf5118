package vehicle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Speshl/gorrc_remote/internal/config"
	"github.com/Speshl/gorrc_remote/internal/models"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Ranger reports the distance in cm to the nearest obstacle ahead.
type Ranger interface {
	Distance() (float64, error)
}

// NoRanger is used when the car has no distance sensor fitted.
type NoRanger struct{}

func (NoRanger) Distance() (float64, error) {
	return FarDistance, nil
}

type Car struct {
	cfg           config.VehicleConfig
	fsmCfg        FSMConfig
	commandDriver CommandDriverIFace
	ranger        Ranger

	lock            sync.RWMutex
	command         models.DriveCommand
	lastCommandTime time.Time
	timedOut        bool
	state           CarState

	now func() time.Time
}

func NewCar(cfg config.VehicleConfig, commandDriver CommandDriverIFace, ranger Ranger) *Car {
	if ranger == nil {
		ranger = NoRanger{}
	}
	return &Car{
		cfg: cfg,
		fsmCfg: FSMConfig{
			DeadZone:       cfg.DeadZone,
			StopDistance:   cfg.StopDistance,
			ResumeDistance: cfg.ResumeDistance,
		},
		commandDriver: commandDriver,
		ranger:        ranger,
		state:         NewCarState(),
		timedOut:      true,
		now:           time.Now,
	}
}

func (c *Car) Init() error {
	log.Println("initializing car")
	err := c.commandDriver.Init()
	if err != nil {
		return fmt.Errorf("error: failed initializing command driver - %w", err)
	}
	return c.applyState(NewCarState())
}

// Update replaces the latest command with the result of f and refreshes the failsafe timer.
func (c *Car) Update(f func(prev models.DriveCommand) (models.DriveCommand, error)) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	next, err := f(c.command)
	if err != nil {
		return err
	}

	c.command = next
	c.lastCommandTime = c.now()
	if c.timedOut {
		log.Println("receiving commands")
		c.timedOut = false
	}
	return nil
}

func (c *Car) ApplyQuery(query string) error {
	return c.Update(func(prev models.DriveCommand) (models.DriveCommand, error) {
		return ParseQuery(query, prev)
	})
}

func (c *Car) ApplyLine(parser LineParser, line string) error {
	return c.Update(func(prev models.DriveCommand) (models.DriveCommand, error) {
		return parser.ParseLine(line, prev)
	})
}

func (c *Car) Command() models.DriveCommand {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.command
}

func (c *Car) State() CarState {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.state
}

func (c *Car) Status() models.VehicleStatus {
	c.lock.RLock()
	defer c.lock.RUnlock()

	age := int64(-1)
	if !c.lastCommandTime.IsZero() {
		age = c.now().Sub(c.lastCommandTime).Milliseconds()
	}
	return models.VehicleStatus{
		State:          c.state.State.String(),
		Command:        c.command,
		Output:         models.DriveCommand{Throttle: c.state.Throttle, Steering: c.state.Turn},
		LastCommandAge: age,
		TimedOut:       c.timedOut,
		Obstacle:       c.state.Distance,
	}
}

func (c *Car) Stop() error {
	log.Println("stopping car")
	c.lock.Lock()
	c.command = models.DriveCommand{}
	c.lock.Unlock()

	err := c.applyState(NewCarState())
	if err != nil {
		log.Warnf("failed neutralizing outputs - %s", err.Error())
	}

	err = c.commandDriver.Stop()
	if err != nil {
		return fmt.Errorf("error: failed stopping command driver - %w", err)
	}
	return nil
}

func (c *Car) Start(ctx context.Context) error {
	log.Println("starting car")
	errGroup, errGroupCtx := errgroup.WithContext(ctx)

	defer c.Stop()

	// failsafe
	errGroup.Go(func() error {
		saftyTicker := time.NewTicker(c.cfg.CommandTimeout / 4)
		defer saftyTicker.Stop()
		for {
			select {
			case <-errGroupCtx.Done():
				log.Printf("stopping car failsafe: %s", errGroupCtx.Err().Error())
				return errGroupCtx.Err()
			case <-saftyTicker.C:
				c.checkTimeout()
			}
		}
	})

	errGroup.Go(func() error {
		loopTicker := time.NewTicker(c.cfg.LoopInterval)
		defer loopTicker.Stop()
		for {
			select {
			case <-errGroupCtx.Done():
				log.Printf("stopping car state syncer: %s", errGroupCtx.Err().Error())
				return errGroupCtx.Err()
			case <-loopTicker.C:
				err := c.step()
				if err != nil {
					return fmt.Errorf("failed applying car state - %w", err)
				}
			}
		}
	})

	err := errGroup.Wait()
	if err != nil {
		return fmt.Errorf("car error group closed - %w", err)
	}
	return nil
}

// checkTimeout treats command silence as a lost connection and neutralizes the command.
func (c *Car) checkTimeout() {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.timedOut || c.now().Sub(c.lastCommandTime) <= c.cfg.CommandTimeout {
		return
	}
	c.timedOut = true
	if c.command != (models.DriveCommand{}) {
		log.Warnf("no command for %s, stopping", c.cfg.CommandTimeout)
	}
	c.command = models.DriveCommand{}
}

func (c *Car) step() error {
	distance, err := c.ranger.Distance()
	if err != nil {
		// unknown distance is treated as an obstacle at the bumper
		log.Warnf("failed reading distance - %s", err.Error())
		distance = 0
	}

	c.lock.Lock()
	prev := c.state.State
	c.state = UpdateFSM(c.state, c.command.Throttle, c.command.Steering, distance, c.fsmCfg)
	state := c.state
	c.lock.Unlock()

	if prev != state.State {
		log.Printf("car state %s -> %s", prev, state.State)
	}
	return c.applyState(state)
}

func (c *Car) applyState(state CarState) error {
	err := c.commandDriver.SetMany(buildCommands(state))
	if err != nil {
		return fmt.Errorf("failed setting outputs - %w", err)
	}
	return nil
}

func buildCommands(state CarState) []DriverCommand {
	return []DriverCommand{
		{
			Name:  ThrottleOutput,
			Value: float64(state.Throttle),
			Min:   -MaxCommand,
			Max:   MaxCommand,
		},
		{
			Name:  SteerOutput,
			Value: MapToRange(float64(state.Turn), -MaxCommand, MaxCommand, -MaxSteerAngle, MaxSteerAngle),
			Min:   -MaxSteerAngle,
			Max:   MaxSteerAngle,
		},
	}
}
