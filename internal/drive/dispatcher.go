package drive

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const DefaultDeadband = 3

// Sender delivers one wire string to the vehicle.
type Sender interface {
	Send(ctx context.Context, cmd string) error
}

type DispatcherState struct {
	LastThrottle int
	LastSteering int
}

type Stats struct {
	Sent       int64
	Suppressed int64
	Failed     int64
	Stops      int64
}

type Options struct {
	// Deadband is the per-channel change below which a drive is not transmitted.
	Deadband int
	// ResendAfter forces a tick to transmit when nothing was sent for this long. Zero disables it.
	ResendAfter time.Duration
}

// Dispatcher owns what was last transmitted to the vehicle and is the only place drive commands are sent from.
type Dispatcher struct {
	lock     sync.Mutex
	sender   Sender
	protocol Protocol
	opts     Options

	state    DispatcherState
	lastSend time.Time
	stats    Stats

	now func() time.Time
}

func NewDispatcher(sender Sender, protocol Protocol, opts Options) *Dispatcher {
	if opts.Deadband <= 0 {
		opts.Deadband = DefaultDeadband
	}
	return &Dispatcher{
		sender:   sender,
		protocol: protocol,
		opts:     opts,
		now:      time.Now,
	}
}

// Drive transmits throttle and steering unless both are within the deadband of the last sent values.
func (d *Dispatcher) Drive(ctx context.Context, throttle, steering int) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.drive(ctx, throttle, steering, false)
}

// Stop always transmits neutral for both channels and resets the state.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.stats.Stops++
	err := d.drive(ctx, 0, 0, true)
	if err != nil {
		return fmt.Errorf("failed sending stop - %w", err)
	}
	return nil
}

// Tick re-drives the current values. It is forced when the last transmission is older than ResendAfter.
func (d *Dispatcher) Tick(ctx context.Context, throttle, steering int) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.tick(ctx, throttle, steering)
}

// Run ticks with the values from source every interval until ctx is done.
// source is read while the dispatcher is locked, so a Stop is never followed by a value read before it.
// source must not call back into the dispatcher.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration, source func() (int, int)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("stopping drive keepalive: %s", ctx.Err().Error())
			return ctx.Err()
		case <-ticker.C:
			// failures are already logged, the next tick retries
			_ = d.tickFrom(ctx, source)
		}
	}
}

func (d *Dispatcher) State() DispatcherState {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.state
}

func (d *Dispatcher) Stats() Stats {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.stats
}

func (d *Dispatcher) tickFrom(ctx context.Context, source func() (int, int)) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	throttle, steering := source()
	return d.tick(ctx, throttle, steering)
}

func (d *Dispatcher) tick(ctx context.Context, throttle, steering int) error {
	force := d.opts.ResendAfter > 0 && d.now().Sub(d.lastSend) >= d.opts.ResendAfter
	return d.drive(ctx, throttle, steering, force)
}

func (d *Dispatcher) drive(ctx context.Context, throttle, steering int, force bool) error {
	throttle = ClampPWM(throttle)
	steering = ClampPWM(steering)

	if !force &&
		abs(throttle-d.state.LastThrottle) < d.opts.Deadband &&
		abs(steering-d.state.LastSteering) < d.opts.Deadband {
		d.stats.Suppressed++
		return nil
	}

	var errs []error
	for _, cmd := range d.protocol.Encode(throttle, steering) {
		// keep going on failure so the rest of a neutral command still gets a chance to go out
		err := d.sender.Send(ctx, cmd)
		if err != nil {
			errs = append(errs, fmt.Errorf("%q - %w", cmd, err))
		}
	}

	// updated even on failure, the keepalive tick provides the retry
	d.state = DispatcherState{LastThrottle: throttle, LastSteering: steering}
	d.lastSend = d.now()

	if len(errs) > 0 {
		d.stats.Failed++
		err := errors.Join(errs...)
		log.Warnf("failed sending drive command ud:%d lr:%d - %s", throttle, steering, err.Error())
		return err
	}
	d.stats.Sent++
	log.Debugf("sent drive command ud:%d lr:%d", throttle, steering)
	return nil
}

func abs(value int) int {
	if value < 0 {
		return -value
	}
	return value
}
