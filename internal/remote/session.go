package remote

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/Speshl/gorrc_remote/internal/drive"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	MaxTurnAngle   = 45.0
	FollowThrottle = 185
)

// Session turns pointer movements into drive commands and owns the disengage paths.
type Session struct {
	Id uuid.UUID

	dispatcher *drive.Dispatcher
	halfExtent float64

	lock     sync.RWMutex
	throttle int
	steering int
}

func NewSession(id uuid.UUID, dispatcher *drive.Dispatcher, halfExtent float64) *Session {
	return &Session{
		Id:         id,
		dispatcher: dispatcher,
		halfExtent: halfExtent,
	}
}

// Move drives toward the pointer position. Non-finite offsets are dropped with ErrInvalidInput.
func (s *Session) Move(ctx context.Context, dx, dy float64) error {
	err := drive.ValidateOffset(dx, dy)
	if err != nil {
		log.Debugf("session %s dropped pointer sample - %s", s.Id, err.Error())
		return err
	}

	dx, dy = drive.ClampSquare(dx, dy, s.halfExtent)
	throttle, steering := drive.Map(dx, dy, s.halfExtent)
	return s.set(ctx, throttle, steering)
}

// Follow drives at a fixed speed toward a heading of +-MaxTurnAngle degrees.
func (s *Session) Follow(ctx context.Context, turnAngle float64, shouldDrive bool) error {
	if math.IsNaN(turnAngle) {
		return drive.ErrInvalidInput
	}
	turnAngle = math.Max(-MaxTurnAngle, math.Min(MaxTurnAngle, turnAngle))

	throttle := 0
	if shouldDrive {
		throttle = FollowThrottle
	}
	steering := int(math.Round(turnAngle / MaxTurnAngle * drive.MaxPWM))
	return s.set(ctx, throttle, steering)
}

// Release is the pointer let go.
func (s *Session) Release(ctx context.Context) error {
	log.Debugf("session %s released", s.Id)
	return s.disengage(ctx)
}

// Interrupt is the input being taken away without a release, e.g. a lost device.
func (s *Session) Interrupt(ctx context.Context) error {
	log.Warnf("session %s interrupted, stopping vehicle", s.Id)
	return s.disengage(ctx)
}

func (s *Session) Stop(ctx context.Context) error {
	log.Printf("session %s stop requested", s.Id)
	return s.disengage(ctx)
}

// Current is the value the keepalive should be re-sending.
func (s *Session) Current() (int, int) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.throttle, s.steering
}

// KeepAlive ticks the dispatcher with the current values until ctx is done.
func (s *Session) KeepAlive(ctx context.Context, interval time.Duration) error {
	return s.dispatcher.Run(ctx, interval, s.Current)
}

func (s *Session) set(ctx context.Context, throttle, steering int) error {
	s.lock.Lock()
	s.throttle = drive.ClampPWM(throttle)
	s.steering = drive.ClampPWM(steering)
	s.lock.Unlock()

	return s.dispatcher.Drive(ctx, throttle, steering)
}

func (s *Session) disengage(ctx context.Context) error {
	s.lock.Lock()
	s.throttle = 0
	s.steering = 0
	s.lock.Unlock()

	return s.dispatcher.Stop(ctx)
}
