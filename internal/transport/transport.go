package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	DrivePath      = "/drive"
	SocketPath     = "/ws"
	LineTerminator = "\n"
)

var (
	ErrUnavailable = errors.New("transport unavailable")
	ErrSendFailure = errors.New("transport send failure")
)

// Transport delivers a single command string to the vehicle. It never retries.
type Transport interface {
	Send(ctx context.Context, cmd string) error
}

// Connector is implemented by transports that hold a persistent connection.
type Connector interface {
	Connect(ctx context.Context) error
	Connected() bool
	Close() error
}

// Maintain connects c and reconnects it every interval while it is down, until ctx is done.
// It leaves c open on return so a final stop can still go out.
func Maintain(ctx context.Context, c Connector, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if !c.Connected() {
			err := c.Connect(ctx)
			if err != nil {
				log.Warnf("transport connect failed, retrying in %s - %s", interval, err.Error())
			}
		}

		select {
		case <-ctx.Done():
			log.Printf("stopping transport maintainer: %s", ctx.Err().Error())
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func sendFailure(err error) error {
	return fmt.Errorf("%w - %w", ErrSendFailure, err)
}
