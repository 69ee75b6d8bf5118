package vehicle

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/Speshl/gorrc_remote/internal/drive"
	"github.com/Speshl/gorrc_remote/internal/models"
)

var ErrBadCommand = errors.New("bad command")

// ParseQuery applies ud and lr from a /drive query onto prev. A missing parameter keeps its previous value.
func ParseQuery(query string, prev models.DriveCommand) (models.DriveCommand, error) {
	values, err := url.ParseQuery(query)
	if err != nil {
		return prev, fmt.Errorf("%w: %s", ErrBadCommand, err.Error())
	}

	next := prev
	if values.Has("ud") {
		next.Throttle, err = parseChannel(values.Get("ud"))
		if err != nil {
			return prev, fmt.Errorf("%w: ud - %s", ErrBadCommand, err.Error())
		}
	}
	if values.Has("lr") {
		next.Steering, err = parseChannel(values.Get("lr"))
		if err != nil {
			return prev, fmt.Errorf("%w: lr - %s", ErrBadCommand, err.Error())
		}
	}
	return next, nil
}

func parseChannel(value string) (int, error) {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	return drive.ClampPWM(parsed), nil
}

// LineParser turns CMD_UD/CMD_LR pin lines back into signed channel values.
type LineParser struct {
	Pins drive.PinMap
}

func NewLineParser(pins drive.PinMap) LineParser {
	return LineParser{Pins: pins}
}

func (p LineParser) ParseLine(line string, prev models.DriveCommand) (models.DriveCommand, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return prev, fmt.Errorf("%w: %q", ErrBadCommand, line)
	}

	pin, err := strconv.Atoi(fields[1])
	if err != nil {
		return prev, fmt.Errorf("%w: pin in %q", ErrBadCommand, line)
	}
	value, err := strconv.Atoi(fields[2])
	if err != nil || value < 0 || value > drive.MaxPWM {
		return prev, fmt.Errorf("%w: value in %q", ErrBadCommand, line)
	}

	next := prev
	switch {
	case fields[0] == drive.ThrottlePrefix && pin == p.Pins.Forward:
		next.Throttle = value
	case fields[0] == drive.ThrottlePrefix && pin == p.Pins.Reverse:
		next.Throttle = -value
	case fields[0] == drive.SteeringPrefix && pin == p.Pins.Right:
		next.Steering = value
	case fields[0] == drive.SteeringPrefix && pin == p.Pins.Left:
		next.Steering = -value
	default:
		return prev, fmt.Errorf("%w: unknown channel or pin in %q", ErrBadCommand, line)
	}
	return next, nil
}
