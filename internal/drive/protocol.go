package drive

import "fmt"

const (
	ThrottlePrefix = "CMD_UD"
	SteeringPrefix = "CMD_LR"
)

// Protocol turns a throttle/steering pair into the wire strings for one dispatch.
type Protocol interface {
	Encode(throttle, steering int) []string
}

// PinMap holds the controller pin ids used by PinProtocol.
type PinMap struct {
	Forward int
	Reverse int
	Left    int
	Right   int
}

// PinProtocol encodes each channel as CMD_UD/CMD_LR lines addressed to a direction pin.
// A zero value releases both pins of the channel.
type PinProtocol struct {
	Pins PinMap
}

func NewPinProtocol(pins PinMap) PinProtocol {
	return PinProtocol{Pins: pins}
}

func (p PinProtocol) Encode(throttle, steering int) []string {
	cmds := make([]string, 0, 4)
	cmds = append(cmds, p.EncodeThrottle(throttle)...)
	cmds = append(cmds, p.EncodeSteering(steering)...)
	return cmds
}

func (p PinProtocol) EncodeThrottle(value int) []string {
	return encodeChannel(ThrottlePrefix, p.Pins.Forward, p.Pins.Reverse, value)
}

func (p PinProtocol) EncodeSteering(value int) []string {
	return encodeChannel(SteeringPrefix, p.Pins.Right, p.Pins.Left, value)
}

func encodeChannel(prefix string, positivePin, negativePin, value int) []string {
	switch {
	case value > 0:
		return []string{fmt.Sprintf("%s %d %d", prefix, positivePin, value)}
	case value < 0:
		return []string{fmt.Sprintf("%s %d %d", prefix, negativePin, -value)}
	default:
		return []string{
			fmt.Sprintf("%s %d 0", prefix, negativePin),
			fmt.Sprintf("%s %d 0", prefix, positivePin),
		}
	}
}

// QueryProtocol encodes both channels as the query of the vehicle's /drive endpoint.
type QueryProtocol struct{}

func (QueryProtocol) Encode(throttle, steering int) []string {
	return []string{fmt.Sprintf("ud=%d&lr=%d", throttle, steering)}
}
