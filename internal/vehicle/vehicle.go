package vehicle

import (
	"github.com/Speshl/gorrc_remote/internal/config"
)

const (
	ThrottleOutput = "esc"
	SteerOutput    = "steer"

	MaxCommand    = 255.0
	MaxSteerAngle = 45.0
)

type DriverCommand struct {
	Name  string
	Value float64
	Min   float64
	Max   float64
}

type CommandDriverIFace interface {
	Init() error
	Set(DriverCommand) error
	SetMany([]DriverCommand) error
	Stop() error
}

// OutputServos fills in a servo config for any output the config does not name.
func OutputServos(cfgs []config.ServoConfig) []config.ServoConfig {
	servos := append([]config.ServoConfig(nil), cfgs...)
	for channel, name := range []string{ThrottleOutput, SteerOutput} {
		found := false
		for i := range servos {
			if servos[i].Name == name {
				found = true
				break
			}
		}
		if !found {
			servos = append(servos, config.ServoConfig{
				Name:     name,
				Channel:  channel,
				MaxPulse: config.DefaultMaxPulse,
				MinPulse: config.DefaultMinPulse,
				Inverted: config.DefaultInverted,
				Offset:   config.DefaultOffset,
			})
		}
	}
	return servos
}

func MapToRange(value, min, max, minReturn, maxReturn float64) float64 {
	mappedValue := (maxReturn-minReturn)*(value-min)/(max-min) + minReturn

	if mappedValue > maxReturn {
		return maxReturn
	} else if mappedValue < minReturn {
		return minReturn
	} else {
		return mappedValue
	}
}
