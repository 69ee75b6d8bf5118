package pipwm

import (
	"testing"

	"github.com/Speshl/gorrc_remote/internal/vehicle"
	"github.com/stretchr/testify/assert"
)

func TestSpeedDuty(t *testing.T) {
	assert.Equal(t, uint32(0), speedDuty(0))
	assert.Equal(t, CycleLength, speedDuty(1))
	assert.Equal(t, CycleLength, speedDuty(-1))
	assert.Equal(t, uint32(1000), speedDuty(-0.5))
	assert.Equal(t, CycleLength, speedDuty(3))
}

func TestServoDuty(t *testing.T) {
	servo := Servo{minValue: pulseTicks(1000), maxValue: pulseTicks(2000)}
	steer := func(angle float64) vehicle.DriverCommand {
		return vehicle.DriverCommand{Name: vehicle.SteerOutput, Value: angle, Min: -45, Max: 45}
	}

	assert.Equal(t, uint32(150), servoDuty(servo, steer(0)))
	assert.Equal(t, uint32(200), servoDuty(servo, steer(45)))
	assert.Equal(t, uint32(100), servoDuty(servo, steer(-45)))

	servo.inverted = true
	assert.Equal(t, uint32(100), servoDuty(servo, steer(45)))
}

func TestPulseTicks(t *testing.T) {
	assert.Equal(t, uint32(225), pulseTicks(2250))
	assert.Equal(t, uint32(75), pulseTicks(750))
}
