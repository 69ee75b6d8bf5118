package drive

import (
	"errors"
	"math"
)

// MaxPWM is the largest magnitude of a channel value. Zero is neutral.
const MaxPWM = 255

// ErrInvalidInput is returned for pointer samples that are not finite numbers.
var ErrInvalidInput = errors.New("invalid input")

// PointerOffset is a displacement from the neutral center of a stick or touch area.
type PointerOffset struct {
	DX float64
	DY float64
}

// Map converts an offset already clamped to halfExtent into throttle and steering.
// Up (negative dy) is forward throttle and right (positive dx) is right steering.
func Map(dx, dy, halfExtent float64) (throttle, steering int) {
	normX := dx / halfExtent
	normY := dy / halfExtent

	throttle = int(math.Round(-normY * MaxPWM))
	steering = int(math.Round(normX * MaxPWM))
	return throttle, steering
}

// ClampSquare keeps each axis within [-halfExtent, halfExtent] independently.
func ClampSquare(dx, dy, halfExtent float64) (float64, float64) {
	return clampFloat(dx, -halfExtent, halfExtent), clampFloat(dy, -halfExtent, halfExtent)
}

// ValidateOffset rejects NaN and infinite offsets with ErrInvalidInput.
func ValidateOffset(dx, dy float64) error {
	if math.IsNaN(dx) || math.IsNaN(dy) || math.IsInf(dx, 0) || math.IsInf(dy, 0) {
		return ErrInvalidInput
	}
	return nil
}

// ClampPWM limits a channel value to [-MaxPWM, MaxPWM].
func ClampPWM(value int) int {
	if value > MaxPWM {
		return MaxPWM
	} else if value < -MaxPWM {
		return -MaxPWM
	}
	return value
}

func clampFloat(value, min, max float64) float64 {
	if value > max {
		return max
	} else if value < min {
		return min
	}
	return value
}
