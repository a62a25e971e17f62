package stepper

import "math"

// VelocityAt returns equilibrium + amplitude * sin(2π t / period), with t in seconds.
func VelocityAt(elapsedMillis uint32, amplitude, equilibrium, period float64) float64 {
	t := float64(elapsedMillis) / 1000
	return equilibrium + amplitude*math.Sin(2*math.Pi*t/period)
}
