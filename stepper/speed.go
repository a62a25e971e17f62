package stepper

import "fmt"

// SpeedController maps raw potentiometer samples to velocities and step delays.
// The mapping is inverted: SampleMin gives MaxVelocity, SampleMax gives MinVelocity.
type SpeedController struct {
	SampleMin          int
	SampleMax          int
	MinVelocity        int
	MaxVelocity        int
	StopBound          int
	StepsPerRevolution int
}

func (c *Config) speedController() SpeedController {
	return SpeedController{
		SampleMin:          c.SampleMin,
		SampleMax:          c.SampleMax,
		MinVelocity:        c.MinVelocity,
		MaxVelocity:        c.MaxVelocity,
		StopBound:          c.StopBound,
		StepsPerRevolution: c.StepsPerRevolution,
	}
}

// Velocity in RPM, always inside [MinVelocity, MaxVelocity].
func (s SpeedController) Velocity(raw int) int {
	v := s.MaxVelocity
	if s.SampleMax != s.SampleMin {
		v += (raw - s.SampleMin) * (s.MinVelocity - s.MaxVelocity) / (s.SampleMax - s.SampleMin)
	}
	return s.clamp(v)
}

func (s SpeedController) clamp(v int) int {
	if v < s.MinVelocity {
		v = s.MinVelocity
	}
	if v > s.MaxVelocity {
		v = s.MaxVelocity
	}
	return v
}

func (s SpeedController) ShouldStop(raw int) bool {
	return s.Velocity(raw) <= s.StopBound
}

func (s SpeedController) ComputeDelay(raw int) (uint32, error) {
	return StepDelay(s.StepsPerRevolution, s.Velocity(raw))
}

// StepDelay returns the microseconds between two steps at the given RPM.
func StepDelay(stepsPerRevolution, rpm int) (uint32, error) {
	if rpm <= 0 || stepsPerRevolution <= 0 {
		return 0, fmt.Errorf("%w: %v RPM at %v steps per revolution", ErrInvalidSpeed, rpm, stepsPerRevolution)
	}
	delay := 60000000 / (int64(stepsPerRevolution) * int64(rpm))
	if delay <= 0 {
		return 0, fmt.Errorf("%w: %v RPM at %v steps per revolution", ErrInvalidSpeed, rpm, stepsPerRevolution)
	}
	return uint32(delay), nil
}
