package stepper

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidTopology = errors.New("invalid coil pin count, must be 2, 4 or 5")
	ErrInvalidSpeed    = errors.New("velocity must be positive and produce a positive step delay")
	ErrInvalidConfig   = errors.New("invalid motor configuration")
	ErrCounterRange    = errors.New("counter value out of range")
	ErrDutyCycleRange  = errors.New("duty cycle percentage must be in 0..100")
)

// SelectButton sets the mode to Mode while Pin reads LOW.
type SelectButton struct {
	Pin  int
	Mode int
}

type Config struct {
	// CoilPins are written in pattern order. The length selects the topology.
	CoilPins           []int
	StepsPerRevolution int

	// SpeedPin is the analog potentiometer input. With NoPin the motor runs at the
	// fixed speed set through Motor.SetSpeed.
	SpeedPin  int
	SampleMin int
	SampleMax int

	// Velocities and the stop bound are in RPM.
	MinVelocity int
	MaxVelocity int
	StopBound   int

	// DutyCyclePercent of every step period during which all coils of the pattern stay energized.
	// Only used by the four-wire topology. 100 disables de-energization.
	DutyCyclePercent int

	SelectButtons []SelectButton
	AdvanceButton int
	MaxCounter    int
	CountingMode  int

	// IdlePollInterval is the minimum time between button polls done after a Step call.
	// Zero disables idle polling.
	IdlePollInterval time.Duration
}

// DefaultConfig matches a four-wire motor on port A of an MCP23017, the buttons on port B
// and the potentiometer on channel 0 of an ADS1115.
var DefaultConfig = Config{
	CoilPins:           []int{0, 1, 2, 3},
	StepsPerRevolution: 200,
	SpeedPin:           0,
	SampleMin:          0,
	SampleMax:          4095,
	MinVelocity:        10,
	MaxVelocity:        100,
	StopBound:          15,
	DutyCyclePercent:   100,
	SelectButtons:      []SelectButton{{Pin: 8, Mode: 0}, {Pin: 9, Mode: 1}},
	AdvanceButton:      10,
	MaxCounter:         3,
	CountingMode:       2,
	IdlePollInterval:   100 * time.Millisecond,
}

func (c *Config) Topology() (Topology, error) {
	return TopologyFor(len(c.CoilPins))
}

// Validate checks the topology first, so an invalid pin count is reported before anything else.
func (c *Config) Validate() error {
	if _, err := c.Topology(); err != nil {
		return err
	}
	invalid := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	seen := make(map[int]bool)
	checkPin := func(role string, pin int) error {
		if pin < 0 {
			return invalid("%v pin %v is negative", role, pin)
		}
		if seen[pin] {
			return invalid("%v pin %v is used twice", role, pin)
		}
		seen[pin] = true
		return nil
	}
	for _, pin := range c.CoilPins {
		if err := checkPin("coil", pin); err != nil {
			return err
		}
	}
	for _, button := range c.SelectButtons {
		if err := checkPin("select button", button.Pin); err != nil {
			return err
		}
	}
	if c.AdvanceButton != NoPin {
		if err := checkPin("advance button", c.AdvanceButton); err != nil {
			return err
		}
	}

	switch {
	case c.StepsPerRevolution <= 0:
		return invalid("steps per revolution must be positive, not %v", c.StepsPerRevolution)
	case c.MinVelocity <= 0:
		return fmt.Errorf("%w: minimum velocity %v", ErrInvalidSpeed, c.MinVelocity)
	case c.MaxVelocity < c.MinVelocity:
		return invalid("maximum velocity %v below minimum velocity %v", c.MaxVelocity, c.MinVelocity)
	case 60000000/(c.StepsPerRevolution*c.MaxVelocity) == 0:
		return fmt.Errorf("%w: %v RPM at %v steps per revolution", ErrInvalidSpeed, c.MaxVelocity, c.StepsPerRevolution)
	case c.SpeedPin != NoPin && c.SampleMax == c.SampleMin:
		return invalid("empty sample range %v..%v", c.SampleMin, c.SampleMax)
	case c.DutyCyclePercent < 0 || c.DutyCyclePercent > 100:
		return fmt.Errorf("%w: %v", ErrDutyCycleRange, c.DutyCyclePercent)
	case c.MaxCounter < 0:
		return invalid("negative maximum counter %v", c.MaxCounter)
	case c.IdlePollInterval < 0:
		return invalid("negative idle poll interval %v", c.IdlePollInterval)
	}
	return nil
}

func (c *Config) usesButtons() bool {
	return len(c.SelectButtons) > 0 || c.AdvanceButton != NoPin
}

func (c *Config) clone() Config {
	res := *c
	res.CoilPins = append([]int(nil), c.CoilPins...)
	res.SelectButtons = append([]SelectButton(nil), c.SelectButtons...)
	return res
}
