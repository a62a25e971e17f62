package stepper

// Level is the logic level of a digital pin.
type Level bool

const (
	Low  = Level(false)
	High = Level(true)
)

func (l Level) String() string {
	if l {
		return "HIGH"
	}
	return "LOW"
}

// NoPin marks an optional pin as not connected.
const NoPin = -1

// DigitalOutput sets output pins. The write must be complete when DigitalWrite returns.
type DigitalOutput interface {
	DigitalWrite(pin int, level Level) error
}

// PortWriter is implemented by outputs that can set several pins in a single transaction.
// Phase patterns are applied through it when available, so no partial pattern reaches the coils.
type PortWriter interface {
	DigitalWriteAll(pins []int, levels []Level) error
}

// DigitalInput reads the current level of an input pin. No debouncing is expected.
type DigitalInput interface {
	DigitalRead(pin int) (Level, error)
}

// AnalogInput returns a raw ADC sample. The value range is platform defined
// and mapped by the SpeedController.
type AnalogInput interface {
	AnalogRead(pin int) (int, error)
}

// Clock is a monotonic clock. Both values wrap around at the width of uint32,
// elapsed times must be computed with unsigned subtraction.
type Clock interface {
	NowMicros() uint32
	NowMillis() uint32
}

// PinSetup configures pin directions. It is used once, when a Motor is created.
type PinSetup interface {
	ConfigureOutput(pin int) error
	ConfigureInputPullup(pin int) error
}

// Hardware bundles the collaborators of a Motor.
// Input, Analog and Setup can be nil if the configuration does not use them.
type Hardware struct {
	Output DigitalOutput
	Input  DigitalInput
	Analog AnalogInput
	Clock  Clock
	Setup  PinSetup
}
