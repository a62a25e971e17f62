package pca9685

import (
	"errors"
	"fmt"
	"time"

	"github.com/antongulenko/stepdrive/ft260"
	"github.com/antongulenko/stepdrive/stepper"
	log "github.com/sirupsen/logrus"
)

const NumChannels = 16

var ErrNoInputs = errors.New("PCA9685 channels can only be used as outputs")

// Outputs drives the 16 channels as digital outputs, using the full on/full off bits.
type Outputs struct {
	Bus  ft260.I2cBus
	Addr byte

	// Frequency of the PWM cycle in Hz, applied in Init. 0 keeps the power-on prescaler.
	Frequency float64
	Sleep     func(time.Duration)

	pwm   PwmOutput
	state [NumChannels]float64
}

var (
	_ stepper.DigitalOutput = new(Outputs)
	_ stepper.PortWriter    = new(Outputs)
	_ stepper.PinSetup      = new(Outputs)
)

func NewOutputs(bus ft260.I2cBus, addr byte) *Outputs {
	return &Outputs{
		Bus:   bus,
		Addr:  addr,
		Sleep: time.Sleep,
	}
}

func (o *Outputs) Init() error {
	log.Printf("Initializing PWM driver at %02x...", o.Addr)
	if o.Frequency > 0 {
		if o.Frequency < FREQ_MIN || o.Frequency > FREQ_MAX {
			return fmt.Errorf("PCA9685: frequency %vHz out of range %v-%v", o.Frequency, FREQ_MIN, FREQ_MAX)
		}
		// The prescaler can only be written while the oscillator is off
		if err := o.Bus.I2cWrite(o.Addr, MODE1, MODE1_ALLCALL|MODE1_AI|MODE1_SLEEP); err != nil {
			return err
		}
		if err := o.Bus.I2cWrite(o.Addr, PRE_SCALE, Prescaler(o.Frequency)); err != nil {
			return err
		}
	}
	if err := o.Bus.I2cWrite(o.Addr, MODE1, MODE1_ALLCALL|MODE1_AI); err != nil {
		return err
	}
	if o.Sleep != nil {
		o.Sleep(500 * time.Microsecond) // Oscillator startup
	}
	o.pwm = PwmOutput{}
	o.state = [NumChannels]float64{}
	return o.flush(o.state)
}

func (o *Outputs) flush(state [NumChannels]float64) error {
	values := o.pwm.Update(LED0, state[:])
	if values != nil {
		if err := o.Bus.I2cWrite(o.Addr, values...); err != nil {
			return err
		}
	}
	o.pwm.Commit(state[:])
	o.state = state
	return nil
}

func checkChannel(pin int) error {
	if pin < 0 || pin >= NumChannels {
		return fmt.Errorf("PCA9685: invalid channel %v (0-%v)", pin, NumChannels-1)
	}
	return nil
}

func levelValue(level stepper.Level) float64 {
	if level {
		return 1
	}
	return 0
}

func (o *Outputs) ConfigureOutput(pin int) error {
	return checkChannel(pin)
}

func (o *Outputs) ConfigureInputPullup(pin int) error {
	return fmt.Errorf("%w (channel %v)", ErrNoInputs, pin)
}

func (o *Outputs) DigitalWrite(pin int, level stepper.Level) error {
	return o.DigitalWriteAll([]int{pin}, []stepper.Level{level})
}

// DigitalWriteAll writes the smallest range of channels covering all changes in one transaction.
func (o *Outputs) DigitalWriteAll(pins []int, levels []stepper.Level) error {
	if len(pins) != len(levels) {
		return fmt.Errorf("%v pins, but %v levels", len(pins), len(levels))
	}
	next := o.state
	for i, pin := range pins {
		if err := checkChannel(pin); err != nil {
			return err
		}
		next[pin] = levelValue(levels[i])
	}
	return o.flush(next)
}
