package ft260

import (
	"fmt"

	"github.com/antongulenko/stepdrive/stepper"
	log "github.com/sirupsen/logrus"
)

const (
	ReportID_GPIO = 0xB0 // Feature

	// GPIO 0-5 are pins 0-5, GPIO A-H are pins 6-13
	GpioPins   = 14
	gpioExBase = 6
)

// ReportID_GPIO Feature In and Out
type ReportGpio struct {
	Value   byte // GPIO 0-5 bits
	Dir     byte // GPIO 0-5 direction bits, 1 = output
	ValueEx byte // GPIO A-H bits
	DirEx   byte // GPIO A-H direction bits
}

func (r *ReportGpio) ReportID() byte {
	return ReportID_GPIO
}

func (r *ReportGpio) ReportLen() int {
	return 5
}

func (r *ReportGpio) Marshall(b []byte) error {
	b[1] = r.Value
	b[2] = r.Dir
	b[3] = r.ValueEx
	b[4] = r.DirEx
	return nil
}

func (r *ReportGpio) Unmarshall(b []byte) error {
	r.Value = b[1]
	r.Dir = b[2]
	r.ValueEx = b[3]
	r.DirEx = b[4]
	return nil
}

func gpioBit(pin int) (ex bool, mask byte, err error) {
	if pin < 0 || pin >= GpioPins {
		return false, 0, fmt.Errorf("FT260: invalid GPIO pin %v (0-%v)", pin, GpioPins-1)
	}
	if pin >= gpioExBase {
		return true, 1 << uint(pin-gpioExBase), nil
	}
	return false, 1 << uint(pin), nil
}

func (r *ReportGpio) set(pin int, level stepper.Level) error {
	ex, mask, err := gpioBit(pin)
	if err != nil {
		return err
	}
	target := &r.Value
	if ex {
		target = &r.ValueEx
	}
	if level {
		*target |= mask
	} else {
		*target &^= mask
	}
	return nil
}

func (r *ReportGpio) get(pin int) (stepper.Level, error) {
	ex, mask, err := gpioBit(pin)
	if err != nil {
		return stepper.Low, err
	}
	if ex {
		return r.ValueEx&mask != 0, nil
	}
	return r.Value&mask != 0, nil
}

func (r *ReportGpio) setOutput(pin int, output bool) error {
	ex, mask, err := gpioBit(pin)
	if err != nil {
		return err
	}
	target := &r.Dir
	if ex {
		target = &r.DirEx
	}
	if output {
		*target |= mask
	} else {
		*target &^= mask
	}
	return nil
}

// Gpio uses the GPIO pins of the FT260 as stepper coil outputs and button inputs.
// Output levels are cached, so every write is a single feature report.
type Gpio struct {
	Dev *Ft260

	state  ReportGpio
	loaded bool
}

var (
	_ stepper.DigitalOutput = new(Gpio)
	_ stepper.PortWriter    = new(Gpio)
	_ stepper.DigitalInput  = new(Gpio)
	_ stepper.PinSetup      = new(Gpio)
)

func (g *Gpio) load() error {
	if g.loaded {
		return nil
	}
	if err := g.Dev.Read(&g.state); err != nil {
		return err
	}
	g.loaded = true
	return nil
}

func (g *Gpio) modify(change func(r *ReportGpio) error) error {
	if err := g.load(); err != nil {
		return err
	}
	next := g.state
	if err := change(&next); err != nil {
		return err
	}
	if err := g.Dev.Write(&next); err != nil {
		return err
	}
	g.state = next
	return nil
}

func (g *Gpio) ConfigureOutput(pin int) error {
	return g.modify(func(r *ReportGpio) error {
		return r.setOutput(pin, true)
	})
}

// ConfigureInputPullup switches the pin to input. The FT260 has no pull-up control over this report,
// so buttons need external pull-up resistors.
func (g *Gpio) ConfigureInputPullup(pin int) error {
	log.Debugf("FT260 GPIO %v: using input without internal pull-up", pin)
	return g.modify(func(r *ReportGpio) error {
		return r.setOutput(pin, false)
	})
}

func (g *Gpio) DigitalWrite(pin int, level stepper.Level) error {
	return g.modify(func(r *ReportGpio) error {
		return r.set(pin, level)
	})
}

func (g *Gpio) DigitalWriteAll(pins []int, levels []stepper.Level) error {
	if len(pins) != len(levels) {
		return fmt.Errorf("%v pins, but %v levels", len(pins), len(levels))
	}
	return g.modify(func(r *ReportGpio) error {
		for i, pin := range pins {
			if err := r.set(pin, levels[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (g *Gpio) DigitalRead(pin int) (stepper.Level, error) {
	var current ReportGpio
	if err := g.Dev.Read(&current); err != nil {
		return stepper.Low, err
	}
	return current.get(pin)
}
