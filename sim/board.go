package sim

import (
	"fmt"
	"sync"

	"github.com/antongulenko/stepdrive/stepper"
	log "github.com/sirupsen/logrus"
)

// Board is an in-memory pin board. It implements all pin interfaces of the stepper package
// and is used for the dummy backend and in tests. Inputs read HIGH while pulled up and not set.
type Board struct {
	// FailPin makes every access to the given pin fail, if not stepper.NoPin.
	FailPin int
	// Verbose logs every write at debug level.
	Verbose bool

	lock    sync.Mutex
	outputs map[int]stepper.Level
	inputs  map[int]stepper.Level
	analog  map[int]int
	isOut   map[int]bool
	pullup  map[int]bool
	writes  int
	batches int
}

func NewBoard() *Board {
	return &Board{
		FailPin: stepper.NoPin,
		outputs: make(map[int]stepper.Level),
		inputs:  make(map[int]stepper.Level),
		analog:  make(map[int]int),
		isOut:   make(map[int]bool),
		pullup:  make(map[int]bool),
	}
}

var (
	_ stepper.DigitalOutput = new(Board)
	_ stepper.PortWriter    = new(Board)
	_ stepper.DigitalInput  = new(Board)
	_ stepper.AnalogInput   = new(Board)
	_ stepper.PinSetup      = new(Board)
)

func (b *Board) check(pin int) error {
	if pin < 0 {
		return fmt.Errorf("invalid pin %v", pin)
	}
	if b.FailPin != stepper.NoPin && pin == b.FailPin {
		return fmt.Errorf("simulated failure on pin %v", pin)
	}
	return nil
}

func (b *Board) ConfigureOutput(pin int) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.check(pin); err != nil {
		return err
	}
	b.isOut[pin] = true
	delete(b.pullup, pin)
	return nil
}

func (b *Board) ConfigureInputPullup(pin int) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.check(pin); err != nil {
		return err
	}
	b.pullup[pin] = true
	delete(b.isOut, pin)
	return nil
}

func (b *Board) DigitalWrite(pin int, level stepper.Level) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.check(pin); err != nil {
		return err
	}
	b.outputs[pin] = level
	b.writes++
	if b.Verbose {
		log.Debugf("Pin %v: %v", pin, level)
	}
	return nil
}

// DigitalWriteAll writes all levels as one batch.
func (b *Board) DigitalWriteAll(pins []int, levels []stepper.Level) error {
	if len(pins) != len(levels) {
		return fmt.Errorf("%v pins, but %v levels", len(pins), len(levels))
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	for _, pin := range pins {
		if err := b.check(pin); err != nil {
			return err
		}
	}
	for i, pin := range pins {
		b.outputs[pin] = levels[i]
	}
	b.writes += len(pins)
	b.batches++
	if b.Verbose {
		log.Debugf("Pins %v: %v", pins, stepper.Pattern(levels))
	}
	return nil
}

func (b *Board) DigitalRead(pin int) (stepper.Level, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.check(pin); err != nil {
		return stepper.Low, err
	}
	if l, ok := b.inputs[pin]; ok {
		return l, nil
	}
	if l, ok := b.outputs[pin]; ok {
		return l, nil
	}
	return stepper.Level(b.pullup[pin]), nil
}

func (b *Board) AnalogRead(pin int) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.check(pin); err != nil {
		return 0, err
	}
	return b.analog[pin], nil
}

// SetInput overrides the level read from pin, for example to press a pulled-up button (LOW).
func (b *Board) SetInput(pin int, level stepper.Level) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.inputs[pin] = level
}

// ReleaseInput removes a level set by SetInput.
func (b *Board) ReleaseInput(pin int) {
	b.lock.Lock()
	defer b.lock.Unlock()
	delete(b.inputs, pin)
}

func (b *Board) SetAnalog(pin, value int) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.analog[pin] = value
}

func (b *Board) Output(pin int) stepper.Level {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.outputs[pin]
}

// Outputs returns the current output levels of the given pins.
func (b *Board) Outputs(pins ...int) stepper.Pattern {
	b.lock.Lock()
	defer b.lock.Unlock()
	res := make(stepper.Pattern, len(pins))
	for i, pin := range pins {
		res[i] = b.outputs[pin]
	}
	return res
}

func (b *Board) IsOutput(pin int) bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.isOut[pin]
}

func (b *Board) IsPullup(pin int) bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.pullup[pin]
}

// Writes returns the number of single pin writes, including pins written in batches.
func (b *Board) Writes() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.writes
}

func (b *Board) Batches() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.batches
}

// PinOnly hides the batch write of a Board, so patterns are written pin by pin.
type PinOnly struct {
	Out stepper.DigitalOutput
}

func (p PinOnly) DigitalWrite(pin int, level stepper.Level) error {
	return p.Out.DigitalWrite(pin, level)
}
