package hostio

import (
	"fmt"

	"github.com/antongulenko/golib"
	"github.com/antongulenko/stepdrive/stepper"
	log "github.com/sirupsen/logrus"
)

// Board maps stepper pin numbers directly to sysfs GPIO numbers.
// Pins are exported when they are configured.
type Board struct {
	pins map[int]*Gpio
}

var (
	_ stepper.DigitalOutput = new(Board)
	_ stepper.DigitalInput  = new(Board)
	_ stepper.PinSetup      = new(Board)
)

func NewBoard() *Board {
	return &Board{pins: make(map[int]*Gpio)}
}

func (b *Board) open(pin int) (*Gpio, error) {
	if g, ok := b.pins[pin]; ok {
		return g, nil
	}
	g, err := OpenPin(pin)
	if err != nil {
		return nil, err
	}
	b.pins[pin] = g
	return g, nil
}

func (b *Board) pin(pin int) (*Gpio, error) {
	g, ok := b.pins[pin]
	if !ok {
		return nil, fmt.Errorf("gpio%d: not configured", pin)
	}
	return g, nil
}

func (b *Board) ConfigureOutput(pin int) error {
	g, err := b.open(pin)
	if err != nil {
		return err
	}
	return g.Direction(true)
}

// ConfigureInputPullup configures an input. Sysfs has no pull-up control,
// the pull-up must be configured in the device tree or provided externally.
func (b *Board) ConfigureInputPullup(pin int) error {
	g, err := b.open(pin)
	if err != nil {
		return err
	}
	log.Warnf("gpio%d: sysfs cannot enable the internal pull-up, make sure the input is pulled up", pin)
	return g.Direction(false)
}

func (b *Board) DigitalWrite(pin int, level stepper.Level) error {
	g, err := b.pin(pin)
	if err != nil {
		return err
	}
	return g.Set(level)
}

func (b *Board) DigitalRead(pin int) (stepper.Level, error) {
	g, err := b.pin(pin)
	if err != nil {
		return stepper.Low, err
	}
	return g.Get()
}

// Close unexports all configured pins.
func (b *Board) Close() {
	for num, g := range b.pins {
		golib.Printerr(g.Close())
		delete(b.pins, num)
	}
}
