package mcp23017

import (
	"fmt"

	"github.com/antongulenko/stepdrive/ft260"
	"github.com/antongulenko/stepdrive/stepper"
	log "github.com/sirupsen/logrus"
)

// Pins 0-7 are GPA0-GPA7, pins 8-15 are GPB0-GPB7
const NumPins = 16

// Device uses the expander in paired register mode (IOCON.BANK = 0).
// Register values are cached, so no register is read before it is modified.
type Device struct {
	Bus  ft260.I2cBus
	Addr byte

	iodir  [2]byte
	pullup [2]byte
	olat   [2]byte
}

var (
	_ stepper.DigitalOutput = new(Device)
	_ stepper.PortWriter    = new(Device)
	_ stepper.DigitalInput  = new(Device)
	_ stepper.PinSetup      = new(Device)
)

func NewDevice(bus ft260.I2cBus, addr byte) *Device {
	return &Device{
		Bus:   bus,
		Addr:  addr,
		iodir: [2]byte{INPUT, INPUT},
	}
}

func pinMask(pin int) (port int, mask byte, err error) {
	if pin < 0 || pin >= NumPins {
		return 0, 0, fmt.Errorf("MCP23017: invalid pin %v (0-%v)", pin, NumPins-1)
	}
	return pin / 8, 1 << uint(pin%8), nil
}

// Init resets all pins to inputs without pull-ups and clears the output latches.
func (d *Device) Init() error {
	if d.Addr < ADDRESS || d.Addr > MAX_ADDRESS {
		return fmt.Errorf("MCP23017: invalid I2C address %#02x", d.Addr)
	}
	log.Printf("Initializing MCP23017 device at %#02x...", d.Addr)
	d.iodir = [2]byte{INPUT, INPUT}
	d.pullup = [2]byte{}
	d.olat = [2]byte{}
	if err := d.Bus.I2cWrite(d.Addr, IOCON_PAIRED, IOCON_BIT_HAEN); err != nil {
		return err
	}
	if err := d.Bus.I2cWrite(d.Addr, OLAT_PAIRED, d.olat[0], d.olat[1]); err != nil {
		return err
	}
	if err := d.Bus.I2cWrite(d.Addr, GPPU_PAIRED, d.pullup[0], d.pullup[1]); err != nil {
		return err
	}
	return d.Bus.I2cWrite(d.Addr, IODIR_PAIRED, d.iodir[0], d.iodir[1])
}

func (d *Device) ConfigureOutput(pin int) error {
	port, mask, err := pinMask(pin)
	if err != nil {
		return err
	}
	d.iodir[port] &^= mask
	return d.Bus.I2cWrite(d.Addr, IODIR_PAIRED, d.iodir[0], d.iodir[1])
}

func (d *Device) ConfigureInputPullup(pin int) error {
	port, mask, err := pinMask(pin)
	if err != nil {
		return err
	}
	d.iodir[port] |= mask
	d.pullup[port] |= mask
	if err := d.Bus.I2cWrite(d.Addr, GPPU_PAIRED, d.pullup[0], d.pullup[1]); err != nil {
		return err
	}
	return d.Bus.I2cWrite(d.Addr, IODIR_PAIRED, d.iodir[0], d.iodir[1])
}

func setBit(b *byte, mask byte, level stepper.Level) {
	if level {
		*b |= mask
	} else {
		*b &^= mask
	}
}

func (d *Device) DigitalWrite(pin int, level stepper.Level) error {
	port, mask, err := pinMask(pin)
	if err != nil {
		return err
	}
	next := d.olat[port]
	setBit(&next, mask, level)
	if err := d.Bus.I2cWrite(d.Addr, OLAT_A_PAIRED+byte(port), next); err != nil {
		return err
	}
	d.olat[port] = next
	return nil
}

// DigitalWriteAll updates both output latches in one I2C transaction.
func (d *Device) DigitalWriteAll(pins []int, levels []stepper.Level) error {
	if len(pins) != len(levels) {
		return fmt.Errorf("%v pins, but %v levels", len(pins), len(levels))
	}
	next := d.olat
	for i, pin := range pins {
		port, mask, err := pinMask(pin)
		if err != nil {
			return err
		}
		setBit(&next[port], mask, levels[i])
	}
	if err := d.Bus.I2cWrite(d.Addr, OLAT_PAIRED, next[0], next[1]); err != nil {
		return err
	}
	d.olat = next
	return nil
}

func (d *Device) DigitalRead(pin int) (stepper.Level, error) {
	port, mask, err := pinMask(pin)
	if err != nil {
		return stepper.Low, err
	}
	v, err := d.Bus.I2cGet(d.Addr, GPIO_A_PAIRED+byte(port), 1)
	if err == nil && len(v) != 1 {
		err = fmt.Errorf("MCP23017 read len %v (need 1 byte)", len(v))
	}
	if err != nil {
		return stepper.Low, err
	}
	return v[0]&mask != 0, nil
}

// ReadAll returns the levels of all 16 pins, port A in the low byte.
func (d *Device) ReadAll() (uint16, error) {
	v, err := d.Bus.I2cGet(d.Addr, GPIO_PAIRED, 2)
	if err == nil && len(v) != 2 {
		err = fmt.Errorf("MCP23017 read len %v (need 2 byte)", len(v))
	}
	if err != nil {
		return 0, err
	}
	return uint16(v[0]) | uint16(v[1])<<8, nil
}
