package groveMotorDriver

import (
	"fmt"

	"github.com/antongulenko/stepdrive/ft260"
	"github.com/antongulenko/stepdrive/stepper"
	log "github.com/sirupsen/logrus"
)

// The four L298 inputs: IN1, IN2 (bridge A) and IN3, IN4 (bridge B)
const NumCoilPins = 4

// CoilDriver drives a stepper motor through the L298 input bits of the motor driver.
// Both bridges are enabled at full speed, every pattern is one direction command.
type CoilDriver struct {
	Bus       ft260.I2cBus
	Addr      byte
	Frequency byte // PWM_*

	inputs byte
}

var (
	_ stepper.DigitalOutput = new(CoilDriver)
	_ stepper.PortWriter    = new(CoilDriver)
	_ stepper.PinSetup      = new(CoilDriver)
)

func NewCoilDriver(bus ft260.I2cBus, addr byte) *CoilDriver {
	return &CoilDriver{
		Bus:       bus,
		Addr:      addr,
		Frequency: PWM_31372Hz,
	}
}

func (c *CoilDriver) Init() error {
	log.Printf("Initializing Grove motor driver at %02x...", c.Addr)
	c.inputs = 0
	for _, cmd := range [][]byte{
		StopStepper(),
		SetPwmFrequency(c.Frequency),
		SetMotorDirections(DirStop, DirStop),
		SetMotorSpeed(MaxSpeed, MaxSpeed),
	} {
		if err := c.Bus.I2cWrite(c.Addr, cmd...); err != nil {
			return err
		}
	}
	return nil
}

func checkCoilPin(pin int) error {
	if pin < 0 || pin >= NumCoilPins {
		return fmt.Errorf("Grove motor driver: invalid coil pin %v (0-%v)", pin, NumCoilPins-1)
	}
	return nil
}

func (c *CoilDriver) ConfigureOutput(pin int) error {
	return checkCoilPin(pin)
}

func (c *CoilDriver) ConfigureInputPullup(pin int) error {
	return fmt.Errorf("Grove motor driver has no inputs (pin %v)", pin)
}

func (c *CoilDriver) DigitalWrite(pin int, level stepper.Level) error {
	return c.DigitalWriteAll([]int{pin}, []stepper.Level{level})
}

func (c *CoilDriver) DigitalWriteAll(pins []int, levels []stepper.Level) error {
	if len(pins) != len(levels) {
		return fmt.Errorf("%v pins, but %v levels", len(pins), len(levels))
	}
	next := c.inputs
	for i, pin := range pins {
		if err := checkCoilPin(pin); err != nil {
			return err
		}
		if levels[i] {
			next |= 1 << uint(pin)
		} else {
			next &^= 1 << uint(pin)
		}
	}
	if err := c.Bus.I2cWrite(c.Addr, SetMotorDirections(next&0x3, next>>2)...); err != nil {
		return err
	}
	c.inputs = next
	return nil
}
