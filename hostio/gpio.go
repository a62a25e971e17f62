// Package hostio accesses GPIO pins of the host through the Linux sysfs interface
// and provides a monotonic clock.
package hostio

import (
	"fmt"
	"os"
	"time"

	"github.com/antongulenko/stepdrive/stepper"
	"golang.org/x/sys/unix"
)

// BaseDir is the sysfs GPIO directory.
var BaseDir = "/sys/class/gpio"

// VerifyTimeout is the maximum time to wait for exported files to become writable.
// Non-root processes must wait for udev to adjust the file permissions after exporting.
var VerifyTimeout = 2 * time.Second

// Gpio is one exported GPIO pin.
type Gpio struct {
	number int
	value  *os.File
	output bool
	buf    []byte
}

func pinFile(gpio int, file string) string {
	return fmt.Sprintf("%s/gpio%d/%s", BaseDir, gpio, file)
}

// OpenPin exports the GPIO pin and opens its value file. The direction is set to input.
func OpenPin(gpio int) (*Gpio, error) {
	if err := export(gpio); err != nil {
		return nil, err
	}
	g := &Gpio{number: gpio, buf: make([]byte, 1)}
	if err := g.Direction(false); err != nil {
		unexport(gpio)
		return nil, err
	}
	var err error
	g.value, err = os.OpenFile(pinFile(gpio, "value"), os.O_RDWR, 0600)
	if err != nil {
		unexport(gpio)
		return nil, err
	}
	return g, nil
}

func (g *Gpio) Direction(output bool) error {
	s := "in"
	if output {
		s = "out"
	}
	err := writeFile(pinFile(g.number, "direction"), s)
	if err == nil {
		g.output = output
	}
	return err
}

func (g *Gpio) Set(level stepper.Level) error {
	if !g.output {
		return fmt.Errorf("gpio%d: is not output", g.number)
	}
	g.buf[0] = '0'
	if level {
		g.buf[0] = '1'
	}
	_, err := g.value.WriteAt(g.buf, 0)
	return err
}

func (g *Gpio) Get() (stepper.Level, error) {
	if _, err := g.value.ReadAt(g.buf, 0); err != nil {
		return stepper.Low, err
	}
	switch g.buf[0] {
	case '0':
		return stepper.Low, nil
	case '1':
		return stepper.High, nil
	}
	return stepper.Low, fmt.Errorf("gpio%d: unknown value %q", g.number, g.buf)
}

// Close closes and unexports the pin.
func (g *Gpio) Close() error {
	err := g.value.Close()
	if unexportErr := unexport(g.number); err == nil {
		err = unexportErr
	}
	return err
}

func export(gpio int) error {
	// Already exported if the value file is accessible
	val := pinFile(gpio, "value")
	if unix.Access(val, unix.W_OK|unix.R_OK) == nil {
		return nil
	}
	if err := writeFile(BaseDir+"/export", fmt.Sprintf("%d", gpio)); err != nil {
		return err
	}
	return verifyFile(val)
}

func unexport(gpio int) error {
	return writeFile(BaseDir+"/unexport", fmt.Sprintf("%d", gpio))
}

func writeFile(fname, s string) error {
	f, err := os.OpenFile(fname, os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write([]byte(s))
	return err
}

// Wait for file to become writable
func verifyFile(f string) error {
	sl := time.Millisecond
	for tout := time.Duration(0); tout < VerifyTimeout; tout += sl {
		if unix.Access(f, unix.W_OK) == nil {
			return nil
		}
		time.Sleep(sl)
	}
	return fmt.Errorf("%s: not writable", f)
}
