package rig

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/antongulenko/stepdrive/ft260"
	"github.com/antongulenko/stepdrive/sim"
	"github.com/antongulenko/stepdrive/stepper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_parse_pins(t *testing.T) {
	a := assert.New(t)
	pins, err := ParsePins("0, 1,2,3")
	a.NoError(err)
	a.Equal([]int{0, 1, 2, 3}, pins)
	_, err = ParsePins("0,x")
	a.Error(err)

	var l pinList
	a.NoError(l.Set("4,17,27,22,5"))
	a.Equal("4,17,27,22,5", l.String())
}

func Test_parse_select_buttons(t *testing.T) {
	a := assert.New(t)
	buttons, err := ParseSelectButtons("8:0,9:1")
	a.NoError(err)
	a.Equal([]stepper.SelectButton{{Pin: 8, Mode: 0}, {Pin: 9, Mode: 1}}, buttons)
	_, err = ParseSelectButtons("8")
	a.Error(err)

	var l selectList
	a.NoError(l.Set("3:2"))
	a.Equal("3:2", l.String())
}

func writeConfig(t *testing.T, content string) (string, func()) {
	dir, err := ioutil.TempDir("", "rig")
	require.NoError(t, err)
	file := filepath.Join(dir, "motor.conf")
	require.NoError(t, ioutil.WriteFile(file, []byte(content), 0644))
	return file, func() { os.RemoveAll(dir) }
}

func Test_load_config(t *testing.T) {
	a := assert.New(t)
	file, cleanup := writeConfig(t, "[motor]\nspr=400\nstop-rpm=8\nduty=75\nadvance=12\nidle-poll=250ms\n")
	defer cleanup()

	r := DefaultRig
	a.NoError(r.LoadConfig(file, "motor"))
	a.Equal(400, r.Motor.StepsPerRevolution)
	a.Equal(8, r.Motor.StopBound)
	a.Equal(75, r.Motor.DutyCyclePercent)
	a.Equal(12, r.Motor.AdvanceButton)
	a.Equal(250*time.Millisecond, r.Motor.IdlePollInterval)

	// Missing keys keep the defaults
	a.Equal(stepper.DefaultConfig.MaxVelocity, r.Motor.MaxVelocity)
	a.Equal(stepper.DefaultConfig.CoilPins, r.Motor.CoilPins)

	a.Error(r.LoadConfig(file, "other"))
}

func Test_load_invalid_config(t *testing.T) {
	a := assert.New(t)
	file, cleanup := writeConfig(t, "[motor]\nduty=150\n")
	defer cleanup()
	r := DefaultRig
	a.Error(r.LoadConfig(file, "motor"))

	r = DefaultRig
	a.Error(r.LoadConfig(filepath.Join(filepath.Dir(file), "missing.conf"), "motor"))
}

func Test_joystick_conversion(t *testing.T) {
	a := assert.New(t)
	j := DefaultJoystick
	j.init(0, 4095)
	a.Equal(0, j.convert(-1))
	a.Equal(4095, j.convert(1))
	a.Equal(2048, j.convert(0))
	a.Equal(2048, j.convert(0.04), "center interval")
	a.Equal(4095, j.convert(1.5), "clamped")
	j.Invert = true
	a.Equal(0, j.convert(1))

	sample, err := j.AnalogRead(j.Axis)
	a.NoError(err)
	a.Equal(4095, sample, "minimum velocity until the axis moves")
	j.setPosition(-1)
	sample, err = j.AnalogRead(j.Axis)
	a.NoError(err)
	a.Equal(4095, sample)
	_, err = j.AnalogRead(j.Axis + 1)
	a.Error(err)
}

func Test_joystick_buttons(t *testing.T) {
	a := assert.New(t)
	j := DefaultJoystick
	j.init(0, 4095)
	a.Error(j.ConfigureInputPullup(1), "not connected")
	_, err := j.DigitalRead(1)
	a.Error(err)

	state := new(int32)
	j.pressed[1] = state
	level, err := j.DigitalRead(1)
	a.NoError(err)
	a.Equal(stepper.High, level)
	*state = 1
	level, err = j.DigitalRead(1)
	a.NoError(err)
	a.Equal(stepper.Low, level, "pressed buttons read LOW")
}

type fakePort struct {
	lock   sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.buf.Write(b)
}

func (p *fakePort) Close() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.closed = true
	return nil
}

func Test_status_reporter(t *testing.T) {
	a := assert.New(t)
	port := new(fakePort)
	s := NewStatusReporter(port, 10)
	status := stepper.Status{StepIndex: 1, Position: 5, Direction: stepper.Increasing, State: stepper.Seeking, StepDelay: 3000}
	s.Observe(stepper.EventStep, status)
	s.Observe(stepper.EventStop, status)
	a.NoError(s.Close())
	a.NoError(s.Close())
	s.Observe(stepper.EventStep, status)

	a.True(port.closed)
	lines := strings.SplitAfter(port.buf.String(), "\r\n")
	a.Equal([]string{StatusLine(stepper.EventStep, status), StatusLine(stepper.EventStop, status), ""}, lines)
	a.True(strings.HasPrefix(lines[0], stepper.EventStep.String()+" "))
	a.Equal(0, s.Dropped())
}

type blockingPort struct {
	fakePort
	release chan struct{}
}

func (p *blockingPort) Write(b []byte) (int, error) {
	<-p.release
	return p.fakePort.Write(b)
}

func Test_status_reporter_drops_lines(t *testing.T) {
	a := assert.New(t)
	port := &blockingPort{release: make(chan struct{})}
	s := NewStatusReporter(port, 1)
	for i := 0; i < 5; i++ {
		s.Observe(stepper.EventStep, stepper.Status{StepIndex: i})
	}
	// The writer holds at most one line, the queue another one
	a.True(s.Dropped() >= 3)
	close(port.release)
	a.NoError(s.Close())
}

func Test_pin_setup(t *testing.T) {
	a := assert.New(t)
	outputs := sim.NewBoard()
	inputs := sim.NewBoard()
	setup := pinSetup{outputs: outputs, inputs: inputs}
	a.NoError(setup.ConfigureOutput(1))
	a.NoError(setup.ConfigureInputPullup(2))
	a.True(outputs.IsOutput(1))
	a.False(inputs.IsOutput(1))
	a.True(inputs.IsPullup(2))
	a.False(outputs.IsPullup(2))

	a.Error(pinSetup{outputs: outputs}.ConfigureInputPullup(2))
}

func Test_dummy_rig(t *testing.T) {
	a := assert.New(t)
	r := DefaultRig
	r.Backend = BackendDummy
	r.Motor.MaxVelocity = 1000
	r.DummySample = 0
	require.NoError(t, r.Setup())
	defer r.Cleanup()

	m, err := r.NewMotor()
	require.NoError(t, err)
	a.Equal(stepper.FourWire, m.Topology())
	a.True(r.Board().IsOutput(0))
	a.True(r.Board().IsPullup(r.Motor.AdvanceButton))

	steps, err := m.Step(2)
	a.NoError(err)
	a.Equal(2, steps)
	a.Equal("0101", r.Board().Outputs(r.Motor.CoilPins...).String())

	slaves, err := ft260.I2cScan(r.Bus())
	a.NoError(err)
	a.Empty(slaves)
}

func Test_dummy_rig_fixed_speed(t *testing.T) {
	a := assert.New(t)
	r := DefaultRig
	r.Backend = BackendDummy
	r.Analog = AnalogNone
	r.Inputs = InputsNone
	require.NoError(t, r.Setup())
	defer r.Cleanup()
	a.Equal(stepper.NoPin, r.Motor.SpeedPin)
	a.Nil(r.Hardware().Input)
	a.Nil(r.Hardware().Analog)
	_, err := r.NewMotor()
	a.NoError(err)
}

func Test_unknown_backend(t *testing.T) {
	a := assert.New(t)
	r := DefaultRig
	r.Backend = "serial"
	a.Error(r.Setup())
	r = DefaultRig
	_, err := r.NewMotor()
	a.Error(err)
}
