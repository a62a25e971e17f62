package rig

import (
	"flag"
	"fmt"

	"github.com/antongulenko/golib"
	"github.com/antongulenko/hid"
	"github.com/antongulenko/stepdrive/ads1115"
	"github.com/antongulenko/stepdrive/ft260"
	"github.com/antongulenko/stepdrive/groveMotorDriver"
	"github.com/antongulenko/stepdrive/hostio"
	"github.com/antongulenko/stepdrive/mcp23017"
	"github.com/antongulenko/stepdrive/pca9685"
	"github.com/antongulenko/stepdrive/sim"
	"github.com/antongulenko/stepdrive/stepper"
	log "github.com/sirupsen/logrus"
)

const (
	BackendFt260 = "ft260"
	BackendSysfs = "sysfs"
	BackendDummy = "dummy"

	OutputsMcp23017 = "mcp23017"
	OutputsPca9685  = "pca9685"
	OutputsGrove    = "grove"
	OutputsGpio     = "gpio" // FT260 GPIO pins

	InputsBoard    = "board" // The output device, if it can read pins
	InputsGpio     = "gpio"
	InputsJoystick = "joystick"
	InputsNone     = "none"

	AnalogAds1115  = "ads1115"
	AnalogJoystick = "joystick"
	AnalogNone     = "none"
)

var DefaultRig = Rig{
	UsbDevice:     "",
	I2cFreq:       uint(400),
	Backend:       BackendFt260,
	Outputs:       OutputsMcp23017,
	Inputs:        InputsBoard,
	Analog:        AnalogAds1115,
	AdcAddr:       uint(ads1115.ADDR_GND),
	DummySample:   2048,
	ConfigSection: "motor",
	StatusBaud:    115200,
	StatusQueue:   100,
	Joystick:      DefaultJoystick,
	Motor:         stepper.DefaultConfig,
}

// Rig assembles the hardware a Motor runs on: the I/O backend, the boards for coils,
// buttons and speed potentiometer, and an optional serial status port.
type Rig struct {
	UsbDevice string
	I2cFreq   uint
	Backend   string
	Outputs   string
	Inputs    string
	Analog    string

	OutputAddr   uint // 0 selects the default address of the output board
	AdcAddr      uint
	PwmFrequency float64
	DummySample  int // Potentiometer sample of the dummy backend

	ConfigFile    string
	ConfigSection string

	StatusPort  string
	StatusBaud  int
	StatusQueue int

	Joystick JoystickInput
	Motor    stepper.Config

	usb    *ft260.Ft260
	board  *sim.Board
	host   *hostio.Board
	status *StatusReporter
	motor  *stepper.Motor
	hw     stepper.Hardware
	setup  pinSetup
}

type outputBoard interface {
	stepper.DigitalOutput
	stepper.PinSetup
}

type inputBoard interface {
	stepper.DigitalInput
	ConfigureInputPullup(pin int) error
}

// pinSetup sends coil pins to the output board and button pins to the input board.
type pinSetup struct {
	outputs stepper.PinSetup
	inputs  inputBoard
}

func (p pinSetup) ConfigureOutput(pin int) error {
	return p.outputs.ConfigureOutput(pin)
}

func (p pinSetup) ConfigureInputPullup(pin int) error {
	if p.inputs == nil {
		return fmt.Errorf("No input board configured for button pin %v", pin)
	}
	return p.inputs.ConfigureInputPullup(pin)
}

func (r *Rig) RegisterFlags() {
	flag.StringVar(&r.UsbDevice, "dev", r.UsbDevice, "Specify a USB path for FT260")
	flag.UintVar(&r.I2cFreq, "freq", r.I2cFreq, "The I2C bus frequency (60 - 3400)")
	flag.StringVar(&r.Backend, "backend", r.Backend, "I/O backend, one of: ft260, sysfs, dummy")
	flag.StringVar(&r.Outputs, "outputs", r.Outputs, "Board driving the coils with the ft260 backend, one of: mcp23017, pca9685, grove, gpio")
	flag.StringVar(&r.Inputs, "inputs", r.Inputs, "Source of the button levels, one of: board, gpio, joystick, none")
	flag.StringVar(&r.Analog, "analog", r.Analog, "Source of the speed potentiometer, one of: ads1115, joystick, none (fixed speed)")
	flag.UintVar(&r.OutputAddr, "output-addr", r.OutputAddr, "I2C address of the output board (0 for the default address)")
	flag.UintVar(&r.AdcAddr, "adc-addr", r.AdcAddr, "I2C address of the ADS1115")
	flag.Float64Var(&r.PwmFrequency, "pwm-freq", r.PwmFrequency, "PWM frequency of the PCA9685 (0 keeps the power-on default)")
	flag.IntVar(&r.DummySample, "dummy-sample", r.DummySample, "Potentiometer sample returned by the dummy backend")
	flag.StringVar(&r.ConfigFile, "config", r.ConfigFile, "Motor configuration file, overrides the motor flags")
	flag.StringVar(&r.ConfigSection, "section", r.ConfigSection, "Section of the motor configuration file")
	flag.StringVar(&r.StatusPort, "status-port", r.StatusPort, "Serial port receiving one line per motor event")
	flag.IntVar(&r.StatusBaud, "status-baud", r.StatusBaud, "Baud rate of the status port")
	r.Joystick.RegisterFlags("js")
	r.registerMotorFlags()
}

func (r *Rig) registerMotorFlags() {
	m := &r.Motor
	flag.Var((*pinList)(&m.CoilPins), "coils", "Comma separated coil pins (2, 4 or 5 pins)")
	flag.IntVar(&m.StepsPerRevolution, "spr", m.StepsPerRevolution, "Steps per revolution")
	flag.IntVar(&m.SpeedPin, "speed-pin", m.SpeedPin, "Analog channel of the speed potentiometer")
	flag.IntVar(&m.SampleMin, "sample-min", m.SampleMin, "Smallest potentiometer sample (maximum velocity)")
	flag.IntVar(&m.SampleMax, "sample-max", m.SampleMax, "Largest potentiometer sample (minimum velocity)")
	flag.IntVar(&m.MinVelocity, "min-rpm", m.MinVelocity, "Minimum velocity in RPM, also the fixed speed without potentiometer")
	flag.IntVar(&m.MaxVelocity, "max-rpm", m.MaxVelocity, "Maximum velocity in RPM")
	flag.IntVar(&m.StopBound, "stop-rpm", m.StopBound, "Seeking stops at or below this velocity")
	flag.IntVar(&m.DutyCyclePercent, "duty", m.DutyCyclePercent, "Percentage of the step period the coils stay energized (four-wire only)")
	flag.Var((*selectList)(&m.SelectButtons), "select", "Comma separated mode select buttons as pin:mode")
	flag.IntVar(&m.AdvanceButton, "advance", m.AdvanceButton, "Counter advance button pin (-1 to disable)")
	flag.IntVar(&m.MaxCounter, "max-counter", m.MaxCounter, "Largest counter value before wrapping to 0")
	flag.IntVar(&m.CountingMode, "counting-mode", m.CountingMode, "Mode entered by the advance button")
	flag.DurationVar(&m.IdlePollInterval, "idle-poll", m.IdlePollInterval, "Button poll interval while not stepping")
}

func (r *Rig) Setup() error {
	if r.ConfigFile != "" {
		if err := r.LoadConfig(r.ConfigFile, r.ConfigSection); err != nil {
			return err
		}
	}
	if r.Analog == AnalogNone {
		r.Motor.SpeedPin = stepper.NoPin
	}
	r.hw.Clock = hostio.MonotonicClock{}

	var outputs outputBoard
	var inputs inputBoard
	switch r.Backend {
	case BackendDummy:
		log.Println("Dummy rig: skipping initialization of USB/I2C peripherals")
		r.board = sim.NewBoard()
		if r.Motor.SpeedPin != stepper.NoPin {
			r.board.SetAnalog(r.Motor.SpeedPin, r.DummySample)
		}
		outputs, inputs = r.board, r.board
		if r.Analog == AnalogAds1115 {
			r.hw.Analog = r.board
		}
	case BackendSysfs:
		r.host = hostio.NewBoard()
		outputs, inputs = r.host, r.host
	case BackendFt260:
		if err := r.setupFt260(); err != nil {
			return err
		}
		var err error
		if outputs, err = r.ft260Outputs(); err != nil {
			return err
		}
		inputs, _ = outputs.(inputBoard)
		if r.Analog == AnalogAds1115 {
			adc := ads1115.NewDevice(r.usb, byte(r.AdcAddr))
			if r.Motor.SpeedPin != stepper.NoPin {
				if err := adc.Init(r.Motor.SpeedPin); err != nil {
					return err
				}
			}
			r.hw.Analog = adc
		}
	default:
		return fmt.Errorf("Unknown backend %v", r.Backend)
	}

	switch r.Analog {
	case AnalogJoystick:
		if err := r.Joystick.Connect(r.Motor.SampleMin, r.Motor.SampleMax); err != nil {
			return err
		}
		r.Motor.SpeedPin = r.Joystick.Axis
		r.hw.Analog = &r.Joystick
	case AnalogAds1115:
		if r.hw.Analog == nil {
			return fmt.Errorf("The ads1115 potentiometer requires the %v or %v backend", BackendFt260, BackendDummy)
		}
	case AnalogNone:
	default:
		return fmt.Errorf("Unknown analog input %v", r.Analog)
	}

	switch r.Inputs {
	case InputsBoard:
		if inputs == nil {
			return fmt.Errorf("Output board %v can not read button pins, use -inputs", r.Outputs)
		}
	case InputsGpio:
		if r.usb == nil {
			return fmt.Errorf("FT260 GPIO inputs require the %v backend", BackendFt260)
		}
		inputs = &ft260.Gpio{Dev: r.usb}
	case InputsJoystick:
		if err := r.Joystick.Connect(r.Motor.SampleMin, r.Motor.SampleMax); err != nil {
			return err
		}
		inputs = &r.Joystick
	case InputsNone:
		inputs = nil
		r.Motor.SelectButtons = nil
		r.Motor.AdvanceButton = stepper.NoPin
	default:
		return fmt.Errorf("Unknown input source %v", r.Inputs)
	}

	r.hw.Output = outputs
	if inputs != nil {
		r.hw.Input = inputs
	}
	r.setup = pinSetup{outputs: outputs, inputs: inputs}
	r.hw.Setup = r.setup

	if r.StatusPort != "" {
		status, err := OpenStatusPort(r.StatusPort, r.StatusBaud, r.StatusQueue)
		if err != nil {
			return err
		}
		r.status = status
	}
	log.Println("Successfully initialized rig peripherals")
	return nil
}

func (r *Rig) setupFt260() error {
	// Prepare Usb HID library, open FT260 device
	if err := hid.Init(); err != nil {
		return err
	}
	usb, err := ft260.OpenPath(r.UsbDevice)
	if err != nil {
		return err
	}
	r.usb = usb
	return r.usb.Configure(uint16(r.I2cFreq))
}

func (r *Rig) outputAddr(def byte) byte {
	if r.OutputAddr == 0 {
		return def
	}
	return byte(r.OutputAddr)
}

func (r *Rig) ft260Outputs() (outputBoard, error) {
	switch r.Outputs {
	case OutputsMcp23017:
		d := mcp23017.NewDevice(r.usb, r.outputAddr(mcp23017.ADDRESS))
		return d, d.Init()
	case OutputsPca9685:
		o := pca9685.NewOutputs(r.usb, r.outputAddr(pca9685.ADDRESS))
		o.Frequency = r.PwmFrequency
		return o, o.Init()
	case OutputsGrove:
		c := groveMotorDriver.NewCoilDriver(r.usb, r.outputAddr(groveMotorDriver.DefaultAddress))
		return c, c.Init()
	case OutputsGpio:
		return &ft260.Gpio{Dev: r.usb}, nil
	default:
		return nil, fmt.Errorf("Unknown output board %v", r.Outputs)
	}
}

// Bus returns the I2C bus of the FT260 backend. Other backends get a bus where no slave answers.
func (r *Rig) Bus() ft260.I2cBus {
	if r.usb == nil {
		return dummyBus{}
	}
	return r.usb
}

// Board returns the in-memory board of the dummy backend, or nil.
func (r *Rig) Board() *sim.Board {
	return r.board
}

func (r *Rig) Hardware() stepper.Hardware {
	return r.hw
}

// NewMotor creates the motor on the prepared hardware. Setup must have succeeded before.
func (r *Rig) NewMotor() (*stepper.Motor, error) {
	if r.hw.Output == nil {
		return nil, fmt.Errorf("Rig is not set up")
	}
	m, err := stepper.New(r.Motor, r.hw)
	if err != nil {
		return nil, err
	}
	if r.status != nil {
		m.Observe(r.status.Observe)
	}
	r.Joystick.Start()
	r.motor = m
	log.Printf("Created %v motor on coil pins %v (%v backend)", m.Topology(), r.Motor.CoilPins, r.Backend)
	return m, nil
}

func (r *Rig) Cleanup() {
	if r.motor != nil {
		golib.Printerr(r.motor.Stop())
	}
	if r.status != nil {
		golib.Printerr(r.status.Close())
	}
	if r.host != nil {
		r.host.Close()
	}
	if r.usb != nil {
		golib.Printerr(r.usb.Close())
		golib.Printerr(hid.Shutdown())
	}
}

type dummyBus struct{}

func (dummyBus) I2cWrite(addr byte, data ...byte) error {
	log.Debugf("Dummy I2C write to %02x: %v", addr, data)
	return ft260.ErrNoSlaveAck
}

func (dummyBus) I2cRead(addr byte, data []byte) error {
	return ft260.ErrNoSlaveAck
}

func (dummyBus) I2cWriteRead(addr byte, out, in []byte) error {
	return ft260.ErrNoSlaveAck
}

func (dummyBus) I2cGet(addr byte, registerAddr byte, size int) ([]byte, error) {
	return nil, ft260.ErrNoSlaveAck
}
