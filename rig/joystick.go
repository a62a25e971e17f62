package rig

import (
	"flag"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/antongulenko/stepdrive/stepper"
	log "github.com/sirupsen/logrus"
	"github.com/splace/joysticks"
)

var DefaultJoystick = JoystickInput{
	Index:    1,
	Axis:     1,
	UseY:     true,
	ZeroFrom: -0.05,
	ZeroTo:   0.05,
}

// JoystickInput replaces the potentiometer and the buttons with a joystick.
// The axis position is converted to a raw sample, pressed buttons read LOW like pull-up buttons.
type JoystickInput struct {
	Index    int
	Axis     int
	UseY     bool
	Invert   bool
	ZeroFrom float64
	ZeroTo   float64

	sampleMin int
	sampleMax int
	sample    int64
	pressed   map[int]*int32
	js        *joysticks.HID
	startOnce sync.Once
}

var (
	_ stepper.AnalogInput  = new(JoystickInput)
	_ stepper.DigitalInput = new(JoystickInput)
)

func (j *JoystickInput) RegisterFlags(prefix string) {
	flag.IntVar(&j.Index, prefix, j.Index, "Joystick device index")
	flag.IntVar(&j.Axis, prefix+"Axis", j.Axis, "Joystick axis replacing the speed potentiometer")
	flag.BoolVar(&j.UseY, prefix+"Y", j.UseY, "Use Y instead of X axis of the speed axis")
	flag.BoolVar(&j.Invert, prefix+"Invert", j.Invert, "Invert the speed axis")
	flag.Float64Var(&j.ZeroFrom, prefix+"ZeroFrom", j.ZeroFrom, "Start of the center interval of the speed axis")
	flag.Float64Var(&j.ZeroTo, prefix+"ZeroTo", j.ZeroTo, "End of the center interval of the speed axis")
}

func (j *JoystickInput) init(sampleMin, sampleMax int) {
	j.sampleMin = sampleMin
	j.sampleMax = sampleMax
	// Until the axis moves, the sample maps to the minimum velocity
	atomic.StoreInt64(&j.sample, int64(sampleMax))
	if j.pressed == nil {
		j.pressed = make(map[int]*int32)
	}
}

// Connect opens the joystick device. Samples are scaled to [sampleMin, sampleMax].
func (j *JoystickInput) Connect(sampleMin, sampleMax int) error {
	if j.js != nil {
		return nil
	}
	js := joysticks.Connect(j.Index)
	if js == nil {
		return fmt.Errorf("Failed to open joystick with index %v", j.Index)
	}
	log.Printf("Opened joystick device index %v (%v buttons, %v axes, %v events)",
		j.Index, len(js.Buttons), len(js.HatAxes), len(js.Events))
	if !js.HatExists(uint8(j.Axis)) {
		return fmt.Errorf("Joystick axis (%v) does not exist on device %v", j.Axis, j.Index)
	}
	j.init(sampleMin, sampleMax)
	j.js = js

	moved := js.OnMove(uint8(j.Axis))
	go func() {
		for event := range moved {
			coords := event.(joysticks.CoordsEvent)
			val := coords.X
			if j.UseY {
				val = coords.Y
			}
			j.setPosition(val)
		}
	}()
	return nil
}

// Start delivers joystick events. Buttons must be configured before.
func (j *JoystickInput) Start() {
	if j.js == nil {
		return
	}
	j.startOnce.Do(func() {
		go j.js.ParcelOutEvents()
	})
}

func (j *JoystickInput) setPosition(val float32) {
	atomic.StoreInt64(&j.sample, int64(j.convert(val)))
}

// convert maps an axis position in [-1, 1] to a sample. The center interval maps to the middle sample.
func (j *JoystickInput) convert(val float32) int {
	if j.Invert {
		val = -val
	}
	if float64(val) >= j.ZeroFrom && float64(val) <= j.ZeroTo {
		val = 0
	}
	if val < -1 {
		val = -1
	} else if val > 1 {
		val = 1
	}
	span := float64(j.sampleMax - j.sampleMin)
	return j.sampleMin + int(math.Round((float64(val)+1)/2*span))
}

func (j *JoystickInput) AnalogRead(pin int) (int, error) {
	if pin != j.Axis {
		return 0, fmt.Errorf("Joystick axis %v is not connected (speed axis is %v)", pin, j.Axis)
	}
	return int(atomic.LoadInt64(&j.sample)), nil
}

// ConfigureInputPullup subscribes to a joystick button.
func (j *JoystickInput) ConfigureInputPullup(pin int) error {
	if j.js == nil {
		return fmt.Errorf("Joystick is not connected")
	}
	button := uint8(pin)
	if !j.js.ButtonExists(button) {
		return fmt.Errorf("Button %v does not exist on joystick %v", pin, j.Index)
	}
	state := new(int32)
	j.pressed[pin] = state
	closed := j.js.OnClose(button)
	opened := j.js.OnOpen(button)
	go func() {
		for {
			select {
			case <-closed:
				atomic.StoreInt32(state, 1)
			case <-opened:
				atomic.StoreInt32(state, 0)
			}
		}
	}()
	return nil
}

func (j *JoystickInput) ConfigureOutput(pin int) error {
	return fmt.Errorf("Joystick button %v can not be used as output", pin)
}

func (j *JoystickInput) DigitalRead(pin int) (stepper.Level, error) {
	state, ok := j.pressed[pin]
	if !ok {
		return stepper.High, fmt.Errorf("Joystick button %v is not configured", pin)
	}
	return stepper.Level(atomic.LoadInt32(state) == 0), nil
}
