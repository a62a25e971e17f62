package stepper_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/antongulenko/stepdrive/sim"
	"github.com/antongulenko/stepdrive/stepper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const advancePin = 10

func testConfig() stepper.Config {
	cfg := stepper.DefaultConfig
	cfg.CoilPins = []int{0, 1, 2, 3}
	cfg.SelectButtons = []stepper.SelectButton{{Pin: 8, Mode: 0}, {Pin: 9, Mode: 1}}
	return cfg
}

func newMotor(t *testing.T, cfg stepper.Config) (*stepper.Motor, *sim.Board, *sim.ManualClock) {
	board := sim.NewBoard()
	clock := sim.NewManualClock(10)
	m, err := stepper.New(cfg, stepper.Hardware{
		Output: board,
		Input:  board,
		Analog: board,
		Clock:  clock,
		Setup:  board,
	})
	require.NoError(t, err)
	return m, board, clock
}

func Test_new_configures_pins(t *testing.T) {
	a := assert.New(t)
	m, board, _ := newMotor(t, testConfig())
	for _, pin := range []int{0, 1, 2, 3} {
		a.True(board.IsOutput(pin), "coil pin %v", pin)
	}
	for _, pin := range []int{8, 9, advancePin} {
		a.True(board.IsPullup(pin), "button pin %v", pin)
	}
	a.Equal("0000", board.Outputs(0, 1, 2, 3).String())
	a.Equal(stepper.Stopped, m.State())
	a.Equal(0, m.StepIndex())
	a.Equal(stepper.FourWire, m.Topology())
}

func Test_invalid_topology_before_setup(t *testing.T) {
	a := assert.New(t)
	board := sim.NewBoard()
	cfg := testConfig()
	cfg.CoilPins = []int{0, 1, 2}
	_, err := stepper.New(cfg, stepper.Hardware{Output: board, Input: board, Analog: board, Clock: sim.NewManualClock(1), Setup: board})
	a.True(errors.Is(err, stepper.ErrInvalidTopology))
	a.False(board.IsOutput(0))
	a.Equal(0, board.Writes())

	cfg.CoilPins = nil
	_, err = stepper.New(cfg, stepper.Hardware{Output: board, Clock: sim.NewManualClock(1)})
	a.True(errors.Is(err, stepper.ErrInvalidTopology))
}

func Test_invalid_config(t *testing.T) {
	a := assert.New(t)
	board := sim.NewBoard()
	clock := sim.NewManualClock(1)
	hw := stepper.Hardware{Output: board, Input: board, Analog: board, Clock: clock}
	check := func(expected error, modify func(cfg *stepper.Config), hw stepper.Hardware) {
		cfg := testConfig()
		modify(&cfg)
		_, err := stepper.New(cfg, hw)
		a.True(errors.Is(err, expected), "expected %v, got %v", expected, err)
	}
	check(stepper.ErrInvalidSpeed, func(cfg *stepper.Config) { cfg.MinVelocity = 0 }, hw)
	check(stepper.ErrInvalidConfig, func(cfg *stepper.Config) { cfg.MaxVelocity = 5 }, hw)
	check(stepper.ErrInvalidConfig, func(cfg *stepper.Config) { cfg.AdvanceButton = 2 }, hw)
	check(stepper.ErrInvalidConfig, func(cfg *stepper.Config) { cfg.StepsPerRevolution = 0 }, hw)
	check(stepper.ErrInvalidConfig, func(cfg *stepper.Config) { cfg.SampleMax = cfg.SampleMin }, hw)
	check(stepper.ErrDutyCycleRange, func(cfg *stepper.Config) { cfg.DutyCyclePercent = 150 }, hw)
	check(stepper.ErrInvalidConfig, func(cfg *stepper.Config) {}, stepper.Hardware{Output: board, Input: board, Clock: clock})
	check(stepper.ErrInvalidConfig, func(cfg *stepper.Config) {}, stepper.Hardware{Output: board, Analog: board, Clock: clock})
	check(stepper.ErrInvalidConfig, func(cfg *stepper.Config) {}, stepper.Hardware{Output: board, Input: board, Analog: board})
}

func Test_step_applies_patterns(t *testing.T) {
	a := assert.New(t)
	m, board, _ := newMotor(t, testConfig())
	expected := []string{"0110", "0101", "1001", "1010", "0110"}
	for i, e := range expected {
		done, err := m.Step(1)
		a.NoError(err)
		a.Equal(1, done)
		a.Equal((i+1)%4, m.StepIndex())
		a.Equal(e, board.Outputs(0, 1, 2, 3).String(), "step %v", i)
		a.Equal(stepper.Idle, m.State())
	}
	a.Equal(5, m.Position())
	a.Equal(5, board.Batches()-1, "one batch per step after the initial idle pattern")
}

func Test_step_round_trip(t *testing.T) {
	a := assert.New(t)
	for _, coils := range [][]int{{0, 1}, {0, 1, 2, 3}, {0, 1, 2, 3, 4}} {
		cfg := testConfig()
		cfg.CoilPins = coils
		m, _, _ := newMotor(t, cfg)
		for _, n := range []int{1, 3, 4, 7, 10, 13, -2, -9} {
			start := m.StepIndex()
			startPos := m.Position()
			done, err := m.Step(n)
			a.NoError(err)
			a.Equal(int(math.Abs(float64(n))), done)
			done, err = m.Step(-n)
			a.NoError(err)
			a.Equal(int(math.Abs(float64(n))), done)
			a.Equal(start, m.StepIndex(), "%v coils, n=%v", len(coils), n)
			a.Equal(startPos, m.Position(), "%v coils, n=%v", len(coils), n)
		}
	}
}

func Test_step_wraparound(t *testing.T) {
	a := assert.New(t)
	m, board, _ := newMotor(t, testConfig())
	_, err := m.Step(-1)
	a.NoError(err)
	a.Equal(3, m.StepIndex())
	a.Equal(stepper.Decreasing, m.Direction())
	a.Equal(199, m.Position())
	a.Equal("1001", board.Outputs(0, 1, 2, 3).String())
	_, err = m.Step(1)
	a.NoError(err)
	a.Equal(0, m.StepIndex())
	a.Equal(0, m.Position())
	a.Equal(stepper.Increasing, m.Direction())

	cfg := testConfig()
	cfg.CoilPins = []int{0, 1, 2, 3, 4}
	m, board, _ = newMotor(t, cfg)
	_, err = m.Step(-1)
	a.NoError(err)
	a.Equal(9, m.StepIndex())
	a.Equal("00101", board.Outputs(0, 1, 2, 3, 4).String())
	_, err = m.Step(1)
	a.NoError(err)
	a.Equal(0, m.StepIndex())
	a.Equal("01101", board.Outputs(0, 1, 2, 3, 4).String())
	_, err = m.Step(10)
	a.NoError(err)
	a.Equal(0, m.StepIndex())
	a.Equal(10, m.Position())
}

func Test_step_zero_stops(t *testing.T) {
	a := assert.New(t)
	m, board, _ := newMotor(t, testConfig())
	_, err := m.Step(-2)
	a.NoError(err)
	a.NotEqual("0000", board.Outputs(0, 1, 2, 3).String())

	done, err := m.Step(0)
	a.NoError(err)
	a.Equal(0, done)
	a.Equal(stepper.Stopped, m.State())
	a.Equal(stepper.Decreasing, m.Direction(), "direction unchanged")
	a.Equal(2, m.StepIndex())
	a.Equal("0000", board.Outputs(0, 1, 2, 3).String())

	// The next request starts fresh
	done, err = m.Step(1)
	a.NoError(err)
	a.Equal(1, done)
	a.Equal(stepper.Idle, m.State())
	a.Equal("1001", board.Outputs(0, 1, 2, 3).String())
}

func Test_stop_bound(t *testing.T) {
	a := assert.New(t)
	m, board, _ := newMotor(t, testConfig())
	board.SetAnalog(0, 4004) // 12 RPM, bound 15 RPM
	done, err := m.Step(10)
	a.NoError(err)
	a.Equal(0, done)
	a.Equal(stepper.Stopped, m.State())
	a.Equal("0000", board.Outputs(0, 1, 2, 3).String())
	a.Equal(0, m.StepIndex())
}

func Test_stop_bound_while_seeking(t *testing.T) {
	a := assert.New(t)
	m, board, clock := newMotor(t, testConfig())
	clock.OnRead = func(micros uint64) {
		if micros >= 10000 {
			board.SetAnalog(0, 4095)
		}
	}
	// 100 RPM at 200 steps per revolution: 3000us per step
	done, err := m.Step(10)
	a.NoError(err)
	a.Equal(3, done)
	a.Equal(stepper.Stopped, m.State())
	a.Equal(3, m.StepIndex())
	a.Equal("0000", board.Outputs(0, 1, 2, 3).String())
}

func Test_step_timing(t *testing.T) {
	a := assert.New(t)
	m, board, clock := newMotor(t, testConfig())
	board.SetAnalog(0, 2048) // 55 RPM
	var times []uint64
	m.Observe(func(e stepper.Event, s stepper.Status) {
		if e == stepper.EventStep {
			times = append(times, clock.Micros())
			a.Equal(uint32(60000000/(200*55)), s.StepDelay)
		}
	})
	_, err := m.Step(5)
	a.NoError(err)
	a.Len(times, 5)
	for i := 1; i < len(times); i++ {
		a.True(times[i]-times[i-1] >= 5454, "step %v after %vus", i, times[i]-times[i-1])
	}
}

func Test_clock_wraparound(t *testing.T) {
	a := assert.New(t)
	board := sim.NewBoard()
	clock := sim.NewManualClock(10)
	clock.Set(math.MaxUint32 - 4000)
	m, err := stepper.New(testConfig(), stepper.Hardware{Output: board, Input: board, Analog: board, Clock: clock})
	require.NoError(t, err)
	done, err := m.Step(4)
	a.NoError(err)
	a.Equal(4, done)
	a.True(clock.Micros() > math.MaxUint32)
	a.True(clock.Micros() < math.MaxUint32+15000, "steps must not wait for a full clock cycle")
}

func Test_duty_cycle_in_drive_loop(t *testing.T) {
	a := assert.New(t)
	cfg := testConfig()
	cfg.DutyCyclePercent = 60
	m, board, _ := newMotor(t, cfg)
	var events []stepper.Event
	var dutyPatterns []string
	m.Observe(func(e stepper.Event, s stepper.Status) {
		events = append(events, e)
		if e == stepper.EventDutyCycle {
			dutyPatterns = append(dutyPatterns, board.Outputs(0, 1, 2, 3).String())
		}
	})
	_, err := m.Step(3)
	a.NoError(err)
	a.Equal([]stepper.Event{
		stepper.EventStep, stepper.EventDutyCycle,
		stepper.EventStep, stepper.EventDutyCycle,
		stepper.EventStep,
	}, events)
	// Index 1 (0110) drops the third coil, index 2 (0101) the second
	a.Equal([]string{"0100", "0001"}, dutyPatterns)
}

func Test_duty_cycle_percent(t *testing.T) {
	a := assert.New(t)
	m, _, _ := newMotor(t, testConfig())
	a.NoError(m.SetDutyCyclePercent(0))
	a.NoError(m.SetDutyCyclePercent(100))
	a.True(errors.Is(m.SetDutyCyclePercent(101), stepper.ErrDutyCycleRange))
	a.True(errors.Is(m.SetDutyCyclePercent(-1), stepper.ErrDutyCycleRange))
}

func Test_buttons_polled_per_step(t *testing.T) {
	a := assert.New(t)
	m, board, _ := newMotor(t, testConfig())
	var events []stepper.Event
	m.Observe(func(e stepper.Event, s stepper.Status) {
		if e != stepper.EventStep {
			events = append(events, e)
		}
	})
	step := func() {
		_, err := m.Step(1)
		a.NoError(err)
	}

	step()
	board.SetInput(advancePin, stepper.Low)
	step()
	a.Equal(1, m.Counter())
	a.Equal(2, m.Mode())
	step()
	a.Equal(1, m.Counter(), "button held")
	board.ReleaseInput(advancePin)
	step()
	board.SetInput(advancePin, stepper.Low)
	step()
	a.Equal(2, m.Counter())
	a.Equal([]stepper.Event{stepper.EventMode, stepper.EventCounter, stepper.EventCounter}, events)

	board.SetInput(9, stepper.Low)
	step()
	a.Equal(1, m.Mode())
	a.Equal(0, m.Counter())
	board.ReleaseInput(9)

	a.NoError(m.SetCounter(3))
	a.True(errors.Is(m.SetCounter(4), stepper.ErrCounterRange))
	a.Equal(3, m.Counter())
}

func Test_idle_button_poll(t *testing.T) {
	a := assert.New(t)
	cfg := testConfig()
	cfg.IdlePollInterval = time.Millisecond
	m, board, clock := newMotor(t, cfg)
	_, err := m.Step(1)
	a.NoError(err)

	board.SetInput(advancePin, stepper.Low)
	_, err = m.Step(0)
	a.NoError(err)
	a.Equal(0, m.Counter(), "polled too recently")

	clock.Advance(2 * time.Millisecond)
	_, err = m.Step(0)
	a.NoError(err)
	a.Equal(1, m.Counter())
	a.Equal(2, m.Mode())
}

func Test_sinewave(t *testing.T) {
	a := assert.New(t)
	m, board, clock := newMotor(t, testConfig())
	// The potentiometer is at the stop bound, but ignored in sine mode
	board.SetAnalog(0, 4095)
	sine := true
	m.Observe(func(e stepper.Event, s stepper.Status) {
		sine = sine && s.Sine
	})
	start := clock.NowMillis()
	a.NoError(m.Sinewave(5, 20, 0.1))
	a.True(clock.NowMillis()-start >= 100)
	a.True(sine)
	a.False(m.Status().Sine)
	a.Equal(stepper.Increasing, m.Direction())
	a.True(m.Position() >= 4 && m.Position() <= 8, "%v steps", m.Position())

	a.Error(m.Sinewave(5, 20, 0))
	a.Error(m.Sinewave(5, 20, -1))
	a.Error(m.Sinewave(math.NaN(), 20, 1))
}

func Test_fixed_speed(t *testing.T) {
	a := assert.New(t)
	board := sim.NewBoard()
	cfg := testConfig()
	cfg.SpeedPin = stepper.NoPin
	m, err := stepper.New(cfg, stepper.Hardware{Output: board, Input: board, Clock: sim.NewManualClock(10)})
	require.NoError(t, err)

	a.True(errors.Is(m.SetSpeed(0), stepper.ErrInvalidSpeed))
	a.NoError(m.SetSpeed(1000))
	done, err := m.Step(4)
	a.NoError(err)
	a.Equal(4, done)
	a.Equal(uint32(3000), m.Status().StepDelay, "clamped to 100 RPM")

	// Below the stop bound is fine without a potentiometer
	a.NoError(m.SetSpeed(12))
	done, err = m.Step(2)
	a.NoError(err)
	a.Equal(2, done)
	a.Equal(uint32(25000), m.Status().StepDelay)
}

func Test_io_errors(t *testing.T) {
	a := assert.New(t)
	m, board, _ := newMotor(t, testConfig())
	board.FailPin = 3
	done, err := m.Step(5)
	a.Error(err)
	a.Equal(0, done)
	a.Equal(stepper.Stopped, m.State())

	board.FailPin = stepper.NoPin
	done, err = m.Step(1)
	a.NoError(err)
	a.Equal(1, done)

	board.FailPin = 0
	_, err = m.Step(1)
	a.Error(err, "analog read of the speed pin fails")
}

func Test_pin_by_pin_output(t *testing.T) {
	a := assert.New(t)
	board := sim.NewBoard()
	m, err := stepper.New(testConfig(), stepper.Hardware{
		Output: sim.PinOnly{Out: board},
		Input:  board,
		Analog: board,
		Clock:  sim.NewManualClock(10),
	})
	require.NoError(t, err)
	_, err = m.Step(2)
	a.NoError(err)
	a.Equal(0, board.Batches())
	a.Equal(12, board.Writes())
	a.Equal("0101", board.Outputs(0, 1, 2, 3).String())
}
