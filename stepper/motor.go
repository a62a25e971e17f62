package stepper

import (
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"
)

type Direction int

const (
	Decreasing = Direction(iota)
	Increasing
)

func (d Direction) String() string {
	if d == Increasing {
		return "increasing"
	}
	return "decreasing"
}

type State int

const (
	// Idle: no steps pending, the last pattern is held.
	Idle = State(iota)
	Seeking
	// Stopped: halted by Step(0), Stop() or the stop bound. All coils are off.
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Seeking:
		return "seeking"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Event int

const (
	EventStep = Event(iota)
	EventStop
	EventDutyCycle
	EventMode
	EventCounter
)

func (e Event) String() string {
	switch e {
	case EventStep:
		return "step"
	case EventStop:
		return "stop"
	case EventDutyCycle:
		return "duty"
	case EventMode:
		return "mode"
	case EventCounter:
		return "counter"
	}
	return fmt.Sprintf("Event(%d)", int(e))
}

// Status is a snapshot of the drive state, passed to observers.
type Status struct {
	StepIndex int
	Position  int
	Direction Direction
	State     State
	StepDelay uint32
	Mode      int
	Counter   int
	Sine      bool
}

func (s Status) String() string {
	return fmt.Sprintf("state=%v index=%v position=%v direction=%v delay=%vus mode=%v counter=%v sine=%v",
		s.State, s.StepIndex, s.Position, s.Direction, s.StepDelay, s.Mode, s.Counter, s.Sine)
}

// Observer is called synchronously from the drive loop. It must return quickly.
type Observer func(Event, Status)

type sineMode struct {
	amplitude   float64
	equilibrium float64
	period      float64
	start       uint32
}

// Motor drives one stepper motor. It is not safe for concurrent use,
// Step and Sinewave block until the requested motion is complete.
type Motor struct {
	cfg      Config
	topology Topology
	hw       Hardware
	speed    SpeedController
	duty     DutyCycleModulator
	buttons  *ButtonLatch

	observers []Observer

	stepIndex int
	position  int
	direction Direction
	state     State
	lastStep  uint32
	lastPoll  uint32
	stepDelay uint32
	fixedRpm  int
	sine      *sineMode
}

// New validates the configuration, configures all pins and switches the coils off.
func New(cfg Config, hw Hardware) (*Motor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	topology, _ := cfg.Topology()
	switch {
	case hw.Output == nil:
		return nil, fmt.Errorf("%w: missing digital output", ErrInvalidConfig)
	case hw.Clock == nil:
		return nil, fmt.Errorf("%w: missing clock", ErrInvalidConfig)
	case cfg.SpeedPin != NoPin && hw.Analog == nil:
		return nil, fmt.Errorf("%w: speed pin %v configured without analog input", ErrInvalidConfig, cfg.SpeedPin)
	case cfg.usesButtons() && hw.Input == nil:
		return nil, fmt.Errorf("%w: buttons configured without digital input", ErrInvalidConfig)
	}

	m := &Motor{
		cfg:      cfg.clone(),
		topology: topology,
		hw:       hw,
		duty:     DutyCycleModulator{Percent: cfg.DutyCyclePercent},
		state:    Stopped,
		fixedRpm: cfg.MinVelocity,
	}
	m.speed = m.cfg.speedController()
	m.duty.Disarm()
	m.buttons = NewButtonLatch(m.cfg.SelectButtons, m.cfg.AdvanceButton, m.cfg.MaxCounter, m.cfg.CountingMode)
	if err := m.setupPins(); err != nil {
		return nil, err
	}
	if err := applyPattern(hw.Output, m.cfg.CoilPins, topology.Idle()); err != nil {
		return nil, fmt.Errorf("switching coils off: %w", err)
	}
	m.lastStep = hw.Clock.NowMicros()
	m.lastPoll = m.lastStep
	m.stepDelay, _ = StepDelay(m.cfg.StepsPerRevolution, m.fixedRpm)
	log.Debugf("Created %v stepper motor on pins %v", topology, m.cfg.CoilPins)
	return m, nil
}

func (m *Motor) setupPins() error {
	setup := m.hw.Setup
	if setup == nil {
		return nil
	}
	for _, pin := range m.cfg.CoilPins {
		if err := setup.ConfigureOutput(pin); err != nil {
			return fmt.Errorf("configuring coil pin %v: %w", pin, err)
		}
	}
	for _, button := range m.cfg.SelectButtons {
		if err := setup.ConfigureInputPullup(button.Pin); err != nil {
			return fmt.Errorf("configuring select button pin %v: %w", button.Pin, err)
		}
	}
	if m.cfg.AdvanceButton != NoPin {
		if err := setup.ConfigureInputPullup(m.cfg.AdvanceButton); err != nil {
			return fmt.Errorf("configuring advance button pin %v: %w", m.cfg.AdvanceButton, err)
		}
	}
	return nil
}

func (m *Motor) Config() Config {
	return m.cfg.clone()
}

func (m *Motor) Topology() Topology {
	return m.topology
}

func (m *Motor) StepIndex() int {
	return m.stepIndex
}

// Position counts committed steps modulo StepsPerRevolution.
func (m *Motor) Position() int {
	return m.position
}

func (m *Motor) Direction() Direction {
	return m.direction
}

func (m *Motor) State() State {
	return m.state
}

func (m *Motor) Mode() int {
	return m.buttons.Mode()
}

func (m *Motor) Counter() int {
	return m.buttons.Counter()
}

func (m *Motor) SetCounter(v int) error {
	return m.buttons.SetCounter(v)
}

func (m *Motor) SetDutyCyclePercent(percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("%w: %v", ErrDutyCycleRange, percent)
	}
	m.duty.Percent = percent
	return nil
}

// SetSpeed sets the velocity used when no potentiometer is configured.
// The value is clamped into the configured velocity range.
func (m *Motor) SetSpeed(rpm int) error {
	if rpm <= 0 {
		return fmt.Errorf("%w: %v RPM", ErrInvalidSpeed, rpm)
	}
	if clamped := m.speed.clamp(rpm); clamped != rpm {
		log.Warnf("Speed %v RPM out of range %v..%v, using %v RPM", rpm, m.cfg.MinVelocity, m.cfg.MaxVelocity, clamped)
		rpm = clamped
	}
	if m.cfg.SpeedPin != NoPin {
		log.Debugf("Fixed speed %v RPM is ignored while the potentiometer on pin %v is used", rpm, m.cfg.SpeedPin)
	}
	m.fixedRpm = rpm
	return nil
}

func (m *Motor) Observe(o Observer) {
	m.observers = append(m.observers, o)
}

func (m *Motor) Status() Status {
	return Status{
		StepIndex: m.stepIndex,
		Position:  m.position,
		Direction: m.direction,
		State:     m.state,
		StepDelay: m.stepDelay,
		Mode:      m.buttons.Mode(),
		Counter:   m.buttons.Counter(),
		Sine:      m.sine != nil,
	}
}

func (m *Motor) notify(e Event) {
	if len(m.observers) == 0 {
		return
	}
	status := m.Status()
	for _, o := range m.observers {
		o(e, status)
	}
}

// Stop switches all coils off.
func (m *Motor) Stop() error {
	return m.halt()
}

func (m *Motor) halt() error {
	m.state = Stopped
	m.duty.Disarm()
	err := applyPattern(m.hw.Output, m.cfg.CoilPins, m.topology.Idle())
	m.notify(EventStop)
	return err
}

// Step moves n steps, the sign of n selects the direction. It returns the number of committed steps,
// which is smaller than |n| when the potentiometer falls to the stop bound or an I/O error occurs.
// Step(0) switches the coils off immediately.
func (m *Motor) Step(n int) (int, error) {
	if n == 0 {
		if err := m.halt(); err != nil {
			return 0, err
		}
		return 0, m.pollIdle()
	}
	remaining := n
	m.direction = Increasing
	if n < 0 {
		m.direction = Decreasing
		remaining = -n
	}

	m.state = Seeking
	done := 0
	for done < remaining {
		committed, err := m.iterate()
		if err != nil {
			return done, m.fail(err)
		}
		if m.state == Stopped {
			return done, m.pollIdle()
		}
		if committed {
			done++
		}
	}
	m.state = Idle
	return done, m.pollIdle()
}

func (m *Motor) fail(err error) error {
	if haltErr := m.halt(); haltErr != nil {
		log.Warnf("Failed to switch coils off after error: %v", haltErr)
	}
	return err
}

// iterate runs one pass of the polling loop and returns whether a step was committed.
func (m *Motor) iterate() (bool, error) {
	delay, stop, err := m.nextDelay()
	if err != nil {
		return false, err
	}
	if stop {
		return false, m.halt()
	}
	m.stepDelay = delay

	now := m.hw.Clock.NowMicros()
	elapsed := now - m.lastStep
	committed := false
	if elapsed >= delay {
		m.lastStep = now
		elapsed = 0
		if err := m.commit(); err != nil {
			return false, err
		}
		committed = true
	}

	fired, err := m.duty.MaybeDeenergize(m.hw.Output, m.topology, m.cfg.CoilPins, m.stepIndex, elapsed, delay)
	if err != nil {
		return committed, err
	}
	if fired {
		m.notify(EventDutyCycle)
	}
	return committed, nil
}

// nextDelay returns the current step delay and whether the stop bound was reached.
func (m *Motor) nextDelay() (uint32, bool, error) {
	switch {
	case m.sine != nil:
		elapsed := m.hw.Clock.NowMillis() - m.sine.start
		v := VelocityAt(elapsed, m.sine.amplitude, m.sine.equilibrium, m.sine.period)
		delay, err := StepDelay(m.cfg.StepsPerRevolution, m.speed.clamp(int(math.Round(v))))
		return delay, false, err
	case m.cfg.SpeedPin != NoPin:
		raw, err := m.hw.Analog.AnalogRead(m.cfg.SpeedPin)
		if err != nil {
			return 0, false, fmt.Errorf("reading speed input %v: %w", m.cfg.SpeedPin, err)
		}
		if m.speed.ShouldStop(raw) {
			log.Debugf("Speed sample %v maps to %v RPM, at or below stop bound %v RPM", raw, m.speed.Velocity(raw), m.cfg.StopBound)
			return 0, true, nil
		}
		delay, err := m.speed.ComputeDelay(raw)
		return delay, false, err
	default:
		delay, err := StepDelay(m.cfg.StepsPerRevolution, m.fixedRpm)
		return delay, false, err
	}
}

func (m *Motor) commit() error {
	size := m.topology.Size()
	spr := m.cfg.StepsPerRevolution
	if m.direction == Increasing {
		m.stepIndex = (m.stepIndex + 1) % size
		m.position = (m.position + 1) % spr
	} else {
		m.stepIndex = (m.stepIndex + size - 1) % size
		m.position = (m.position + spr - 1) % spr
	}
	p, err := m.topology.Pattern(m.stepIndex)
	if err != nil {
		return err
	}
	if err := applyPattern(m.hw.Output, m.cfg.CoilPins, p); err != nil {
		return err
	}
	m.duty.Reset()
	m.notify(EventStep)
	return m.pollButtons()
}

func (m *Motor) pollButtons() error {
	if !m.cfg.usesButtons() {
		return nil
	}
	res, err := m.buttons.Poll(m.hw.Input)
	m.lastPoll = m.hw.Clock.NowMicros()
	if err != nil {
		return err
	}
	if res.ModeChanged {
		m.notify(EventMode)
	}
	if res.CounterIncremented {
		m.notify(EventCounter)
	}
	return nil
}

// pollIdle polls the buttons if the idle poll interval has passed since the last poll.
func (m *Motor) pollIdle() error {
	interval := m.cfg.IdlePollInterval
	if interval <= 0 || !m.cfg.usesButtons() {
		return nil
	}
	micros := interval.Microseconds()
	if micros > math.MaxUint32 {
		micros = math.MaxUint32
	}
	if m.hw.Clock.NowMicros()-m.lastPoll < uint32(micros) {
		return nil
	}
	return m.pollButtons()
}

// Sinewave steps in the increasing direction for one period, with the velocity
// following equilibrium + amplitude * sin(2π t / period). The potentiometer and stop bound are ignored.
func (m *Motor) Sinewave(amplitude, equilibrium, periodSeconds float64) error {
	if periodSeconds <= 0 || math.IsNaN(periodSeconds) || math.IsInf(periodSeconds, 0) {
		return fmt.Errorf("%w: sine period %v", ErrInvalidConfig, periodSeconds)
	}
	if math.IsNaN(amplitude+equilibrium) || math.IsInf(amplitude+equilibrium, 0) {
		return fmt.Errorf("%w: sine amplitude %v, equilibrium %v", ErrInvalidConfig, amplitude, equilibrium)
	}
	limit := time.Duration(periodSeconds * float64(time.Second)).Milliseconds()
	if limit > math.MaxUint32 {
		return fmt.Errorf("%w: sine period %v too long", ErrInvalidConfig, periodSeconds)
	}
	m.sine = &sineMode{
		amplitude:   amplitude,
		equilibrium: equilibrium,
		period:      periodSeconds,
		start:       m.hw.Clock.NowMillis(),
	}
	defer func() {
		m.sine = nil
	}()
	for m.hw.Clock.NowMillis()-m.sine.start < uint32(limit) {
		if _, err := m.Step(1); err != nil {
			return err
		}
	}
	return nil
}
