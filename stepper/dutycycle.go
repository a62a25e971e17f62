package stepper

// Coil index forced low for each four-wire step index.
var dutyCycleCoils = [4]int{0, 2, 1, 3}

// DutyCycleModulator de-energizes one coil once a percentage of the step period has elapsed.
// It fires at most once between two calls to Reset.
type DutyCycleModulator struct {
	Percent int
	fired   bool
}

func (d *DutyCycleModulator) Reset() {
	d.fired = false
}

// Disarm suppresses de-energization until the next Reset. Used while all coils are off.
func (d *DutyCycleModulator) Disarm() {
	d.fired = true
}

func (d *DutyCycleModulator) Fired() bool {
	return d.fired
}

func (d *DutyCycleModulator) Threshold(stepDelay uint32) uint32 {
	return uint32(uint64(stepDelay) * uint64(d.Percent) / 100)
}

// MaybeDeenergize returns true if a coil was switched off by this call.
// Topologies other than four-wire are never modulated.
func (d *DutyCycleModulator) MaybeDeenergize(out DigitalOutput, topology Topology, pins []int, stepIndex int, elapsed, stepDelay uint32) (bool, error) {
	if topology != FourWire || d.fired || d.Percent >= 100 {
		return false, nil
	}
	if elapsed <= d.Threshold(stepDelay) {
		return false, nil
	}
	if stepIndex < 0 || stepIndex >= len(dutyCycleCoils) {
		return false, nil
	}
	d.fired = true
	return true, out.DigitalWrite(pins[dutyCycleCoils[stepIndex]], Low)
}
