package stepper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_duty_cycle_fires_once(t *testing.T) {
	a := assert.New(t)
	out := new(recordingOutput)
	pins := []int{10, 11, 12, 13}
	d := DutyCycleModulator{Percent: 60}
	a.Equal(uint32(600), d.Threshold(1000))

	for elapsed := uint32(0); elapsed <= 600; elapsed += 50 {
		fired, err := d.MaybeDeenergize(out, FourWire, pins, 0, elapsed, 1000)
		a.NoError(err)
		a.False(fired, "elapsed %v", elapsed)
	}
	fired, err := d.MaybeDeenergize(out, FourWire, pins, 0, 601, 1000)
	a.NoError(err)
	a.True(fired)
	a.True(d.Fired())
	for elapsed := uint32(602); elapsed < 2000; elapsed += 100 {
		fired, err = d.MaybeDeenergize(out, FourWire, pins, 0, elapsed, 1000)
		a.NoError(err)
		a.False(fired, "elapsed %v", elapsed)
	}
	a.Equal([]pinWrite{{10, Low}}, out.writes)

	d.Reset()
	fired, err = d.MaybeDeenergize(out, FourWire, pins, 1, 700, 1000)
	a.NoError(err)
	a.True(fired)
	a.Equal([]pinWrite{{10, Low}, {12, Low}}, out.writes)
}

func Test_duty_cycle_coils(t *testing.T) {
	a := assert.New(t)
	pins := []int{1, 2, 3, 4}
	expected := []int{1, 3, 2, 4}
	for index, pin := range expected {
		out := new(recordingOutput)
		d := DutyCycleModulator{Percent: 50}
		fired, err := d.MaybeDeenergize(out, FourWire, pins, index, 501, 1000)
		a.NoError(err)
		a.True(fired)
		a.Equal([]pinWrite{{pin, Low}}, out.writes, "step index %v", index)

		// The de-energized coil is HIGH in the pattern of this step
		p, _ := FourWire.Pattern(index)
		a.Equal(High, p[pin-1], "step index %v", index)
	}
}

func Test_duty_cycle_other_topologies(t *testing.T) {
	a := assert.New(t)
	out := new(recordingOutput)
	for _, topology := range []Topology{TwoWire, FivePhase} {
		d := DutyCycleModulator{Percent: 10}
		fired, err := d.MaybeDeenergize(out, topology, []int{0, 1, 2, 3, 4}, 0, 900, 1000)
		a.NoError(err)
		a.False(fired)
	}
	d := DutyCycleModulator{Percent: 100}
	fired, _ := d.MaybeDeenergize(out, FourWire, []int{0, 1, 2, 3}, 0, 5000, 1000)
	a.False(fired)
	a.Empty(out.writes)
}

func Test_duty_cycle_disarm(t *testing.T) {
	a := assert.New(t)
	out := new(recordingOutput)
	d := DutyCycleModulator{Percent: 10}
	d.Disarm()
	fired, _ := d.MaybeDeenergize(out, FourWire, []int{0, 1, 2, 3}, 0, 900, 1000)
	a.False(fired)
	d.Reset()
	fired, _ = d.MaybeDeenergize(out, FourWire, []int{0, 1, 2, 3}, 0, 900, 1000)
	a.True(fired)
}
