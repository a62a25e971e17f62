package stepper

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type pinWrite struct {
	pin   int
	level Level
}

type recordingOutput struct {
	writes []pinWrite
}

func (r *recordingOutput) DigitalWrite(pin int, level Level) error {
	r.writes = append(r.writes, pinWrite{pin, level})
	return nil
}

type batchOutput struct {
	recordingOutput
	batches int
}

func (b *batchOutput) DigitalWriteAll(pins []int, levels []Level) error {
	b.batches++
	for i, pin := range pins {
		b.recordingOutput.DigitalWrite(pin, levels[i])
	}
	return nil
}

func Test_idle_patterns(t *testing.T) {
	a := assert.New(t)
	for _, topology := range []Topology{TwoWire, FourWire, FivePhase} {
		idle := topology.Idle()
		a.Len(idle, int(topology), "%v", topology)
		a.Equal(0, idle.HighCount(), "%v idle pattern %v", topology, idle)
	}
	a.Equal(4, TwoWire.IdleIndex())
	a.Equal(4, FourWire.IdleIndex())
	a.Equal(10, FivePhase.IdleIndex())

	// Two-wire has a second all-off entry before the idle index
	p, err := TwoWire.Pattern(3)
	a.NoError(err)
	a.Equal("00", p.String())
}

func Test_four_wire_sequence(t *testing.T) {
	a := assert.New(t)
	expected := []string{"1010", "0110", "0101", "1001"}
	for i, e := range expected {
		p, err := FourWire.Pattern(i)
		a.NoError(err)
		a.Equal(e, p.String())
		a.Equal(2, p.HighCount())
	}
}

func Test_five_phase_adjacency(t *testing.T) {
	a := assert.New(t)
	size := FivePhase.Size()
	a.Equal(10, size)
	for i := 0; i < size; i++ {
		cur, err := FivePhase.Pattern(i)
		a.NoError(err)
		next, err := FivePhase.Pattern((i + 1) % size)
		a.NoError(err)
		diff := 0
		for pin := range cur {
			if cur[pin] != next[pin] {
				diff++
			}
		}
		a.Equal(1, diff, "entries %v (%v) and %v (%v)", i, cur, (i+1)%size, next)

		// The single-coil transitions alternate between two and three energized coils
		a.Contains([]int{2, 3}, cur.HighCount(), "entry %v: %v", i, cur)
		a.NotEqual(cur.HighCount(), next.HighCount())
	}
}

func Test_pattern_range(t *testing.T) {
	a := assert.New(t)
	_, err := FourWire.Pattern(5)
	a.Error(err)
	_, err = FourWire.Pattern(-1)
	a.Error(err)
	_, err = Topology(3).Pattern(0)
	a.True(errors.Is(err, ErrInvalidTopology))

	// Returned patterns are copies
	p, _ := FourWire.Pattern(0)
	p[0] = Low
	p2, _ := FourWire.Pattern(0)
	a.Equal("1010", p2.String())
}

func Test_topology_for(t *testing.T) {
	a := assert.New(t)
	for _, pins := range []int{2, 4, 5} {
		topology, err := TopologyFor(pins)
		a.NoError(err)
		a.Equal(pins, int(topology))
	}
	for _, pins := range []int{0, 1, 3, 6, 8} {
		_, err := TopologyFor(pins)
		a.True(errors.Is(err, ErrInvalidTopology), "%v pins", pins)
	}
}

func Test_apply_pattern(t *testing.T) {
	a := assert.New(t)
	pins := []int{7, 3, 5, 1}

	single := new(recordingOutput)
	a.NoError(applyPattern(single, pins, pattern("0110")))
	a.Equal([]pinWrite{{7, Low}, {3, High}, {5, High}, {1, Low}}, single.writes)

	batch := new(batchOutput)
	a.NoError(applyPattern(batch, pins, pattern("1001")))
	a.Equal(1, batch.batches)
	a.Equal([]pinWrite{{7, High}, {3, Low}, {5, Low}, {1, High}}, batch.writes)

	a.Error(applyPattern(single, pins, pattern("01")))
}
