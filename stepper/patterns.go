package stepper

import (
	"fmt"
	"strings"
)

// Topology is the number of coil drive wires.
type Topology int

const (
	TwoWire   = Topology(2)
	FourWire  = Topology(4)
	FivePhase = Topology(5)
)

// Pattern holds one level per coil pin, in the order of Config.CoilPins.
type Pattern []Level

func pattern(bits string) Pattern {
	res := make(Pattern, len(bits))
	for i, c := range bits {
		res[i] = c == '1'
	}
	return res
}

func patterns(bits ...string) []Pattern {
	res := make([]Pattern, len(bits))
	for i, b := range bits {
		res[i] = pattern(b)
	}
	return res
}

func (p Pattern) String() string {
	var b strings.Builder
	for _, l := range p {
		if l {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

func (p Pattern) HighCount() (res int) {
	for _, l := range p {
		if l {
			res++
		}
	}
	return
}

// Two-wire entries 3 and 4 both switch everything off.
var twoWirePatterns = patterns("01", "11", "10", "00", "00")

var fourWirePatterns = patterns("1010", "0110", "0101", "1001", "0000")

// Neighbouring five-phase entries (including 9 -> 0) differ in a single coil.
var fivePhasePatterns = patterns(
	"01101", "01001", "01011", "01010", "11010",
	"10010", "10110", "10100", "10101", "00101",
	"00000")

func TopologyFor(pinCount int) (Topology, error) {
	switch t := Topology(pinCount); t {
	case TwoWire, FourWire, FivePhase:
		return t, nil
	}
	return 0, fmt.Errorf("%w: %v pins", ErrInvalidTopology, pinCount)
}

func (t Topology) String() string {
	switch t {
	case TwoWire:
		return "two-wire"
	case FourWire:
		return "four-wire"
	case FivePhase:
		return "five-phase"
	}
	return fmt.Sprintf("Topology(%d)", int(t))
}

func (t Topology) table() []Pattern {
	switch t {
	case TwoWire:
		return twoWirePatterns
	case FourWire:
		return fourWirePatterns
	case FivePhase:
		return fivePhasePatterns
	}
	return nil
}

// Size is the number of real steps in the sequence. The step index wraps around at this value.
func (t Topology) Size() int {
	switch t {
	case TwoWire, FourWire:
		return 4
	case FivePhase:
		return 10
	}
	return 0
}

// IdleIndex addresses the all-off entry. It is stored explicitly and must not be computed from Size.
func (t Topology) IdleIndex() int {
	switch t {
	case TwoWire, FourWire:
		return 4
	case FivePhase:
		return 10
	}
	return 0
}

// Pattern returns a copy of the table entry at index. The idle index is a valid argument.
func (t Topology) Pattern(index int) (Pattern, error) {
	table := t.table()
	if table == nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTopology, int(t))
	}
	if index < 0 || index >= len(table) {
		return nil, fmt.Errorf("pattern index %v out of range for %v topology (0..%v)", index, t, len(table)-1)
	}
	return append(Pattern(nil), table[index]...), nil
}

func (t Topology) Idle() Pattern {
	p, _ := t.Pattern(t.IdleIndex())
	return p
}

func applyPattern(out DigitalOutput, pins []int, p Pattern) error {
	if len(pins) != len(p) {
		return fmt.Errorf("pattern %v does not match %v coil pins", p, len(pins))
	}
	if port, ok := out.(PortWriter); ok {
		return port.DigitalWriteAll(pins, p)
	}
	for i, pin := range pins {
		if err := out.DigitalWrite(pin, p[i]); err != nil {
			return err
		}
	}
	return nil
}
