// Package trace records pin changes with timestamps and renders them as timing diagrams.
package trace

import (
	"sync"

	"github.com/antongulenko/stepdrive/stepper"
)

type Sample struct {
	Time  uint64 // microseconds since the recorder was created
	Pin   int
	Level stepper.Level
}

// Recorder forwards writes to an output and records every level change.
// Batch writes are forwarded as batch writes when the output supports them.
type Recorder struct {
	Out   stepper.DigitalOutput
	Clock stepper.Clock

	lock    sync.Mutex
	last    uint32
	elapsed uint64
	levels  map[int]stepper.Level
	samples []Sample
}

var (
	_ stepper.DigitalOutput = new(Recorder)
	_ stepper.PortWriter    = new(Recorder)
)

func NewRecorder(out stepper.DigitalOutput, clock stepper.Clock) *Recorder {
	now := clock.NowMicros()
	return &Recorder{
		Out:    out,
		Clock:  clock,
		last:   now,
		levels: make(map[int]stepper.Level),
	}
}

// now extends the wrapping 32 bit clock, assuming writes happen at least once per wrap period.
func (r *Recorder) now() uint64 {
	t := r.Clock.NowMicros()
	r.elapsed += uint64(t - r.last)
	r.last = t
	return r.elapsed
}

func (r *Recorder) record(t uint64, pin int, level stepper.Level) {
	if prev, ok := r.levels[pin]; ok && prev == level {
		return
	}
	r.levels[pin] = level
	r.samples = append(r.samples, Sample{Time: t, Pin: pin, Level: level})
}

func (r *Recorder) DigitalWrite(pin int, level stepper.Level) error {
	if err := r.Out.DigitalWrite(pin, level); err != nil {
		return err
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	r.record(r.now(), pin, level)
	return nil
}

func (r *Recorder) DigitalWriteAll(pins []int, levels []stepper.Level) error {
	var err error
	if port, ok := r.Out.(stepper.PortWriter); ok {
		err = port.DigitalWriteAll(pins, levels)
	} else {
		for i, pin := range pins {
			if err = r.Out.DigitalWrite(pin, levels[i]); err != nil {
				break
			}
		}
	}
	if err != nil {
		return err
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	t := r.now()
	for i, pin := range pins {
		r.record(t, pin, levels[i])
	}
	return nil
}

func (r *Recorder) Samples() []Sample {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]Sample(nil), r.samples...)
}

// Duration returns the time of the last recorded sample.
func (r *Recorder) Duration() uint64 {
	r.lock.Lock()
	defer r.lock.Unlock()
	if len(r.samples) == 0 {
		return 0
	}
	return r.samples[len(r.samples)-1].Time
}

// Segment is a time interval in which a pin kept its level. The last segment of a pin has End == 0.
type Segment struct {
	Start uint64
	End   uint64
	Level stepper.Level
}

// Waveform returns the level changes of one pin as consecutive segments.
func (r *Recorder) Waveform(pin int) []Segment {
	r.lock.Lock()
	defer r.lock.Unlock()
	var res []Segment
	for _, s := range r.samples {
		if s.Pin != pin {
			continue
		}
		if len(res) > 0 {
			res[len(res)-1].End = s.Time
		}
		res = append(res, Segment{Start: s.Time, Level: s.Level})
	}
	return res
}
