package stepper

import "fmt"

type PollResult struct {
	ModeChanged        bool
	CounterIncremented bool
}

// ButtonLevels are the sampled levels of all configured buttons.
// Select is ordered like Config.SelectButtons.
type ButtonLevels struct {
	Select  []Level
	Advance Level
}

// ButtonLatch turns button levels into mode and counter changes.
// Select buttons are level sensitive, the advance button reacts to HIGH to LOW edges.
type ButtonLatch struct {
	selects      []SelectButton
	advance      int
	maxCounter   int
	countingMode int

	mode        int
	counter     int
	prevAdvance Level
	currAdvance Level
}

func NewButtonLatch(selects []SelectButton, advance, maxCounter, countingMode int) *ButtonLatch {
	return &ButtonLatch{
		selects:      append([]SelectButton(nil), selects...),
		advance:      advance,
		maxCounter:   maxCounter,
		countingMode: countingMode,
		prevAdvance:  Low,
		currAdvance:  Low,
	}
}

func (b *ButtonLatch) Mode() int {
	return b.mode
}

func (b *ButtonLatch) Counter() int {
	return b.counter
}

func (b *ButtonLatch) SetCounter(v int) error {
	if v < 0 || v > b.maxCounter {
		return fmt.Errorf("%w: %v not in 0..%v", ErrCounterRange, v, b.maxCounter)
	}
	b.counter = v
	return nil
}

// Read samples all configured buttons without changing the latch.
func (b *ButtonLatch) Read(in DigitalInput) (ButtonLevels, error) {
	var levels ButtonLevels
	if len(b.selects) > 0 {
		levels.Select = make([]Level, len(b.selects))
	}
	for i, button := range b.selects {
		l, err := in.DigitalRead(button.Pin)
		if err != nil {
			return levels, fmt.Errorf("reading select button on pin %v: %w", button.Pin, err)
		}
		levels.Select[i] = l
	}
	levels.Advance = High
	if b.advance != NoPin {
		l, err := in.DigitalRead(b.advance)
		if err != nil {
			return levels, fmt.Errorf("reading advance button on pin %v: %w", b.advance, err)
		}
		levels.Advance = l
	}
	return levels, nil
}

// Poll reads the buttons and latches their levels.
func (b *ButtonLatch) Poll(in DigitalInput) (PollResult, error) {
	levels, err := b.Read(in)
	if err != nil {
		return PollResult{}, err
	}
	return b.Latch(levels), nil
}

// Latch applies one set of sampled levels. The advance level is shifted in first,
// then held select buttons apply, then an advance edge applies.
func (b *ButtonLatch) Latch(levels ButtonLevels) (res PollResult) {
	if b.advance != NoPin {
		b.prevAdvance, b.currAdvance = b.currAdvance, levels.Advance
	}
	for i, button := range b.selects {
		if i < len(levels.Select) && levels.Select[i] == Low {
			if b.mode != button.Mode {
				res.ModeChanged = true
			}
			b.mode = button.Mode
			b.counter = 0
		}
	}
	if b.advance != NoPin && b.prevAdvance == High && b.currAdvance == Low {
		if b.mode != b.countingMode {
			res.ModeChanged = true
		}
		b.mode = b.countingMode
		b.counter++
		if b.counter > b.maxCounter {
			b.counter = 0
		}
		res.CounterIncremented = true
	}
	return
}
