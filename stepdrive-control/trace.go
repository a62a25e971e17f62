package main

import (
	"fmt"

	"github.com/antongulenko/stepdrive/sim"
	"github.com/antongulenko/stepdrive/stepper"
	"github.com/antongulenko/stepdrive/trace"
	log "github.com/sirupsen/logrus"
)

// traceSteps runs the configured motor on a simulated board and renders the coil levels.
func traceSteps() error {
	cfg := r.Motor
	board := sim.NewBoard()
	clock := sim.NewManualClock(10)
	if cfg.SpeedPin != stepper.NoPin {
		board.SetAnalog(cfg.SpeedPin, r.DummySample)
	}
	recorder, err := recordSteps(cfg, board, clock, steps)
	if err != nil {
		return err
	}
	diagram := trace.DefaultDiagram
	diagram.Width = traceWidth
	diagram.Labels = make(map[int]string)
	for i, pin := range cfg.CoilPins {
		diagram.Labels[pin] = fmt.Sprintf("coil %v", i)
	}
	if err := diagram.SavePNG(recorder, cfg.CoilPins, traceFile); err != nil {
		return err
	}
	log.Printf("Wrote timing diagram of %v level changes over %vus to %v", len(recorder.Samples()), recorder.Duration(), traceFile)
	return nil
}

func recordSteps(cfg stepper.Config, board *sim.Board, clock *sim.ManualClock, n int) (*trace.Recorder, error) {
	recorder := trace.NewRecorder(board, clock)
	m, err := stepper.New(cfg, stepper.Hardware{
		Output: recorder,
		Input:  board,
		Analog: board,
		Clock:  clock,
		Setup:  board,
	})
	if err != nil {
		return nil, err
	}
	committed, err := m.Step(n)
	if err != nil {
		return nil, err
	}
	log.Printf("Traced %v of %v steps", committed, n)
	return recorder, nil
}
