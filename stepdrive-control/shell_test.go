package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/antongulenko/stepdrive/sim"
	"github.com/antongulenko/stepdrive/stepper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMotor(t *testing.T) (*stepper.Motor, *sim.Board) {
	cfg := stepper.DefaultConfig
	cfg.SpeedPin = stepper.NoPin
	board := sim.NewBoard()
	m, err := stepper.New(cfg, stepper.Hardware{
		Output: board,
		Input:  board,
		Clock:  sim.NewManualClock(100),
		Setup:  board,
	})
	require.NoError(t, err)
	return m, board
}

func Test_shell_commands(t *testing.T) {
	a := assert.New(t)
	m, board := testMotor(t)
	var out bytes.Buffer
	in := strings.NewReader("speed 50\nstep 3\n\nduty 60\ncounter 2\nstatus\nstop\nquit\nstep 1\n")
	a.NoError(runShell(m, in, &out))

	a.Equal(3, m.Position())
	a.Equal(2, m.Counter())
	a.Equal(stepper.Stopped, m.State())
	a.Equal("0000", board.Outputs(0, 1, 2, 3).String())
	a.Contains(out.String(), "Committed 3 steps, position 3")
	a.Contains(out.String(), "state=idle index=3 position=3")
}

func Test_shell_errors(t *testing.T) {
	a := assert.New(t)
	m, _ := testMotor(t)
	var out bytes.Buffer
	a.Error(execShell(m, &out, []string{"step"}))
	a.Error(execShell(m, &out, []string{"step", "x"}))
	a.Error(execShell(m, &out, []string{"jump"}))
	a.Error(execShell(m, &out, []string{"speed", "0"}))
	a.Error(execShell(m, &out, []string{"counter", "10"}))
	a.Error(execShell(m, &out, []string{"sine", "1", "2", "0"}))
	a.Equal(errQuit, execShell(m, &out, []string{"exit"}))

	// Errors do not end the shell
	in := strings.NewReader("jump\n'unterminated\nstep -2\n")
	a.NoError(runShell(m, in, &out))
	a.Equal(198, m.Position())
}

func Test_trace_recording(t *testing.T) {
	a := assert.New(t)
	cfg := stepper.DefaultConfig
	board := sim.NewBoard()
	board.SetAnalog(cfg.SpeedPin, 0)
	recorder, err := recordSteps(cfg, board, sim.NewManualClock(10), 4)
	require.NoError(t, err)
	a.Equal("1010", board.Outputs(cfg.CoilPins...).String())
	a.NotEmpty(recorder.Waveform(cfg.CoilPins[0]))

	cfg.CoilPins = []int{1}
	_, err = recordSteps(cfg, board, sim.NewManualClock(10), 4)
	a.Error(err)
}

func Test_command_names(t *testing.T) {
	a := assert.New(t)
	names := commandNames()
	a.Contains(names, "run")
	a.Contains(names, "shell")
	a.Contains(names, "trace")
	a.True(offline["trace"])
}
