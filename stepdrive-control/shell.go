package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/antongulenko/stepdrive/stepper"
	"github.com/google/shlex"
	log "github.com/sirupsen/logrus"
)

var errQuit = errors.New("quit")

const shellHelp = `Commands:
  step N          Step N times, negative values step backwards
  sine A E P      One sine wave with amplitude A, equilibrium E (RPM) and period P (seconds)
  speed RPM       Fixed speed, used without potentiometer
  duty P          Duty cycle in percent
  counter N       Set the counter
  status          Print the motor status
  stop            Switch the coils off
  quit            Exit`

func shell() error {
	if err := setupMotor(); err != nil {
		return err
	}
	fmt.Println(shellHelp)
	return runShell(motor, os.Stdin, os.Stdout)
}

func runShell(m *stepper.Motor, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		args, err := shlex.Split(scanner.Text())
		if err != nil {
			fmt.Fprintln(out, "Error:", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		err = execShell(m, out, args)
		if err == errQuit {
			return nil
		} else if err != nil {
			log.Errorf("%v: %v", args[0], err)
			fmt.Fprintln(out, "Error:", err)
		}
	}
}

func execShell(m *stepper.Motor, out io.Writer, args []string) error {
	cmd, params := args[0], args[1:]
	numbers, err := parseNumbers(params)
	if err != nil {
		return err
	}
	expect := func(n int) error {
		if len(numbers) != n {
			return fmt.Errorf("expected %v argument(s), got %v", n, len(numbers))
		}
		return nil
	}

	switch cmd {
	case "step":
		if err := expect(1); err != nil {
			return err
		}
		n, err := m.Step(int(numbers[0]))
		fmt.Fprintf(out, "Committed %v steps, position %v\n", n, m.Position())
		return err
	case "sine":
		if err := expect(3); err != nil {
			return err
		}
		return m.Sinewave(numbers[0], numbers[1], numbers[2])
	case "speed":
		if err := expect(1); err != nil {
			return err
		}
		return m.SetSpeed(int(numbers[0]))
	case "duty":
		if err := expect(1); err != nil {
			return err
		}
		return m.SetDutyCyclePercent(int(numbers[0]))
	case "counter":
		if err := expect(1); err != nil {
			return err
		}
		return m.SetCounter(int(numbers[0]))
	case "status":
		fmt.Fprintln(out, m.Status())
		return nil
	case "stop":
		return m.Stop()
	case "help":
		fmt.Fprintln(out, shellHelp)
		return nil
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
}

func parseNumbers(params []string) ([]float64, error) {
	res := make([]float64, len(params))
	for i, param := range params {
		val, err := strconv.ParseFloat(param, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse argument '%v': %v", param, err)
		}
		res[i] = val
	}
	return res, nil
}
