package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/antongulenko/golib"
	"github.com/antongulenko/stepdrive/ft260"
	"github.com/antongulenko/stepdrive/rig"
	"github.com/antongulenko/stepdrive/stepper"
	log "github.com/sirupsen/logrus"
)

type commandFunc func() error

var (
	r           = rig.DefaultRig
	command     = "run"
	steps       = 200
	amplitude   = 40.0
	equilibrium = 50.0
	period      = 5.0
	sleepTime   = 400 * time.Millisecond
	benchTime   = 3 * time.Second
	traceFile   = "trace.png"
	traceWidth  = 1200
	commands    = map[string]commandFunc{
		"none":    func() error { return nil },
		"run":     run,
		"step":    step,
		"sine":    sine,
		"shell":   shell,
		"scan":    scan,
		"buttons": buttons,
		"bench":   bench,
		"trace":   traceSteps,
	}
	// Commands that do not use the rig hardware
	offline = map[string]bool{
		"none":  true,
		"trace": true,
	}

	motor       *stepper.Motor
	cleanupOnce sync.Once
)

func main() {
	r.RegisterFlags()
	flag.StringVar(&command, "c", command, fmt.Sprintf("Command to execute, one of: %v", commandNames()))
	flag.IntVar(&steps, "steps", steps, "Number of steps for run, step and trace, negative values step backwards")
	flag.Float64Var(&amplitude, "amplitude", amplitude, "Sine amplitude in RPM (sine command)")
	flag.Float64Var(&equilibrium, "equilibrium", equilibrium, "Sine equilibrium in RPM (sine command)")
	flag.Float64Var(&period, "period", period, "Sine period in seconds (sine command)")
	flag.DurationVar(&sleepTime, "sleep", sleepTime, "Sleep time between button reads, and between run loops while stopped")
	flag.DurationVar(&benchTime, "benchTime", benchTime, "Benchmark time (bench command)")
	flag.StringVar(&traceFile, "o", traceFile, "Output PNG file (trace command)")
	flag.IntVar(&traceWidth, "trace-width", traceWidth, "Width of the timing diagram (trace command)")
	golib.RegisterFlags(golib.FlagsAll)
	flag.Parse()
	golib.ConfigureLogging()

	// "Clean" shutdown with Ctrl-C signal
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	defer cleanup()
	go func() {
		fmt.Println("Received signal", <-c)
		cleanup()
		os.Exit(0)
	}()
	golib.Checkerr(doMain())
}

func cleanup() {
	cleanupOnce.Do(func() {
		if !offline[command] {
			r.Cleanup()
		}
	})
}

func commandNames() []string {
	allCommandNames := make([]string, 0, len(commands))
	for commandName := range commands {
		allCommandNames = append(allCommandNames, commandName)
	}
	sort.Strings(allCommandNames)
	return allCommandNames
}

func doMain() error {
	commandFunc, ok := commands[command]
	if !ok {
		return fmt.Errorf("Unknown command %v, available commands: %v", command, strings.Join(commandNames(), ", "))
	}
	if !offline[command] {
		if err := r.Setup(); err != nil {
			return err
		}
	}
	return commandFunc()
}

func setupMotor() error {
	m, err := r.NewMotor()
	if err != nil {
		return err
	}
	m.Observe(logEvent)
	motor = m
	return nil
}

func logEvent(e stepper.Event, status stepper.Status) {
	switch e {
	case stepper.EventMode:
		log.Printf("Mode changed to %v", status.Mode)
	case stepper.EventCounter:
		log.Printf("Counter advanced to %v", status.Counter)
	case stepper.EventStop:
		log.Debugf("Motor stopped: %v", status)
	default:
		log.Debugf("%v: %v", e, status)
	}
}

// run repeatedly requests steps, as long as the potentiometer allows it.
func run() error {
	if err := setupMotor(); err != nil {
		return err
	}
	log.Printf("Running %v steps per loop, stop with Ctrl-C", steps)
	for {
		n, err := motor.Step(steps)
		if err != nil {
			return err
		}
		log.Debugf("Committed %v steps, position %v", n, motor.Position())
		if motor.State() == stepper.Stopped {
			time.Sleep(sleepTime)
		}
	}
}

func step() error {
	if err := setupMotor(); err != nil {
		return err
	}
	start := time.Now()
	n, err := motor.Step(steps)
	log.Printf("Committed %v of %v steps in %v: %v", n, steps, time.Since(start), motor.Status())
	return err
}

func sine() error {
	if err := setupMotor(); err != nil {
		return err
	}
	log.Printf("Sine wave with amplitude %v RPM, equilibrium %v RPM, period %vs", amplitude, equilibrium, period)
	start := motor.Position()
	if err := motor.Sinewave(amplitude, equilibrium, period); err != nil {
		return err
	}
	log.Printf("Sine wave done, moved from position %v to %v", start, motor.Position())
	return nil
}

func scan() error {
	slaves, err := ft260.I2cScan(r.Bus())
	if err != nil {
		return err
	}
	log.Printf("Scanned slaves: %#02v", slaves)
	return nil
}

// buttons prints the raw button levels and the latched mode and counter.
func buttons() error {
	if err := setupMotor(); err != nil {
		return err
	}
	input := r.Hardware().Input
	if input == nil {
		return fmt.Errorf("No button input configured")
	}
	cfg := motor.Config()
	latch := stepper.NewButtonLatch(cfg.SelectButtons, cfg.AdvanceButton, cfg.MaxCounter, cfg.CountingMode)
	for {
		levels, err := latch.Read(input)
		if err != nil {
			return err
		}
		res := latch.Latch(levels)
		log.Printf("Select %v, advance %v -> mode %v (changed: %v), counter %v (incremented: %v)",
			levels.Select, levels.Advance, latch.Mode(), res.ModeChanged, latch.Counter(), res.CounterIncremented)
		time.Sleep(sleepTime)
	}
}

// bench measures how many coil patterns per second the output board accepts.
func bench() error {
	if err := setupMotor(); err != nil {
		return err
	}
	cfg := motor.Config()
	topology := motor.Topology()
	out := r.Hardware().Output
	writes := 0
	err := measure(func() (int, error) {
		p, err := topology.Pattern(writes % topology.Size())
		if err != nil {
			return 0, err
		}
		writes++
		if port, ok := out.(stepper.PortWriter); ok {
			return 1, port.DigitalWriteAll(cfg.CoilPins, p)
		}
		for i, pin := range cfg.CoilPins {
			if err := out.DigitalWrite(pin, p[i]); err != nil {
				return 0, err
			}
		}
		return 1, nil
	}, func(n int, duration time.Duration) {
		perSecond := float64(n) / duration.Seconds()
		log.Printf("Wrote %v patterns in %v -> %.1f patterns/s, at most %.1f RPM with %v steps per revolution",
			n, duration, perSecond, perSecond*60/float64(cfg.StepsPerRevolution), cfg.StepsPerRevolution)
	})
	golib.Printerr(motor.Stop())
	return err
}

func measure(benchFunc func() (int, error), report func(n int, duration time.Duration)) error {
	start := time.Now()
	transmitted := 0
	for i := 0; ; i++ {
		transmittedNew, err := benchFunc()
		if err != nil {
			return err
		}
		transmitted += transmittedNew
		if i%20 == 0 {
			if duration := time.Now().Sub(start); duration > benchTime {
				report(transmitted, duration)
				break
			}
		}
	}
	return nil
}
