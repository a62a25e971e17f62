package rig

import (
	"fmt"
	"io"
	"sync"

	"github.com/antongulenko/stepdrive/stepper"
	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// StatusReporter writes one line per motor event to a serial port.
// Lines are queued and written by a separate goroutine, so the step loop never blocks on the port.
// Lines are dropped while the queue is full.
type StatusReporter struct {
	port  io.WriteCloser
	lines chan string
	done  chan struct{}

	lock    sync.Mutex
	dropped int
	closed  bool
}

func OpenStatusPort(name string, baud int, queue int) (*StatusReporter, error) {
	port, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("Failed to open status port %v: %v", name, err)
	}
	log.Printf("Writing motor status to %v (%v baud)", name, baud)
	return NewStatusReporter(port, queue), nil
}

func NewStatusReporter(port io.WriteCloser, queue int) *StatusReporter {
	s := &StatusReporter{
		port:  port,
		lines: make(chan string, queue),
		done:  make(chan struct{}),
	}
	go s.writeLines()
	return s
}

func StatusLine(e stepper.Event, status stepper.Status) string {
	return fmt.Sprintf("%v %v\r\n", e, status)
}

// Observe can be registered with stepper.Motor.Observe.
func (s *StatusReporter) Observe(e stepper.Event, status stepper.Status) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return
	}
	select {
	case s.lines <- StatusLine(e, status):
	default:
		s.dropped++
	}
}

func (s *StatusReporter) Dropped() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.dropped
}

func (s *StatusReporter) writeLines() {
	defer close(s.done)
	failed := false
	for line := range s.lines {
		if failed {
			continue
		}
		if _, err := io.WriteString(s.port, line); err != nil {
			log.Errorf("Writing to status port failed, discarding further status lines: %v", err)
			failed = true
		}
	}
}

// Close writes the queued lines and closes the port.
func (s *StatusReporter) Close() error {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return nil
	}
	s.closed = true
	close(s.lines)
	s.lock.Unlock()
	<-s.done
	if dropped := s.Dropped(); dropped > 0 {
		log.Warnf("Dropped %v status lines", dropped)
	}
	return s.port.Close()
}
