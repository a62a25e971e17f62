package rig

import (
	"fmt"
	"time"

	"github.com/aamcrae/config"
	log "github.com/sirupsen/logrus"
)

// LoadConfig overrides the motor configuration with the keys of one section of a configuration file.
// Keys that are not present keep their current value.
//
//  [motor]
//  coils=0,1,2,3        # Coil pins, 2, 4 or 5 of them
//  spr=200              # Steps per revolution
//  speed-pin=0          # Analog channel of the potentiometer
//  samples=0,4095       # Smallest and largest potentiometer sample
//  rpm=10,100           # Minimum and maximum velocity
//  stop-rpm=15          # Seeking stops at or below this velocity
//  duty=100             # Duty cycle in percent
//  select=8:0,9:1       # Mode select buttons as pin:mode
//  advance=10           # Counter advance button
//  counter=3,2          # Largest counter value and counting mode
//  idle-poll=100ms      # Button poll interval while not stepping
func (r *Rig) LoadConfig(file, section string) error {
	conf, err := config.ParseFile(file)
	if err != nil {
		return fmt.Errorf("%s: %v", file, err)
	}
	if err := r.applyConfig(conf, section); err != nil {
		return fmt.Errorf("%s: %v", file, err)
	}
	log.Printf("Loaded section [%v] of %v", section, file)
	return nil
}

func (r *Rig) applyConfig(conf *config.Config, section string) error {
	s := conf.GetSection(section)
	if s == nil {
		return fmt.Errorf("no config for %s", section)
	}
	m := &r.Motor

	has := func(key string) bool {
		_, err := s.GetArg(key)
		return err == nil
	}
	parse := func(key string, count int, format string, args ...interface{}) error {
		if !has(key) {
			return nil
		}
		n, err := s.Parse(key, format, args...)
		if err != nil {
			return fmt.Errorf("%s: %v", key, err)
		}
		if n != count {
			return fmt.Errorf("%s: argument count", key)
		}
		return nil
	}

	if has("coils") {
		arg, _ := s.GetArg("coils")
		pins, err := ParsePins(arg)
		if err != nil {
			return fmt.Errorf("coils: %v", err)
		}
		m.CoilPins = pins
	}
	if has("select") {
		arg, _ := s.GetArg("select")
		buttons, err := ParseSelectButtons(arg)
		if err != nil {
			return fmt.Errorf("select: %v", err)
		}
		m.SelectButtons = buttons
	}
	if has("idle-poll") {
		arg, _ := s.GetArg("idle-poll")
		interval, err := time.ParseDuration(arg)
		if err != nil {
			return fmt.Errorf("idle-poll: %v", err)
		}
		m.IdlePollInterval = interval
	}

	for _, err := range []error{
		parse("spr", 1, "%d", &m.StepsPerRevolution),
		parse("speed-pin", 1, "%d", &m.SpeedPin),
		parse("samples", 2, "%d,%d", &m.SampleMin, &m.SampleMax),
		parse("rpm", 2, "%d,%d", &m.MinVelocity, &m.MaxVelocity),
		parse("stop-rpm", 1, "%d", &m.StopBound),
		parse("duty", 1, "%d", &m.DutyCyclePercent),
		parse("advance", 1, "%d", &m.AdvanceButton),
		parse("counter", 2, "%d,%d", &m.MaxCounter, &m.CountingMode),
	} {
		if err != nil {
			return err
		}
	}
	return m.Validate()
}
