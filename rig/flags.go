package rig

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/antongulenko/stepdrive/stepper"
)

// pinList is a flag.Value for comma separated pin numbers.
type pinList []int

func (l *pinList) String() string {
	if l == nil {
		return ""
	}
	parts := make([]string, len(*l))
	for i, pin := range *l {
		parts[i] = strconv.Itoa(pin)
	}
	return strings.Join(parts, ",")
}

func (l *pinList) Set(s string) error {
	pins, err := ParsePins(s)
	if err != nil {
		return err
	}
	*l = pins
	return nil
}

// ParsePins parses comma separated pin numbers, e.g. "0,1,2,3".
func ParsePins(s string) ([]int, error) {
	var res []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		pin, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("Invalid pin '%v': %v", part, err)
		}
		res = append(res, pin)
	}
	return res, nil
}

// selectList is a flag.Value for comma separated pin:mode pairs.
type selectList []stepper.SelectButton

func (l *selectList) String() string {
	if l == nil {
		return ""
	}
	parts := make([]string, len(*l))
	for i, b := range *l {
		parts[i] = fmt.Sprintf("%v:%v", b.Pin, b.Mode)
	}
	return strings.Join(parts, ",")
}

func (l *selectList) Set(s string) error {
	buttons, err := ParseSelectButtons(s)
	if err != nil {
		return err
	}
	*l = buttons
	return nil
}

// ParseSelectButtons parses comma separated pin:mode pairs, e.g. "8:0,9:1".
func ParseSelectButtons(s string) ([]stepper.SelectButton, error) {
	var res []stepper.SelectButton
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var b stepper.SelectButton
		if n, err := fmt.Sscanf(part, "%d:%d", &b.Pin, &b.Mode); err != nil || n != 2 {
			return nil, fmt.Errorf("Invalid select button '%v', expected pin:mode", part)
		}
		res = append(res, b)
	}
	return res, nil
}
