package pca9685

import (
	"fmt"
	"math"
)

const (
	MODE1 = byte(iota)
	MODE2

	// The I2C addresses are stored in the 7 MSBs. Addresses must be left-shifted once.
	SUBADR1
	SUBADR2
	SUBADR3
	ALLCALLADR

	// First of 4 registers per channel: ON_L, ON_H, OFF_L, OFF_H.
	// Default: all zero, except for FULL_OFF_BIT in OFF_H.
	LED0
)

const PRE_SCALE = byte(0xFE) // Only settable in SLEEP mode. Default value: 0x30

// LED returns the first register of the given channel.
func LED(channel int) byte {
	return LED0 + byte(channel*BYTE_PER_OUTPUT)
}

// Default values all zero, except ALLCALL and SLEEP
const (
	MODE1_ALLCALL = byte(1 << iota) // 1: Respond to ALLCALL address
	MODE1_SUB3                      // 1: Respond to SUB3 address
	MODE1_SUB2                      // 1: Respond to SUB2 address
	MODE1_SUB1                      // 1: Respond to SUB1 address
	MODE1_SLEEP                     // 0: normal mode 1: oscillator off, low power mode
	MODE1_AI                        // 1: Register auto increment
	MODE1_EXTCLK                    // 1: use EXTCLK pin as clock source. Enable sequence: First set SLEEP, then set (SLEEP | EXTCLK). Can only be cleared by power cycle or software reset.
	MODE1_RESTART                   // Write 1: wake up from SLEEP (write 0 no effect). Only possible if read as 1, after setting SLEEP.
)

const (
	ADDRESS     = byte(0x40) // 0100 0000
	ADDRESS_MAX = byte(0x7F) // 0111 1111
)

const (
	BYTE_PER_OUTPUT  = 4
	TIMER_MAX        = 4095
	TIMER_RESOLUTION = TIMER_MAX + 1

	FULL_ON_BIT  = 0x10 // bit 4 of LEDn_ON_H.
	FULL_OFF_BIT = 0x10 // bit 4 of LEDn_OFF_H. Takes precedence over the FULL_ON_BIT.

	FREQ_MIN          = 23.84185791
	FREQ_MAX          = 1525.87890625
	FREQ_MIN_PRESALE  = byte(0xFF)
	FREQ_MAX_PRESCALE = byte(0x03) // Minimum value asserted by hardware
	DEFAULT_PRESCALE  = byte(0x30) // Default PRE_SCALE value, results in 200Hz with the internal oscillator

	INTERNAL_OSCILLATOR = 25000000 // 25 MHz
)

// Target byte slice is suitable to write into the registers of one channel
func ValuesInto(onTime float64, target []byte) {
	target[0], target[1], target[2], target[3] = ValuesDelayed(0, onTime)
}

// delay and onTime must be in [0; 1]
func ValuesDelayed(delayTime, onTime float64) (onL, onH, offL, offH byte) {
	if delayTime < 0 || delayTime > 1 || onTime < 0 || onTime > 1 {
		panic(fmt.Sprintf("Invalid timer values delay=%v onTime=%v", delayTime, onTime))
	}
	delayCount := round(delayTime*TIMER_RESOLUTION - 1)
	onCount := round(onTime * TIMER_RESOLUTION) // The onCount is added to delayCount, so the -1 correction is not required anymore
	if delayTime == 0 {
		delayCount = 0
		if onCount > 0 {
			onCount-- // Apply -1 correction since delayCount is zero
		}
	}
	if onTime == 0 {
		onCount = 0
	}

	on := delayCount
	off := on + onCount
	if off > TIMER_RESOLUTION {
		// Because of the delay, the first on-time is pushed into the second PWM cycle, and must be corrected
		off -= TIMER_RESOLUTION
	}
	onL, onH = byte(on), byte(on>>8)
	offL, offH = byte(off), byte(off>>8)
	return
}

func round(f float64) int {
	return int(math.Floor(f + .5))
}

func FullOnValuesInto(target []byte) {
	target[0], target[1], target[2], target[3] = 0, FULL_ON_BIT, 0, 0
}

func FullOffValuesInto(target []byte) {
	target[0], target[1], target[2], target[3] = 0, 0, 0, FULL_OFF_BIT
}

// Prescaler returns the PRE_SCALE value for a PWM frequency with the internal oscillator.
func Prescaler(frequency float64) byte {
	v := INTERNAL_OSCILLATOR / (float64(TIMER_RESOLUTION) * frequency)
	return byte(round(v)) - 1
}

// PwmOutput computes minimal register updates for a range of consecutive channels.
// Values of exactly 0 and 1 are written as full off/full on.
type PwmOutput struct {
	CurrentState   []float64
	OptimizeUpdate bool
}

func channelValuesInto(val float64, target []byte) {
	switch val {
	case 0:
		FullOffValuesInto(target)
	case 1:
		FullOnValuesInto(target)
	default:
		ValuesInto(val, target)
	}
}

// Update returns the register address and values to write, or nil if nothing changed.
func (m *PwmOutput) Update(firstPwmOutput byte, newState []float64) []byte {
	if len(m.CurrentState) != len(newState) {
		m.CurrentState = make([]float64, len(newState))
		m.OptimizeUpdate = false
	}
	numPwmOutputs := len(newState)

	// Compute smallest possible range of values to be updated
	updateFrom := 0
	updateTo := numPwmOutputs
	if m.OptimizeUpdate {
		for i := range newState {
			if m.CurrentState[i] == newState[i] {
				updateFrom++
			} else {
				break
			}
		}
		for i := range newState {
			if m.CurrentState[numPwmOutputs-1-i] == newState[numPwmOutputs-1-i] {
				updateTo--
			} else {
				break
			}
		}
		if updateFrom >= updateTo {
			// The desired state is already deployed
			return nil
		}
	}
	numChanges := updateTo - updateFrom

	pwmValues := make([]byte, BYTE_PER_OUTPUT*numChanges)
	for i, val := range newState[updateFrom:updateTo] {
		channelValuesInto(val, pwmValues[BYTE_PER_OUTPUT*i:])
	}
	return append([]byte{firstPwmOutput + byte(updateFrom)*BYTE_PER_OUTPUT}, pwmValues...)
}

// Commit marks the state passed to the last Update as deployed.
func (m *PwmOutput) Commit(state []float64) {
	copy(m.CurrentState, state)
	m.OptimizeUpdate = true
}
