// http://wiki.seeed.cc/Grove-I2C_Motor_Driver_V1.3/
package groveMotorDriver

import (
	log "github.com/sirupsen/logrus"
)

const (
	DefaultAddress = byte(0x0f)

	// Every I2C command contains 3 bytes
	CommandLength = 3

	// Configuration commands
	Command_SetPWMFrequency = 0x84

	// DC motor commands
	Command_SetMotorSpeed = 0x82 // 2 parameters: 2 byte, 0..255 speed for motor A and B
	Command_SetMotorDir   = 0xaa // 1 parameter: 0x0000bbaa, directions for both motors, 'aa' and 'bb' are Dir* values

	// Stops the stepper mode of the on-board firmware
	Command_StepperStop = 0x1b

	// Parameter for Command_SetPWMFrequency
	// PWM signal Frequency (cycle length = 510, system clock = 16MHz)
	PWM_31372Hz = byte(0x01)
	PWM_3921Hz  = byte(0x02)
	PWM_490Hz   = byte(0x03) // Default
	PWM_122Hz   = byte(0x04)
	PWM_30Hz    = byte(0x05)

	// Parameter for Command_SetMotorDir. The two bits are the L298 inputs of one bridge.
	DirClockwise     = byte(0x02)
	DirAntiClockwise = byte(0x01)
	DirStop          = byte(0)

	MaxSpeed = byte(255)

	// No-op parameter filler (if less than 3 bytes are required)
	emptyParameter = 0x01
)

func SetPwmFrequency(frequency byte) []byte {
	switch frequency {
	case PWM_31372Hz, PWM_3921Hz, PWM_490Hz, PWM_122Hz, PWM_30Hz:
	default:
		log.Warnf("Invalid PWM motor frequency %02x, using maximum frequency 3921Hz", frequency)
		frequency = PWM_3921Hz
	}
	return []byte{Command_SetPWMFrequency, frequency, emptyParameter}
}

func SetMotorDirections(motorA, motorB byte) []byte {
	// Only use 2 bits from each value (Dir* values)
	dir := ((motorB & 0x3) << 2) | (motorA & 0x3)
	return []byte{Command_SetMotorDir, dir, emptyParameter}
}

func SetMotorSpeed(motorA, motorB byte) []byte {
	return []byte{Command_SetMotorSpeed, motorA, motorB}
}

func StopStepper() []byte {
	return []byte{Command_StepperStop, emptyParameter, emptyParameter}
}
