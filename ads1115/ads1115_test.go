package ads1115

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type i2cWrite struct {
	addr byte
	data []byte
}

type testBus struct {
	writes []i2cWrite
	value  []byte
}

func (b *testBus) I2cWrite(addr byte, data ...byte) error {
	b.writes = append(b.writes, i2cWrite{addr, data})
	return nil
}

func (b *testBus) I2cRead(addr byte, data []byte) error {
	copy(data, b.value)
	return nil
}

func (b *testBus) I2cWriteRead(addr byte, out, in []byte) error {
	return b.I2cRead(addr, in)
}

func (b *testBus) I2cGet(addr byte, registerAddr byte, size int) ([]byte, error) {
	res := make([]byte, size)
	return res, b.I2cRead(addr, res)
}

func Test_register_constants(t *testing.T) {
	a := assert.New(t)
	a.Equal(byte(0), REG_CONVERSION)
	a.Equal(byte(1), REG_CONFIG)
	a.Equal(byte(3), REG_HI_THRESH)
	a.Equal(uint16(0x4000), CONFIG_MUX_0GND)
	a.Equal(uint16(0x7000), CONFIG_MUX_3GND)
	a.Equal(uint16(0x0200), CONFIG_PGA_4V)
	a.Equal(uint16(0x00E0), CONFIG_DR_860)
	a.Equal(860, SamplesPerSecond(CONFIG_DR_860))
	a.Equal(128, SamplesPerSecond(CONFIG_DR_128))
}

func Test_channel_config(t *testing.T) {
	a := assert.New(t)
	d := NewDevice(new(testBus), ADDR_GND)
	config, err := d.ChannelConfig(2)
	a.NoError(err)
	// Continuous mode (MODE bit cleared), AIN2 against ground, 4.096V, 860 SPS, comparator off
	a.Equal(uint16(0x62E3), config)
	a.Zero(config & CONFIG_MODE)
	_, err = d.ChannelConfig(4)
	a.Error(err)
}

func Test_analog_read(t *testing.T) {
	a := assert.New(t)
	bus := &testBus{value: []byte{0x7F, 0xF8}}
	d := NewDevice(bus, ADDR_VDD)
	var slept []time.Duration
	d.Sleep = func(d time.Duration) {
		slept = append(slept, d)
	}

	val, err := d.AnalogRead(1)
	a.NoError(err)
	a.Equal(4095, val)
	a.Equal([]i2cWrite{
		{ADDR_VDD, []byte{REG_CONFIG, 0x52, 0xE3}},
		{ADDR_VDD, []byte{REG_CONVERSION}},
	}, bus.writes)
	a.Len(slept, 1)

	// Same channel: no reconfiguration
	bus.value = []byte{0x40, 0x00}
	val, err = d.AnalogRead(1)
	a.NoError(err)
	a.Equal(2048, val)
	a.Len(bus.writes, 2)

	bus.value = []byte{0xFF, 0xF0}
	val, err = d.AnalogRead(0)
	a.NoError(err)
	a.Equal(0, val, "negative samples are clamped")
	a.Len(bus.writes, 4)
	a.Len(slept, 2)
}
