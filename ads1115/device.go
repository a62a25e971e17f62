package ads1115

import (
	"time"

	"github.com/antongulenko/stepdrive/ft260"
	"github.com/antongulenko/stepdrive/stepper"
	log "github.com/sirupsen/logrus"
)

// Device samples the single ended inputs AIN0-AIN3 in continuous mode.
// Samples are scaled to 12 bit: with CONFIG_PGA_4V, 0..4095 covers 0..4.096V.
type Device struct {
	Bus  ft260.I2cBus
	Addr byte
	Gain uint16 // CONFIG_PGA_*
	Rate uint16 // CONFIG_DR_*

	// Sleep is used to wait for the first conversion after switching channels.
	Sleep func(time.Duration)

	channel int
}

var _ stepper.AnalogInput = new(Device)

func NewDevice(bus ft260.I2cBus, addr byte) *Device {
	return &Device{
		Bus:     bus,
		Addr:    addr,
		Gain:    CONFIG_PGA_4V,
		Rate:    CONFIG_DR_860,
		Sleep:   time.Sleep,
		channel: -1,
	}
}

// ChannelConfig returns the CONFIG register value for continuously converting the given input.
func (d *Device) ChannelConfig(channel int) (uint16, error) {
	mux, err := MuxSingleEnded(channel)
	if err != nil {
		return 0, err
	}
	return mux | d.Gain | d.Rate | CONFIG_COMP_QUE_OFF, nil
}

// Init starts converting the given channel.
func (d *Device) Init(channel int) error {
	log.Printf("Initializing ADS1115 device at %#02x, channel %v...", d.Addr, channel)
	return d.selectChannel(channel)
}

func (d *Device) selectChannel(channel int) error {
	config, err := d.ChannelConfig(channel)
	if err != nil {
		return err
	}
	if err := WriteRegister(d.Bus, d.Addr, REG_CONFIG, config); err != nil {
		return err
	}
	// Configure the address of the register to be read by future reads
	if err := d.Bus.I2cWrite(d.Addr, REG_CONVERSION); err != nil {
		return err
	}
	d.channel = channel
	if d.Sleep != nil {
		// Wait for two conversion periods, the first one may have started before the switch
		d.Sleep(2 * time.Second / time.Duration(SamplesPerSecond(d.Rate)))
	}
	return nil
}

func (d *Device) AnalogRead(channel int) (int, error) {
	if channel != d.channel {
		if err := d.selectChannel(channel); err != nil {
			return 0, err
		}
	}
	val, err := ReadRegisterDirectly(d.Bus, d.Addr)
	if err != nil {
		return 0, err
	}
	if val < 0 {
		// Inputs slightly below ground
		return 0, nil
	}
	return int(val) >> 3, nil
}
