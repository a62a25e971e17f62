package mcp23017

// IODIR: 0: output, 1: input (default)
// GPIO: Reading reads pin values. Writing modifies OLAT.
// OLAT: Output latches
// GPPU: 1: enable internal pull-up for input pins (100 kOhm)
// The interrupt registers (GPINTEN, DEFVAL, INTCON, INTF, INTCAP) are not used.

// Register addresses with IOCON.BANK cleared (power-on default): A and B registers alternate.
const (
	IODIR_A_PAIRED = byte(iota)
	IODIR_B_PAIRED
	IPOL_A_PAIRED
	IPOL_B_PAIRED
	GPINTEN_A_PAIRED
	GPINTEN_B_PAIRED
	DEFVAL_A_PAIRED
	DEFVAL_B_PAIRED
	INTCON_A_PAIRED
	INTCON_B_PAIRED
	IOCON_PAIRED
	_ // IOCON
	GPPU_A_PAIRED
	GPPU_B_PAIRED
	INTF_A_PAIRED
	INTF_B_PAIRED
	INTCAP_A_PAIRED
	INTCAP_B_PAIRED
	GPIO_A_PAIRED
	GPIO_B_PAIRED
	OLAT_A_PAIRED
	OLAT_B_PAIRED

	// Writing two bytes to these registers configures both ports
	IODIR_PAIRED = IODIR_A_PAIRED
	GPPU_PAIRED  = GPPU_A_PAIRED
	GPIO_PAIRED  = GPIO_A_PAIRED
	OLAT_PAIRED  = OLAT_A_PAIRED
)

// IOCON address with IOCON.BANK set. Writing 0 there switches back to paired mode.
const IOCON_BANK = byte(0x05)

const (
	_                = byte(1 << iota)
	IOCON_BIT_INTPOL // 1: INT pins active-high 0: INT pins active-low
	IOCON_BIT_ODR    // (overrides INTPOL) 1: INT pins are open-drain
	IOCON_BIT_HAEN   // Enable hardware address pins (zero otherwise)
	IOCON_BIT_DISSLW // 1: slew rate control for SDA disabled
	IOCON_BIT_SEQOP  // 1: sequential operation disabled
	IOCON_BIT_MIRROR // 1: INT pins mirrored
	IOCON_BIT_BANK   // 1: registers grouped in banks 0: registers paired
)

const (
	ADDRESS     = byte(0x20) // 0010 0000
	MAX_ADDRESS = byte(0x27) // 0010 0111

	// Values for IODIR registers
	INPUT  = byte(0xFF)
	OUTPUT = byte(0x00)
)
