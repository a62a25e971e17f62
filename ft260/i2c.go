package ft260

import (
	"errors"
	"fmt"
	"time"
)

const (
	ReportID_I2CStatus    = 0xC0 // Feature In
	ReportID_I2CRead      = 0xC2 // Output
	ReportID_I2CInOut     = 0xD0 // 0xD0 - 0xDE, Input, Output
	ReportID_I2CInOut_Max = 0xDE

	// Max size of I2C write payload: (1 + Report ID - 0xD0) * 4 byte
	I2CMaxPayload = (1 + ReportID_I2CInOut_Max - ReportID_I2CInOut) * 4

	// Payload bytes sent per report when splitting long transactions
	i2cChunkSize = 60

	i2cStatusPolls = 100
)

const (
	I2C_StatusControllerBusy = byte(1 << iota)
	I2C_StatusError
	I2C_StatusNoSlaveAck
	I2C_StatusNoDataAck
	I2C_StatusArbitrationLost
	I2C_StatusControllerIdle
	I2C_StatusBusBusy
)

const (
	I2C_MasterNone         = 0x0
	I2C_MasterStart        = 0x2
	I2C_MasterRepStart     = 0x3
	I2C_MasterStop         = 0x4
	I2C_MasterStartStop    = 0x6
	I2C_MasterRepStartStop = 0x7
)

// I2cBus is implemented by the FT260 and used by all I2C device drivers.
type I2cBus interface {
	I2cWrite(addr byte, data ...byte) error
	I2cRead(addr byte, data []byte) error
	I2cWriteRead(addr byte, out, in []byte) error
	I2cGet(addr byte, registerAddr byte, size int) ([]byte, error)
}

var _ I2cBus = new(Ft260)

var ErrNoSlaveAck = errors.New("I2C slave did not acknowledge")

func I2cMasterCodeString(code byte) string {
	switch code {
	case I2C_MasterNone:
		return "Nothing"
	case I2C_MasterStart:
		return "Start"
	case I2C_MasterRepStart:
		return "Repeated Start"
	case I2C_MasterStop:
		return "Stop"
	case I2C_MasterStartStop:
		return "Start + Stop"
	case I2C_MasterRepStartStop:
		return "Repeated Start + Stop"
	default:
		return fmt.Sprintf("Unknown I2C Master code %v", code)
	}
}

// Result of ReportID_I2CStatus Feature In
type ReportI2cStatus struct {
	BusStatus byte   // Bitmask of I2C_Status...
	BusSpeed  uint16 // 2 byte: LSB+MSB
	// 1 reserved
}

func (r *ReportI2cStatus) ReportID() byte {
	return ReportID_I2CStatus
}

func (r *ReportI2cStatus) ReportLen() int {
	return 5
}

func (r *ReportI2cStatus) Unmarshall(b []byte) error {
	if len(b) < 4 {
		return fmt.Errorf("Short I2C status report (%v byte)", len(b))
	}
	r.BusStatus = b[1]
	r.BusSpeed = uint16(b[2]) + uint16(b[3])<<8
	return nil
}

func (r *ReportI2cStatus) Err() error {
	switch {
	case r.BusStatus&I2C_StatusNoSlaveAck != 0:
		return ErrNoSlaveAck
	case r.BusStatus&I2C_StatusArbitrationLost != 0:
		return errors.New("I2C arbitration lost")
	case r.BusStatus&I2C_StatusError != 0:
		return fmt.Errorf("I2C error (status %02x)", r.BusStatus)
	}
	return nil
}

// Data of ReportID_I2CRead Interrupt Out
type OperationI2cRead struct {
	SlaveAddr byte   // 0..127
	Condition byte   // I2C_Master...
	Len       uint16 // data length (little endian)
}

func (r *OperationI2cRead) IsDataReport() bool {
	return true
}

func (r *OperationI2cRead) ReportID() byte {
	return ReportID_I2CRead
}

func (r *OperationI2cRead) ReportLen() int {
	return 5
}

func (r *OperationI2cRead) Marshall(b []byte) error {
	if r.SlaveAddr&0x80 != 0 {
		return fmt.Errorf("Invalid I2C slave address: %02x", r.SlaveAddr)
	}
	b[1] = r.SlaveAddr
	b[2] = r.Condition
	b[3], b[4] = byte(r.Len), byte(r.Len>>8)
	return nil
}

// Data of ReportID_I2CInOut Interrupt Out
type OperationI2cWrite struct {
	SlaveAddr byte // 0..127
	Condition byte // I2C_Master...
	// 1 byte payload len
	Payload []byte
}

func (r *OperationI2cWrite) IsDataReport() bool {
	return true
}

func (r *OperationI2cWrite) ReportID() byte {
	if len(r.Payload) == 0 {
		return ReportID_I2CInOut
	}
	return ReportID_I2CInOut + byte((len(r.Payload)-1)/4)
}

func (r *OperationI2cWrite) ReportLen() int {
	return len(r.Payload) + 4
}

func (r *OperationI2cWrite) Marshall(b []byte) error {
	if len(r.Payload) > I2CMaxPayload {
		return fmt.Errorf("Payload len %v exceeds maximum size of %v", len(r.Payload), I2CMaxPayload)
	}
	if r.SlaveAddr&0x80 != 0 {
		return fmt.Errorf("Invalid I2C slave address: %02x", r.SlaveAddr)
	}
	b[1] = r.SlaveAddr
	b[2] = r.Condition
	b[3] = byte(len(r.Payload))
	copy(b[4:], r.Payload)
	return nil
}

// Data of ReportID_I2CInOut Interrupt In
type OperationI2cInput struct {
	// 1 byte payload length
	Data []byte
}

func (r *OperationI2cInput) IsDataReport() bool {
	return true
}

func (r *OperationI2cInput) IsVariableReportID() bool {
	return true
}

func (r *OperationI2cInput) ReportID() byte {
	return ReportID_I2CInOut
}

func (r *OperationI2cInput) ReportLen() int {
	return I2CMaxPayload + 2 // Max possible report length
}

func (r *OperationI2cInput) Unmarshall(d []byte) error {
	if d[0] < ReportID_I2CInOut || d[0] > ReportID_I2CInOut_Max {
		return fmt.Errorf("Unexpected I2C input report id %02x", d[0])
	}
	l := int(d[1])
	if len(d) < l+2 {
		return fmt.Errorf("Short I2C read (%v, needed at least %v)", len(d), l+2)
	}
	r.Data = append(r.Data[:0], d[2:2+l]...)
	return nil
}

// i2cSplitTransaction splits data into chunks that fit into single write reports.
// The first chunk starts the transaction, the last one optionally stops it.
func i2cSplitTransaction(stop bool, data []byte) (payload [][]byte, conditions []byte) {
	for start := 0; start < len(data); start += i2cChunkSize {
		end := start + i2cChunkSize
		if end > len(data) {
			end = len(data)
		}
		first, last := start == 0, end == len(data)
		var cond byte = I2C_MasterNone
		switch {
		case first && last && stop:
			cond = I2C_MasterStartStop
		case first:
			cond = I2C_MasterStart
		case last && stop:
			cond = I2C_MasterStop
		}
		payload = append(payload, data[start:end])
		conditions = append(conditions, cond)
	}
	return
}

func (f *Ft260) I2cWrite(addr byte, data ...byte) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.i2cWrite(addr, true, data)
}

func (f *Ft260) i2cWrite(addr byte, stop bool, data []byte) error {
	if len(data) == 0 {
		return errors.New("Empty I2C write")
	}
	payload, conditions := i2cSplitTransaction(stop, data)
	for i, chunk := range payload {
		err := f.write(&OperationI2cWrite{
			SlaveAddr: addr,
			Condition: conditions[i],
			Payload:   chunk,
		})
		if err != nil {
			return err
		}
	}
	return f.waitI2c(!stop)
}

func (f *Ft260) I2cRead(addr byte, data []byte) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.i2cRead(addr, I2C_MasterStartStop, data)
}

func (f *Ft260) i2cRead(addr byte, condition byte, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	err := f.write(&OperationI2cRead{
		SlaveAddr: addr,
		Condition: condition,
		Len:       uint16(len(data)),
	})
	if err != nil {
		return err
	}
	var input OperationI2cInput
	for received := 0; received < len(data); {
		if err := f.read(&input); err != nil {
			return err
		}
		if len(input.Data) == 0 {
			return fmt.Errorf("I2C read from %02x stalled after %v of %v byte", addr, received, len(data))
		}
		received += copy(data[received:], input.Data)
	}
	return f.waitI2c(false)
}

func (f *Ft260) I2cWriteRead(addr byte, out, in []byte) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.i2cWrite(addr, false, out); err != nil {
		return err
	}
	return f.i2cRead(addr, I2C_MasterRepStartStop, in)
}

func (f *Ft260) I2cGet(addr byte, registerAddr byte, size int) ([]byte, error) {
	res := make([]byte, size)
	err := f.I2cWriteRead(addr, []byte{registerAddr}, res)
	return res, err
}

// I2cStatus reads the current status of the I2C controller.
func (f *Ft260) I2cStatus() (ReportI2cStatus, error) {
	var status ReportI2cStatus
	err := f.Read(&status)
	return status, err
}

// waitI2c polls the controller status until it is not busy anymore.
// Within an open transaction (no stop condition sent) the bus stays busy, so only the controller is checked.
func (f *Ft260) waitI2c(open bool) error {
	var status ReportI2cStatus
	for i := 0; i < i2cStatusPolls; i++ {
		if err := f.read(&status); err != nil {
			return err
		}
		if status.BusStatus&I2C_StatusControllerBusy == 0 {
			if err := status.Err(); err != nil {
				return err
			}
			if open || status.BusStatus&I2C_StatusControllerIdle != 0 {
				return nil
			}
		}
		time.Sleep(100 * time.Microsecond)
	}
	return fmt.Errorf("I2C controller still busy (status %02x)", status.BusStatus)
}

const (
	I2cScanFirst = 0x08
	I2cScanLast  = 0x77
)

// I2cScan returns the addresses that acknowledge a single byte read.
func I2cScan(bus I2cBus) ([]byte, error) {
	var res []byte
	buf := make([]byte, 1)
	for addr := byte(I2cScanFirst); addr <= I2cScanLast; addr++ {
		err := bus.I2cRead(addr, buf)
		if err == nil {
			res = append(res, addr)
		} else if !errors.Is(err, ErrNoSlaveAck) {
			return res, fmt.Errorf("Scanning address %02x: %v", addr, err)
		}
	}
	return res, nil
}
