package ft260

import (
	"fmt"
	"sync"

	"github.com/antongulenko/hid"
	log "github.com/sirupsen/logrus"
)

const (
	FTDIVendorId   = 0x0403
	FT260ProductId = 0x6030

	FT260_CHIP_CODE = 0x02600200
)

// Ft260 is an opened FT260 USB-HID to I2C bridge. All methods are safe for concurrent use.
type Ft260 struct {
	dev  *hid.Device
	lock sync.Mutex
}

// OpenPath opens the FT260 at the given USB path, or the first FT260 if the path is empty.
// hid.Init() must be called before.
func OpenPath(path string) (*Ft260, error) {
	var dev *hid.Device
	var err error
	if path == "" {
		log.Printf("Opening first USB HID device with vendorID=%04x productID=%04x", FTDIVendorId, FT260ProductId)
		dev, err = hid.Open(FTDIVendorId, FT260ProductId, "")
	} else {
		log.Printf("Opening USB HID device %v", path)
		dev, err = hid.OpenPath(path)
	}
	if err != nil {
		return nil, fmt.Errorf("Failed to open FT260 (path '%v'): %v", path, err)
	}
	return &Ft260{dev: dev}, nil
}

func Open() (*Ft260, error) {
	return OpenPath("")
}

func (f *Ft260) Close() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.dev.Close()
}

// Reports are marshalled into a buffer of ReportLen() bytes. The first byte holds the report ID
// and is filled in by Write.
type ReportIn interface {
	Unmarshall(data []byte) error
	ReportID() byte
	ReportLen() int
}

type ReportOut interface {
	Marshall(data []byte) error
	ReportID() byte
	ReportLen() int
}

// Reports implementing dataReport are exchanged through the interrupt endpoints,
// all others are feature reports.
type dataReport interface {
	IsDataReport() bool
}

func isDataReport(report interface{}) bool {
	d, ok := report.(dataReport)
	return ok && d.IsDataReport()
}

func (f *Ft260) Write(report ReportOut) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.write(report)
}

func (f *Ft260) write(report ReportOut) error {
	data := make([]byte, report.ReportLen())
	if err := report.Marshall(data); err != nil {
		return err
	}
	data[0] = report.ReportID()
	var n int
	var err error
	if isDataReport(report) {
		n, err = f.dev.Write(data)
	} else {
		n, err = f.dev.SendFeatureReport(data)
	}
	if err == nil && n != len(data) {
		err = fmt.Errorf("ft260: wrong write len (%v instead of %v)", n, len(data))
	}
	return err
}

func (f *Ft260) Read(report ReportIn) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.read(report)
}

func (f *Ft260) read(report ReportIn) error {
	data := make([]byte, report.ReportLen())
	data[0] = report.ReportID()
	var n int
	var err error
	if isDataReport(report) {
		n, err = f.dev.Read(data)
		if err == nil && n < 2 {
			err = fmt.Errorf("ft260: short read (%v byte)", n)
		}
	} else {
		n, err = f.dev.GetFeatureReport(data)
		if err == nil && n != len(data) {
			err = fmt.Errorf("ft260: wrong read len (%v instead of %v)", n, len(data))
		}
	}
	if err != nil {
		return err
	}
	if v, ok := report.(variableReportID); !ok || !v.IsVariableReportID() {
		if data[0] != report.ReportID() {
			return fmt.Errorf("Unexpected report id (expected %02x, received %02x)", report.ReportID(), data[0])
		}
	}
	return report.Unmarshall(data[:n])
}

type variableReportID interface {
	IsVariableReportID() bool
}

func _readBool(b []byte, index int, e *error) bool {
	if *e == nil {
		val := b[index]
		if val == 0 {
			return false
		} else if val == 1 {
			return true
		} else {
			*e = fmt.Errorf("Expected 0 or 1 for byte at index %v, but got %02x", index, val)
		}
	}
	return false
}
