package device

import (
	"fmt"
	"time"

	"go.bug.st/serial"

	"ad2mqtt/internal/log"
)

// DefaultBaudrate is the rate AD2 adapters ship with.
const DefaultBaudrate = 19200

// SerialDevice drives an AD2USB, AD2SERIAL or AD2PI adapter attached to
// a local serial port.
type SerialDevice struct {
	log      *log.Logger
	path     string
	baudrate int
	port     serial.Port
	buffer   []byte
}

func NewSerialDevice(path string, baudrate int, logger *log.Logger) *SerialDevice {
	if baudrate == 0 {
		baudrate = DefaultBaudrate
	}
	return &SerialDevice{
		log:      logger,
		path:     path,
		baudrate: baudrate,
	}
}

func (d *SerialDevice) ID() string {
	return d.path
}

func (d *SerialDevice) Open() error {
	if d.path == "" {
		return fmt.Errorf("%w: no serial port specified", ErrNoDevice)
	}

	mode := &serial.Mode{
		BaudRate: d.baudrate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}

	d.log.Debug("Opening serial port %s at %d baud", d.path, d.baudrate)
	port, err := serial.Open(d.path, mode)
	if err != nil {
		return fmt.Errorf("%w: error opening %s: %v", ErrNoDevice, d.path, err)
	}

	d.port = port
	return nil
}

func (d *SerialDevice) Close() error {
	if d.port == nil {
		return nil
	}
	err := d.port.Close()
	d.port = nil
	d.buffer = nil
	return err
}

func (d *SerialDevice) Write(data []byte) (int, error) {
	if d.port == nil {
		return 0, &CommError{Op: "write", Err: ErrNoDevice}
	}

	n, err := d.port.Write(data)
	if err != nil {
		return n, &CommError{Op: "write", Err: err}
	}
	return n, nil
}

func (d *SerialDevice) Read() (string, error) {
	if d.port == nil {
		return "", &CommError{Op: "read", Err: ErrNoDevice}
	}

	if err := d.port.SetReadTimeout(pollInterval); err != nil {
		return "", &CommError{Op: "read", Err: err}
	}

	buf := make([]byte, 1)
	n, err := d.port.Read(buf)
	if err != nil {
		return "", &CommError{Op: "read", Err: err}
	}
	if n == 0 || !keepByte(buf[0]) {
		return "", nil
	}
	return string(buf[:1]), nil
}

func (d *SerialDevice) ReadLine(timeout time.Duration, purge bool) (string, error) {
	if d.port == nil {
		return "", &CommError{Op: "read", Err: ErrNoDevice}
	}

	if purge {
		d.buffer = nil
	}

	if err := d.port.SetReadTimeout(pollInterval); err != nil {
		return "", &CommError{Op: "read", Err: err}
	}

	deadline := time.Now().Add(timeout)
	buf := make([]byte, 1)

	for timeout == 0 || time.Now().Before(deadline) {
		n, err := d.port.Read(buf)
		if err != nil {
			return "", &CommError{Op: "read", Err: err}
		}
		if n == 0 {
			continue
		}

		b := buf[0]
		if b == '\n' {
			line := string(d.buffer)
			d.buffer = nil
			return line, nil
		}
		if keepByte(b) {
			d.buffer = append(d.buffer, b)
		}
	}

	return "", ErrTimeout
}

func (d *SerialDevice) Purge() error {
	if d.port == nil {
		return nil
	}
	d.buffer = nil
	if err := d.port.ResetInputBuffer(); err != nil {
		return &CommError{Op: "purge", Err: err}
	}
	if err := d.port.ResetOutputBuffer(); err != nil {
		return &CommError{Op: "purge", Err: err}
	}
	return nil
}
