package device

import (
	"fmt"
	"net"
	"time"

	"ad2mqtt/internal/log"
)

// SocketDevice drives an AD2 adapter shared over TCP by ser2sock or an
// AlarmDecoder network appliance.
type SocketDevice struct {
	log    *log.Logger
	host   string
	port   int
	conn   net.Conn
	buffer []byte
}

func NewSocketDevice(host string, port int, logger *log.Logger) *SocketDevice {
	return &SocketDevice{
		log:  logger,
		host: host,
		port: port,
	}
}

func (d *SocketDevice) ID() string {
	return fmt.Sprintf("%s:%d", d.host, d.port)
}

func (d *SocketDevice) Open() error {
	addr := fmt.Sprintf("%s:%d", d.host, d.port)
	d.log.Debug("Connecting to %s", addr)

	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("%w: error connecting to %s: %v", ErrNoDevice, addr, err)
	}

	d.conn = conn
	return nil
}

func (d *SocketDevice) Close() error {
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	d.buffer = nil
	return err
}

func (d *SocketDevice) Write(data []byte) (int, error) {
	if d.conn == nil {
		return 0, &CommError{Op: "write", Err: ErrNoDevice}
	}

	n, err := d.conn.Write(data)
	if err != nil {
		return n, &CommError{Op: "write", Err: err}
	}
	return n, nil
}

func (d *SocketDevice) Read() (string, error) {
	if d.conn == nil {
		return "", &CommError{Op: "read", Err: ErrNoDevice}
	}

	buf := make([]byte, 1)
	n, err := d.readByte(buf)
	if err != nil {
		return "", err
	}
	if n == 0 || !keepByte(buf[0]) {
		return "", nil
	}
	return string(buf[:1]), nil
}

func (d *SocketDevice) ReadLine(timeout time.Duration, purge bool) (string, error) {
	if d.conn == nil {
		return "", &CommError{Op: "read", Err: ErrNoDevice}
	}

	if purge {
		d.buffer = nil
	}

	deadline := time.Now().Add(timeout)
	buf := make([]byte, 1)

	for timeout == 0 || time.Now().Before(deadline) {
		n, err := d.readByte(buf)
		if err != nil {
			return "", err
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

// readByte performs one bounded read. A poll-interval deadline expiry
// returns n == 0 rather than an error so callers control the overall
// timeout.
func (d *SocketDevice) readByte(buf []byte) (int, error) {
	if err := d.conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
		return 0, &CommError{Op: "read", Err: err}
	}

	n, err := d.conn.Read(buf)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return 0, nil
		}
		return n, &CommError{Op: "read", Err: err}
	}
	return n, nil
}

func (d *SocketDevice) Purge() error {
	d.buffer = nil
	return nil
}
