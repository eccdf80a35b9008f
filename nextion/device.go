package nextion

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tarm/serial"
)

// DefaultBaud is the factory setting of the display's serial port
const DefaultBaud = 9600

// Device is the Transport of a physical display, attached via a serial port
// or a serial-to-network bridge.
type Device struct {
	conn         io.ReadWriteCloser
	r            *bufio.Reader
	w            *bufio.Writer
	rlock, wlock sync.Mutex

	link      string
	network   bool
	connected bool
	doneOnce  sync.Once

	// Baud is used for serial links; 0 means DefaultBaud
	Baud int
	// Timeout bounds the wait for each reply byte; 0 waits forever
	Timeout time.Duration

	// Done is closed when the link fails and needs a Reconnect
	Done chan struct{}
}

// NewDevice returns an unconnected Device
func NewDevice() *Device {
	return &Device{Baud: DefaultBaud}
}

// Connect attaches to the display via serial device or a tcp socket.
// Use socket://[host]:[port] or tcp://[host]:[port] for network bridges,
// anything else is taken as a serial device path.
func (o *Device) Connect(link string) error {
	o.rlock.Lock()
	o.wlock.Lock()
	defer o.rlock.Unlock()
	defer o.wlock.Unlock()

	u, err := url.Parse(link)
	if err != nil {
		o.connected = false
		return err
	}

	if (u.Scheme == "socket") || (u.Scheme == "tcp") {
		c, err := net.Dial("tcp", u.Host)
		if err != nil {
			return err
		}
		c.(*net.TCPConn).SetKeepAlive(true)
		c.(*net.TCPConn).SetKeepAlivePeriod(30 * time.Second)
		o.conn = c
	} else if (u.Scheme == "file") || (u.Scheme == "") {
		baud := o.Baud
		if baud == 0 {
			baud = DefaultBaud
		}
		// tarm/serial polls in tenths of a second
		c, err := serial.OpenPort(&serial.Config{Name: u.Path, Baud: baud, Size: 8, Parity: serial.ParityNone, StopBits: serial.Stop1, ReadTimeout: o.Timeout})
		if err != nil {
			return err
		}
		o.conn = c
	} else {
		o.connected = false
		return fmt.Errorf("Can not find a valid connection string in \"%v\"", link)
	}
	log.Debugf("Connected to %v", link)
	o.attach(o.conn)
	o.link = link
	return nil
}

// attach starts using conn as the link
func (o *Device) attach(conn io.ReadWriteCloser) {
	o.conn = conn
	_, o.network = conn.(net.Conn)
	o.r = bufio.NewReader(conn)
	o.w = bufio.NewWriter(conn)
	o.connected = true
	o.Done = make(chan struct{})
	o.doneOnce = sync.Once{}
}

// Reconnect closes the link and connects again to the last link
func (o *Device) Reconnect() error {
	o.Close()
	return o.Connect(o.link)
}

// Close closes Device, closing the underlying connection via serial or network
func (o *Device) Close() error {
	o.rlock.Lock()
	o.wlock.Lock()
	defer o.rlock.Unlock()
	defer o.wlock.Unlock()

	if !o.connected {
		return io.ErrClosedPipe
	}
	o.connected = false
	o.fail()
	return o.conn.Close()
}

func (o *Device) fail() {
	o.doneOnce.Do(func() { close(o.Done) })
}

// Write buffers b until Flush
func (o *Device) Write(b []byte) (int, error) {
	o.wlock.Lock()
	defer o.wlock.Unlock()
	if !o.connected {
		return 0, io.EOF
	}
	n, err := o.w.Write(b)
	log.Debugf("Write b='%# x', n=%v, err=%v", b, n, err)
	return n, err
}

// Flush sends all buffered bytes
func (o *Device) Flush() error {
	o.wlock.Lock()
	defer o.wlock.Unlock()
	if !o.connected {
		return io.EOF
	}
	if err := o.w.Flush(); err != nil {
		log.Errorf("Flush failed: %v", err)
		o.fail()
		return err
	}
	return nil
}

// ReadByte reads a single byte, waiting at most Timeout.
// An expired wait returns os.ErrDeadlineExceeded.
func (o *Device) ReadByte() (byte, error) {
	o.rlock.Lock()
	defer o.rlock.Unlock()
	if !o.connected {
		return 0, io.EOF
	}
	if o.network && o.Timeout > 0 && o.r.Buffered() == 0 {
		o.conn.(net.Conn).SetReadDeadline(time.Now().Add(o.Timeout))
	}
	b, err := o.r.ReadByte()
	switch {
	case err == nil:
		log.Tracef("Read b=%#02x", b)
		return b, nil
	case !o.network && o.Timeout > 0 && errors.Is(err, io.EOF):
		// a serial read returning nothing within ReadTimeout
		return 0, os.ErrDeadlineExceeded
	case isTimeout(err):
		return 0, err
	}
	log.Errorf("Read failed: %v", err)
	o.fail()
	return 0, err
}

// Drain discards bytes already received but not yet read, e.g. to
// resynchronize after a torn frame.
func (o *Device) Drain() int {
	o.rlock.Lock()
	defer o.rlock.Unlock()
	if !o.connected {
		return 0
	}
	n, _ := o.r.Discard(o.r.Buffered())
	if n > 0 {
		log.Debugf("Drained %v bytes", n)
	}
	return n
}
