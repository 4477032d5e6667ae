package modbus

import (
	"fmt"
	"net"
	"sync"
	"time"

	"energylogger/pkg/runtime/constant"
	"energylogger/pkg/utils/binutil"
	v1 "energylogger/pkg/v1"
	goburrow "github.com/goburrow/modbus"
	"github.com/pkg/errors"
	"go.bug.st/serial"
	"k8s.io/klog/v2"
)

// Session is one open link, used for the register groups of a single device
// and then closed.
type Session interface {
	ReadRegisters(slave uint8, fc constant.FunctionCode, start, count uint16) ([]uint16, error)
	Close() error
}

type Opener interface {
	Open(d *v1.Device) (Session, error)
}

type PortOpener func(path string, mode *serial.Mode) (serial.Port, error)

type Dialer func(network, address string, timeout time.Duration) (net.Conn, error)

var _ Opener = (*SessionOpener)(nil)

type SessionOpener struct {
	Locks    *LinkLocks
	OpenPort PortOpener
	Dial     Dialer
}

func NewOpener() *SessionOpener {
	return &SessionOpener{
		Locks:    NewLinkLocks(),
		OpenPort: serial.Open,
		Dial:     net.DialTimeout,
	}
}

// Open connects to the link of d. Errors wrap constant.ErrTransport.
func (o *SessionOpener) Open(d *v1.Device) (Session, error) {
	link := d.Link()
	release, err := o.Locks.Acquire(link, d.Timeout.Duration())
	if err != nil {
		return nil, err
	}

	var s *session
	switch d.Transport {
	case constant.TransportRtu:
		s, err = o.openRtu(d)
	case constant.TransportTcp:
		s, err = o.openTcp(d)
	case constant.TransportRtuOverTcp:
		s, err = o.openRtuOverTcp(d)
	default:
		err = constant.ErrDeviceType
	}
	if err != nil {
		release()
		klog.V(2).InfoS("Failed to open link", "link", link, "transport", d.Transport, "error", err)
		if errors.Is(err, constant.ErrTransport) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: open %s: %w", constant.ErrTransport, link, err)
	}
	s.release = release
	klog.V(5).InfoS("Opened link", "link", link, "transport", d.Transport)
	return s, nil
}

func (o *SessionOpener) openRtu(d *v1.Device) (*session, error) {
	mode := &serial.Mode{
		BaudRate: d.BaudRate,
		Parity:   ParityToParity[d.Parity],
		DataBits: d.ByteSize,
		StopBits: StopBitsToStopBits[d.StopBits],
	}
	port, err := o.OpenPort(d.Port, mode)
	if err != nil {
		return nil, err
	}
	return newRtuSession(d.Port, &SerialClient{Timeout: d.Timeout.Duration(), Port: port}, d.BaudRate), nil
}

func (o *SessionOpener) openRtuOverTcp(d *v1.Device) (*session, error) {
	link := d.Link()
	tunnel, err := o.Dial("tcp", link, d.Timeout.Duration())
	if err != nil {
		return nil, err
	}
	return newRtuSession(link, &TcpClient{Timeout: d.Timeout.Duration(), Tunnel: tunnel}, d.BaudRate), nil
}

func (o *SessionOpener) openTcp(d *v1.Device) (*session, error) {
	handler := goburrow.NewTCPClientHandler(d.Link())
	handler.Timeout = d.Timeout.Duration()
	if err := handler.Connect(); err != nil {
		return nil, err
	}
	return &session{
		link:     d.Link(),
		client:   goburrow.NewClient(handler),
		setSlave: func(id uint8) { handler.SlaveId = id },
		close:    handler.Close,
	}, nil
}

func newRtuSession(link string, m Messenger, baudRate int) *session {
	// only the packager half of the handler is used
	packager := goburrow.NewRTUClientHandler(link)
	return &session{
		link:     link,
		client:   goburrow.NewClient2(packager, newRtuTransporter(m, baudRate)),
		setSlave: func(id uint8) { packager.SlaveId = id },
		close:    m.Close,
	}
}

type session struct {
	link     string
	client   goburrow.Client
	setSlave func(uint8)
	close    func() error
	release  func()

	once   sync.Once
	closed bool
}

func (s *session) ReadRegisters(slave uint8, fc constant.FunctionCode, start, count uint16) ([]uint16, error) {
	if s.closed {
		return nil, fmt.Errorf("%w: %w", constant.ErrTransport, constant.ErrSessionClosed)
	}
	s.setSlave(slave)

	var results []byte
	var err error
	switch fc {
	case constant.ReadHoldRegister:
		results, err = s.client.ReadHoldingRegisters(start, count)
	case constant.ReadInputRegister:
		results, err = s.client.ReadInputRegisters(start, count)
	default:
		return nil, fmt.Errorf("%w: unsupported function code %d", constant.ErrProtocol, fc)
	}
	if err != nil {
		return nil, errors.Wrapf(classify(err), "read %s registers %d+%d from slave %d on %s", fc, start, count, slave, s.link)
	}
	if len(results) != int(count)*2 {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", constant.ErrTransport, int(count)*2, len(results))
	}
	return binutil.ParseWords(results), nil
}

func (s *session) Close() error {
	var err error
	s.once.Do(func() {
		s.closed = true
		err = s.close()
		if s.release != nil {
			s.release()
		}
	})
	return err
}

// classify maps protocol master errors onto the error taxonomy.
func classify(err error) error {
	var me *goburrow.ModbusError
	switch {
	case errors.As(err, &me):
		return fmt.Errorf("%w: %w", constant.ErrProtocol, err)
	case errors.Is(err, constant.ErrTransport):
		return err
	default:
		return fmt.Errorf("%w: %w", constant.ErrTransport, err)
	}
}
