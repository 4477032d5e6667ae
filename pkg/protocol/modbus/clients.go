package modbus

import (
	"fmt"
	"io"
	"net"
	"time"

	"energylogger/pkg/runtime/constant"
	"go.bug.st/serial"
	"k8s.io/klog/v2"
)

var _ Messenger = (*TcpClient)(nil)
var _ Messenger = (*SerialClient)(nil)

// Messenger moves raw frames over one physical link.
type Messenger interface {
	Ask(request []byte) error
	// ReadAtLeast reads into buf until at least min bytes arrived or the link
	// timeout expired.
	ReadAtLeast(buf []byte, min int) (int, error)
	Close() error
}

type TcpClient struct {
	Timeout time.Duration
	Tunnel  net.Conn
}

func (tc *TcpClient) Ask(request []byte) error {
	if err := tc.Tunnel.SetWriteDeadline(time.Now().Add(tc.Timeout)); err != nil {
		return fmt.Errorf("%w: %w", constant.ErrTransport, err)
	}
	if _, err := tc.Tunnel.Write(request); err != nil {
		klog.V(2).InfoS("Failed to ask message", "error", err)
		return fmt.Errorf("%w: write: %w", constant.ErrTransport, err)
	}
	klog.V(5).InfoS("Succeed to write bytes to tunnel", "bytes", request)
	return nil
}

func (tc *TcpClient) ReadAtLeast(buf []byte, min int) (int, error) {
	if err := tc.Tunnel.SetReadDeadline(time.Now().Add(tc.Timeout)); err != nil {
		return 0, fmt.Errorf("%w: %w", constant.ErrTransport, err)
	}
	n, err := io.ReadAtLeast(tc.Tunnel, buf, min)
	if err != nil {
		return n, fmt.Errorf("%w: read: %w", constant.ErrTransport, err)
	}
	return n, nil
}

func (tc *TcpClient) Close() error {
	return tc.Tunnel.Close()
}

type SerialClient struct {
	Timeout time.Duration
	Port    serial.Port
}

func (sc *SerialClient) Ask(request []byte) error {
	// drop stale bytes of an earlier timed out response
	if err := sc.Port.ResetInputBuffer(); err != nil {
		klog.V(5).InfoS("Failed to reset serial input buffer", "error", err)
	}
	rql, err := sc.Port.Write(request)
	if err != nil {
		klog.V(2).InfoS("Failed to write byte to series port", "error", err)
		return fmt.Errorf("%w: write: %w", constant.ErrTransport, err)
	}
	klog.V(5).InfoS("Succeed to write byte to series port", "bytes", request, "length", rql)
	return nil
}

func (sc *SerialClient) ReadAtLeast(buf []byte, min int) (int, error) {
	if err := sc.Port.SetReadTimeout(sc.Timeout); err != nil {
		klog.V(2).InfoS("Failed to set serial read timeout", "error", err)
		return 0, fmt.Errorf("%w: %w", constant.ErrTransport, err)
	}

	deadline := time.Now().Add(sc.Timeout)
	n := 0
	for n < min {
		m, err := sc.Port.Read(buf[n:])
		if err != nil {
			klog.V(2).InfoS("Failed to read byte from series port", "error", err)
			return n, fmt.Errorf("%w: read: %w", constant.ErrTransport, err)
		}
		n += m
		// a zero read is the port's timeout
		if n < min && (m == 0 || time.Now().After(deadline)) {
			return n, fmt.Errorf("%w: timeout after %d of %d bytes", constant.ErrTransport, n, min)
		}
	}
	return n, nil
}

func (sc *SerialClient) Close() error {
	return sc.Port.Close()
}
