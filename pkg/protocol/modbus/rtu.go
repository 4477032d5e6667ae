package modbus

import (
	"fmt"
	"time"

	"energylogger/pkg/runtime/constant"
	"k8s.io/klog/v2"
)

// rtuTransporter carries RTU frames over a Messenger. Encoding and CRC
// checks stay with the goburrow RTU packager.
type rtuTransporter struct {
	messenger    Messenger
	frameDelay   time.Duration
	lastActivity time.Time
	sleep        func(time.Duration)
}

func newRtuTransporter(m Messenger, baudRate int) *rtuTransporter {
	return &rtuTransporter{messenger: m, frameDelay: frameDelay(baudRate), sleep: time.Sleep}
}

func (t *rtuTransporter) Send(aduRequest []byte) ([]byte, error) {
	if !t.lastActivity.IsZero() {
		if idle := time.Since(t.lastActivity); idle < t.frameDelay {
			t.sleep(t.frameDelay - idle)
		}
	}
	defer func() { t.lastActivity = time.Now() }()

	if err := t.messenger.Ask(aduRequest); err != nil {
		return nil, err
	}

	buf := make([]byte, rtuMaxSize)
	n, err := t.messenger.ReadAtLeast(buf, rtuExceptionSize)
	if err != nil {
		return nil, err
	}

	length := responseLength(aduRequest, buf[:n])
	if length > rtuMaxSize {
		return nil, fmt.Errorf("%w: response length %d exceeds %d", constant.ErrTransport, length, rtuMaxSize)
	}
	if n < length {
		m, err := t.messenger.ReadAtLeast(buf[n:], length-n)
		if err != nil {
			return nil, err
		}
		n += m
	}
	if n > length {
		klog.V(5).InfoS("Discarded trailing bytes", "bytes", buf[length:n])
	}
	klog.V(5).InfoS("Received rtu frame", "bytes", buf[:length])
	return buf[:length], nil
}

// responseLength derives the frame length from its header.
func responseLength(request, header []byte) int {
	functionCode := header[1]
	if functionCode&0x80 != 0 {
		return rtuExceptionSize
	}
	switch functionCode {
	case uint8(constant.ReadHoldRegister), uint8(constant.ReadInputRegister):
		return rtuHeaderSize + int(header[2]) + rtuCrcSize
	}
	// echo of the request for anything else
	return len(request)
}
