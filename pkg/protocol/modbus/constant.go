package modbus

import (
	"time"

	"energylogger/pkg/runtime/constant"
	"go.bug.st/serial"
)

const (
	// rtu adu = address(1) + pdu(253) + crc(2)
	rtuMaxSize = 256
	// exception response: address, function code, exception code, crc
	rtuExceptionSize = 5
	rtuHeaderSize    = 3
	rtuCrcSize       = 2

	// fixed t3.5 above 19200 baud
	minFrameDelay = 1750 * time.Microsecond
)

var StopBitsToStopBits = map[constant.StopBits]serial.StopBits{
	constant.OneStopBit:  serial.OneStopBit,
	constant.TwoStopBits: serial.TwoStopBits,
}

var ParityToParity = map[constant.Parity]serial.Parity{
	constant.NoParity:   serial.NoParity,
	constant.OddParity:  serial.OddParity,
	constant.EvenParity: serial.EvenParity,
}

// frameDelay is the silent interval of 3.5 characters that separates frames.
func frameDelay(baudRate int) time.Duration {
	if baudRate <= 0 || baudRate > 19200 {
		return minFrameDelay
	}
	// one character is 11 bits
	return time.Duration(35*11) * time.Second / time.Duration(10*baudRate)
}
