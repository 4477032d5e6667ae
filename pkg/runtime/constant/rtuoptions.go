package constant

import (
	"encoding/json"
	"fmt"
)

type StopBits int

const (
	// OneStopBit sets 1 stop bit (default)
	OneStopBit StopBits = iota
	// TwoStopBits sets 2 stop bits
	TwoStopBits
)

var StopBitsToString = map[StopBits]string{
	OneStopBit:  "1",
	TwoStopBits: "2",
}

var StringToStopBits = map[string]StopBits{
	"1": OneStopBit,
	"2": TwoStopBits,
}

func (sb StopBits) MarshalJSON() ([]byte, error) {
	if s, ok := StopBitsToString[sb]; ok {
		return json.Marshal(s)
	}
	return nil, fmt.Errorf("unknown stop bits %d", sb)
}

// UnmarshalJSON accepts both 1 and "1".
func (sb *StopBits) UnmarshalJSON(bytes []byte) error {
	var n int
	if err := json.Unmarshal(bytes, &n); err == nil {
		return sb.set(fmt.Sprint(n))
	}
	var s string
	if err := json.Unmarshal(bytes, &s); err != nil {
		return err
	}
	return sb.set(s)
}

func (sb *StopBits) set(s string) error {
	v, ok := StringToStopBits[s]
	if !ok {
		return fmt.Errorf("unknown stop bits %s", s)
	}
	*sb = v
	return nil
}

type Parity int

const (
	// NoParity disable parity control (default)
	NoParity Parity = iota
	// OddParity enable odd-parity check
	OddParity
	// EvenParity enable even-parity check
	EvenParity
)

var ParityToString = map[Parity]string{
	NoParity:   "N",
	OddParity:  "O",
	EvenParity: "E",
}

var StringToParity = map[string]Parity{
	"N": NoParity,
	"O": OddParity,
	"E": EvenParity,
}

func (p Parity) MarshalJSON() ([]byte, error) {
	if s, ok := ParityToString[p]; ok {
		return json.Marshal(s)
	}
	return nil, fmt.Errorf("unknown parity %d", p)
}

func (p *Parity) UnmarshalJSON(bytes []byte) error {
	var s string
	if err := json.Unmarshal(bytes, &s); err != nil {
		return err
	}

	v, ok := StringToParity[s]
	if !ok {
		return fmt.Errorf("unknown parity %s", s)
	}
	*p = v
	return nil
}
