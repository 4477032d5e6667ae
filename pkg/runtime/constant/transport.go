package constant

import (
	"encoding/json"
	"fmt"
)

type TransportKind int8

const (
	// TransportRtu is a serial multidrop link shared by many devices.
	TransportRtu TransportKind = iota
	// TransportTcp is one device per network endpoint.
	TransportTcp
	// TransportRtuOverTcp carries RTU frames through a serial-to-ethernet converter.
	TransportRtuOverTcp
)

var TransportKindToString = map[TransportKind]string{
	TransportRtu:        "rtu",
	TransportTcp:        "tcp",
	TransportRtuOverTcp: "rtuovertcp",
}

var StringToTransportKind = map[string]TransportKind{
	"rtu":        TransportRtu,
	"tcp":        TransportTcp,
	"rtuovertcp": TransportRtuOverTcp,
}

func (tk TransportKind) String() string {
	if s, ok := TransportKindToString[tk]; ok {
		return s
	}
	return fmt.Sprintf("TransportKind(%d)", tk)
}

// Networked reports whether the link is addressed by host and port.
func (tk TransportKind) Networked() bool {
	return tk == TransportTcp || tk == TransportRtuOverTcp
}

func (tk TransportKind) MarshalJSON() ([]byte, error) {
	if s, ok := TransportKindToString[tk]; ok {
		return json.Marshal(s)
	}
	return nil, fmt.Errorf("unknown transport %d", tk)
}

func (tk *TransportKind) UnmarshalJSON(bytes []byte) error {
	var s string
	if err := json.Unmarshal(bytes, &s); err != nil {
		return err
	}

	v, ok := StringToTransportKind[s]
	if !ok {
		return fmt.Errorf("unknown transport %s", s)
	}
	*tk = v
	return nil
}

// FunctionCode is one of the two register read operations.
type FunctionCode uint8

const (
	ReadHoldRegister  FunctionCode = 3
	ReadInputRegister FunctionCode = 4
)

var FunctionCodeToString = map[FunctionCode]string{
	ReadHoldRegister:  "holding",
	ReadInputRegister: "input",
}

var StringToFunctionCode = map[string]FunctionCode{
	"holding": ReadHoldRegister,
	"input":   ReadInputRegister,
}

func (fc FunctionCode) String() string {
	if s, ok := FunctionCodeToString[fc]; ok {
		return s
	}
	return fmt.Sprintf("FunctionCode(%d)", uint8(fc))
}

func (fc FunctionCode) MarshalJSON() ([]byte, error) {
	if s, ok := FunctionCodeToString[fc]; ok {
		return json.Marshal(s)
	}
	return nil, fmt.Errorf("unknown function code %d", fc)
}

func (fc *FunctionCode) UnmarshalJSON(bytes []byte) error {
	var n uint8
	if err := json.Unmarshal(bytes, &n); err == nil {
		if _, ok := FunctionCodeToString[FunctionCode(n)]; !ok {
			return fmt.Errorf("unsupported function code %d", n)
		}
		*fc = FunctionCode(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(bytes, &s); err != nil {
		return err
	}
	v, ok := StringToFunctionCode[s]
	if !ok {
		return fmt.Errorf("unsupported function code %s", s)
	}
	*fc = v
	return nil
}
