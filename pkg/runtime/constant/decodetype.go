package constant

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// DecodeType selects how the raw register words of one register group are
// turned into a value. Ordinals are the ones used by register map files.
type DecodeType int8

const (
	FloatBE32 DecodeType = iota + 1
	RawSigned32
	RawPassthrough
	SwappedWord32
	RawUnsigned32
	Unsigned64
	FloatWordSwapped
)

var DecodeTypeToString = map[DecodeType]string{
	FloatBE32:        "float_be32",
	RawSigned32:      "raw_signed32",
	RawPassthrough:   "raw_passthrough",
	SwappedWord32:    "swapped_word32",
	RawUnsigned32:    "raw_unsigned32",
	Unsigned64:       "unsigned64",
	FloatWordSwapped: "float_word_swapped",
}

var StringToDecodeType = map[string]DecodeType{
	"float_be32":         FloatBE32,
	"raw_signed32":       RawSigned32,
	"raw_passthrough":    RawPassthrough,
	"swapped_word32":     SwappedWord32,
	"raw_unsigned32":     RawUnsigned32,
	"unsigned64":         Unsigned64,
	"float_word_swapped": FloatWordSwapped,
}

// DecodeTypeWord is the exact number of registers a decode type consumes.
// RawPassthrough is absent: it accepts any non-zero count.
var DecodeTypeWord = map[DecodeType]int{
	FloatBE32:        2,
	RawSigned32:      2,
	SwappedWord32:    2,
	RawUnsigned32:    2,
	Unsigned64:       4,
	FloatWordSwapped: 2,
}

func (dt DecodeType) String() string {
	if s, ok := DecodeTypeToString[dt]; ok {
		return s
	}
	return "DecodeType(" + strconv.Itoa(int(dt)) + ")"
}

func (dt DecodeType) Valid() bool {
	_, ok := DecodeTypeToString[dt]
	return ok
}

// ParseDecodeType accepts either the ordinal ("1".."7") or the symbolic name.
func ParseDecodeType(s string) (DecodeType, error) {
	if v, ok := StringToDecodeType[s]; ok {
		return v, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("unknown decode type %q", s)
	}
	return DecodeTypeFromOrdinal(n)
}

func DecodeTypeFromOrdinal(n int) (DecodeType, error) {
	dt := DecodeType(n)
	if n < int(FloatBE32) || n > int(FloatWordSwapped) || !dt.Valid() {
		return 0, fmt.Errorf("unknown decode type ordinal %d", n)
	}
	return dt, nil
}

func (dt DecodeType) MarshalJSON() ([]byte, error) {
	if s, ok := DecodeTypeToString[dt]; ok {
		return json.Marshal(s)
	}
	return nil, fmt.Errorf("unknown decode type %d", dt)
}

func (dt *DecodeType) UnmarshalJSON(bytes []byte) error {
	var n int
	if err := json.Unmarshal(bytes, &n); err == nil {
		v, err := DecodeTypeFromOrdinal(n)
		if err != nil {
			return err
		}
		*dt = v
		return nil
	}

	var s string
	if err := json.Unmarshal(bytes, &s); err != nil {
		return err
	}
	v, err := ParseDecodeType(s)
	if err != nil {
		return err
	}
	*dt = v
	return nil
}
