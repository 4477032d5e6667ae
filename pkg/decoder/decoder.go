package decoder

import (
	"fmt"

	"energylogger/pkg/runtime/constant"
	"energylogger/pkg/utils/binutil"
)

// Decode turns the raw words of one register group into a typed value.
//
// Results are float32 for the float types, int32, uint32 and uint64 for the
// integer types, and uint16 or []uint16 for RawPassthrough. A word count that
// does not match the type's width fails with an error wrapping
// constant.ErrDecode.
func Decode(words []uint16, dt constant.DecodeType) (interface{}, error) {
	if err := CheckWidth(dt, len(words)); err != nil {
		return nil, err
	}

	switch dt {
	case constant.FloatBE32:
		return binutil.Float32HighFirst(words), nil
	case constant.RawSigned32:
		return int32(binutil.Uint32HighFirst(words)), nil
	case constant.RawPassthrough:
		if len(words) == 1 {
			return words[0], nil
		}
		return binutil.Dup(words), nil
	case constant.SwappedWord32:
		return binutil.Uint32LowFirst(words), nil
	case constant.RawUnsigned32:
		return binutil.Uint32HighFirst(words), nil
	case constant.Unsigned64:
		return binutil.Uint64HighFirst(words), nil
	case constant.FloatWordSwapped:
		return binutil.Float32LowFirst(words), nil
	}
	return nil, fmt.Errorf("%w: unknown decode type %s", constant.ErrDecode, dt)
}

// CheckWidth reports whether count registers fit decode type dt.
func CheckWidth(dt constant.DecodeType, count int) error {
	if !dt.Valid() {
		return fmt.Errorf("%w: unknown decode type %s", constant.ErrDecode, dt)
	}
	if dt == constant.RawPassthrough {
		if count < 1 {
			return fmt.Errorf("%w: %s needs at least 1 word, got %d", constant.ErrDecode, dt, count)
		}
		return nil
	}
	if want := constant.DecodeTypeWord[dt]; count != want {
		return fmt.Errorf("%w: %s needs %d words, got %d", constant.ErrDecode, dt, want, count)
	}
	return nil
}
