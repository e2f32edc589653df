package snmp

import (
	"fmt"
	"math"
	"strings"
)

// toInt64/toFloat64/toDisplayString widen a raw gosnmp PDU value onto the
// Go type the declared monitoring-item value type expects. gosnmp returns
// integers as int/int32/int64/uint/uint32/uint64 depending on the PDU tag,
// so every numeric variant must be handled explicitly rather than asserted
// to a single type.

func toInt64(v interface{}) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", x)
		}
		return int64(x), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", v)
	}
}

func toFloat64(v interface{}) (float64, error) {
	switch x := v.(type) {
	case int:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", v)
	}
}

// toDisplayString converts an OctetString to UTF-8, stripping trailing
// NULs and truncating to guard against a malicious or misbehaving agent
// returning an unbounded string.
func toDisplayString(v interface{}) (string, error) {
	const maxLen = 1024
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case []byte:
		s = string(x)
	default:
		return fmt.Sprintf("%v", v), nil
	}
	if strings.ContainsRune(s, '\x00') {
		s = strings.ReplaceAll(s, "\x00", "")
	}
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s, nil
}
