package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// SafeNumber coerces a raw payload value into a non-negative finite float. Anything that
// cannot be read as such (nil, empty or non-numeric strings, NaN, infinities, negatives,
// booleans, nested objects) becomes 0. Third-party payloads are routinely partial or stale,
// so no error is ever returned.
func SafeNumber(v any) float64 {
	f := SignedNumber(v)
	if f < 0 {
		return 0
	}
	return f
}

// SignedNumber is SafeNumber without the sign clamp. Revenue rows use it so refunds and
// chargebacks reduce a sum instead of vanishing.
func SignedNumber(v any) float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		f = parseNumeric(n)
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func parseNumeric(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	s = strings.TrimLeft(s, "$€£¥")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if neg {
		s = "-" + s
	}
	parsed, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return parsed
}
