package survey

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// toDecimal converts the numeric shapes produced by JSON, YAML and Go
// callers into a decimal.
func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int8:
		return decimal.NewFromInt(int64(n)), true
	case int16:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt32(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case uint8:
		return decimal.NewFromInt(int64(n)), true
	case uint16:
		return decimal.NewFromInt(int64(n)), true
	case uint32:
		return decimal.NewFromInt(int64(n)), true
	case uint:
		return decimal.RequireFromString(strconv.FormatUint(uint64(n), 10)), true
	case uint64:
		return decimal.RequireFromString(strconv.FormatUint(n, 10)), true
	case float32:
		if !finite(float64(n)) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat32(n), true
	case float64:
		if !finite(n) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat(n), true
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		return d, err == nil
	}
	return decimal.Decimal{}, false
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// toWhole converts v to an integer, rejecting fractional values.
func toWhole(v any) (int64, bool) {
	d, ok := toDecimal(v)
	if !ok || !d.IsInteger() {
		return 0, false
	}
	if !d.Equal(decimal.NewFromInt(d.IntPart())) {
		// Out of int64 range.
		return 0, false
	}
	return d.IntPart(), true
}

// normalizeNumber returns an int64 for whole values and a float64
// otherwise, the shapes conditions compare against.
func normalizeNumber(d decimal.Decimal) any {
	if d.IsInteger() && d.Equal(decimal.NewFromInt(d.IntPart())) {
		return d.IntPart()
	}
	f, _ := d.Float64()
	return f
}
