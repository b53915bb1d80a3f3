// Package numeric bridges concrete numeric types to the float64 domain the
// sketch works in. Each supported kind has exactly one stateless Adapter,
// chosen by AdapterFor at construction time.
package numeric

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var ErrUnsupportedNumericKind = errors.New("unsupported numeric kind")

type Kind int

const (
	Int Kind = iota
	Int8
	Int16
	Int32
	Int64
	Uint
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	Decimal
)

var kindNames = map[Kind]string{
	Int:     "int",
	Int8:    "int8",
	Int16:   "int16",
	Int32:   "int32",
	Int64:   "int64",
	Uint:    "uint",
	Uint8:   "uint8",
	Uint16:  "uint16",
	Uint32:  "uint32",
	Uint64:  "uint64",
	Float32: "float32",
	Float64: "float64",
	Decimal: "decimal",
}

func (k Kind) String() string {
	name, ok := kindNames[k]
	if !ok {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return name
}

// Adapter converts values of one numeric kind into sketch observations and
// query results back into that kind.
type Adapter[V any] interface {
	Kind() Kind
	ToFloat(V) float64
	// FromFloat rounds to the nearest representable V, clamping to the
	// range of V.
	FromFloat(float64) V
}

// AdapterFor returns the adapter for V, or ErrUnsupportedNumericKind. Named
// types (type Celsius float64) are not supported.
func AdapterFor[V any]() (Adapter[V], error) {
	var zero V
	var adapter any
	switch any(zero).(type) {
	case int:
		adapter = integerAdapter[int]{kind: Int, min: math.MinInt, max: math.MaxInt}
	case int8:
		adapter = integerAdapter[int8]{kind: Int8, min: math.MinInt8, max: math.MaxInt8}
	case int16:
		adapter = integerAdapter[int16]{kind: Int16, min: math.MinInt16, max: math.MaxInt16}
	case int32:
		adapter = integerAdapter[int32]{kind: Int32, min: math.MinInt32, max: math.MaxInt32}
	case int64:
		adapter = integerAdapter[int64]{kind: Int64, min: math.MinInt64, max: math.MaxInt64}
	case uint:
		adapter = integerAdapter[uint]{kind: Uint, min: 0, max: math.MaxUint}
	case uint8:
		adapter = integerAdapter[uint8]{kind: Uint8, min: 0, max: math.MaxUint8}
	case uint16:
		adapter = integerAdapter[uint16]{kind: Uint16, min: 0, max: math.MaxUint16}
	case uint32:
		adapter = integerAdapter[uint32]{kind: Uint32, min: 0, max: math.MaxUint32}
	case uint64:
		adapter = integerAdapter[uint64]{kind: Uint64, min: 0, max: math.MaxUint64}
	case float32:
		adapter = floatAdapter[float32]{kind: Float32}
	case float64:
		adapter = floatAdapter[float64]{kind: Float64}
	case decimal.Decimal:
		adapter = decimalAdapter{}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedNumericKind, zero)
	}
	return adapter.(Adapter[V]), nil
}

// MustAdapterFor is AdapterFor for package-level variables.
func MustAdapterFor[V any]() Adapter[V] {
	adapter, err := AdapterFor[V]()
	if err != nil {
		panic(err)
	}
	return adapter
}
