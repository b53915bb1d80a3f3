package numeric

import (
	"math"

	"golang.org/x/exp/constraints"
)

type integerAdapter[V constraints.Integer] struct {
	kind Kind
	min  V
	max  V
}

func (a integerAdapter[V]) Kind() Kind {
	return a.kind
}

func (a integerAdapter[V]) ToFloat(v V) float64 {
	return float64(v)
}

func (a integerAdapter[V]) FromFloat(f float64) V {
	if math.IsNaN(f) {
		return 0
	}
	f = math.Round(f)
	if f <= float64(a.min) {
		return a.min
	}
	if f >= float64(a.max) {
		return a.max
	}
	return V(f)
}

type floatAdapter[V constraints.Float] struct {
	kind Kind
}

func (a floatAdapter[V]) Kind() Kind {
	return a.kind
}

func (a floatAdapter[V]) ToFloat(v V) float64 {
	return float64(v)
}

func (a floatAdapter[V]) FromFloat(f float64) V {
	return V(f)
}
