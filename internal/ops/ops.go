// Package ops holds the dtype-aware tensor helpers shared by the mean-field engine,
// the energy model and the sufficient statistics. Every helper accepts either
// tensor.Float64 or tensor.Float32 tensors and returns tensors of the same dtype.
package ops

import (
	"math"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	"gorgonia.org/vecf32"
	"gorgonia.org/vecf64"
)

// ErrDtype is returned when a helper is handed a tensor that is neither float32 nor float64.
var ErrDtype = errors.New("unsupported dtype")

// Supported reports whether dt is one of the floating point types the core computes in.
func Supported(dt tensor.Dtype) bool { return dt == tensor.Float64 || dt == tensor.Float32 }

// Scalar returns v as a value of the given dtype, suitable for the *Scalar methods of *tensor.Dense.
func Scalar(dt tensor.Dtype, v float64) interface{} {
	if dt == tensor.Float32 {
		return float32(v)
	}
	return v
}

// Zeros returns a zero filled tensor of the given shape.
func Zeros(dt tensor.Dtype, shape ...int) *tensor.Dense {
	return tensor.New(tensor.Of(dt), tensor.WithShape(shape...))
}

// Full returns a tensor of the given shape with every element set to v.
func Full(dt tensor.Dtype, v float64, shape ...int) *tensor.Dense {
	size := tensor.Shape(shape).TotalSize()
	if dt == tensor.Float32 {
		backing := make([]float32, size)
		for i := range backing {
			backing[i] = float32(v)
		}
		return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(backing))
	}
	backing := make([]float64, size)
	for i := range backing {
		backing[i] = v
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(backing))
}

// FromFloat64s builds a tensor of the given dtype and shape from float64 values.
func FromFloat64s(dt tensor.Dtype, data []float64, shape ...int) *tensor.Dense {
	if dt == tensor.Float32 {
		backing := make([]float32, len(data))
		for i, v := range data {
			backing[i] = float32(v)
		}
		return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(backing))
	}
	backing := make([]float64, len(data))
	copy(backing, data)
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(backing))
}

// Float64s returns a copy of the tensor's elements as float64s, in row-major order.
// Views are materialized first.
func Float64s(t *tensor.Dense) []float64 {
	if t.IsView() {
		if m, ok := t.Materialize().(*tensor.Dense); ok {
			t = m
		}
	}
	switch t.Dtype() {
	case tensor.Float64:
		src := t.Float64s()
		retVal := make([]float64, len(src))
		copy(retVal, src)
		return retVal
	case tensor.Float32:
		src := t.Float32s()
		retVal := make([]float64, len(src))
		for i, v := range src {
			retVal[i] = float64(v)
		}
		return retVal
	}
	return nil
}

// Cast returns t converted to dt. If t already has dtype dt it is returned as is.
func Cast(t *tensor.Dense, dt tensor.Dtype) (*tensor.Dense, error) {
	if t.Dtype() == dt {
		return t, nil
	}
	if !Supported(t.Dtype()) || !Supported(dt) {
		return nil, errors.Wrapf(ErrDtype, "cannot cast %v to %v", t.Dtype(), dt)
	}
	return FromFloat64s(dt, Float64s(t), t.Shape().Clone()...), nil
}

// Total sums every element of t.
func Total(t *tensor.Dense) float64 {
	switch t.Dtype() {
	case tensor.Float64:
		return vecf64.Sum(t.Float64s())
	case tensor.Float32:
		return float64(vecf32.Sum(t.Float32s()))
	}
	return math.NaN()
}

// Rows returns the size of the leading (batch) axis of t.
func Rows(t *tensor.Dense) int {
	if t.Shape().Dims() == 0 {
		return 1
	}
	return t.Shape()[0]
}

// Cols returns the size of the trailing axis of a matrix, or the length of a vector.
func Cols(t *tensor.Dense) int {
	s := t.Shape()
	if s.Dims() == 0 {
		return 1
	}
	return s[s.Dims()-1]
}

// Sigmoid applies the logistic function elementwise, returning a new tensor.
func Sigmoid(t *tensor.Dense) (*tensor.Dense, error) {
	var fn interface{}
	switch t.Dtype() {
	case tensor.Float64:
		fn = func(x float64) float64 { return 1 / (1 + math.Exp(-x)) }
	case tensor.Float32:
		fn = func(x float32) float32 { return 1 / (1 + math32.Exp(-x)) }
	default:
		return nil, errors.Wrapf(ErrDtype, "sigmoid of %v", t.Dtype())
	}
	return apply(t, fn)
}

// Clip clamps every element of t into [lo, hi], returning a new tensor.
func Clip(t *tensor.Dense, lo, hi float64) (*tensor.Dense, error) {
	var fn interface{}
	switch t.Dtype() {
	case tensor.Float64:
		fn = func(x float64) float64 { return math.Max(lo, math.Min(hi, x)) }
	case tensor.Float32:
		l, h := float32(lo), float32(hi)
		fn = func(x float32) float32 { return math32.Max(l, math32.Min(h, x)) }
	default:
		return nil, errors.Wrapf(ErrDtype, "clip of %v", t.Dtype())
	}
	return apply(t, fn)
}

// BinaryEntropy returns, for a matrix of Bernoulli probabilities, the per-row sum of
// -p log p - (1-p) log(1-p). 0 log 0 is taken to be 0.
func BinaryEntropy(p *tensor.Dense) (*tensor.Dense, error) {
	var fn interface{}
	switch p.Dtype() {
	case tensor.Float64:
		fn = func(x float64) float64 { return -xlogx(x) - xlogx(1-x) }
	case tensor.Float32:
		fn = func(x float32) float32 { return -xlogx32(x) - xlogx32(1-x) }
	default:
		return nil, errors.Wrapf(ErrDtype, "entropy of %v", p.Dtype())
	}
	h, err := apply(p, fn)
	if err != nil {
		return nil, err
	}
	if h.Shape().Dims() < 2 {
		return h, nil
	}
	retVal, err := h.Sum(1)
	return retVal, errors.WithStack(err)
}

func xlogx(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return x * math.Log(x)
}

func xlogx32(x float32) float32 {
	if x <= 0 {
		return 0
	}
	return x * math32.Log(x)
}

func apply(t *tensor.Dense, fn interface{}) (*tensor.Dense, error) {
	retVal, err := t.Apply(fn)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return retVal.(*tensor.Dense), nil
}

// TileRows stacks m copies of the vector v into an (m, len(v)) matrix.
func TileRows(v *tensor.Dense, m int) (*tensor.Dense, error) {
	n := v.Shape().TotalSize()
	switch v.Dtype() {
	case tensor.Float64:
		src := v.Float64s()
		backing := make([]float64, m*n)
		for i := 0; i < m; i++ {
			copy(backing[i*n:(i+1)*n], src)
		}
		return tensor.New(tensor.WithShape(m, n), tensor.WithBacking(backing)), nil
	case tensor.Float32:
		src := v.Float32s()
		backing := make([]float32, m*n)
		for i := 0; i < m; i++ {
			copy(backing[i*n:(i+1)*n], src)
		}
		return tensor.New(tensor.WithShape(m, n), tensor.WithBacking(backing)), nil
	}
	return nil, errors.Wrapf(ErrDtype, "tile of %v", v.Dtype())
}

// AddRowVector adds the vector b to every row of the matrix a.
func AddRowVector(a, b *tensor.Dense) (*tensor.Dense, error) {
	if Cols(a) != b.Shape().TotalSize() {
		return nil, errors.Errorf("cannot add vector of length %d to rows of %v", b.Shape().TotalSize(), a.Shape())
	}
	tiled, err := TileRows(b, Rows(a))
	if err != nil {
		return nil, err
	}
	retVal, err := a.Add(tiled)
	return retVal, errors.WithStack(err)
}

// MeanRows averages a matrix over its leading (batch) axis.
func MeanRows(a *tensor.Dense) (*tensor.Dense, error) {
	sum, err := a.Sum(0)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	retVal, err := sum.DivScalar(Scalar(a.Dtype(), float64(Rows(a))), true)
	return retVal, errors.WithStack(err)
}

// OneMinus returns 1 - a elementwise.
func OneMinus(a *tensor.Dense) (*tensor.Dense, error) {
	neg, err := a.MulScalar(Scalar(a.Dtype(), -1), true)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	retVal, err := neg.AddScalar(Scalar(a.Dtype(), 1), true)
	return retVal, errors.WithStack(err)
}

// Square returns a⊙a.
func Square(a *tensor.Dense) (*tensor.Dense, error) {
	retVal, err := a.Mul(a)
	return retVal, errors.WithStack(err)
}

// Transposed returns a materialized transpose of the matrix a. a is left untouched.
func Transposed(a *tensor.Dense) (*tensor.Dense, error) {
	retVal := a.Clone().(*tensor.Dense)
	if err := retVal.T(); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := retVal.Transpose(); err != nil {
		return nil, errors.WithStack(err)
	}
	return retVal, nil
}

// MinMeanMax summarizes the elements of t.
func MinMeanMax(t *tensor.Dense) (min, mean, max float64) {
	return Summarize(Float64s(t))
}

// Summarize returns the minimum, mean and maximum of xs. All three are NaN for an empty slice.
func Summarize(xs []float64) (min, mean, max float64) {
	if len(xs) == 0 {
		return math.NaN(), math.NaN(), math.NaN()
	}
	min = xs[vecf64.Argmin(xs)]
	max = xs[vecf64.Argmax(xs)]
	mean = vecf64.Sum(xs) / float64(len(xs))
	return
}
