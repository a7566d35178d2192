// Package dataset is an in-memory design matrix that hands out batches.
package dataset

import (
	"math/rand"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	"gorgonia.org/tensor/native"
)

// Dense serves batches of rows of a design matrix. Rows are served in order; once an epoch
// cannot fill the next batch the rows are shuffled and serving restarts from the top.
type Dense struct {
	X *tensor.Dense

	rng    *rand.Rand
	cursor int
	epochs int
}

// Option configures a Dense dataset.
type Option func(*Dense)

// WithRand shuffles with r.
func WithRand(r *rand.Rand) Option {
	return func(d *Dense) { d.rng = r }
}

// New wraps the (examples, features) matrix X. X is shuffled in place between epochs.
func New(X *tensor.Dense, opts ...Option) (*Dense, error) {
	if X.Shape().Dims() != 2 {
		return nil, errors.Errorf("expected a design matrix, got shape %v", X.Shape())
	}
	if X.Dtype() != tensor.Float64 && X.Dtype() != tensor.Float32 {
		return nil, errors.Errorf("unsupported dtype %v", X.Dtype())
	}
	d := &Dense{X: X}
	for _, opt := range opts {
		opt(d)
	}
	if d.rng == nil {
		d.rng = rand.New(rand.NewSource(1))
	}
	return d, nil
}

// Len is the number of examples.
func (d *Dense) Len() int { return d.X.Shape()[0] }

// Epochs is the number of completed passes over the data.
func (d *Dense) Epochs() int { return d.epochs }

// BatchDesign returns a copy of the next n rows.
func (d *Dense) BatchDesign(n int) (*tensor.Dense, error) {
	if n < 1 || n > d.Len() {
		return nil, errors.Errorf("cannot draw a batch of %d from %d examples", n, d.Len())
	}
	if d.cursor+n > d.Len() {
		if err := d.shuffle(); err != nil {
			return nil, err
		}
		d.cursor = 0
		d.epochs++
	}

	var s slicer
	batch := s.Slice(d.X, sli(d.cursor, d.cursor+n))
	if s.err != nil {
		return nil, s.err
	}
	d.cursor += n

	retVal := tensor.New(tensor.Of(d.X.Dtype()), tensor.WithShape(n, d.X.Shape()[1]))
	if err := tensor.Copy(retVal, batch); err != nil {
		return nil, errors.Wrapf(err, "copying batch")
	}
	return retVal, nil
}

// shuffle permutes the rows of X in place.
func (d *Dense) shuffle() (err error) {
	switch d.X.Dtype() {
	case tensor.Float64:
		var rows [][]float64
		if rows, err = native.MatrixF64(d.X); err != nil {
			return errors.Wrapf(err, "shuffle failed")
		}
		tmp := make([]float64, d.X.Shape()[1])
		for i := range rows {
			j := d.rng.Intn(i + 1)
			copy(tmp, rows[i])
			copy(rows[i], rows[j])
			copy(rows[j], tmp)
		}
	case tensor.Float32:
		var rows [][]float32
		if rows, err = native.MatrixF32(d.X); err != nil {
			return errors.Wrapf(err, "shuffle failed")
		}
		tmp := make([]float32, d.X.Shape()[1])
		for i := range rows {
			j := d.rng.Intn(i + 1)
			copy(tmp, rows[i])
			copy(rows[i], rows[j])
			copy(rows[j], tmp)
		}
	}
	return nil
}

type slicer struct {
	v   tensor.View
	err error
}

func (s *slicer) Slice(a *tensor.Dense, slices ...tensor.Slice) *tensor.Dense {
	if s.err != nil {
		return nil
	}
	if s.v, s.err = a.Slice(slices...); s.err != nil {
		s.err = errors.Wrapf(s.err, "Slicer failed")
		return nil
	}
	return s.v.(*tensor.Dense)
}

type rs struct {
	start, end, step int
}

func (s rs) Start() int { return s.start }
func (s rs) End() int   { return s.end }
func (s rs) Step() int  { return s.step }

func sli(start, end int) rs {
	return rs{start: start, end: end, step: 1}
}
