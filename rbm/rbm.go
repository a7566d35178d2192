// Package rbm is a binary restricted Boltzmann machine parameter set.
//
// It only carries parameters and their constraints; training an RBM is left to the caller.
package rbm

import (
	"math/rand"

	"github.com/gorgonia/dbm/internal/ops"
	"github.com/gorgonia/dbm/param"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// RBM holds the weights and biases of one visible/hidden layer pair.
type RBM struct {
	name       string
	nvis, nhid int
	dt         tensor.Dtype

	// MaxWeight, if positive, bounds the magnitude of every weight after an update.
	MaxWeight float64

	weights, biasVis, biasHid *param.Param

	initRand  *rand.Rand
	initScale float64
	err       error
}

// Option configures an RBM at construction.
type Option func(*RBM)

// WithWeights uses w, of shape (nvis, nhid), as the initial weights.
func WithWeights(w *tensor.Dense) Option {
	return func(r *RBM) { r.weights = r.check("W", w, r.nvis, r.nhid) }
}

// WithBiasVis uses b, of length nvis, as the initial visible bias.
func WithBiasVis(b *tensor.Dense) Option {
	return func(r *RBM) { r.biasVis = r.check("bias_vis", b, r.nvis) }
}

// WithBiasHid uses b, of length nhid, as the initial hidden bias.
func WithBiasHid(b *tensor.Dense) Option {
	return func(r *RBM) { r.biasHid = r.check("bias_hid", b, r.nhid) }
}

// WithInit draws the initial weights uniformly from [-scale, scale] using rng.
func WithInit(rng *rand.Rand, scale float64) Option {
	return func(r *RBM) {
		r.initRand = rng
		r.initScale = scale
	}
}

// WithMaxWeight sets MaxWeight.
func WithMaxWeight(c float64) Option {
	return func(r *RBM) { r.MaxWeight = c }
}

// New creates an RBM with nvis visible and nhid hidden units. Parameters not supplied by
// options start at zero, unless WithInit is given, in which case weights are random.
func New(name string, nvis, nhid int, dt tensor.Dtype, opts ...Option) (*RBM, error) {
	if nvis < 1 || nhid < 1 {
		return nil, errors.Errorf("rbm %q: need at least one visible and one hidden unit, got %d and %d", name, nvis, nhid)
	}
	if !ops.Supported(dt) {
		return nil, errors.Wrapf(ops.ErrDtype, "rbm %q", name)
	}
	r := &RBM{
		name: name,
		nvis: nvis,
		nhid: nhid,
		dt:   dt,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.err != nil {
		return nil, r.err
	}

	if r.weights == nil {
		w := ops.Zeros(dt, nvis, nhid)
		if r.initRand != nil {
			data := make([]float64, nvis*nhid)
			for i := range data {
				data[i] = (2*r.initRand.Float64() - 1) * r.initScale
			}
			w = ops.FromFloat64s(dt, data, nvis, nhid)
		}
		r.weights = param.New("W", name, w)
	}
	if r.biasVis == nil {
		r.biasVis = param.New("bias_vis", name, ops.Zeros(dt, nvis))
	}
	if r.biasHid == nil {
		r.biasHid = param.New("bias_hid", name, ops.Zeros(dt, nhid))
	}
	return r, nil
}

func (r *RBM) check(name string, v *tensor.Dense, shape ...int) *param.Param {
	if r.err != nil {
		return nil
	}
	if !v.Shape().Eq(tensor.Shape(shape)) {
		r.err = errors.Wrapf(param.ErrShape, "rbm %q: %s has shape %v, expected %v", r.name, name, v.Shape(), tensor.Shape(shape))
		return nil
	}
	if v.Dtype() != r.dt {
		r.err = errors.Wrapf(param.ErrDtype, "rbm %q: %s has dtype %v, expected %v", r.name, name, v.Dtype(), r.dt)
		return nil
	}
	return param.New(name, r.name, v)
}

// Name of the RBM. It is the Owner of every parameter it creates.
func (r *RBM) Name() string { return r.name }

// Weights returns the (nvis, nhid) weight matrix.
func (r *RBM) Weights() *param.Param { return r.weights }

// BiasVis returns the visible bias.
func (r *RBM) BiasVis() *param.Param { return r.biasVis }

// BiasHid returns the hidden bias.
func (r *RBM) BiasHid() *param.Param { return r.biasHid }

// Params returns the trainable parameters.
func (r *RBM) Params() []*param.Param {
	return []*param.Param{r.weights, r.biasVis, r.biasHid}
}

// CensorUpdates projects proposed updates of this RBM's parameters back into the valid
// region. Proposals for other parameters are left alone.
func (r *RBM) CensorUpdates(u *param.Updates) error {
	if r.MaxWeight <= 0 {
		return nil
	}
	w, ok := u.Get(r.weights)
	if !ok {
		return nil
	}
	clipped, err := ops.Clip(w, -r.MaxWeight, r.MaxWeight)
	if err != nil {
		return errors.WithMessagef(err, "rbm %q: censoring weights", r.name)
	}
	u.Set(r.weights, clipped)
	return nil
}
