// Package dbm implements a deep Boltzmann machine built by stacking restricted
// Boltzmann machines, together with the bookkeeping a learner needs around it:
// expected energy and entropy under a mean-field distribution, persistent
// negative-phase chains, and monitoring channels.
//
// The DBM does not learn on its own. It is meant to be driven by an external
// learner that computes parameter updates and writes them back through
// ApplyUpdates between inference calls.
package dbm

import (
	"bytes"
	"fmt"
	"log"
	"math/rand"

	"github.com/gorgonia/dbm/meanfield"
	"github.com/gorgonia/dbm/param"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// DefaultSeed seeds the chain RNG when neither WithSeed nor WithRand is given. A
// rand.Source takes a single int64, so this stands in for the vector seed [1, 2, 3] the
// reference runs use; chains drawn with it will not match theirs element for element.
const DefaultSeed int64 = 123

// DBM is a deep Boltzmann machine. It is not safe for concurrent use.
type DBM struct {
	Config

	rbms      []RBM
	inference *meanfield.Procedure

	// parameters, shared with the RBMs
	w       []*param.Param
	biasVis *param.Param
	biasHid []*param.Param

	topRole LayerRole
	chains  []Chain

	seed int64
	rng  *rand.Rand

	buf    bytes.Buffer
	logger *log.Logger
	err    error
}

// Option configures a DBM at construction.
type Option func(*DBM)

// WithInference sets the inference procedure. It must not be autonomous, must compute in
// the model's dtype and must not already belong to another model.
func WithInference(p *meanfield.Procedure) Option {
	return func(d *DBM) { d.inference = p }
}

// WithSeed seeds the chain RNG.
func WithSeed(seed int64) Option {
	return func(d *DBM) {
		d.seed = seed
		d.rng = nil
	}
}

// WithRand makes the DBM draw chain states from r.
func WithRand(r *rand.Rand) Option {
	return func(d *DBM) { d.rng = r }
}

// WithLogger replaces the DBM's internal log buffer with l.
func WithLogger(l *log.Logger) Option {
	return func(d *DBM) { d.logger = l }
}

// WithTopRole sets whether the topmost hidden layer keeps negative chains (Sampled) or
// is summed out of the learning updates (Marginalized, the default).
func WithTopRole(role LayerRole) Option {
	return func(d *DBM) {
		if role != Sampled && role != Marginalized {
			d.err = errors.Errorf("unknown layer role %d", role)
			return
		}
		d.topRole = role
	}
}

// New stacks rbms into a DBM. rbms[0] is the visible RBM.
//
// The DBM's parameters are the weights and visible bias of every RBM; hidden layer i
// (below the top) uses the visible bias of rbms[i+1] as its bias, and only the topmost
// RBM donates its hidden bias. Negative chains are created before New returns.
func New(rbms []RBM, conf Config, opts ...Option) (*DBM, error) {
	if !conf.IsValid() {
		return nil, errors.Wrapf(ErrConfig, "%+v", conf)
	}
	if len(rbms) == 0 {
		return nil, errors.Wrap(ErrShape, "at least one RBM is required")
	}

	d := &DBM{
		Config:  conf,
		rbms:    rbms,
		topRole: Marginalized,
		seed:    DefaultSeed,
	}
	d.logger = log.New(&d.buf, "", log.Ltime)
	for _, opt := range opts {
		opt(d)
	}
	if d.err != nil {
		return nil, d.err
	}

	if d.inference == nil {
		p, err := meanfield.New(meanfield.DisabledConfig(conf.Dtype))
		if err != nil {
			return nil, err
		}
		d.inference = p
	}
	if d.inference.Autonomous() {
		return nil, errors.WithStack(ErrAutonomousInference)
	}
	if pc := d.inference.Config(); !pc.Disabled && pc.Dtype != conf.Dtype {
		return nil, errors.Wrapf(ErrIncompatibleInference, "procedure computes in %v, model in %v", pc.Dtype, conf.Dtype)
	}
	if d.inference.Model() != nil {
		return nil, errors.WithStack(ErrInferenceInUse)
	}

	d.w = make([]*param.Param, len(rbms))
	for i, r := range rbms {
		d.w[i] = r.Weights()
	}
	d.biasVis = rbms[0].BiasVis()
	d.biasHid = make([]*param.Param, 0, len(rbms))
	for _, r := range rbms[1:] {
		d.biasHid = append(d.biasHid, r.BiasVis())
	}
	d.biasHid = append(d.biasHid, rbms[len(rbms)-1].BiasHid())

	if err := d.checkParams(); err != nil {
		return nil, err
	}

	if d.rng == nil {
		d.ResetRand(d.seed)
	}
	if err := d.RedoEverything(); err != nil {
		return nil, err
	}
	d.inference.Register(d)
	d.logger.Printf("DBM with layers %v, %d negative chains", d.sizes(), d.NegativeChains)
	return d, nil
}

// checkParams verifies that each weight matrix joins the layers on either side of it.
func (d *DBM) checkParams() error {
	below := d.biasVis
	for i, w := range d.w {
		s := w.Shape()
		if s.Dims() != 2 {
			return errors.Wrapf(ErrShape, "weights %d (%v) must be a matrix, got %v", i, w, s)
		}
		if s[0] != below.Len() || s[1] != d.biasHid[i].Len() {
			return errors.Wrapf(ErrShape, "weights %d (%v) are %v; the layers it joins have %d and %d units", i, w, s, below.Len(), d.biasHid[i].Len())
		}
		below = d.biasHid[i]
	}
	for _, p := range d.Params() {
		if p.Value().Dtype() != d.Dtype {
			return errors.Wrapf(ErrDtype, "%v is %v, the model computes in %v", p, p.Value().Dtype(), d.Dtype)
		}
	}
	return nil
}

func (d *DBM) sizes() []int {
	retVal := []int{d.biasVis.Len()}
	for _, b := range d.biasHid {
		retVal = append(retVal, b.Len())
	}
	return retVal
}

// Weights returns the weight matrices; Weights()[0] joins the visible layer to hidden layer 0.
func (d *DBM) Weights() []*param.Param { return d.w }

// BiasVis returns the visible bias.
func (d *DBM) BiasVis() *param.Param { return d.biasVis }

// BiasHid returns the bias of every hidden layer.
func (d *DBM) BiasHid() []*param.Param { return d.biasHid }

// RBMs returns the stacked RBMs.
func (d *DBM) RBMs() []RBM { return d.rbms }

// Inference returns the inference procedure.
func (d *DBM) Inference() *meanfield.Procedure { return d.inference }

// Log returns what has been logged to the internal buffer. It is empty if WithLogger was used.
func (d *DBM) Log() string { return d.buf.String() }

// Layer describes one layer of the model. Layer 0 is the visible layer.
type Layer struct {
	Index   int
	Units   int
	Role    LayerRole
	Bias    *param.Param
	Weights *param.Param // weights joining the layer below to this one; nil for the visible layer
}

func (l Layer) String() string {
	if l.Index == 0 {
		return "visible"
	}
	return fmt.Sprintf("hidden%d", l.Index-1)
}

// Layers describes the visible layer followed by every hidden layer.
func (d *DBM) Layers() []Layer {
	retVal := make([]Layer, 0, len(d.biasHid)+1)
	retVal = append(retVal, Layer{Index: 0, Units: d.biasVis.Len(), Role: Sampled, Bias: d.biasVis})
	for i, b := range d.biasHid {
		role := Sampled
		if i == len(d.biasHid)-1 {
			role = d.topRole
		}
		retVal = append(retVal, Layer{Index: i + 1, Units: b.Len(), Role: role, Bias: b, Weights: d.w[i]})
	}
	return retVal
}

// Params returns every RBM's parameters with duplicates removed, in first-seen order.
func (d *DBM) Params() []*param.Param {
	seen := make(map[*param.Param]struct{})
	var retVal []*param.Param
	for _, r := range d.rbms {
		for _, p := range r.Params() {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			retVal = append(retVal, p)
		}
	}
	return retVal
}

// CensorUpdates lets every RBM project the proposed updates into its valid region.
func (d *DBM) CensorUpdates(u *param.Updates) error {
	for i, r := range d.rbms {
		if err := r.CensorUpdates(u); err != nil {
			return errors.WithMessagef(err, "rbm %d", i)
		}
	}
	return nil
}

// ApplyUpdates censors u and then writes it through the parameter handles. It must not
// be called while an inference on this model is in progress.
func (d *DBM) ApplyUpdates(u *param.Updates) error {
	if err := d.CensorUpdates(u); err != nil {
		return err
	}
	return u.Apply()
}

// ResetRand reseeds the chain RNG.
func (d *DBM) ResetRand(seed int64) {
	d.seed = seed
	d.rng = rand.New(rand.NewSource(seed))
}

func (d *DBM) checkDtype(name string, t *tensor.Dense) error {
	if t.Dtype() != d.Dtype {
		return errors.Wrapf(ErrDtype, "%s is %v, the model computes in %v", name, t.Dtype(), d.Dtype)
	}
	return nil
}
