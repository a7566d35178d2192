// Package meanfield approximates the posterior over the hidden layers of a deep
// Boltzmann machine with a fully factorized (mean-field) distribution.
//
// The variational parameters are found by a damped fixed-point iteration. The number of
// sweeps is fixed in advance by the damping schedule; there is no convergence test.
package meanfield

import (
	"github.com/gorgonia/dbm/capability"
	"github.com/gorgonia/dbm/internal/ops"
	"github.com/gorgonia/dbm/param"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

var (
	// ErrPrecision is returned when a tensor does not have the configured dtype.
	ErrPrecision = errors.New("wrong floating point precision")
	// ErrBatchMismatch is returned when a hidden layer's batch size differs from the input's.
	ErrBatchMismatch = errors.New("batch size mismatch")
	// ErrNoModel is returned when inference is attempted before a model is registered.
	ErrNoModel = errors.New("no model registered")
	// ErrConfig is returned for an invalid Config.
	ErrConfig = errors.New("invalid config")
)

// Model is what the procedure needs from the model it approximates: one weight matrix
// and one bias per hidden layer. Weights()[0] connects the visible layer to hidden layer 0.
type Model interface {
	Weights() []*param.Param
	BiasHid() []*param.Param
}

// Procedure is a mean-field inference procedure.
type Procedure struct {
	conf  Config
	model Model
}

// New creates a procedure.
func New(conf Config) (*Procedure, error) {
	if !conf.IsValid() {
		return nil, errors.Wrapf(ErrConfig, "%d h coefficients, %d s coefficients, dtype %v", len(conf.HCoeffs), len(conf.SCoeffs), conf.Dtype)
	}
	h := make([]float64, len(conf.HCoeffs))
	s := make([]float64, len(conf.SCoeffs))
	copy(h, conf.HCoeffs)
	copy(s, conf.SCoeffs)
	conf.HCoeffs, conf.SCoeffs = h, s
	return &Procedure{conf: conf}, nil
}

// Register sets the model whose posterior is approximated.
func (p *Procedure) Register(m Model) { p.model = m }

// Model returns the registered model.
func (p *Procedure) Model() Model { return p.model }

// Config returns the procedure's configuration.
func (p *Procedure) Config() Config { return p.conf }

// Autonomous reports whether the procedure is meant to drive its own model.
func (p *Procedure) Autonomous() bool { return p.conf.Autonomous }

// State holds ĥ for every hidden layer of one batch. Each H[i] is (m, n_i) and every
// entry is the probability that the unit is on.
type State struct {
	H []*tensor.Dense
}

// Len is the number of hidden layers.
func (s State) Len() int { return len(s.H) }

// Layer returns ĥ of hidden layer i.
func (s State) Layer(i int) *tensor.Dense { return s.H[i] }

func (s State) snapshot() State {
	h := make([]*tensor.Dense, len(s.H))
	copy(h, s.H)
	return State{H: h}
}

// History is the sequence of states of one inference: History[0] is the initial guess
// and History[k] the state after sweep k.
type History []State

// Final is the last state.
func (h History) Final() State { return h[len(h)-1] }

// Infer runs the procedure on the (m, nvis) batch V and returns the final state.
func (p *Procedure) Infer(V *tensor.Dense) (State, error) {
	hist, err := p.run(V, false)
	if err != nil {
		return State{}, err
	}
	return hist.Final(), nil
}

// InferHistory runs the procedure on V and returns every intermediate state.
// The history has one more entry than there are sweeps.
func (p *Procedure) InferHistory(V *tensor.Dense) (History, error) {
	return p.run(V, true)
}

func (p *Procedure) run(V *tensor.Dense, keep bool) (History, error) {
	switch {
	case p.conf.Autonomous:
		return nil, capability.New(capability.AutonomousInference)
	case p.conf.Disabled:
		return nil, capability.New(capability.UnscheduledInference)
	case p.model == nil:
		return nil, errors.WithStack(ErrNoModel)
	}

	V, err := p.checkV(V)
	if err != nil {
		return nil, err
	}
	W, B, err := p.params()
	if err != nil {
		return nil, err
	}
	if nvis := ops.Cols(V); W[0].Shape()[0] != nvis {
		return nil, errors.Errorf("V has %d units, the first weight matrix expects %d", nvis, W[0].Shape()[0])
	}
	m := ops.Rows(V)

	state, err := p.InitH(m)
	if err != nil {
		return nil, err
	}
	if err = p.check(state, m); err != nil {
		return nil, errors.WithMessage(err, "initial guess")
	}

	history := History{state.snapshot()}
	top := len(W) - 1
	for k, c := range p.conf.HCoeffs {
		for i := range state.H {
			below := V
			if i > 0 {
				below = state.H[i-1]
			}

			var candidate *tensor.Dense
			if i < top {
				candidate, err = InferTwoSided(below, W[i], state.H[i+1], W[i+1], B[i])
			} else {
				candidate, err = InferOneSided(below, W[i], B[i])
			}
			if err != nil {
				return nil, errors.WithMessagef(err, "sweep %d, layer %d", k+1, i)
			}
			if state.H[i], err = Damp(state.H[i], candidate, c); err != nil {
				return nil, errors.WithMessagef(err, "sweep %d, layer %d", k+1, i)
			}
		}
		if err = p.check(state, m); err != nil {
			return nil, errors.WithMessagef(err, "sweep %d", k+1)
		}
		if keep {
			history = append(history, state.snapshot())
		} else {
			history[0] = state.snapshot()
		}
	}
	return history, nil
}

// InitH is the initial guess for a batch of m examples: every hidden unit is on with
// probability sigmoid(bias), independent of the input.
func (p *Procedure) InitH(m int) (State, error) {
	if p.model == nil {
		return State{}, errors.WithStack(ErrNoModel)
	}
	_, B, err := p.params()
	if err != nil {
		return State{}, err
	}
	state := State{H: make([]*tensor.Dense, len(B))}
	for i, b := range B {
		prob, err := ops.Sigmoid(b)
		if err != nil {
			return State{}, errors.WithMessagef(err, "layer %d", i)
		}
		if state.H[i], err = ops.TileRows(prob, m); err != nil {
			return State{}, errors.WithMessagef(err, "layer %d", i)
		}
	}
	return state, nil
}

func (p *Procedure) params() (W, B []*tensor.Dense, err error) {
	ws := p.model.Weights()
	bs := p.model.BiasHid()
	if len(ws) == 0 || len(ws) != len(bs) {
		return nil, nil, errors.Errorf("model has %d weight matrices and %d hidden biases", len(ws), len(bs))
	}
	W = make([]*tensor.Dense, len(ws))
	B = make([]*tensor.Dense, len(bs))
	for i := range ws {
		W[i], B[i] = ws[i].Value(), bs[i].Value()
		if W[i].Dtype() != p.conf.Dtype || B[i].Dtype() != p.conf.Dtype {
			return nil, nil, errors.Wrapf(ErrPrecision, "layer %d parameters are %v, expected %v", i, W[i].Dtype(), p.conf.Dtype)
		}
	}
	return W, B, nil
}

// checkV accepts float32 input always and float64 input only at float64 precision,
// and returns V in the configured precision.
func (p *Procedure) checkV(V *tensor.Dense) (*tensor.Dense, error) {
	if V.Shape().Dims() != 2 {
		return nil, errors.Errorf("V must be a matrix, got shape %v", V.Shape())
	}
	if ops.Rows(V) < 1 {
		return nil, errors.Wrapf(ErrBatchMismatch, "V of shape %v holds no examples", V.Shape())
	}
	switch V.Dtype() {
	case tensor.Float32:
	case tensor.Float64:
		if p.conf.Dtype != tensor.Float64 {
			return nil, errors.Wrapf(ErrPrecision, "V is float64 but the procedure computes in %v", p.conf.Dtype)
		}
	default:
		return nil, errors.Wrapf(ErrPrecision, "V is %v", V.Dtype())
	}
	return ops.Cast(V, p.conf.Dtype)
}

func (p *Procedure) check(s State, m int) error {
	for i, h := range s.H {
		if h.Dtype() != p.conf.Dtype {
			return errors.Wrapf(ErrPrecision, "layer %d is %v, expected %v", i, h.Dtype(), p.conf.Dtype)
		}
		if ops.Rows(h) != m {
			return errors.Wrapf(ErrBatchMismatch, "layer %d has %d examples, V has %d", i, ops.Rows(h), m)
		}
	}
	return nil
}

// InferTwoSided is the fixed-point candidate for a layer with a layer on either side:
// sigmoid(below·Wbelow + above·Waboveᵀ + b).
func InferTwoSided(below, wBelow, above, wAbove, b *tensor.Dense) (*tensor.Dense, error) {
	bottomUp, err := below.MatMul(wBelow)
	if err != nil {
		return nil, errors.Wrap(err, "bottom up")
	}
	wT, err := ops.Transposed(wAbove)
	if err != nil {
		return nil, err
	}
	topDown, err := above.MatMul(wT)
	if err != nil {
		return nil, errors.Wrap(err, "top down")
	}
	total, err := bottomUp.Add(topDown)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if total, err = ops.AddRowVector(total, b); err != nil {
		return nil, err
	}
	return ops.Sigmoid(total)
}

// InferOneSided is the fixed-point candidate for a layer driven only from one side:
// sigmoid(other·W + b). W must be arranged so that other has as many columns as W has rows.
func InferOneSided(other, w, b *tensor.Dense) (*tensor.Dense, error) {
	dot, err := other.MatMul(w)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	presigmoid, err := ops.AddRowVector(dot, b)
	if err != nil {
		return nil, err
	}
	return ops.Sigmoid(presigmoid)
}

// Damp blends an old estimate with a new candidate: (1-c)·old + c·new.
func Damp(old, candidate *tensor.Dense, c float64) (*tensor.Dense, error) {
	dt := old.Dtype()
	kept, err := old.MulScalar(ops.Scalar(dt, 1-c), true)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	taken, err := candidate.MulScalar(ops.Scalar(dt, c), true)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	retVal, err := kept.Add(taken)
	return retVal, errors.WithStack(err)
}
