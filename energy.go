package dbm

import (
	"github.com/gorgonia/dbm/internal/ops"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ExpectedEnergy is the batch-averaged expected energy of the model under the mean-field
// distribution defined by V and H, where V is (m, nvis) and H[i] is (m, n_i) for every
// hidden layer. The result is a single scalar; no batch axis survives.
//
// The terms are, each averaged over the batch: V·b_vis, the sum of (V W₀)⊙H₀, for every
// adjacent pair of hidden layers H_i·b_i and the sum of (H_i W_{i+1})⊙H_{i+1}, and
// finally the topmost layer's H·b.
func (d *DBM) ExpectedEnergy(V *tensor.Dense, H []*tensor.Dense) (float64, error) {
	if len(H) != len(d.rbms) {
		return 0, errors.Wrapf(ErrShape, "%d hidden layers given, the model has %d", len(H), len(d.rbms))
	}
	if err := d.checkBatch(V, H); err != nil {
		return 0, err
	}

	total, err := meanDot(V, d.biasVis.Value())
	if err != nil {
		return 0, errors.WithMessage(err, "visible bias")
	}
	vw, err := meanWeighted(V, d.w[0].Value(), H[0])
	if err != nil {
		return 0, errors.WithMessage(err, "visible weights")
	}
	total += vw

	for i := 0; i < len(H)-1; i++ {
		bias, err := meanDot(H[i], d.biasHid[i].Value())
		if err != nil {
			return 0, errors.WithMessagef(err, "hidden bias %d", i)
		}
		weights, err := meanWeighted(H[i], d.w[i+1].Value(), H[i+1])
		if err != nil {
			return 0, errors.WithMessagef(err, "weights %d", i+1)
		}
		total += bias + weights
	}

	top := len(H) - 1
	highest, err := meanDot(H[top], d.biasHid[top].Value())
	if err != nil {
		return 0, errors.WithMessage(err, "top bias")
	}
	return total + highest, nil
}

// EntropyH is the entropy of the hidden layers under the mean-field distribution H,
// per example: a vector of length m holding the summed Bernoulli entropies of every
// hidden unit of every layer.
func (d *DBM) EntropyH(H []*tensor.Dense) (*tensor.Dense, error) {
	if len(H) == 0 {
		return nil, errors.Wrap(ErrShape, "no hidden layers given")
	}
	if ops.Rows(H[0]) < 1 {
		return nil, errors.Wrapf(ErrShape, "hidden layer 0 of shape %v holds no examples", H[0].Shape())
	}
	total, err := ops.BinaryEntropy(H[0])
	if err != nil {
		return nil, err
	}
	for i, h := range H[1:] {
		if ops.Rows(h) != ops.Rows(H[0]) {
			return nil, errors.Wrapf(ErrShape, "hidden layer %d has %d examples, layer 0 has %d", i+1, ops.Rows(h), ops.Rows(H[0]))
		}
		e, err := ops.BinaryEntropy(h)
		if err != nil {
			return nil, err
		}
		if total, err = total.Add(e); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	return total, nil
}

func (d *DBM) checkBatch(V *tensor.Dense, H []*tensor.Dense) error {
	if err := d.checkDtype("V", V); err != nil {
		return err
	}
	m := ops.Rows(V)
	if m < 1 {
		return errors.Wrapf(ErrShape, "V of shape %v holds no examples", V.Shape())
	}
	for i, h := range H {
		if err := d.checkDtype("H", h); err != nil {
			return errors.WithMessagef(err, "hidden layer %d", i)
		}
		if ops.Rows(h) != m {
			return errors.Wrapf(ErrShape, "hidden layer %d has %d examples, V has %d", i, ops.Rows(h), m)
		}
	}
	return nil
}

// meanDot is the batch mean of X·b.
func meanDot(X, b *tensor.Dense) (float64, error) {
	xb, err := X.MatVecMul(b)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return ops.Total(xb) / float64(ops.Rows(X)), nil
}

// meanWeighted is the sum of (X W)⊙H divided by the batch size.
func meanWeighted(X, W, H *tensor.Dense) (float64, error) {
	xw, err := X.MatMul(W)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	prod, err := xw.Mul(H)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return ops.Total(prod) / float64(ops.Rows(X)), nil
}
