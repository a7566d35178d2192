package dbm

import (
	"fmt"
	"math"

	"github.com/gorgonia/dbm/internal/ops"
	"github.com/gorgonia/dbm/param"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// LayerRole says how the negative phase treats a layer.
type LayerRole int

const (
	// Sampled layers keep persistent negative chains.
	Sampled LayerRole = iota
	// Marginalized layers are summed out of the learning updates and keep no chain.
	// Each round of negative sampling starts by sampling such a layer afresh.
	Marginalized
)

func (r LayerRole) String() string {
	switch r {
	case Sampled:
		return "sampled"
	case Marginalized:
		return "marginalized"
	}
	return fmt.Sprintf("LayerRole(%d)", int(r))
}

// Chain is the negative-chain state of one layer: a (NegativeChains, units) binary matrix.
type Chain struct {
	Layer int // index into Layers()
	State *tensor.Dense
}

// Chains returns the current negative chains, bottom-up, one per sampled layer.
func (d *DBM) Chains() []Chain {
	retVal := make([]Chain, len(d.chains))
	copy(retVal, d.chains)
	return retVal
}

// RedoEverything rebuilds the negative chains of every sampled layer from its bias.
// Weights and biases are left alone. On failure the previous chains are kept.
func (d *DBM) RedoEverything() error {
	layers := d.Layers()
	chains := make([]Chain, 0, len(layers))
	sampled := 0
	for _, l := range layers {
		if l.Role != Sampled {
			continue
		}
		sampled++
		state, err := d.MakeChains(l.Bias)
		if err != nil {
			return errors.WithMessagef(err, "chains for %v", l)
		}
		chains = append(chains, Chain{Layer: l.Index, State: state})
	}
	if len(chains) != sampled {
		return errors.Errorf("built %d chains for %d sampled layers", len(chains), sampled)
	}
	d.chains = chains
	d.logger.Printf("Rebuilt %d negative chains for %d layers (top layer %v)", d.NegativeChains, len(chains), d.topRole)
	return nil
}

// MakeChains draws the initial state of every negative chain for a layer with the given
// bias: unit j of each chain is on with probability sigmoid(bias[j]). The draws come from
// the DBM's RNG in row-major order.
func (d *DBM) MakeChains(bias *param.Param) (*tensor.Dense, error) {
	b := bias.Value()
	if b.Shape().Dims() != 1 {
		return nil, errors.Wrapf(ErrShape, "bias %v must be a vector, got %v", bias, b.Shape())
	}
	bs := ops.Float64s(b)
	n := len(bs)

	thresh := make([]float64, n)
	for j, v := range bs {
		thresh[j] = 1 / (1 + math.Exp(-v))
	}

	data := make([]float64, d.NegativeChains*n)
	for i := 0; i < d.NegativeChains; i++ {
		for j := 0; j < n; j++ {
			if d.rng.Float64() < thresh[j] {
				data[i*n+j] = 1
			}
		}
	}
	return ops.FromFloat64s(d.Dtype, data, d.NegativeChains, n), nil
}
