package meanfield

import (
	"fmt"

	"github.com/gorgonia/dbm/capability"
	"github.com/gorgonia/dbm/internal/ops"
	"github.com/gorgonia/dbm/stats"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// MonitoringChannels evaluates the enabled per-sweep channels on V. Channel i is computed
// from History[i-1], so trunc_KL_1 describes the initial guess.
func (p *Procedure) MonitoringChannels(V *tensor.Dense) (map[string]float64, error) {
	retVal := make(map[string]float64)
	if !p.conf.MonitorKL && !p.conf.MonitorEMFunctional {
		return retVal, nil
	}

	history, err := p.InferHistory(V)
	if err != nil {
		return nil, err
	}
	for i := 1; i <= len(history); i++ {
		obs := history[i-1]
		if p.conf.MonitorKL {
			name := fmt.Sprintf("trunc_KL_%d", i)
			kl, err := p.TruncatedKL(V, obs)
			if err != nil {
				return nil, errors.WithMessage(err, name)
			}
			retVal[name] = ops.Total(kl) / float64(ops.Rows(kl))
		}
		if p.conf.MonitorEMFunctional {
			name := fmt.Sprintf("em_functional_%d", i)
			em, err := p.EMFunctional(V, obs)
			if err != nil {
				return nil, errors.WithMessage(err, name)
			}
			retVal[name] = ops.Total(em) / float64(ops.Rows(em))
		}
	}
	return retVal, nil
}

// TruncatedKL would be the per-example KL divergence between the mean-field distribution
// and the true posterior, dropping the terms that do not depend on the variational
// parameters: the negative entropy plus the expected energy. It is not implemented.
func (p *Procedure) TruncatedKL(V *tensor.Dense, obs State) (*tensor.Dense, error) {
	return nil, capability.New(capability.TruncatedKL)
}

// EMFunctional would be the per-example EM free energy of obs. It is not implemented.
func (p *Procedure) EMFunctional(V *tensor.Dense, obs State) (*tensor.Dense, error) {
	return nil, capability.New(capability.EMFunctional)
}

// Observation builds the sufficient-statistics observation of hidden layer i. The
// observed input of layer 0 is V; of every other layer, the layer below.
func (s State) Observation(V *tensor.Dense, i int) (stats.Observation, error) {
	if i < 0 || i >= len(s.H) {
		return stats.Observation{}, errors.Errorf("layer %d out of range [0, %d)", i, len(s.H))
	}
	input := V
	if i > 0 {
		input = s.H[i-1]
	} else {
		var err error
		if input, err = ops.Cast(V, s.H[0].Dtype()); err != nil {
			return stats.Observation{}, err
		}
	}
	obs := stats.Binary(input, s.H[i])
	obs.HName = fmt.Sprintf("H_hat[%d]", i)
	return obs, nil
}
