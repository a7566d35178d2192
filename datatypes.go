package dbm

import (
	"github.com/gorgonia/dbm/param"
	"gorgonia.org/tensor"
)

// Config configures a DBM.
type Config struct {
	NegativeChains int          // number of persistent negative-phase chains
	PrintInterval  int          // examples between status summaries
	Dtype          tensor.Dtype // floatX: precision of every tensor the model creates
}

// DefaultConfig is a float64 model simulating the given number of negative chains.
func DefaultConfig(negativeChains int) Config {
	return Config{
		NegativeChains: negativeChains,
		PrintInterval:  10000,
		Dtype:          tensor.Float64,
	}
}

func (conf Config) IsValid() bool {
	return conf.NegativeChains >= 1 &&
		conf.PrintInterval >= 1 &&
		(conf.Dtype == tensor.Float64 || conf.Dtype == tensor.Float32)
}

// RBM is a single restricted Boltzmann machine to be stacked into a DBM.
//
// The DBM takes every RBM's weights and visible bias; only the topmost RBM also donates
// its hidden bias. The DBM may write to any of these parameters through their handles.
type RBM interface {
	Weights() *param.Param // (nvis, nhid)
	BiasVis() *param.Param
	BiasHid() *param.Param
	Params() []*param.Param

	// CensorUpdates projects proposed updates back into the valid parameter region.
	CensorUpdates(*param.Updates) error
}

// Dataset is a source of training batches.
type Dataset interface {
	// BatchDesign returns the next batch of n examples as an (n, nvis) matrix.
	BatchDesign(n int) (*tensor.Dense, error)
}

// Monitor counts the examples a learner has seen.
type Monitor interface {
	ExamplesSeen() int
}
