package dbm

import (
	"fmt"
	"sort"

	"github.com/gorgonia/dbm/capability"
	"github.com/gorgonia/dbm/internal/ops"
	"github.com/gorgonia/dbm/stats"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// LearnFunc performs one learning step on a batch.
type LearnFunc func(V *tensor.Dense) error

// MakeLearnFunc would build a self-contained learning step. The DBM does not learn on its
// own, so it always fails with the LearnFunc capability error.
func (d *DBM) MakeLearnFunc(V *tensor.Dense) (LearnFunc, error) {
	return nil, capability.New(capability.LearnFunc)
}

// RedoCompile would rebuild the learning step. It always fails.
func (d *DBM) RedoCompile() error { return capability.New(capability.Recompile) }

// Learn would train on batches of ds. It always fails without drawing a batch.
func (d *DBM) Learn(ds Dataset, batchSize int) error { return capability.New(capability.Learn) }

// LearnMiniBatch would train on one batch. It always fails.
func (d *DBM) LearnMiniBatch(V *tensor.Dense) error { return capability.New(capability.LearnMiniBatch) }

// RandomDesignMatrix would sample a batch of visible vectors from the model. It always fails.
func (d *DBM) RandomDesignMatrix(batchSize int) (*tensor.Dense, error) {
	return nil, capability.New(capability.RandomDesignMatrix)
}

// ReportStatus logs a status summary if the monitor has just passed a multiple of
// PrintInterval examples. It reports whether a summary was logged.
func (d *DBM) ReportStatus(mon Monitor) bool {
	seen := mon.ExamplesSeen()
	if seen%d.PrintInterval != 0 {
		return false
	}
	d.logger.Printf("Examples seen: %d", seen)
	for _, c := range d.chains {
		_, mean, _ := ops.MinMeanMax(c.State)
		d.logger.Printf("\tchain %v: mean activation %.4f", d.Layers()[c.Layer], mean)
	}
	for _, p := range d.Params() {
		min, mean, max := ops.MinMeanMax(p.Value())
		d.logger.Printf("\t%v: min %.4f mean %.4f max %.4f", p, min, mean, max)
	}
	return true
}

// MonitoringChannels runs inference on V and summarizes the requested sufficient
// statistics of the lowest hidden layer as <stat>_min, <stat>_mean and <stat>_max. The
// inference procedure's own channels are merged in.
func (d *DBM) MonitoringChannels(V *tensor.Dense, needed []string) (map[string]float64, error) {
	retVal := make(map[string]float64)
	if len(needed) > 0 {
		state, err := d.inference.Infer(V)
		if err != nil {
			return nil, errors.WithMessage(err, "monitoring statistics")
		}
		obs, err := state.Observation(V, 0)
		if err != nil {
			return nil, err
		}
		s, err := stats.FromObservations(needed, obs)
		if err != nil {
			return nil, err
		}
		for _, name := range s.Names() {
			st, _ := s.Get(name)
			min, mean, max := ops.MinMeanMax(st.Value)
			retVal[name+"_min"] = min
			retVal[name+"_mean"] = mean
			retVal[name+"_max"] = max
		}
	}

	fromInference, err := d.inference.MonitoringChannels(V)
	if err != nil {
		return nil, err
	}
	for k, v := range fromInference {
		if _, ok := retVal[k]; ok {
			return nil, errors.Errorf("channel %q reported twice", k)
		}
		retVal[k] = v
	}
	return retVal, nil
}

// ChannelNames returns the channel names in sorted order.
func ChannelNames(channels map[string]float64) []string {
	retVal := make([]string, 0, len(channels))
	for k := range channels {
		retVal = append(retVal, k)
	}
	sort.Strings(retVal)
	return retVal
}

func (d *DBM) String() string {
	return fmt.Sprintf("DBM%v", d.sizes())
}
