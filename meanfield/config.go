package meanfield

import "gorgonia.org/tensor"

// Config configures the mean-field procedure.
//
// HCoeffs and SCoeffs are the damping schedules: sweep k blends the previous estimate
// and the fresh fixed-point candidate with coefficient HCoeffs[k] for the binary hidden
// layers and SCoeffs[k] for continuous units. Their common length is the number of sweeps.
type Config struct {
	HCoeffs []float64
	SCoeffs []float64

	MonitorKL           bool // report trunc_KL_<i> for every sweep
	MonitorEMFunctional bool // report em_functional_<i> for every sweep

	Dtype tensor.Dtype // precision of every hidden activation tensor

	// Autonomous procedures drive their own model. None exist; a DBM refuses one.
	Autonomous bool

	// Disabled procedures stand in for "no procedure": they hold a model but cannot infer.
	Disabled bool
}

// DefaultConfig is a float64 schedule of the given number of undamped sweeps.
func DefaultConfig(sweeps int) Config {
	h := make([]float64, sweeps)
	s := make([]float64, sweeps)
	for i := range h {
		h[i] = 1
		s[i] = 1
	}
	return Config{
		HCoeffs: h,
		SCoeffs: s,
		Dtype:   tensor.Float64,
	}
}

// DisabledConfig is the configuration of the procedure a DBM uses when none is given.
func DisabledConfig(dt tensor.Dtype) Config {
	return Config{Dtype: dt, Disabled: true}
}

// Sweeps is the number of fixed-point sweeps an inference runs.
func (conf Config) Sweeps() int { return len(conf.HCoeffs) }

// IsValid reports whether the schedules are usable.
func (conf Config) IsValid() bool {
	if conf.Dtype != tensor.Float64 && conf.Dtype != tensor.Float32 {
		return false
	}
	if len(conf.HCoeffs) != len(conf.SCoeffs) {
		return false
	}
	for i := range conf.HCoeffs {
		if !inUnit(conf.HCoeffs[i]) || !inUnit(conf.SCoeffs[i]) {
			return false
		}
	}
	return true
}

func inUnit(c float64) bool { return c >= 0 && c <= 1 }
