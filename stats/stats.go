// Package stats computes sufficient statistics of a minibatch of examples and their
// variational parameters.
//
// Several learning and monitoring expressions are easy to write in terms of the same
// few batch moments, so they are computed once per batch, named, and shared. Only the
// statistics a caller asks for are computed. The O(nhid²) second moment matrix is not
// part of the vocabulary; expressions that would use it are expected to reorder their
// operations instead.
package stats

import (
	"fmt"
	"sort"

	"github.com/gorgonia/dbm/internal/ops"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// The statistic vocabulary.
const (
	MeanH         = "mean_h"          // E[h]
	MeanV         = "mean_v"          // E[v]
	MeanSqV       = "mean_sq_v"       // E[v²]
	MeanS         = "mean_s"          // E[s], which is E[h s]
	MeanS1        = "mean_s1"         // E[ŝ], the expectation of s given h=1
	MeanSqS       = "mean_sq_s"       // E[s²]
	MeanHS        = "mean_hs"         // E[h s]
	MeanSqHS      = "mean_sq_hs"      // E[(h s)²]
	MeanSqMeanHS  = "mean_sq_mean_hs" // E[(ĥ ŝ)²]
	MeanHSV       = "mean_hsv"        // E[(h s) vᵀ], an (nhid, nvis) matrix
	observedLabel = "observed_"
)

var (
	// ErrUnknownStatistic is returned when a requested statistic is not in the vocabulary.
	ErrUnknownStatistic = errors.New("unknown statistic")
	// ErrObservation is returned when an observation is missing a tensor a statistic needs, or has a mismatched shape.
	ErrObservation = errors.New("bad observation")
)

// Observation is a batch of examples together with the variational parameters inferred for them.
type Observation struct {
	V *tensor.Dense // (m, nvis) examples
	H *tensor.Dense // (m, nhid) ĥ
	S *tensor.Dense // (m, nhid) ŝ, the expectation of s given h=1

	VarS0 *tensor.Dense // (nhid) variance of s given h=0; the same for every example
	VarS1 *tensor.Dense // (nhid) variance of s given h=1

	HName, SName string // names used in formulas; "anon_H_hat" and "anon_S_hat" if empty
}

// Binary builds the observation of a layer of binary hidden units: s is identically one,
// so ŝ = 1 and both variances are zero.
func Binary(V, H *tensor.Dense) Observation {
	dt := H.Dtype()
	nhid := ops.Cols(H)
	return Observation{
		V:     V,
		H:     H,
		S:     ops.Full(dt, 1, ops.Rows(H), nhid),
		VarS0: ops.Zeros(dt, nhid),
		VarS1: ops.Zeros(dt, nhid),
		SName: "ones",
	}
}

// Stat is one computed statistic.
type Stat struct {
	Name    string // "observed_" followed by the vocabulary name
	Formula string // the formula and the inputs it was computed from, e.g. mean_hs(H,S)
	Value   *tensor.Dense
}

// SufficientStatistics is a set of named statistics of one batch.
type SufficientStatistics struct {
	d map[string]Stat
}

type statDef struct {
	formula func(h, s string) string
	compute func(c *calc) *tensor.Dense
}

var vocabulary = map[string]statDef{
	MeanH:        {unary(MeanH, "H"), (*calc).meanH},
	MeanV:        {func(string, string) string { return "mean_v(V)" }, (*calc).meanV},
	MeanSqV:      {func(string, string) string { return "mean_sq_v(V)" }, (*calc).meanSqV},
	MeanS:        {binary(MeanS), (*calc).meanHS},
	MeanS1:       {unary(MeanS1, "S"), (*calc).meanS1},
	MeanSqS:      {binary(MeanSqS), (*calc).meanSqS},
	MeanHS:       {binary(MeanHS), (*calc).meanHS},
	MeanSqHS:     {binary(MeanSqHS), (*calc).meanSqHS},
	MeanSqMeanHS: {binary(MeanSqMeanHS), (*calc).meanSqMeanHS},
	MeanHSV:      {func(h, s string) string { return fmt.Sprintf("mean_hsv(%s,%s,V)", h, s) }, (*calc).meanHSV},
}

func unary(stat, which string) func(h, s string) string {
	return func(h, s string) string {
		if which == "S" {
			return fmt.Sprintf("%s(%s)", stat, s)
		}
		return fmt.Sprintf("%s(%s)", stat, h)
	}
}

func binary(stat string) func(h, s string) string {
	return func(h, s string) string { return fmt.Sprintf("%s(%s,%s)", stat, h, s) }
}

// Vocabulary lists every statistic name FromObservations understands, sorted.
func Vocabulary() []string {
	retVal := make([]string, 0, len(vocabulary))
	for k := range vocabulary {
		retVal = append(retVal, k)
	}
	sort.Strings(retVal)
	return retVal
}

// FromObservations computes the needed statistics of obs. Every name is checked against
// the vocabulary before anything is computed.
func FromObservations(needed []string, obs Observation) (*SufficientStatistics, error) {
	for _, name := range needed {
		if _, ok := vocabulary[name]; !ok {
			return nil, errors.Wrapf(ErrUnknownStatistic, "%q", name)
		}
	}
	hName, sName := obs.HName, obs.SName
	if hName == "" {
		hName = "anon_H_hat"
	}
	if sName == "" {
		sName = "anon_S_hat"
	}

	c := &calc{obs: obs}
	retVal := &SufficientStatistics{d: make(map[string]Stat, len(needed))}
	for _, name := range needed {
		if _, ok := retVal.d[name]; ok {
			continue
		}
		def := vocabulary[name]
		v := def.compute(c)
		if c.err != nil {
			return nil, errors.WithMessagef(c.err, "computing %s", name)
		}
		retVal.d[name] = Stat{
			Name:    observedLabel + name,
			Formula: def.formula(hName, sName),
			Value:   v,
		}
	}
	return retVal, nil
}

// Get returns the named statistic.
func (s *SufficientStatistics) Get(name string) (Stat, bool) {
	st, ok := s.d[name]
	return st, ok
}

// Has reports whether the named statistic was computed.
func (s *SufficientStatistics) Has(name string) bool {
	_, ok := s.d[name]
	return ok
}

// Names lists the computed statistics, sorted.
func (s *SufficientStatistics) Names() []string {
	retVal := make([]string, 0, len(s.d))
	for k := range s.d {
		retVal = append(retVal, k)
	}
	sort.Strings(retVal)
	return retVal
}

// Len is the number of computed statistics.
func (s *SufficientStatistics) Len() int { return len(s.d) }
