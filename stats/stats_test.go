package stats

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gorgonia/dbm/internal/ops"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func dense(shape tensor.Shape, data ...float64) *tensor.Dense {
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}

func exampleObservation() Observation {
	return Observation{
		V:     dense(tensor.Shape{2, 2}, 1, 2, 3, 4),
		H:     dense(tensor.Shape{2, 2}, 0.5, 1, 0, 0.5),
		S:     dense(tensor.Shape{2, 2}, 2, 1, 4, 2),
		VarS0: dense(tensor.Shape{2}, 0.1, 0.2),
		VarS1: dense(tensor.Shape{2}, 0.3, 0.4),
		HName: "H",
		SName: "S",
	}
}

func TestFromObservations(t *testing.T) {
	expected := map[string][]float64{
		MeanH:        {0.25, 0.75},
		MeanV:        {2, 3},
		MeanSqV:      {5, 10},
		MeanS1:       {3, 1.5},
		MeanS:        {0.5, 1},
		MeanHS:       {0.5, 1},
		MeanSqMeanHS: {0.5, 1},
		MeanSqHS:     {1.075, 1.8},
		MeanSqS:      {1.15, 1.85},
		MeanHSV:      {0.5, 1, 2, 3},
	}

	s, err := FromObservations(Vocabulary(), exampleObservation())
	require.NoError(t, err)
	require.Equal(t, len(expected), s.Len())

	for name, want := range expected {
		st, ok := s.Get(name)
		require.True(t, ok, name)
		assert.Equal(t, "observed_"+name, st.Name)
		assert.InDeltaSlice(t, want, ops.Float64s(st.Value), 1e-12, name)
	}

	hsv, _ := s.Get(MeanHSV)
	assert.Equal(t, tensor.Shape{2, 2}, hsv.Value.Shape())
	assert.Equal(t, "mean_hsv(H,S,V)", hsv.Formula)
	hs, _ := s.Get(MeanHS)
	assert.Equal(t, "mean_hs(H,S)", hs.Formula)
}

func TestOnlyRequestedStatisticsAreComputed(t *testing.T) {
	obs := exampleObservation()
	obs.S = nil // anything needing S would fail

	s, err := FromObservations([]string{MeanV, MeanH, MeanV}, obs)
	require.NoError(t, err)
	assert.Equal(t, []string{MeanH, MeanV}, s.Names())
	assert.False(t, s.Has(MeanHS))

	_, err = FromObservations([]string{MeanHS}, obs)
	assert.True(t, errors.Is(err, ErrObservation), "%v", err)
}

func TestSubsetsAgree(t *testing.T) {
	subsets := [][]string{
		{MeanHS},
		{MeanHS, MeanSqMeanHS},
		{MeanSqS, MeanSqHS},
		{MeanHSV, MeanHS, MeanSqMeanHS, MeanSqS},
	}
	full, err := FromObservations(Vocabulary(), exampleObservation())
	require.NoError(t, err)

	for _, subset := range subsets {
		s, err := FromObservations(subset, exampleObservation())
		require.NoError(t, err)
		for _, name := range subset {
			a, _ := s.Get(name)
			b, _ := full.Get(name)
			if diff := cmp.Diff(ops.Float64s(b.Value), ops.Float64s(a.Value)); diff != "" {
				t.Errorf("%s computed with %v differs from the full set (-full +subset):\n%s", name, subset, diff)
			}
		}
	}
}

func TestUnknownStatistic(t *testing.T) {
	_, err := FromObservations([]string{MeanH, "mean_banana"}, exampleObservation())
	assert.True(t, errors.Is(err, ErrUnknownStatistic), "%v", err)
	assert.Contains(t, err.Error(), "mean_banana")
}

func TestBinary(t *testing.T) {
	V := dense(tensor.Shape{2, 3}, 1, 0, 1, 0, 1, 1)
	H := dense(tensor.Shape{2, 2}, 0.2, 0.4, 0.6, 0.8)
	s, err := FromObservations([]string{MeanH, MeanHS, MeanSqS, MeanHSV}, Binary(V, H))
	require.NoError(t, err)

	h, _ := s.Get(MeanH)
	hs, _ := s.Get(MeanHS)
	sq, _ := s.Get(MeanSqS)
	assert.InDeltaSlice(t, ops.Float64s(h.Value), ops.Float64s(hs.Value), 1e-12, "for binary units E[hs] = E[h]")
	assert.InDeltaSlice(t, ops.Float64s(h.Value), ops.Float64s(sq.Value), 1e-12, "for binary units E[s²] = E[h]")

	hsv, _ := s.Get(MeanHSV)
	assert.Equal(t, tensor.Shape{2, 3}, hsv.Value.Shape())
	assert.InDeltaSlice(t, []float64{0.1, 0.3, 0.4, 0.2, 0.4, 0.6}, ops.Float64s(hsv.Value), 1e-12)
}
