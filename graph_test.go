package dbm

import (
	"math/rand"
	"testing"

	"github.com/gorgonia/dbm/internal/ops"
	"github.com/gorgonia/dbm/meanfield"
	"github.com/gorgonia/dbm/rbm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestEnergyGraph(t *testing.T) {
	r0, err := rbm.New("rbm0", 2, 2, tensor.Float64,
		rbm.WithWeights(dense([]float64{1, 0, 0, 1}, 2, 2)),
		rbm.WithBiasVis(dense([]float64{1, 2}, 2)),
	)
	require.NoError(t, err)
	r1, err := rbm.New("rbm1", 2, 2, tensor.Float64,
		rbm.WithWeights(dense([]float64{1, 1, 0, 1}, 2, 2)),
		rbm.WithBiasVis(dense([]float64{0.5, -0.5}, 2)),
		rbm.WithBiasHid(dense([]float64{-1, 1}, 2)),
	)
	require.NoError(t, err)
	d, err := New([]RBM{r0, r1}, DefaultConfig(1))
	require.NoError(t, err)

	V := dense([]float64{1, 1, 1, 0}, 2, 2)
	H := []*tensor.Dense{
		dense([]float64{0.5, 0.25, 0.25, 0.75}, 2, 2),
		dense([]float64{0.25, 0.5, 0.75, 0}, 2, 2),
	}
	want, err := d.ExpectedEnergy(V, H)
	require.NoError(t, err)

	eg, err := NewEnergyGraph(d, V, H)
	require.NoError(t, err)
	got, err := eg.Run()
	require.NoError(t, err)
	assert.InDelta(t, want, got.Energy, 1e-9)

	require.Len(t, got.Grads, 5)
	// the energy is linear in each bias, so each gradient is the batch mean of its layer
	assert.InDeltaSlice(t, []float64{1, 0.5}, ops.Float64s(got.Grads["bias_vis"]), 1e-9)
	assert.InDeltaSlice(t, []float64{0.375, 0.5}, ops.Float64s(got.Grads["bias_hid[0]"]), 1e-9)
	assert.InDeltaSlice(t, []float64{0.5, 0.25}, ops.Float64s(got.Grads["bias_hid[1]"]), 1e-9)
	// Vᵀ H₀ / m
	assert.InDeltaSlice(t, []float64{0.375, 0.5, 0.25, 0.125}, ops.Float64s(got.Grads["W[0]"]), 1e-9)
	// H₀ᵀ H₁ / m
	assert.InDeltaSlice(t, []float64{0.15625, 0.125, 0.3125, 0.0625}, ops.Float64s(got.Grads["W[1]"]), 1e-9)

	// the model is untouched
	assert.Equal(t, []float64{1, 2}, ops.Float64s(d.BiasVis().Value()))
}

func TestEnergyGraphFromInference(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	p, err := meanfield.New(meanfield.DefaultConfig(2))
	require.NoError(t, err)
	d, err := New(randomRBMs(t, r, 3, 2, 2), DefaultConfig(1), WithInference(p))
	require.NoError(t, err)

	V := dense([]float64{1, 0, 1, 0, 1, 1, 1, 1, 0}, 3, 3)
	state, err := p.Infer(V)
	require.NoError(t, err)

	want, err := d.ExpectedEnergy(V, state.H)
	require.NoError(t, err)
	eg, err := NewEnergyGraph(d, V, state.H)
	require.NoError(t, err)
	got, err := eg.Run()
	require.NoError(t, err)
	assert.InDelta(t, want, got.Energy, 1e-9)
	assert.NotNil(t, eg.Graph())
}

func TestEnergyGraphShape(t *testing.T) {
	d, err := New(twoRBMs(t), DefaultConfig(1))
	require.NoError(t, err)
	_, err = NewEnergyGraph(d, dense([]float64{1, 1}, 1, 2), []*tensor.Dense{dense([]float64{0.5}, 1, 1)})
	assert.Error(t, err)
}
