package dbm

import (
	"math/rand"
	"testing"

	"github.com/gorgonia/dbm/internal/ops"
	"github.com/gorgonia/dbm/param"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestChains(t *testing.T) {
	d, err := New(twoRBMs(t), DefaultConfig(3))
	require.NoError(t, err)

	chains := d.Chains()
	require.Len(t, chains, 2, "the marginalized top layer keeps no chain")
	assert.Equal(t, 0, chains[0].Layer)
	assert.Equal(t, 1, chains[1].Layer)
	assert.True(t, tensor.Shape{3, 2}.Eq(chains[0].State.Shape()))
	assert.True(t, tensor.Shape{3, 1}.Eq(chains[1].State.Shape()))
	for _, c := range chains {
		assert.Equal(t, tensor.Float64, c.State.Dtype())
		for _, v := range ops.Float64s(c.State) {
			assert.True(t, v == 0 || v == 1, "chain state %v is not binary", v)
		}
	}
}

func TestChainsTopSampled(t *testing.T) {
	d, err := New(twoRBMs(t), DefaultConfig(4), WithTopRole(Sampled))
	require.NoError(t, err)

	chains := d.Chains()
	require.Len(t, chains, 3)
	assert.Equal(t, 2, chains[2].Layer)
	assert.True(t, tensor.Shape{4, 1}.Eq(chains[2].State.Shape()))
}

func TestChainsDeterministic(t *testing.T) {
	a, err := New(twoRBMs(t), DefaultConfig(5), WithSeed(42))
	require.NoError(t, err)
	b, err := New(twoRBMs(t), DefaultConfig(5), WithRand(rand.New(rand.NewSource(42))))
	require.NoError(t, err)

	ca, cb := a.Chains(), b.Chains()
	require.Len(t, cb, len(ca))
	for i := range ca {
		assert.Equal(t, ops.Float64s(ca[i].State), ops.Float64s(cb[i].State))
	}

	// reseeding reproduces the chains
	first := ops.Float64s(a.Chains()[0].State)
	a.ResetRand(42)
	require.NoError(t, a.RedoEverything())
	assert.Equal(t, first, ops.Float64s(a.Chains()[0].State))
}

func TestMakeChainsDistribution(t *testing.T) {
	const n = 4000
	d, err := New(twoRBMs(t), DefaultConfig(n))
	require.NoError(t, err)

	// sigmoid(0) = 0.5, sigmoid(2) ≈ 0.881, sigmoid(-2) ≈ 0.119
	bias := param.New("b", "test", dense([]float64{0, 2, -2}, 3))
	state, err := d.MakeChains(bias)
	require.NoError(t, err)
	require.True(t, tensor.Shape{n, 3}.Eq(state.Shape()))

	mean, err := ops.MeanRows(state)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, 0.8808, 0.1192}, ops.Float64s(mean), 0.05)
}

func TestMakeChainsBadBias(t *testing.T) {
	d, err := New(twoRBMs(t), DefaultConfig(1))
	require.NoError(t, err)

	_, err = d.MakeChains(param.New("b", "test", dense([]float64{0, 0}, 1, 2)))
	assert.True(t, errors.Is(err, ErrShape))
}

func TestLayerRoleString(t *testing.T) {
	assert.Equal(t, "sampled", Sampled.String())
	assert.Equal(t, "marginalized", Marginalized.String())
	assert.Equal(t, "LayerRole(5)", LayerRole(5).String())
}
