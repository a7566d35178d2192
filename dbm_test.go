package dbm

import (
	"bytes"
	"log"
	"math"
	"math/rand"
	"testing"

	"github.com/gorgonia/dbm/capability"
	"github.com/gorgonia/dbm/internal/ops"
	"github.com/gorgonia/dbm/meanfield"
	"github.com/gorgonia/dbm/param"
	"github.com/gorgonia/dbm/rbm"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func dense(data []float64, shape ...int) *tensor.Dense {
	return ops.FromFloat64s(tensor.Float64, data, shape...)
}

// twoRBMs is a 2-1-1 stack with hand-picked parameters.
func twoRBMs(t *testing.T) []RBM {
	r0, err := rbm.New("rbm0", 2, 1, tensor.Float64,
		rbm.WithWeights(dense([]float64{1, 2}, 2, 1)),
		rbm.WithBiasVis(dense([]float64{1, 2}, 2)),
	)
	require.NoError(t, err)
	r1, err := rbm.New("rbm1", 1, 1, tensor.Float64,
		rbm.WithWeights(dense([]float64{2}, 1, 1)),
		rbm.WithBiasVis(dense([]float64{0.5}, 1)),
		rbm.WithBiasHid(dense([]float64{-1}, 1)),
	)
	require.NoError(t, err)
	return []RBM{r0, r1}
}

// randomRBMs stacks randomly initialized RBMs with the given layer sizes.
func randomRBMs(t *testing.T, r *rand.Rand, sizes ...int) []RBM {
	var retVal []RBM
	for i := 1; i < len(sizes); i++ {
		m, err := rbm.New("rbm", sizes[i-1], sizes[i], tensor.Float64, rbm.WithInit(r, 0.5))
		require.NoError(t, err)
		retVal = append(retVal, m)
	}
	return retVal
}

func TestNew(t *testing.T) {
	rbms := twoRBMs(t)
	d, err := New(rbms, DefaultConfig(3))
	require.NoError(t, err)

	assert.Equal(t, "DBM[2 1 1]", d.String())
	require.Len(t, d.Weights(), 2)
	assert.Same(t, rbms[0].Weights(), d.Weights()[0])
	assert.Same(t, rbms[1].Weights(), d.Weights()[1])
	assert.Same(t, rbms[0].BiasVis(), d.BiasVis())

	// hidden layer 0 takes its bias from the visible bias of the RBM above it
	require.Len(t, d.BiasHid(), 2)
	assert.Same(t, rbms[1].BiasVis(), d.BiasHid()[0])
	assert.Same(t, rbms[1].BiasHid(), d.BiasHid()[1])
	assert.NotSame(t, rbms[0].BiasHid(), d.BiasHid()[0])

	assert.Contains(t, d.Log(), "Rebuilt 3 negative chains for 2 layers")
}

func TestNewErrors(t *testing.T) {
	rbms := twoRBMs(t)

	_, err := New(rbms, Config{})
	assert.True(t, errors.Is(err, ErrConfig))

	_, err = New(nil, DefaultConfig(1))
	assert.True(t, errors.Is(err, ErrShape))

	_, err = New(rbms, DefaultConfig(1), WithTopRole(LayerRole(7)))
	assert.Error(t, err)

	// rbm1 expects 3 visible units but rbm0 only has 1 hidden unit
	bad, err := rbm.New("bad", 3, 1, tensor.Float64)
	require.NoError(t, err)
	_, err = New([]RBM{rbms[0], bad}, DefaultConfig(1))
	assert.True(t, errors.Is(err, ErrShape))

	conf := DefaultConfig(1)
	conf.Dtype = tensor.Float32
	_, err = New(rbms, conf)
	assert.True(t, errors.Is(err, ErrDtype))
}

func TestNewAutonomous(t *testing.T) {
	conf := meanfield.DefaultConfig(2)
	conf.Autonomous = true
	p, err := meanfield.New(conf)
	require.NoError(t, err)

	_, err = New(twoRBMs(t), DefaultConfig(1), WithInference(p))
	assert.True(t, errors.Is(err, ErrAutonomousInference))
	assert.Nil(t, p.Model(), "an autonomous procedure must not be registered")
}

func TestNewIncompatibleInference(t *testing.T) {
	conf := meanfield.DefaultConfig(2)
	conf.Dtype = tensor.Float32
	p, err := meanfield.New(conf)
	require.NoError(t, err)

	_, err = New(twoRBMs(t), DefaultConfig(1), WithInference(p))
	assert.True(t, errors.Is(err, ErrIncompatibleInference), "%v", err)
	assert.Nil(t, p.Model())

	// a disabled procedure cannot infer, so its dtype does not matter
	q, err := meanfield.New(meanfield.DisabledConfig(tensor.Float32))
	require.NoError(t, err)
	d, err := New(twoRBMs(t), DefaultConfig(1), WithInference(q))
	require.NoError(t, err)
	assert.Same(t, d, q.Model())
}

func TestNewSharedInference(t *testing.T) {
	r := rand.New(rand.NewSource(1337))
	p, err := meanfield.New(meanfield.DefaultConfig(2))
	require.NoError(t, err)
	d1, err := New(randomRBMs(t, r, 3, 2, 2), DefaultConfig(1), WithInference(p))
	require.NoError(t, err)

	_, err = New(randomRBMs(t, r, 3, 2), DefaultConfig(1), WithInference(p))
	assert.True(t, errors.Is(err, ErrInferenceInUse), "%v", err)
	assert.Same(t, d1, p.Model())

	state, err := d1.Inference().Infer(dense([]float64{1, 0, 1, 0, 1, 1}, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, 2, state.Len())
}

func TestDefaultInference(t *testing.T) {
	d, err := New(twoRBMs(t), DefaultConfig(1))
	require.NoError(t, err)
	require.NotNil(t, d.Inference())
	assert.True(t, d.Inference().Config().Disabled)

	_, err = d.Inference().Infer(dense([]float64{1, 0}, 1, 2))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupported))
	c, ok := capability.Of(err)
	require.True(t, ok)
	assert.Equal(t, capability.UnscheduledInference, c)
}

func TestInference(t *testing.T) {
	r := rand.New(rand.NewSource(1337))
	p, err := meanfield.New(meanfield.DefaultConfig(3))
	require.NoError(t, err)
	d, err := New(randomRBMs(t, r, 4, 3, 2), DefaultConfig(2), WithInference(p))
	require.NoError(t, err)
	assert.Same(t, d, p.Model())

	V := dense([]float64{
		1, 0, 1, 1,
		0, 0, 1, 0,
		1, 1, 1, 1,
	}, 3, 4)
	state, err := p.Infer(V)
	require.NoError(t, err)
	require.Equal(t, 2, state.Len())
	assert.True(t, tensor.Shape{3, 3}.Eq(state.Layer(0).Shape()))
	assert.True(t, tensor.Shape{3, 2}.Eq(state.Layer(1).Shape()))
	for _, h := range state.H {
		for _, v := range ops.Float64s(h) {
			assert.True(t, v >= 0 && v <= 1, "%v out of [0, 1]", v)
		}
	}

	e, err := d.ExpectedEnergy(V, state.H)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(e))
}

func TestSharedBiasWrite(t *testing.T) {
	rbms := twoRBMs(t)
	d, err := New(rbms, DefaultConfig(1))
	require.NoError(t, err)

	require.NoError(t, rbms[1].BiasVis().Set(dense([]float64{-3}, 1)))
	assert.Equal(t, []float64{-3}, ops.Float64s(d.BiasHid()[0].Value()))

	u := param.NewUpdates()
	u.Set(d.BiasHid()[0], dense([]float64{4}, 1))
	require.NoError(t, d.ApplyUpdates(u))
	assert.Equal(t, []float64{4}, ops.Float64s(rbms[1].BiasVis().Value()))
}

func TestParams(t *testing.T) {
	d, err := New(twoRBMs(t), DefaultConfig(1))
	require.NoError(t, err)

	params := d.Params()
	assert.Len(t, params, 6)
	seen := make(map[*param.Param]bool)
	for _, p := range params {
		assert.False(t, seen[p], "%v appears twice", p)
		seen[p] = true
	}
	for _, p := range d.BiasHid() {
		assert.True(t, seen[p], "%v is not a parameter", p)
	}
}

func TestApplyUpdatesCensors(t *testing.T) {
	r0, err := rbm.New("rbm0", 2, 2, tensor.Float64, rbm.WithMaxWeight(0.5))
	require.NoError(t, err)
	d, err := New([]RBM{r0}, DefaultConfig(1))
	require.NoError(t, err)

	u := param.NewUpdates()
	u.Set(d.Weights()[0], dense([]float64{-2, 0.25, 0.5, 3}, 2, 2))
	require.NoError(t, d.ApplyUpdates(u))
	assert.Equal(t, []float64{-0.5, 0.25, 0.5, 0.5}, ops.Float64s(r0.Weights().Value()))
}

func TestApplyUpdatesRejectsWholeSet(t *testing.T) {
	d, err := New(twoRBMs(t), DefaultConfig(1))
	require.NoError(t, err)

	u := param.NewUpdates()
	u.Set(d.BiasVis(), dense([]float64{9, 9}, 2))
	u.Set(d.Weights()[0], dense([]float64{0, 0, 0}, 3))
	err = d.ApplyUpdates(u)
	assert.True(t, errors.Is(err, param.ErrShape), "%v", err)
	assert.Equal(t, []float64{1, 2}, ops.Float64s(d.BiasVis().Value()))
	assert.Equal(t, []float64{1, 2}, ops.Float64s(d.Weights()[0].Value()))
}

func TestLayers(t *testing.T) {
	d, err := New(twoRBMs(t), DefaultConfig(1))
	require.NoError(t, err)

	layers := d.Layers()
	require.Len(t, layers, 3)
	names := make([]string, len(layers))
	roles := make([]LayerRole, len(layers))
	for i, l := range layers {
		names[i] = l.String()
		roles[i] = l.Role
	}
	assert.Equal(t, []string{"visible", "hidden0", "hidden1"}, names)
	assert.Equal(t, []LayerRole{Sampled, Sampled, Marginalized}, roles)
	assert.Nil(t, layers[0].Weights)
	assert.Same(t, d.Weights()[1], layers[2].Weights)
	assert.Equal(t, 2, layers[0].Units)
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	d, err := New(twoRBMs(t), DefaultConfig(1), WithLogger(log.New(&buf, "", 0)))
	require.NoError(t, err)
	assert.Empty(t, d.Log())
	assert.Contains(t, buf.String(), "DBM with layers [2 1 1]")
}
