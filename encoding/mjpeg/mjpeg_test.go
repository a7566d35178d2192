package mjpeg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestEncode(t *testing.T) {
	enc := NewEncoder(2)
	layer := tensor.New(tensor.WithShape(2, 2), tensor.WithBacking([]float64{0, 0.25, 0.75, 1}))
	for sweep := 0; sweep < 2; sweep++ {
		require.NoError(t, enc.Encode(sweep, []*tensor.Dense{layer}))
	}
	assert.Equal(t, 2, enc.Frames())
	assert.Error(t, enc.Encode(2, nil))
	assert.Equal(t, 2, enc.Frames())
	require.NoError(t, enc.Flush())
}
