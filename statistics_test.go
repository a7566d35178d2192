package dbm

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelsRecord(t *testing.T) {
	ch := MakeChannels()
	ch.Record(map[string]float64{"b": 1, "a": 2})
	ch.Record(map[string]float64{"a": 3, "c": 4})

	assert.Equal(t, 2, ch.Records())
	assert.Equal(t, []string{"a", "b", "c"}, ch.Creation)
	assert.Equal(t, []float64{2, 3}, ch.Values["a"])
	require.Len(t, ch.Values["b"], 2)
	assert.Equal(t, 1.0, ch.Values["b"][0])
	assert.True(t, math.IsNaN(ch.Values["b"][1]))
	assert.True(t, math.IsNaN(ch.Values["c"][0]))

	min, mean, max, ok := ch.Summary("b")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 1, 1}, []float64{min, mean, max})

	_, _, _, ok = ch.Summary("nope")
	assert.False(t, ok)
}

func TestChannelsDump(t *testing.T) {
	ch := MakeChannels()
	ch.Record(map[string]float64{"loss": 0.5})
	ch.Record(map[string]float64{"loss": 0.25, "kl": 1})

	filename := filepath.Join(t.TempDir(), "channels.csv")
	require.NoError(t, ch.Dump(filename))

	f, err := os.Open(filename)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	want := [][]string{
		{"loss", "kl"},
		{"0.5", ""},
		{"0.25", "1"},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Errorf("dump mismatch (-want +got):\n%s", diff)
	}
}
