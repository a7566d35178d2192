package dbm

import (
	"encoding/csv"
	"math"
	"os"
	"strconv"

	"github.com/gorgonia/dbm/internal/ops"
)

// Channels records monitoring channel values over the course of learning. It also counts
// examples, so it serves as the Monitor for ReportStatus.
type Channels struct {
	Creation []string             // channel names in the order they first appeared
	Values   map[string][]float64 // one entry per Record call, NaN where the channel was absent

	seen    int
	records int
}

// MakeChannels creates an empty recorder.
func MakeChannels() Channels {
	return Channels{
		Creation: make([]string, 0, 16),
		Values:   make(map[string][]float64),
	}
}

// Observe counts n more examples.
func (c *Channels) Observe(n int) { c.seen += n }

// ExamplesSeen implements Monitor.
func (c *Channels) ExamplesSeen() int { return c.seen }

// Records is the number of Record calls.
func (c *Channels) Records() int { return c.records }

// Record appends one value per channel.
func (c *Channels) Record(vals map[string]float64) {
	for _, name := range ChannelNames(vals) {
		if _, ok := c.Values[name]; !ok {
			c.Creation = append(c.Creation, name)
			c.Values[name] = nanFill(c.records)
		}
	}
	for _, name := range c.Creation {
		v, ok := vals[name]
		if !ok {
			v = math.NaN()
		}
		c.Values[name] = append(c.Values[name], v)
	}
	c.records++
}

func nanFill(n int) []float64 {
	retVal := make([]float64, n)
	for i := range retVal {
		retVal[i] = math.NaN()
	}
	return retVal
}

// Summary returns the minimum, mean and maximum recorded value of a channel, skipping NaNs.
func (c *Channels) Summary(name string) (min, mean, max float64, ok bool) {
	vals, ok := c.Values[name]
	if !ok {
		return 0, 0, 0, false
	}
	present := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	min, mean, max = ops.Summarize(present)
	return min, mean, max, true
}

// Dump writes the channels as CSV: a header of channel names, then one row per record.
func (c *Channels) Dump(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(c.Creation); err != nil {
		return err
	}
	records := make([][]string, c.records)
	for i := range records {
		record := make([]string, len(c.Creation))
		for j, name := range c.Creation {
			if v := c.Values[name][i]; !math.IsNaN(v) {
				record[j] = strconv.FormatFloat(v, 'g', -1, 64)
			}
		}
		records[i] = record
	}
	if err := w.WriteAll(records); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
