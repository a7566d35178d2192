// Command meanfield stacks randomly initialized RBMs into a DBM and runs mean-field
// inference over a random binary dataset, recording monitoring channels as it goes.
package main

import (
	"flag"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gorgonia/dbm"
	"github.com/gorgonia/dbm/dataset"
	"github.com/gorgonia/dbm/encoding/gif"
	"github.com/gorgonia/dbm/encoding/mjpeg"
	"github.com/gorgonia/dbm/internal/ops"
	"github.com/gorgonia/dbm/meanfield"
	"github.com/gorgonia/dbm/rbm"
	"github.com/gorgonia/dbm/stats"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

var (
	vis      = flag.Int("vis", 16, "visible units")
	hidden   = flag.String("hidden", "12,8", "comma separated hidden layer sizes, bottom up")
	examples = flag.Int("examples", 200, "examples in the random dataset")
	batch    = flag.Int("batch", 20, "batch size")
	batches  = flag.Int("batches", 20, "batches to run inference on")
	chains   = flag.Int("chains", 10, "negative chains")
	sweeps   = flag.Int("sweeps", 5, "mean-field sweeps")
	damping  = flag.Float64("damping", 0.5, "damping coefficient of every sweep after the first")
	seed     = flag.Int64("seed", dbm.DefaultSeed, "random seed")
	single   = flag.Bool("float32", false, "compute in float32")
	topRole  = flag.Bool("sampletop", false, "keep negative chains for the top hidden layer")

	dotFile = flag.String("dot", "", "write the layer graph to this file")
	gifFile = flag.String("gif", "", "write an animation of the first batch's sweeps to this file")
	csvFile = flag.String("csv", "", "write the monitoring channels to this file")
	serve   = flag.String("serve", "", "serve sweep summaries on /ws and pictures on /mjpeg at this address")
)

func parseSizes(s string) ([]int, error) {
	var retVal []int
	for _, f := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, errors.Wrapf(err, "bad layer size %q", f)
		}
		retVal = append(retVal, n)
	}
	return retVal, nil
}

func schedule(n int, c float64, dt tensor.Dtype) meanfield.Config {
	conf := meanfield.DefaultConfig(n)
	for i := 1; i < n; i++ {
		conf.HCoeffs[i] = c
		conf.SCoeffs[i] = c
	}
	conf.Dtype = dt
	return conf
}

func randomDesign(r *rand.Rand, dt tensor.Dtype, m, n int) *tensor.Dense {
	data := make([]float64, m*n)
	for i := range data {
		if r.Float64() < 0.3 {
			data[i] = 1
		}
	}
	return ops.FromFloat64s(dt, data, m, n)
}

func build(r *rand.Rand, dt tensor.Dtype) (*dbm.DBM, error) {
	sizes, err := parseSizes(*hidden)
	if err != nil {
		return nil, err
	}
	sizes = append([]int{*vis}, sizes...)
	rbms := make([]dbm.RBM, 0, len(sizes)-1)
	for i := 1; i < len(sizes); i++ {
		m, err := rbm.New("rbm"+strconv.Itoa(i-1), sizes[i-1], sizes[i], dt, rbm.WithInit(r, 0.1), rbm.WithMaxWeight(1))
		if err != nil {
			return nil, err
		}
		rbms = append(rbms, m)
	}

	p, err := meanfield.New(schedule(*sweeps, *damping, dt))
	if err != nil {
		return nil, err
	}
	conf := dbm.DefaultConfig(*chains)
	conf.Dtype = dt
	conf.PrintInterval = *batch * 5
	role := dbm.Marginalized
	if *topRole {
		role = dbm.Sampled
	}
	return dbm.New(rbms, conf, dbm.WithInference(p), dbm.WithRand(r), dbm.WithTopRole(role), dbm.WithLogger(log.New(os.Stderr, "", log.Ltime)))
}

func main() {
	flag.Parse()

	dt := tensor.Float64
	if *single {
		dt = tensor.Float32
	}
	r := rand.New(rand.NewSource(*seed))
	model, err := build(r, dt)
	if err != nil {
		log.Fatalf("%+v", err)
	}
	ds, err := dataset.New(randomDesign(r, dt, *examples, *vis), dataset.WithRand(r))
	if err != nil {
		log.Fatalf("%+v", err)
	}

	if *dotFile != "" {
		if err := os.WriteFile(*dotFile, []byte(model.ToDot()), 0644); err != nil {
			log.Fatal(err)
		}
	}

	var outputs []OutputEncoder
	var gifEnc *gif.Encoder
	if *gifFile != "" {
		f, err := os.Create(*gifFile)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		gifEnc = gif.NewEncoder(f, 4)
	}
	if *serve != "" {
		ws := newWSEncoder()
		mj := mjpeg.NewEncoder(4)
		outputs = append(outputs, ws, mj)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/ws", ws)
			mux.Handle("/mjpeg", mj)
			log.Printf("http://%s/mjpeg", *serve)
			log.Println(http.ListenAndServe(*serve, mux))
		}()
	}

	channels := dbm.MakeChannels()
	needed := []string{stats.MeanH, stats.MeanHS, stats.MeanHSV}
	for i := 0; i < *batches; i++ {
		V, err := ds.BatchDesign(*batch)
		if err != nil {
			log.Fatalf("%+v", err)
		}
		history, err := model.Inference().InferHistory(V)
		if err != nil {
			log.Fatalf("%+v", err)
		}
		encoders := outputs
		if i == 0 && gifEnc != nil {
			encoders = append(encoders[:len(encoders):len(encoders)], gifEnc)
		}
		for k, state := range history {
			for _, enc := range encoders {
				if err := enc.Encode(k, state.H); err != nil {
					log.Printf("sweep %d: %v", k, err)
				}
			}
		}

		vals, err := model.MonitoringChannels(V, needed)
		if err != nil {
			log.Fatalf("%+v", err)
		}
		final := history.Final()
		if vals["energy"], err = model.ExpectedEnergy(V, final.H); err != nil {
			log.Fatalf("%+v", err)
		}
		ent, err := model.EntropyH(final.H)
		if err != nil {
			log.Fatalf("%+v", err)
		}
		_, vals["entropy_mean"], _ = ops.MinMeanMax(ent)
		channels.Record(vals)
		channels.Observe(*batch)
		model.ReportStatus(&channels)

		if i == *batches-1 {
			eg, err := dbm.NewEnergyGraph(model, V, final.H)
			if err != nil {
				log.Fatalf("%+v", err)
			}
			grads, err := eg.Run()
			if err != nil {
				log.Fatalf("%+v", err)
			}
			for _, name := range []string{"bias_vis", "W[0]"} {
				min, mean, max := ops.MinMeanMax(grads.Grads[name])
				log.Printf("positive phase d%s: min %.4f mean %.4f max %.4f", name, min, mean, max)
			}
		}
	}

	if gifEnc != nil {
		outputs = append(outputs, gifEnc)
	}
	for _, enc := range outputs {
		if err := enc.Flush(); err != nil {
			log.Println(err)
		}
	}
	if *csvFile != "" {
		if err := channels.Dump(*csvFile); err != nil {
			log.Fatal(err)
		}
	}
	for _, name := range channels.Creation {
		min, mean, max, _ := channels.Summary(name)
		log.Printf("%-20s min %.4f mean %.4f max %.4f", name, min, mean, max)
	}
}
