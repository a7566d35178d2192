package main

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorgonia/dbm/internal/ops"
	"github.com/gorilla/websocket"
	"gorgonia.org/tensor"
)

// OutputEncoder receives the state of every hidden layer after each sweep.
type OutputEncoder interface {
	Encode(sweep int, layers []*tensor.Dense) error
	Flush() error
}

type info struct {
	Batch int       `json:"batch"`
	Sweep int       `json:"sweep"`
	Means []float64 `json:"means"` // mean activation per hidden layer
}

// wsEncoder pushes a summary of every sweep to a websocket client. Summaries produced
// while no client is listening are dropped.
type wsEncoder struct {
	info  chan info
	batch int
}

var upgrader = websocket.Upgrader{} // use default options

func (enc *wsEncoder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Print("upgrade:", err)
		return
	}
	defer c.Close()
	for {
		var b []byte
		select {
		case in, ok := <-enc.info:
			if !ok {
				return
			}
			b, _ = json.Marshal(in)
		case <-r.Context().Done():
			return
		}
		if err = c.WriteMessage(websocket.TextMessage, b); err != nil {
			log.Println("write:", err)
			return
		}
	}
}

func newWSEncoder() *wsEncoder {
	return &wsEncoder{info: make(chan info, 64)}
}

// Encode implements OutputEncoder. A sweep of 0 starts a new batch.
func (enc *wsEncoder) Encode(sweep int, layers []*tensor.Dense) error {
	if sweep == 0 {
		enc.batch++
	}
	in := info{Batch: enc.batch, Sweep: sweep, Means: make([]float64, len(layers))}
	for i, l := range layers {
		_, in.Means[i], _ = ops.MinMeanMax(l)
	}
	select {
	case enc.info <- in:
	default:
	}
	return nil
}

// Flush ...
func (enc *wsEncoder) Flush() error {
	close(enc.info)
	return nil
}
