// Package mjpeg streams the mean-field state of every hidden layer over HTTP as motion
// jpeg, one picture per sweep.
package mjpeg

import (
	"bytes"
	"image/jpeg"
	"net/http"

	"github.com/gorgonia/dbm/internal/render"
	"github.com/mattn/go-mjpeg"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Encoder serves the latest frame to every connected client.
type Encoder struct {
	*render.Renderer

	stream *mjpeg.Stream
	frames int
}

func (enc *Encoder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	enc.stream.ServeHTTP(w, r)
}

// NewEncoder creates an encoder drawing each activation as a scale×scale cell.
func NewEncoder(scale int) *Encoder {
	return &Encoder{
		Renderer: render.New(scale),
		stream:   mjpeg.NewStream(),
	}
}

// Encode draws the layers and pushes the picture to the stream.
func (enc *Encoder) Encode(sweep int, layers []*tensor.Dense) error {
	im, err := enc.Frame(render.Caption(sweep), layers)
	if err != nil {
		return err
	}
	var b bytes.Buffer
	if err = jpeg.Encode(&b, im, nil); err != nil {
		return errors.Wrapf(err, "encoding sweep %d", sweep)
	}
	if err = enc.stream.Update(b.Bytes()); err != nil {
		return errors.Wrapf(err, "streaming sweep %d", sweep)
	}
	enc.frames++
	return nil
}

// Frames is the number of pictures pushed so far.
func (enc *Encoder) Frames() int { return enc.frames }

// Flush closes the stream.
func (enc *Encoder) Flush() error {
	enc.stream.Close()
	return nil
}
