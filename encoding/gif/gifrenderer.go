// Package gif renders the mean-field state of every hidden layer, sweep by sweep, as an
// animated gif.
package gif

import (
	"image/gif"
	"io"

	"github.com/gorgonia/dbm/internal/render"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Encoder collects one frame per Encode call and writes the animation on Flush.
type Encoder struct {
	*render.Renderer

	out *gif.GIF
	io.Writer
}

// NewEncoder creates an encoder that writes to w on Flush. Each activation is drawn as a
// cell of scale×scale pixels.
func NewEncoder(w io.Writer, scale int) *Encoder {
	return &Encoder{
		Renderer: render.New(scale),
		Writer:   w,
		out:      &gif.GIF{LoopCount: 0},
	}
}

// Encode adds a frame captioned with the sweep number. Every frame must show layers of
// the same shapes as the first.
func (enc *Encoder) Encode(sweep int, layers []*tensor.Dense) error {
	im, err := enc.Frame(render.Caption(sweep), layers)
	if err != nil {
		return err
	}
	enc.out.Image = append(enc.out.Image, im)
	enc.out.Delay = append(enc.out.Delay, 50)
	return nil
}

// Frames is the number of frames encoded so far.
func (enc *Encoder) Frames() int { return len(enc.out.Image) }

// Flush writes the gif into the writer
func (enc *Encoder) Flush() error {
	if len(enc.out.Image) == 0 {
		return errors.New("no frames to write")
	}
	return gif.EncodeAll(enc.Writer, enc.out)
}
