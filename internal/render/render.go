// Package render draws the state of a stack of layers as a greyscale picture.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/golang/freetype/truetype"
	"github.com/gorgonia/dbm/internal/ops"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/math/fixed"
	"gorgonia.org/tensor"
)

var regular *truetype.Font

const (
	dpi        = 72.0
	fontsize   = 12.0
	lineheight = 1.2
	gap        = 4 // pixels between layers
)

func init() {
	var err error
	if regular, err = truetype.Parse(gomono.TTF); err != nil {
		panic(err)
	}
}

// Palette is 256 shades of grey, black first.
var Palette = func() color.Palette {
	p := make(color.Palette, 256)
	for i := range p {
		p[i] = color.Gray{uint8(i)}
	}
	return p
}()

// Renderer draws frames. A layer of shape (m, n) is drawn as m rows of n cells, each Scale
// pixels square, darker for higher activations. The frame size is fixed by the first
// frame drawn.
type Renderer struct {
	H, W  int
	Scale int
	font.Drawer

	padH, padW  int
	initialized bool
}

// New creates a renderer.
func New(scale int) *Renderer {
	if scale < 1 {
		scale = 1
	}
	return &Renderer{
		H:     -1,
		W:     -1,
		Scale: scale,
		padH:  10,
		padW:  10,
		Drawer: font.Drawer{
			Src: image.Black,
		},
	}
}

// Frame draws the layers under a caption.
func (r *Renderer) Frame(caption string, layers []*tensor.Dense) (*image.Paletted, error) {
	if len(layers) == 0 {
		return nil, errors.New("no layers to draw")
	}
	dy := int(math.Ceil(fontsize * lineheight * dpi / 72))
	if !r.initialized {
		r.Drawer.Face = truetype.NewFace(regular, &truetype.Options{
			Size:    fontsize,
			DPI:     dpi,
			Hinting: font.HintingFull,
		})
		w := maxInt(font.MeasureString(r.Face, caption).Ceil(), font.MeasureString(r.Face, "Sweep 99999").Ceil())
		h := dy
		for _, l := range layers {
			rows, cols := dims(l)
			w = maxInt(w, cols*r.Scale)
			h += rows*r.Scale + gap
		}
		r.W = w + 2*r.padW
		r.H = h + 2*r.padH
		r.initialized = true
	}

	im := image.NewPaletted(image.Rect(0, 0, r.W, r.H), Palette)
	draw.Draw(im, im.Bounds(), image.White, image.Point{}, draw.Src)
	r.Dst = im
	r.Dot = fixed.P(r.padW, r.padH+dy)
	r.DrawString(caption)

	y := r.padH + dy + gap
	for i, l := range layers {
		rows, cols := dims(l)
		data, err := values(l)
		if err != nil {
			return nil, errors.WithMessagef(err, "layer %d", i)
		}
		if y+rows*r.Scale > r.H-r.padH || cols*r.Scale > r.W-2*r.padW {
			return nil, errors.Errorf("layer %d of shape %v does not fit the frame", i, l.Shape())
		}
		for row := 0; row < rows; row++ {
			for col := 0; col < cols; col++ {
				shade := image.NewUniform(color.Gray{Grey(data[row*cols+col])})
				cell := image.Rect(r.padW+col*r.Scale, y+row*r.Scale, r.padW+(col+1)*r.Scale, y+(row+1)*r.Scale)
				draw.Draw(im, cell, shade, image.Point{}, draw.Src)
			}
		}
		y += rows*r.Scale + gap
	}
	return im, nil
}

// Caption is the standard caption of a sweep.
func Caption(sweep int) string { return fmt.Sprintf("Sweep %d", sweep) }

func dims(t *tensor.Dense) (rows, cols int) {
	s := t.Shape()
	switch s.Dims() {
	case 1:
		return 1, s[0]
	case 2:
		return s[0], s[1]
	}
	return 1, s.TotalSize()
}

func values(t *tensor.Dense) ([]float64, error) {
	if !ops.Supported(t.Dtype()) {
		return nil, errors.Wrapf(ops.ErrDtype, "cannot draw a tensor of %v", t.Dtype())
	}
	return ops.Float64s(t), nil
}

// Grey maps an activation in [0, 1] to a shade: 1 is black.
func Grey(v float64) uint8 {
	v = math.Max(0, math.Min(1, v))
	return uint8(math.Round(255 * (1 - v)))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
