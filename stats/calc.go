package stats

import (
	"github.com/gorgonia/dbm/internal/ops"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// calc evaluates statistics of one observation. Once err is set every method is a no-op,
// and intermediates shared by several statistics are computed at most once.
type calc struct {
	obs Observation
	err error

	hs   *tensor.Dense // H⊙S
	sqHS *tensor.Dense // H⊙(var_s1 + S²)
}

func (c *calc) do(f func() (*tensor.Dense, error)) (retVal *tensor.Dense) {
	if c.err != nil {
		return nil
	}
	if retVal, c.err = f(); c.err != nil {
		c.err = errors.WithStack(c.err)
	}
	return
}

func (c *calc) mean(a *tensor.Dense) *tensor.Dense {
	return c.do(func() (*tensor.Dense, error) { return ops.MeanRows(a) })
}

func (c *calc) need(name string, t *tensor.Dense, shape ...int) {
	if c.err != nil {
		return
	}
	if t == nil {
		c.err = errors.Wrapf(ErrObservation, "%s is missing", name)
		return
	}
	if shape != nil && !t.Shape().Eq(tensor.Shape(shape)) {
		c.err = errors.Wrapf(ErrObservation, "%s has shape %v, expected %v", name, t.Shape(), tensor.Shape(shape))
	}
}

func (c *calc) batch() (m, nhid int) {
	c.need("H", c.obs.H)
	if c.err != nil {
		return 0, 0
	}
	return ops.Rows(c.obs.H), ops.Cols(c.obs.H)
}

func (c *calc) meanH() *tensor.Dense {
	c.need("H", c.obs.H)
	return c.mean(c.obs.H)
}

func (c *calc) meanV() *tensor.Dense {
	c.need("V", c.obs.V)
	return c.mean(c.obs.V)
}

func (c *calc) meanSqV() *tensor.Dense {
	c.need("V", c.obs.V)
	sq := c.do(func() (*tensor.Dense, error) { return ops.Square(c.obs.V) })
	return c.mean(sq)
}

func (c *calc) meanS1() *tensor.Dense {
	c.need("S", c.obs.S)
	return c.mean(c.obs.S)
}

func (c *calc) hsProduct() *tensor.Dense {
	if c.hs != nil || c.err != nil {
		return c.hs
	}
	m, nhid := c.batch()
	c.need("S", c.obs.S, m, nhid)
	c.hs = c.do(func() (*tensor.Dense, error) { return c.obs.H.Mul(c.obs.S) })
	return c.hs
}

// sqHSProduct is H⊙(var_s1 + S²), the second moment of h s per example.
func (c *calc) sqHSProduct() *tensor.Dense {
	if c.sqHS != nil || c.err != nil {
		return c.sqHS
	}
	m, nhid := c.batch()
	c.need("S", c.obs.S, m, nhid)
	c.need("VarS1", c.obs.VarS1, nhid)
	sqS := c.do(func() (*tensor.Dense, error) { return ops.Square(c.obs.S) })
	withVar := c.do(func() (*tensor.Dense, error) { return ops.AddRowVector(sqS, c.obs.VarS1) })
	c.sqHS = c.do(func() (*tensor.Dense, error) { return c.obs.H.Mul(withVar) })
	return c.sqHS
}

func (c *calc) meanHS() *tensor.Dense { return c.mean(c.hsProduct()) }

func (c *calc) meanSqHS() *tensor.Dense { return c.mean(c.sqHSProduct()) }

func (c *calc) meanSqS() *tensor.Dense {
	on := c.sqHSProduct()
	_, nhid := c.batch()
	c.need("VarS0", c.obs.VarS0, nhid)
	offProb := c.do(func() (*tensor.Dense, error) { return ops.OneMinus(c.obs.H) })
	var off *tensor.Dense
	if c.err == nil {
		tiled := c.do(func() (*tensor.Dense, error) { return ops.TileRows(c.obs.VarS0, ops.Rows(c.obs.H)) })
		off = c.do(func() (*tensor.Dense, error) { return offProb.Mul(tiled) })
	}
	total := c.do(func() (*tensor.Dense, error) { return on.Add(off) })
	return c.mean(total)
}

func (c *calc) meanSqMeanHS() *tensor.Dense {
	hs := c.hsProduct()
	sq := c.do(func() (*tensor.Dense, error) { return ops.Square(hs) })
	return c.mean(sq)
}

func (c *calc) meanHSV() *tensor.Dense {
	hs := c.hsProduct()
	c.need("V", c.obs.V)
	if c.err == nil && ops.Rows(c.obs.V) != ops.Rows(hs) {
		c.err = errors.Wrapf(ErrObservation, "V has %d examples, H has %d", ops.Rows(c.obs.V), ops.Rows(hs))
	}
	hsT := c.do(func() (*tensor.Dense, error) { return ops.Transposed(hs) })
	sum := c.do(func() (*tensor.Dense, error) { return hsT.MatMul(c.obs.V) })
	return c.do(func() (*tensor.Dense, error) {
		return sum.DivScalar(ops.Scalar(sum.Dtype(), float64(ops.Rows(c.obs.V))), true)
	})
}
