package dbm

import (
	"fmt"

	"github.com/gorgonia/dbm/internal/ops"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// EnergyGraph is the expected energy of one batch expressed as a gorgonia expression
// graph, with the model's parameters as differentiable variables. Its gradients are the
// data-dependent (positive phase) part of the learning signal.
//
// The graph holds copies of the parameters taken at construction; running it never
// writes to the model.
type EnergyGraph struct {
	g      *G.ExprGraph
	energy *G.Node
	value  G.Value

	params []*G.Node
	names  []string
}

// EnergyGrads is the result of evaluating an EnergyGraph.
type EnergyGrads struct {
	Energy float64
	Grads  map[string]*tensor.Dense // keyed by "W[i]", "bias_vis" and "bias_hid[i]"
}

type maebe struct {
	err error
}

func (m *maebe) do(f func() (*G.Node, error)) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	if retVal, m.err = f(); m.err != nil {
		m.err = errors.WithStack(m.err)
	}
	return
}

// meanDot is sum(X·b)/m.
func (m *maebe) meanDot(X, b, batch *G.Node) *G.Node {
	xb := m.do(func() (*G.Node, error) { return G.Mul(X, b) })
	sum := m.do(func() (*G.Node, error) { return G.Sum(xb) })
	return m.do(func() (*G.Node, error) { return G.Div(sum, batch) })
}

// meanWeighted is sum((X W)⊙H)/m.
func (m *maebe) meanWeighted(X, W, H, batch *G.Node) *G.Node {
	xw := m.do(func() (*G.Node, error) { return G.Mul(X, W) })
	prod := m.do(func() (*G.Node, error) { return G.HadamardProd(xw, H) })
	sum := m.do(func() (*G.Node, error) { return G.Sum(prod) })
	return m.do(func() (*G.Node, error) { return G.Div(sum, batch) })
}

func (m *maebe) add(a, b *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Add(a, b) })
}

// NewEnergyGraph builds the expected-energy graph of d for the batch V and the mean-field
// state H. It computes the same quantity as ExpectedEnergy.
func NewEnergyGraph(d *DBM, V *tensor.Dense, H []*tensor.Dense) (*EnergyGraph, error) {
	if len(H) != len(d.rbms) {
		return nil, errors.Wrapf(ErrShape, "%d hidden layers given, the model has %d", len(H), len(d.rbms))
	}
	if err := d.checkBatch(V, H); err != nil {
		return nil, err
	}
	dt := d.Dtype
	g := G.NewGraph()
	eg := &EnergyGraph{g: g}

	matrix := func(t *tensor.Dense, name string) *G.Node {
		return G.NewMatrix(g, dt, G.WithShape(t.Shape().Clone()...), G.WithName(name), G.WithValue(t.Clone().(*tensor.Dense)))
	}
	vector := func(t *tensor.Dense, name string) *G.Node {
		return G.NewVector(g, dt, G.WithShape(t.Shape().Clone()...), G.WithName(name), G.WithValue(t.Clone().(*tensor.Dense)))
	}
	variable := func(n *G.Node, name string) *G.Node {
		eg.params = append(eg.params, n)
		eg.names = append(eg.names, name)
		return n
	}

	v := matrix(V, "V")
	hs := make([]*G.Node, len(H))
	for i, h := range H {
		hs[i] = matrix(h, fmt.Sprintf("H_hat[%d]", i))
	}
	ws := make([]*G.Node, len(d.w))
	for i, w := range d.w {
		ws[i] = variable(matrix(w.Value(), fmt.Sprintf("W[%d]", i)), fmt.Sprintf("W[%d]", i))
	}
	bVis := variable(vector(d.biasVis.Value(), "bias_vis"), "bias_vis")
	bHid := make([]*G.Node, len(d.biasHid))
	for i, b := range d.biasHid {
		bHid[i] = variable(vector(b.Value(), fmt.Sprintf("bias_hid[%d]", i)), fmt.Sprintf("bias_hid[%d]", i))
	}
	batch := G.NewConstant(ops.Scalar(dt, float64(ops.Rows(V))))

	var m maebe
	total := m.meanDot(v, bVis, batch)
	total = m.add(total, m.meanWeighted(v, ws[0], hs[0], batch))
	for i := 0; i < len(hs)-1; i++ {
		total = m.add(total, m.meanDot(hs[i], bHid[i], batch))
		total = m.add(total, m.meanWeighted(hs[i], ws[i+1], hs[i+1], batch))
	}
	top := len(hs) - 1
	total = m.add(total, m.meanDot(hs[top], bHid[top], batch))
	if m.err != nil {
		return nil, m.err
	}
	eg.energy = total
	G.Read(eg.energy, &eg.value)

	if _, err := G.Grad(eg.energy, eg.params...); err != nil {
		return nil, errors.WithStack(err)
	}
	return eg, nil
}

// Run evaluates the energy and its gradient with respect to every parameter.
func (eg *EnergyGraph) Run() (*EnergyGrads, error) {
	machine := G.NewTapeMachine(eg.g, G.BindDualValues(eg.params...))
	defer machine.Close()
	if err := machine.RunAll(); err != nil {
		return nil, errors.WithStack(err)
	}

	energy, err := scalarValue(eg.value)
	if err != nil {
		return nil, err
	}
	retVal := &EnergyGrads{
		Energy: energy,
		Grads:  make(map[string]*tensor.Dense, len(eg.params)),
	}
	for i, n := range eg.params {
		grad, err := n.Grad()
		if err != nil {
			return nil, errors.WithMessagef(err, "gradient of %s", eg.names[i])
		}
		t, ok := grad.(*tensor.Dense)
		if !ok {
			return nil, errors.Errorf("gradient of %s is a %T, expected a dense tensor", eg.names[i], grad)
		}
		retVal.Grads[eg.names[i]] = t.Clone().(*tensor.Dense)
	}
	return retVal, nil
}

// Graph exposes the underlying expression graph, e.g. for ToDot.
func (eg *EnergyGraph) Graph() *G.ExprGraph { return eg.g }

func scalarValue(v G.Value) (float64, error) {
	if v == nil {
		return 0, errors.New("energy was not computed")
	}
	switch x := v.Data().(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case []float64:
		if len(x) == 1 {
			return x[0], nil
		}
	case []float32:
		if len(x) == 1 {
			return float64(x[0]), nil
		}
	}
	return 0, errors.Errorf("energy is %v, expected a scalar", v)
}
