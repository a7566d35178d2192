// Package param provides shared parameter handles.
//
// A *Param is the single owned value behind a named parameter. Models that share a
// parameter hold the same handle, never a copy, so a write made through Set is
// observed by every reader.
package param

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

var (
	// ErrShape is returned when an assignment would change a parameter's shape.
	ErrShape = errors.New("shape mismatch")
	// ErrDtype is returned when an assignment would change a parameter's dtype.
	ErrDtype = errors.New("dtype mismatch")
)

// Param is a named, owned parameter.
type Param struct {
	Name  string // name within the owner, e.g. "bias_vis"
	Owner string // the model that created the parameter and writes it

	v *tensor.Dense
}

// New creates a handle around v. The handle takes ownership of v.
func New(name, owner string, v *tensor.Dense) *Param {
	return &Param{Name: name, Owner: owner, v: v}
}

// Value returns the live tensor. Callers must not write to it directly; use Set.
func (p *Param) Value() *tensor.Dense { return p.v }

// Shape is the shape of the parameter.
func (p *Param) Shape() tensor.Shape { return p.v.Shape() }

// Len is the total number of elements.
func (p *Param) Len() int { return p.v.Shape().TotalSize() }

// Set copies v into the parameter's existing storage.
func (p *Param) Set(v *tensor.Dense) error {
	if err := p.check(v); err != nil {
		return err
	}
	return errors.WithStack(tensor.Copy(p.v, v))
}

// check reports whether v may be assigned to p.
func (p *Param) check(v *tensor.Dense) error {
	if v == nil {
		return errors.Errorf("cannot assign nil to %v", p)
	}
	if !v.Shape().Eq(p.v.Shape()) {
		return errors.Wrapf(ErrShape, "cannot assign %v to %v of shape %v", v.Shape(), p, p.v.Shape())
	}
	if v.Dtype() != p.v.Dtype() {
		return errors.Wrapf(ErrDtype, "cannot assign %v to %v of dtype %v", v.Dtype(), p, p.v.Dtype())
	}
	return nil
}

func (p *Param) String() string { return fmt.Sprintf("%s.%s", p.Owner, p.Name) }

// Updates is an ordered set of proposed parameter values.
type Updates struct {
	order []*Param
	vals  map[*Param]*tensor.Dense
}

// NewUpdates creates an empty update set.
func NewUpdates() *Updates {
	return &Updates{vals: make(map[*Param]*tensor.Dense)}
}

// Set proposes v as the new value of p, replacing any earlier proposal.
func (u *Updates) Set(p *Param, v *tensor.Dense) {
	if _, ok := u.vals[p]; !ok {
		u.order = append(u.order, p)
	}
	u.vals[p] = v
}

// Get returns the proposed value of p.
func (u *Updates) Get(p *Param) (*tensor.Dense, bool) {
	v, ok := u.vals[p]
	return v, ok
}

// Params lists the parameters with a proposal, in the order they were first proposed.
func (u *Updates) Params() []*Param {
	retVal := make([]*Param, len(u.order))
	copy(retVal, u.order)
	return retVal
}

// Len is the number of proposals.
func (u *Updates) Len() int { return len(u.order) }

// Apply writes every proposal through its handle. Every proposal is checked first, so a
// rejected set leaves all parameters untouched.
func (u *Updates) Apply() error {
	for _, p := range u.order {
		if err := p.check(u.vals[p]); err != nil {
			return errors.WithMessage(err, "applying updates")
		}
	}
	for _, p := range u.order {
		if err := p.Set(u.vals[p]); err != nil {
			return errors.WithMessage(err, "applying updates")
		}
	}
	return nil
}
