// Package capability names the operations the DBM core deliberately does not provide.
//
// Each unsupported operation is a Capability value; asking for one returns an *Error
// that matches ErrUnsupported under errors.Is. The operations stay in the API so that
// a caller can never mistake a stub for a real result.
package capability

import (
	"fmt"

	"github.com/pkg/errors"
)

// Capability is an operation the core knows about but does not implement.
type Capability int

const (
	LearnFunc            Capability = iota // building a self-contained learning step
	Recompile                              // rebuilding the learning step after a structural change
	Learn                                  // training on a dataset
	LearnMiniBatch                         // training on a single batch
	RandomDesignMatrix                     // sampling visible data from the model
	AutonomousInference                    // inference that drives its own model
	UnscheduledInference                   // inference from a procedure built without a damping schedule
	TruncatedKL                            // KL(Q||P) minus the terms constant in Q
	EMFunctional                           // the EM free energy functional

	maxCapability
)

var names = [...]string{
	"LearnFunc",
	"Recompile",
	"Learn",
	"LearnMiniBatch",
	"RandomDesignMatrix",
	"AutonomousInference",
	"UnscheduledInference",
	"TruncatedKL",
	"EMFunctional",
}

var reasons = [...]string{
	"the DBM is driven by an external learner and does not learn on its own",
	"the DBM is driven by an external learner and has no learning step to rebuild",
	"the DBM is driven by an external learner and does not learn on its own",
	"the DBM is driven by an external learner and does not learn on its own",
	"sampling visible data from the model is not implemented",
	"no standalone inference procedure exists",
	"the inference procedure has no damping schedule",
	"the truncated KL divergence is not implemented",
	"the EM functional is not implemented; the partition function is intractable",
}

func (c Capability) String() string {
	if c < 0 || c >= maxCapability {
		return fmt.Sprintf("Capability(%d)", int(c))
	}
	return names[c]
}

// ErrUnsupported is matched by every *Error.
var ErrUnsupported = errors.New("not supported")

// Error reports a request for an unsupported capability.
type Error struct {
	Capability Capability
}

// New returns the error for c, with a stack trace.
func New(c Capability) error { return errors.WithStack(&Error{Capability: c}) }

func (err *Error) Error() string {
	reason := "unknown capability"
	if err.Capability >= 0 && err.Capability < maxCapability {
		reason = reasons[err.Capability]
	}
	return fmt.Sprintf("%v %v: %s", err.Capability, ErrUnsupported, reason)
}

// Is makes errors.Is(err, ErrUnsupported) hold.
func (err *Error) Is(target error) bool { return target == ErrUnsupported }

// Of extracts the capability from err, if err reports one.
func Of(err error) (Capability, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Capability, true
	}
	return 0, false
}
