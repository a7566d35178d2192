package dbm

import (
	"github.com/gorgonia/dbm/capability"
	"github.com/pkg/errors"
)

var (
	// ErrUnsupported is matched by every error reporting an unsupported capability.
	ErrUnsupported = capability.ErrUnsupported

	// ErrAutonomousInference is returned by New when given an autonomous inference procedure.
	ErrAutonomousInference = errors.New("no such thing as an autonomous DBM")
	// ErrIncompatibleInference is returned by New when the procedure computes in a
	// different precision from the model.
	ErrIncompatibleInference = errors.New("inference procedure does not fit the model")
	// ErrInferenceInUse is returned by New when the procedure is already registered to a model.
	ErrInferenceInUse = errors.New("inference procedure already belongs to a model")
	// ErrConfig is returned by New for an invalid Config.
	ErrConfig = errors.New("invalid config")
	// ErrShape is returned when parameters or inputs do not fit together.
	ErrShape = errors.New("shape mismatch")
	// ErrDtype is returned when a tensor is not in the model's precision.
	ErrDtype = errors.New("dtype mismatch")
)

// UnsupportedError reports which unsupported capability was requested.
type UnsupportedError = capability.Error
