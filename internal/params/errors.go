package params

import (
	"errors"
	"fmt"

	"github.com/ppiankov/claimgraph/internal/model"
)

// ErrFrozen is returned by mutating calls once the store has been frozen for a run
var ErrFrozen = errors.New("params: store is frozen")

// NotFoundError is returned when a path has no value
type NotFoundError struct {
	Path model.ParameterPath
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("parameter %s not found", e.Path)
}

// InvalidValueError is returned when a value violates the store invariants
type InvalidValueError struct {
	Path   model.ParameterPath
	Reason string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value for %s: %s", e.Path, e.Reason)
}

// AliasMismatchError is returned when two paths declared as the same constant disagree
type AliasMismatchError struct {
	Canonical      model.ParameterPath
	Alias          model.ParameterPath
	CanonicalValue float64
	AliasValue     float64
	CanonicalUnit  string
	AliasUnit      string
	Tolerance      float64
}

func (e *AliasMismatchError) Error() string {
	if e.CanonicalUnit != e.AliasUnit {
		return fmt.Sprintf("alias %s of %s: unit %q != %q", e.Alias, e.Canonical, e.AliasUnit, e.CanonicalUnit)
	}
	return fmt.Sprintf("alias %s of %s: value %g != %g (tolerance %g)",
		e.Alias, e.Canonical, e.AliasValue, e.CanonicalValue, e.Tolerance)
}

// IsNotFound reports whether err is a NotFoundError
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
