package geom

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrParameterViolation is wrapped by every *ParameterViolation.
	ErrParameterViolation = errors.New("geom: parameter violation")
	// ErrUnknownVariant indicates an unrecognised shape variant name.
	ErrUnknownVariant = errors.New("geom: unknown variant")
	// ErrUnknownField indicates a parameter field name that does not exist.
	ErrUnknownField = errors.New("geom: unknown parameter field")
	// ErrDummyField indicates the dummy transform asked for a derived
	// quantity outside its whitelist.
	ErrDummyField = errors.New("geom: derived field not permitted for dummy")
)

// ParameterViolation names the inequality a resolved geometry failed.
// Upper > Lower was required and did not hold.
type ParameterViolation struct {
	Variant    Variant
	Axis       string
	Upper      string
	UpperValue float64
	Lower      string
	LowerValue float64
}

func (e *ParameterViolation) Error() string {
	return fmt.Sprintf("geom: parameter violation (%s): %s: %s (%g) > %s (%g) does not hold",
		e.Variant, e.Axis, e.Upper, e.UpperValue, e.Lower, e.LowerValue)
}

// Inequality is the failing relation in readable form.
func (e *ParameterViolation) Inequality() string {
	return fmt.Sprintf("%s > %s", e.Upper, e.Lower)
}

func (e *ParameterViolation) Unwrap() error {
	return ErrParameterViolation
}

func violation(v Variant, axis, upper string, uv float64, lower string, lv float64) *ParameterViolation {
	return &ParameterViolation{
		Variant:    v,
		Axis:       axis,
		Upper:      upper,
		UpperValue: uv,
		Lower:      lower,
		LowerValue: lv,
	}
}
