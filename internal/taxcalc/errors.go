package taxcalc

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors, match with errors.Is.
var (
	// ErrMissingRate is returned for CustomRate requests without a rate.
	ErrMissingRate = errors.New("custom rate is required for this tax type")

	// ErrDegenerateRate is returned when a net-to-gross recovery would divide by zero.
	ErrDegenerateRate = errors.New("rate leaves no net amount to gross up")

	// ErrUnsupportedTaxType is returned for tax types the dispatcher does not know.
	ErrUnsupportedTaxType = errors.New("unsupported tax type")
)

// DegenerateRateError carries the offending rate as a percentage.
type DegenerateRateError struct {
	Rate decimal.Decimal
}

func (e *DegenerateRateError) Error() string {
	return fmt.Sprintf("cannot gross up at a rate of %s%%", e.Rate.String())
}

func (e *DegenerateRateError) Unwrap() error {
	return ErrDegenerateRate
}

// UnsupportedTaxTypeError carries the tax type the dispatcher rejected.
type UnsupportedTaxTypeError struct {
	TaxType TaxType
}

func (e *UnsupportedTaxTypeError) Error() string {
	return fmt.Sprintf("unsupported tax type: %d", int(e.TaxType))
}

func (e *UnsupportedTaxTypeError) Unwrap() error {
	return ErrUnsupportedTaxType
}

// IsClientError reports whether err was caused by the caller's input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMissingRate) ||
		errors.Is(err, ErrDegenerateRate) ||
		errors.Is(err, ErrUnsupportedTaxType)
}
