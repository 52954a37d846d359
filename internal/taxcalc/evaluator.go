// Package taxcalc computes personal taxes for the supported regimes.
//
// The package is pure: no I/O, no shared mutable state. Every function is
// safe for concurrent use.
package taxcalc

import "github.com/shopspring/decimal"

// Compute returns the tax due for req. It fails only for a CustomRate request
// without a rate, a net-to-gross rate of 100% or more, or an unknown tax type.
func Compute(req Request) (decimal.Decimal, error) {
	switch req.TaxType {
	case PersonalIncome:
		return personalIncome.For(req.Regime).Apply(req.Amount), nil
	case Dividends, PropertySale:
		return investmentIncome.For(req.Regime).Apply(req.Amount), nil
	case NonResidentIncome:
		return nonResidentRate.Tax(req.Amount, req.Operation)
	case Winnings:
		return winningsRate.Tax(req.Amount, req.Operation)
	case CustomRate:
		if req.CustomRate == nil {
			return decimal.Zero, ErrMissingRate
		}
		custom := FlatRate{Rate: req.CustomRate.Shift(-2), GrossRounding: RoundNone}
		return custom.Tax(req.Amount, req.Operation)
	default:
		return decimal.Zero, &UnsupportedTaxTypeError{TaxType: req.TaxType}
	}
}

// Evaluate runs Compute and packs the request echo into a Result.
func Evaluate(req Request) (Result, error) {
	tax, err := Compute(req)
	if err != nil {
		return Result{}, err
	}

	return Result{
		TaxType:        req.TaxType,
		Operation:      req.Operation,
		Amount:         req.Amount,
		CustomRateUsed: req.CustomRate,
		Regime:         req.Regime,
		CalculatedTax:  tax,
	}, nil
}
