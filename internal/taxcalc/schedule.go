package taxcalc

import "github.com/shopspring/decimal"

// Rounding is the rounding policy of a regime. Each regime declares its own
// policy; the values must not be unified.
type Rounding int

const (
	// RoundNone returns the raw product.
	RoundNone Rounding = iota
	// RoundPerBracket rounds every bracket contribution before summing.
	RoundPerBracket
	// RoundTotal sums the continuous contributions and rounds once.
	RoundTotal
)

func (r Rounding) String() string {
	switch r {
	case RoundPerBracket:
		return "per-bracket"
	case RoundTotal:
		return "total"
	}
	return "none"
}

// All rounding is half away from zero to whole currency units (decimal.Round(0)).

// Bracket is a contiguous slice of the base taxed at Rate. A zero Width means
// the bracket is unbounded.
type Bracket struct {
	Width decimal.Decimal
	Rate  decimal.Decimal
}

// Schedule is an ordered bracket table with its rounding policy.
type Schedule struct {
	Brackets []Bracket
	Rounding Rounding
}

// Apply consumes amount bracket by bracket. Non-positive amounts yield zero.
func (s Schedule) Apply(amount decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	remaining := amount

	for _, b := range s.Brackets {
		if !remaining.IsPositive() {
			break
		}

		taxable := remaining
		if !b.Width.IsZero() && taxable.GreaterThan(b.Width) {
			taxable = b.Width
		}

		part := taxable.Mul(b.Rate)
		if s.Rounding == RoundPerBracket {
			part = part.Round(0)
		}

		total = total.Add(part)
		remaining = remaining.Sub(taxable)
	}

	if s.Rounding == RoundTotal {
		total = total.Round(0)
	}
	return total
}

// Versioned holds the legacy and current schedules of one regime.
type Versioned struct {
	Legacy  Schedule
	Current Schedule
}

// For returns the current schedule for Current and the legacy one otherwise.
func (v Versioned) For(r RegimeVersion) Schedule {
	if r == Current {
		return v.Current
	}
	return v.Legacy
}

// FlatRate is a single rate with optional net-to-gross recovery.
type FlatRate struct {
	Rate          decimal.Decimal // fraction, 0.30 == 30%
	GrossRounding Rounding        // policy of the Gross branch only
}

// Tax applies the flat rate. Net-to-gross recoveries are always rounded to
// whole units; the Gross branch follows GrossRounding.
func (f FlatRate) Tax(amount decimal.Decimal, mode OperationMode) (decimal.Decimal, error) {
	if mode == NetToGross {
		denominator := one.Sub(f.Rate)
		if !denominator.IsPositive() {
			return decimal.Zero, &DegenerateRateError{Rate: f.Rate.Shift(2)}
		}
		gross := amount.Div(denominator)
		return gross.Mul(f.Rate).Round(0), nil
	}

	tax := amount.Mul(f.Rate)
	if f.GrossRounding != RoundNone {
		tax = tax.Round(0)
	}
	return tax, nil
}

var one = decimal.NewFromInt(1)

func pct(p int64) decimal.Decimal {
	return decimal.New(p, -2)
}

func units(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

var (
	personalIncome = Versioned{
		Legacy: Schedule{
			Brackets: []Bracket{
				{Width: units(5_000_000), Rate: pct(13)},
				{Rate: pct(15)},
			},
			Rounding: RoundPerBracket,
		},
		Current: Schedule{
			Brackets: []Bracket{
				{Width: units(2_400_000), Rate: pct(13)},
				{Width: units(2_600_000), Rate: pct(15)},
				{Width: units(10_000_000), Rate: pct(18)},
				{Width: units(15_000_000), Rate: pct(20)},
				{Rate: pct(22)},
			},
			Rounding: RoundPerBracket,
		},
	}

	// Dividends and property sales share the same two-tier rule.
	investmentIncome = Versioned{
		Legacy: Schedule{
			Brackets: []Bracket{{Rate: pct(13)}},
			Rounding: RoundTotal,
		},
		Current: Schedule{
			Brackets: []Bracket{
				{Width: units(2_400_000), Rate: pct(13)},
				{Rate: pct(15)},
			},
			Rounding: RoundTotal,
		},
	}

	nonResidentRate = FlatRate{Rate: pct(30), GrossRounding: RoundTotal}
	winningsRate    = FlatRate{Rate: pct(35), GrossRounding: RoundNone}
)

// PersonalIncomeSchedule returns the progressive table for the given regime.
func PersonalIncomeSchedule(r RegimeVersion) Schedule {
	return personalIncome.For(r)
}

// InvestmentIncomeSchedule returns the dividends/property-sale table for the given regime.
func InvestmentIncomeSchedule(r RegimeVersion) Schedule {
	return investmentIncome.For(r)
}
