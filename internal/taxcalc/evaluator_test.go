package taxcalc

import (
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func rate(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got.String())
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"personal income current first bracket only", Request{TaxType: PersonalIncome, Regime: Current, Amount: dec("2400000")}, "312000"},
		{"personal income current two brackets", Request{TaxType: PersonalIncome, Regime: Current, Amount: dec("5000000")}, "702000"},
		{"personal income current up to 30M", Request{TaxType: PersonalIncome, Regime: Current, Amount: dec("30000000")}, "5502000"},
		{"personal income current top bracket", Request{TaxType: PersonalIncome, Regime: Current, Amount: dec("40000000")}, "7702000"},
		{"personal income current zero", Request{TaxType: PersonalIncome, Regime: Current, Amount: dec("0")}, "0"},
		{"personal income current negative", Request{TaxType: PersonalIncome, Regime: Current, Amount: dec("-100")}, "0"},
		{"personal income legacy at threshold", Request{TaxType: PersonalIncome, Regime: Legacy, Amount: dec("5000000")}, "650000"},
		{"personal income legacy above threshold", Request{TaxType: PersonalIncome, Regime: Legacy, Amount: dec("6000000")}, "800000"},
		{"personal income legacy negative", Request{TaxType: PersonalIncome, Regime: Legacy, Amount: dec("-1")}, "0"},
		{"personal income ignores operation mode", Request{TaxType: PersonalIncome, Regime: Legacy, Operation: NetToGross, Amount: dec("1000")}, "130"},
		{"dividends current", Request{TaxType: Dividends, Regime: Current, Amount: dec("3000000")}, "402000"},
		{"dividends current below threshold", Request{TaxType: Dividends, Regime: Current, Amount: dec("1000")}, "130"},
		{"dividends current fractional excess", Request{TaxType: Dividends, Regime: Current, Amount: dec("2400003.5")}, "312001"},
		{"dividends legacy flat", Request{TaxType: Dividends, Regime: Legacy, Amount: dec("3000000")}, "390000"},
		{"dividends legacy rounds half away from zero", Request{TaxType: Dividends, Regime: Legacy, Amount: dec("50")}, "7"},
		{"property sale matches dividends", Request{TaxType: PropertySale, Regime: Current, Amount: dec("3000000")}, "402000"},
		{"property sale legacy", Request{TaxType: PropertySale, Regime: Legacy, Amount: dec("1000")}, "130"},
		{"dividends legacy zero", Request{TaxType: Dividends, Regime: Legacy, Amount: dec("0")}, "0"},
		{"dividends legacy negative", Request{TaxType: Dividends, Regime: Legacy, Amount: dec("-2500000")}, "0"},
		{"dividends current zero", Request{TaxType: Dividends, Regime: Current, Amount: dec("0")}, "0"},
		{"dividends current negative", Request{TaxType: Dividends, Regime: Current, Amount: dec("-2500000")}, "0"},
		{"property sale legacy zero", Request{TaxType: PropertySale, Regime: Legacy, Amount: dec("0")}, "0"},
		{"property sale legacy negative", Request{TaxType: PropertySale, Regime: Legacy, Amount: dec("-2500000")}, "0"},
		{"property sale current zero", Request{TaxType: PropertySale, Regime: Current, Amount: dec("0")}, "0"},
		{"property sale current negative", Request{TaxType: PropertySale, Regime: Current, Amount: dec("-2500000")}, "0"},
		{"non resident gross", Request{TaxType: NonResidentIncome, Operation: Gross, Amount: dec("1001")}, "300"},
		{"non resident gross half rounds up", Request{TaxType: NonResidentIncome, Operation: Gross, Amount: dec("1005")}, "302"},
		{"non resident net to gross", Request{TaxType: NonResidentIncome, Operation: NetToGross, Amount: dec("700")}, "300"},
		{"winnings gross is not rounded", Request{TaxType: Winnings, Operation: Gross, Amount: dec("1001")}, "350.35"},
		{"winnings net to gross", Request{TaxType: Winnings, Operation: NetToGross, Amount: dec("650")}, "350"},
		{"winnings net to gross rounds", Request{TaxType: Winnings, Operation: NetToGross, Amount: dec("1000")}, "538"},
		{"custom rate gross is not rounded", Request{TaxType: CustomRate, Operation: Gross, Amount: dec("1001"), CustomRate: rate("20")}, "200.2"},
		{"custom rate net to gross", Request{TaxType: CustomRate, Operation: NetToGross, Amount: dec("800"), CustomRate: rate("20")}, "200"},
		{"custom rate of 100 gross", Request{TaxType: CustomRate, Operation: Gross, Amount: dec("500"), CustomRate: rate("100")}, "500"},
		{"custom rate of zero", Request{TaxType: CustomRate, Operation: NetToGross, Amount: dec("500"), CustomRate: rate("0")}, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compute(tt.req)
			require.NoError(t, err)
			assertDecimal(t, tt.want, got)
		})
	}
}

func TestCompute_Errors(t *testing.T) {
	t.Run("custom rate without a rate", func(t *testing.T) {
		for _, mode := range []OperationMode{Gross, NetToGross} {
			_, err := Compute(Request{TaxType: CustomRate, Operation: mode, Amount: dec("100")})
			assert.ErrorIs(t, err, ErrMissingRate, mode.String())
		}
	})

	t.Run("custom rate of 100 net to gross", func(t *testing.T) {
		_, err := Compute(Request{TaxType: CustomRate, Operation: NetToGross, Amount: dec("100"), CustomRate: rate("100")})
		require.ErrorIs(t, err, ErrDegenerateRate)

		var degenerate *DegenerateRateError
		require.True(t, errors.As(err, &degenerate))
		assertDecimal(t, "100", degenerate.Rate)
	})

	t.Run("unknown tax type", func(t *testing.T) {
		_, err := Compute(Request{TaxType: TaxType(42), Amount: dec("100")})
		require.ErrorIs(t, err, ErrUnsupportedTaxType)

		var unsupported *UnsupportedTaxTypeError
		require.True(t, errors.As(err, &unsupported))
		assert.Equal(t, TaxType(42), unsupported.TaxType)
	})

	t.Run("all are client errors", func(t *testing.T) {
		assert.True(t, IsClientError(ErrMissingRate))
		assert.True(t, IsClientError(&DegenerateRateError{Rate: dec("100")}))
		assert.True(t, IsClientError(&UnsupportedTaxTypeError{TaxType: 0}))
		assert.False(t, IsClientError(errors.New("boom")))
	})
}

func TestSchedule_RoundingPolicies(t *testing.T) {
	brackets := []Bracket{
		{Width: dec("10"), Rate: dec("0.05")},
		{Rate: dec("0.05")},
	}

	// Each bracket contributes exactly 0.5.
	perBracket := Schedule{Brackets: brackets, Rounding: RoundPerBracket}
	total := Schedule{Brackets: brackets, Rounding: RoundTotal}
	none := Schedule{Brackets: brackets, Rounding: RoundNone}

	assertDecimal(t, "2", perBracket.Apply(dec("20")))
	assertDecimal(t, "1", total.Apply(dec("20")))
	assertDecimal(t, "1.0", none.Apply(dec("20")))
}

func TestEvaluate_EchoesRequest(t *testing.T) {
	req := Request{
		TaxType:    CustomRate,
		Operation:  Gross,
		Amount:     dec("1000"),
		CustomRate: rate("12.5"),
		Regime:     Current,
	}

	res, err := Evaluate(req)
	require.NoError(t, err)

	assert.Equal(t, req.TaxType, res.TaxType)
	assert.Equal(t, req.Operation, res.Operation)
	assert.Equal(t, req.Regime, res.Regime)
	assertDecimal(t, "1000", res.Amount)
	require.NotNil(t, res.CustomRateUsed)
	assertDecimal(t, "12.5", *res.CustomRateUsed)
	assertDecimal(t, "125", res.CalculatedTax)

	_, err = Evaluate(Request{TaxType: CustomRate, Amount: dec("1")})
	assert.ErrorIs(t, err, ErrMissingRate)
}

func TestCompute_Idempotent(t *testing.T) {
	req := Request{TaxType: PersonalIncome, Regime: Current, Amount: dec("17345678.91")}

	first, err := Compute(req)
	require.NoError(t, err)
	second, err := Compute(req)
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
}

func TestCompute_PersonalIncomeMonotonic(t *testing.T) {
	step := dec("250000")
	previous := decimal.Zero

	for amount := decimal.Zero; amount.LessThan(dec("45000000")); amount = amount.Add(step) {
		got, err := Compute(Request{TaxType: PersonalIncome, Regime: Current, Amount: amount})
		require.NoError(t, err)
		require.True(t, got.GreaterThanOrEqual(previous), "tax decreased at %s", amount)
		previous = got
	}
}

func TestCompute_Concurrent(t *testing.T) {
	want, err := Compute(Request{TaxType: Dividends, Regime: Current, Amount: dec("3000000")})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]decimal.Decimal, 64)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = Compute(Request{TaxType: Dividends, Regime: Current, Amount: dec("3000000")})
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.True(t, want.Equal(got))
	}
}

func TestParseEnums(t *testing.T) {
	tt, err := ParseTaxType("property-sale")
	require.NoError(t, err)
	assert.Equal(t, PropertySale, tt)

	tt, err = ParseTaxType("3")
	require.NoError(t, err)
	assert.Equal(t, NonResidentIncome, tt)

	_, err = ParseTaxType("lottery")
	assert.Error(t, err)

	mode, err := ParseOperationMode("net-to-gross")
	require.NoError(t, err)
	assert.Equal(t, NetToGross, mode)

	regime, err := ParseRegimeVersion("legacy")
	require.NoError(t, err)
	assert.Equal(t, Legacy, regime)

	assert.False(t, TaxType(0).Valid())
	assert.False(t, OperationMode(2).Valid())
	assert.False(t, RegimeVersion(7).Valid())
	assert.Equal(t, "winnings", Winnings.String())
}
