package taxcalc

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TaxType selects the tax regime. Values match the integers used on the wire.
type TaxType int

const (
	PersonalIncome TaxType = iota + 1
	Dividends
	NonResidentIncome
	Winnings
	CustomRate
	PropertySale
)

var taxTypeNames = map[TaxType]string{
	PersonalIncome:    "personal-income",
	Dividends:         "dividends",
	NonResidentIncome: "non-resident-income",
	Winnings:          "winnings",
	CustomRate:        "custom-rate",
	PropertySale:      "property-sale",
}

func (t TaxType) String() string {
	if name, ok := taxTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tax-type(%d)", int(t))
}

// Valid reports whether t is one of the known tax types.
func (t TaxType) Valid() bool {
	_, ok := taxTypeNames[t]
	return ok
}

// ParseTaxType accepts either the kebab-case name or the wire integer.
func ParseTaxType(s string) (TaxType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range taxTypeNames {
		if name == s || fmt.Sprint(int(t)) == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown tax type %q", s)
}

// OperationMode tells whether Amount is the taxable base or the desired net amount.
type OperationMode int

const (
	Gross OperationMode = iota
	NetToGross
)

func (m OperationMode) String() string {
	switch m {
	case Gross:
		return "gross"
	case NetToGross:
		return "net-to-gross"
	}
	return fmt.Sprintf("operation(%d)", int(m))
}

func (m OperationMode) Valid() bool {
	return m == Gross || m == NetToGross
}

// ParseOperationMode accepts "gross", "net-to-gross" or the wire integer.
func ParseOperationMode(s string) (OperationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gross", "0":
		return Gross, nil
	case "net-to-gross", "net", "1":
		return NetToGross, nil
	}
	return 0, fmt.Errorf("unknown operation mode %q", s)
}

// RegimeVersion picks the rate table in force. It is a policy-date switch, not a computed value.
type RegimeVersion int

const (
	Legacy RegimeVersion = iota
	Current
)

func (r RegimeVersion) String() string {
	switch r {
	case Legacy:
		return "legacy"
	case Current:
		return "current"
	}
	return fmt.Sprintf("regime(%d)", int(r))
}

func (r RegimeVersion) Valid() bool {
	return r == Legacy || r == Current
}

// ParseRegimeVersion accepts "legacy", "current" or the wire integer.
func ParseRegimeVersion(s string) (RegimeVersion, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "legacy", "0":
		return Legacy, nil
	case "current", "1":
		return Current, nil
	}
	return 0, fmt.Errorf("unknown regime version %q", s)
}

// Request is the immutable input of a calculation.
type Request struct {
	TaxType    TaxType
	Operation  OperationMode
	Amount     decimal.Decimal
	CustomRate *decimal.Decimal // percentage, 0-100
	Regime     RegimeVersion
}

// Result echoes the request alongside the computed tax.
type Result struct {
	TaxType        TaxType
	Operation      OperationMode
	Amount         decimal.Decimal
	CustomRateUsed *decimal.Decimal
	Regime         RegimeVersion
	CalculatedTax  decimal.Decimal
}

var maxRate = decimal.NewFromInt(100)

// RateInRange reports whether a custom rate is a percentage between 0 and 100.
func RateInRange(rate decimal.Decimal) bool {
	return !rate.IsNegative() && !rate.GreaterThan(maxRate)
}
