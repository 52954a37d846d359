package cli

import (
	"fmt"

	"taxservice/internal/taxcalc"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type computeOutput struct {
	TaxType       string  `json:"tax_type" yaml:"tax_type"`
	Operation     string  `json:"operation" yaml:"operation"`
	Regime        string  `json:"regime" yaml:"regime"`
	Amount        string  `json:"amount" yaml:"amount"`
	CustomRate    *string `json:"custom_rate,omitempty" yaml:"custom_rate,omitempty"`
	CalculatedTax string  `json:"calculated_tax" yaml:"calculated_tax"`
}

func newComputeCmd() *cobra.Command {
	var (
		taxType string
		mode    string
		amount  string
		regime  string
		rate    string
		output  string
	)

	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Compute the tax for one amount",
		Example: `  taxctl compute --type personal-income --amount 5000000
  taxctl compute --type custom-rate --rate 20 --mode net-to-gross --amount 800 --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildRequest(taxType, mode, amount, regime, rate)
			if err != nil {
				return err
			}

			result, err := taxcalc.Evaluate(req)
			if err != nil {
				return fmt.Errorf("compute failed: %w", err)
			}

			out := computeOutput{
				TaxType:       result.TaxType.String(),
				Operation:     result.Operation.String(),
				Regime:        result.Regime.String(),
				Amount:        result.Amount.String(),
				CalculatedTax: result.CalculatedTax.String(),
			}
			if result.CustomRateUsed != nil {
				s := result.CustomRateUsed.String()
				out.CustomRate = &s
			}

			w := cmd.OutOrStdout()
			if done, err := writeStructured(w, output, out); done {
				return err
			}

			fmt.Fprintln(w, titleStyle.Render("Tax calculation"))
			writeRow(w, "Tax type", out.TaxType)
			writeRow(w, "Operation", out.Operation)
			writeRow(w, "Regime", out.Regime)
			writeRow(w, "Amount", out.Amount)
			if out.CustomRate != nil {
				writeRow(w, "Rate, %", *out.CustomRate)
			}
			writeRow(w, "Tax", out.CalculatedTax)
			return nil
		},
	}

	cmd.Flags().StringVar(&taxType, "type", "", "tax type: personal-income, dividends, non-resident-income, winnings, custom-rate, property-sale (or 1-6)")
	cmd.Flags().StringVar(&mode, "mode", "gross", "operation mode: gross or net-to-gross")
	cmd.Flags().StringVar(&amount, "amount", "", "amount (taxable base, or the desired net amount for net-to-gross)")
	cmd.Flags().StringVar(&regime, "regime", "current", "rate table: legacy or current")
	cmd.Flags().StringVar(&rate, "rate", "", "custom rate in percent, required for custom-rate")
	cmd.Flags().StringVarP(&output, "output", "o", formatText, "output format: text, json or yaml")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func buildRequest(taxType, mode, amount, regime, rate string) (taxcalc.Request, error) {
	var req taxcalc.Request
	var err error

	if req.TaxType, err = taxcalc.ParseTaxType(taxType); err != nil {
		return req, err
	}
	if req.Operation, err = taxcalc.ParseOperationMode(mode); err != nil {
		return req, err
	}
	if req.Regime, err = taxcalc.ParseRegimeVersion(regime); err != nil {
		return req, err
	}

	if req.Amount, err = decimal.NewFromString(amount); err != nil {
		return req, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if req.Amount.IsNegative() {
		return req, fmt.Errorf("amount must not be negative")
	}

	if rate != "" {
		r, err := decimal.NewFromString(rate)
		if err != nil {
			return req, fmt.Errorf("invalid rate %q: %w", rate, err)
		}
		if !taxcalc.RateInRange(r) {
			return req, fmt.Errorf("rate %s must be between 0 and 100", r)
		}
		req.CustomRate = &r
	}
	return req, nil
}
