package cli

import (
	"fmt"

	"taxservice/internal/taxcalc"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type bracketRow struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to,omitempty" yaml:"to,omitempty"`
	Rate string `json:"rate" yaml:"rate"`
}

type bracketTable struct {
	TaxType  string       `json:"tax_type" yaml:"tax_type"`
	Regime   string       `json:"regime" yaml:"regime"`
	Rounding string       `json:"rounding" yaml:"rounding"`
	Brackets []bracketRow `json:"brackets" yaml:"brackets"`
}

func newBracketsCmd() *cobra.Command {
	var (
		taxType string
		regime  string
		output  string
	)

	cmd := &cobra.Command{
		Use:   "brackets",
		Short: "Print a progressive bracket table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := taxcalc.ParseTaxType(taxType)
			if err != nil {
				return err
			}
			r, err := taxcalc.ParseRegimeVersion(regime)
			if err != nil {
				return err
			}

			var schedule taxcalc.Schedule
			switch t {
			case taxcalc.PersonalIncome:
				schedule = taxcalc.PersonalIncomeSchedule(r)
			case taxcalc.Dividends, taxcalc.PropertySale:
				schedule = taxcalc.InvestmentIncomeSchedule(r)
			default:
				return fmt.Errorf("%s has no bracket table", t)
			}

			table := tableFor(t, r, schedule)
			w := cmd.OutOrStdout()
			if done, err := writeStructured(w, output, table); done {
				return err
			}

			fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s, %s rates (rounding: %s)", table.TaxType, table.Regime, table.Rounding)))
			for _, b := range table.Brackets {
				span := b.From + " and above"
				if b.To != "" {
					span = b.From + " - " + b.To
				}
				writeRow(w, b.Rate+"%", span)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&taxType, "type", "personal-income", "tax type: personal-income, dividends or property-sale")
	cmd.Flags().StringVar(&regime, "regime", "current", "rate table: legacy or current")
	cmd.Flags().StringVarP(&output, "output", "o", formatText, "output format: text, json or yaml")

	return cmd
}

func tableFor(t taxcalc.TaxType, r taxcalc.RegimeVersion, s taxcalc.Schedule) bracketTable {
	table := bracketTable{
		TaxType:  t.String(),
		Regime:   r.String(),
		Rounding: s.Rounding.String(),
	}

	lower := decimal.Zero
	for _, b := range s.Brackets {
		row := bracketRow{From: lower.String(), Rate: b.Rate.Shift(2).String()}
		if !b.Width.IsZero() {
			upper := lower.Add(b.Width)
			row.To = upper.String()
			lower = upper
		}
		table.Brackets = append(table.Brackets, row)
	}
	return table
}
