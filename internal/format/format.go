// Package format renders money, weights and delivery windows for pt-BR display.
package format

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/KairamCabral/terravik-sub002/internal/domain"
)

var printer = message.NewPrinter(language.BrazilianPortuguese)

// Money formats a BRL amount, e.g. "R$ 1.234,50".
func Money(amount decimal.Decimal) string {
	rounded := amount.Round(2)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Neg()
	}
	return sign + "R$ " + printer.Sprint(number.Decimal(rounded.InexactFloat64(), number.Scale(2)))
}

// Weight formats grams below one kilo as "850 g" and larger weights as "3,2 kg".
func Weight(grams int) string {
	if grams < 1000 {
		return fmt.Sprintf("%d g", grams)
	}
	kg := float64(grams) / 1000
	return printer.Sprint(number.Decimal(kg, number.MaxFractionDigits(1))) + " kg"
}

// Days formats a delivery window in business days.
func Days(window domain.DayRange) string {
	if window.Min == window.Max {
		if window.Min == 1 {
			return "1 dia útil"
		}
		return fmt.Sprintf("%d dias úteis", window.Min)
	}
	return fmt.Sprintf("%d–%d dias úteis", window.Min, window.Max)
}

// Percent formats a whole percentage, e.g. "25%".
func Percent(value int) string {
	return fmt.Sprintf("%d%%", value)
}
