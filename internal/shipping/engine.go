// Package shipping quotes postal shipping options and free shipping progress.
package shipping

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/KairamCabral/terravik-sub002/internal/domain"
	"github.com/KairamCabral/terravik-sub002/internal/format"
)

type Region string

const (
	RegionSudeste     Region = "sudeste"
	RegionSul         Region = "sul"
	RegionNordeste    Region = "nordeste"
	RegionNorte       Region = "norte"
	RegionCentroOeste Region = "centroOeste"
	RegionOutros      Region = "outros"
)

const (
	OptionPAC     = "pac"
	OptionSEDEX   = "sedex"
	OptionExpress = "express"

	carrier = "Correios"
)

var FreeShippingThreshold = decimal.NewFromInt(150)

// States eligible for free PAC once the threshold is reached.
var freeShippingStates = map[string]struct{}{
	"SP": {}, "RJ": {}, "MG": {}, "ES": {}, "PR": {}, "SC": {}, "RS": {},
}

var stateRegion = map[string]Region{
	"SP": RegionSudeste, "RJ": RegionSudeste, "MG": RegionSudeste, "ES": RegionSudeste,
	"PR": RegionSul, "SC": RegionSul, "RS": RegionSul,
	"BA": RegionNordeste, "SE": RegionNordeste, "AL": RegionNordeste, "PE": RegionNordeste,
	"PB": RegionNordeste, "RN": RegionNordeste, "CE": RegionNordeste, "PI": RegionNordeste,
	"MA": RegionNordeste,
	"AM": RegionNorte, "PA": RegionNorte, "AC": RegionNorte, "RO": RegionNorte,
	"RR": RegionNorte, "AP": RegionNorte, "TO": RegionNorte,
	"MT": RegionCentroOeste, "MS": RegionCentroOeste, "GO": RegionCentroOeste, "DF": RegionCentroOeste,
}

type rate struct {
	price decimal.Decimal
	days  domain.DayRange
}

type regionRates struct {
	pac   rate
	sedex rate
}

var regionTable = map[Region]regionRates{
	RegionSudeste: {
		pac:   rate{price: decimal.RequireFromString("15.90"), days: domain.DayRange{Min: 3, Max: 5}},
		sedex: rate{price: decimal.RequireFromString("25.90"), days: domain.DayRange{Min: 1, Max: 2}},
	},
	RegionSul: {
		pac:   rate{price: decimal.RequireFromString("18.90"), days: domain.DayRange{Min: 4, Max: 7}},
		sedex: rate{price: decimal.RequireFromString("29.90"), days: domain.DayRange{Min: 2, Max: 3}},
	},
	RegionNordeste: {
		pac:   rate{price: decimal.RequireFromString("25.90"), days: domain.DayRange{Min: 7, Max: 12}},
		sedex: rate{price: decimal.RequireFromString("45.90"), days: domain.DayRange{Min: 3, Max: 5}},
	},
	RegionNorte: {
		pac:   rate{price: decimal.RequireFromString("32.90"), days: domain.DayRange{Min: 10, Max: 15}},
		sedex: rate{price: decimal.RequireFromString("55.90"), days: domain.DayRange{Min: 5, Max: 8}},
	},
	RegionCentroOeste: {
		pac:   rate{price: decimal.RequireFromString("22.90"), days: domain.DayRange{Min: 5, Max: 9}},
		sedex: rate{price: decimal.RequireFromString("39.90"), days: domain.DayRange{Min: 2, Max: 4}},
	},
	RegionOutros: {
		pac:   rate{price: decimal.RequireFromString("35.90"), days: domain.DayRange{Min: 10, Max: 15}},
		sedex: rate{price: decimal.RequireFromString("59.90"), days: domain.DayRange{Min: 5, Max: 8}},
	},
}

var expressFactor = decimal.RequireFromString("1.3")

// RegionForState maps a UF code to its rate region; unknown states fall to outros.
func RegionForState(state string) Region {
	if region, ok := stateRegion[strings.ToUpper(strings.TrimSpace(state))]; ok {
		return region
	}
	return RegionOutros
}

func EligibleForFreeShipping(state string) bool {
	_, ok := freeShippingStates[strings.ToUpper(strings.TrimSpace(state))]
	return ok
}

// WeightMultiplier is max(1, weight/2): parcels up to 2 kg pay the base rate and
// heavier ones scale linearly. Invalid weights count as light parcels.
func WeightMultiplier(weightKg float64) decimal.Decimal {
	if math.IsNaN(weightKg) || math.IsInf(weightKg, 0) || weightKg <= 2 {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromFloat(weightKg / 2)
}

// CalculateShipping returns PAC, SEDEX and, for sudeste/sul, an express option.
// Exactly one option is recommended. A nil address yields no options.
func CalculateShipping(address *domain.ShippingAddress, subtotal decimal.Decimal, weightKg float64) []domain.ShippingOption {
	if address == nil {
		return []domain.ShippingOption{}
	}

	region := RegionForState(address.State)
	rates := regionTable[region]
	multiplier := WeightMultiplier(weightKg)

	pacPrice := rates.pac.price.Mul(multiplier).Round(2)
	sedexPrice := rates.sedex.price.Mul(multiplier).Round(2)

	pac := domain.ShippingOption{
		ID:            OptionPAC,
		Carrier:       carrier,
		Service:       "PAC",
		Price:         pacPrice,
		EstimatedDays: rates.pac.days,
	}
	sedex := domain.ShippingOption{
		ID:            OptionSEDEX,
		Carrier:       carrier,
		Service:       "SEDEX",
		Price:         sedexPrice,
		EstimatedDays: rates.sedex.days,
	}

	if subtotal.GreaterThanOrEqual(FreeShippingThreshold) && EligibleForFreeShipping(address.State) {
		original := pacPrice
		pac.Service = "PAC - Frete Grátis"
		pac.Price = decimal.Zero
		pac.OriginalPrice = &original
		pac.IsFree = true
		pac.IsRecommended = true
	} else {
		sedex.IsRecommended = true
	}

	options := []domain.ShippingOption{pac, sedex}
	if region == RegionSudeste || region == RegionSul {
		options = append(options, domain.ShippingOption{
			ID:            OptionExpress,
			Carrier:       carrier,
			Service:       "Expresso",
			Price:         sedexPrice.Mul(expressFactor).Round(2),
			EstimatedDays: domain.DayRange{Min: 1, Max: 1},
		})
	}
	for i := range options {
		options[i].DeliveryLabel = format.Days(options[i].EstimatedDays)
	}
	return options
}

// CalculateRemainingForFreeShipping reports how far a subtotal is from the
// free shipping threshold. Remaining is clamped to [0, threshold] and the
// percentage to [0, 100].
func CalculateRemainingForFreeShipping(subtotal decimal.Decimal) domain.FreeShippingProgress {
	remaining := FreeShippingThreshold.Sub(subtotal)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	if remaining.GreaterThan(FreeShippingThreshold) {
		remaining = FreeShippingThreshold
	}

	percentage := subtotal.Div(FreeShippingThreshold).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
	percentage = math.Max(0, math.Min(100, percentage))

	progress := domain.FreeShippingProgress{
		Threshold:  FreeShippingThreshold,
		Remaining:  remaining.Round(2),
		Percentage: percentage,
		Achieved:   subtotal.GreaterThanOrEqual(FreeShippingThreshold),
	}
	if progress.Achieved {
		progress.Message = "Você ganhou frete grátis!"
	} else {
		progress.Message = fmt.Sprintf("Faltam %s para frete grátis", format.Money(progress.Remaining))
	}
	return progress
}

// RecommendedOption returns the recommended option, if any.
func RecommendedOption(options []domain.ShippingOption) (domain.ShippingOption, bool) {
	for _, option := range options {
		if option.IsRecommended {
			return option, true
		}
	}
	return domain.ShippingOption{}, false
}

// FindOption looks an option up by id.
func FindOption(options []domain.ShippingOption, id string) (domain.ShippingOption, bool) {
	for _, option := range options {
		if option.ID == id {
			return option, true
		}
	}
	return domain.ShippingOption{}, false
}
