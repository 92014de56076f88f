// Package plan turns the lawn calculator answers into a fertilizer plan.
package plan

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/KairamCabral/terravik-sub002/internal/catalog"
	"github.com/KairamCabral/terravik-sub002/internal/domain"
	"github.com/KairamCabral/terravik-sub002/internal/format"
)

var ErrIncompleteInput = errors.New("calculator input incomplete")

// IncompleteInputError lists the answers that are missing or out of range.
type IncompleteInputError struct {
	Fields []string
}

func (e *IncompleteInputError) Error() string {
	return fmt.Sprintf("%s: %s", ErrIncompleteInput.Error(), strings.Join(e.Fields, ", "))
}

func (e *IncompleteInputError) Unwrap() error {
	return ErrIncompleteInput
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// Validate reports every missing or invalid answer as an IncompleteInputError.
func Validate(input domain.CalculatorInput) error {
	return toIncomplete(validate.Struct(input))
}

func toIncomplete(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrIncompleteInput, err)
	}
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fe.Field())
	}
	sort.Strings(fields)
	return &IncompleteInputError{Fields: fields}
}

type answers struct {
	implantando bool
	objetivo    string
	clima       string
	sol         string
	irrigacao   string
	pisoteio    string
	nivel       string
}

type rule struct {
	name  string
	match func(a answers) bool
	sku   string
	dose  float64
}

// Rules are evaluated in order; every match contributes its SKU, keeping the
// highest dose when a SKU matches more than once.
var rules = []rule{
	{
		name:  "implantacao",
		match: func(a answers) bool { return a.implantando },
		sku:   domain.ProductSKURooting,
		dose:  50,
	},
	{
		name: "recuperacao_falhas",
		match: func(a answers) bool {
			return !a.implantando && (a.nivel == domain.NivelRalo || a.nivel == domain.NivelFalhas)
		},
		sku:  domain.ProductSKURooting,
		dose: 30,
	},
	{
		name:  "correcao_amarelado",
		match: func(a answers) bool { return a.nivel == domain.NivelAmarelado },
		sku:   domain.ProductSKUGreen,
		dose:  30,
	},
	{
		name:  "verde_intenso",
		match: func(a answers) bool { return a.objetivo == domain.ObjetivoVerdeIntenso },
		sku:   domain.ProductSKUGreen,
		dose:  25,
	},
	{
		name:  "crescimento",
		match: func(a answers) bool { return a.objetivo == domain.ObjetivoCrescimento && !a.implantando },
		sku:   domain.ProductSKUGreen,
		dose:  25,
	},
	{
		name:  "resistencia",
		match: func(a answers) bool { return a.objetivo == domain.ObjetivoResistencia },
		sku:   domain.ProductSKUStress,
		dose:  30,
	},
	{
		name:  "pisoteio_alto",
		match: func(a answers) bool { return a.pisoteio == domain.PisoteioAlto },
		sku:   domain.ProductSKUStress,
		dose:  25,
	},
	{
		name: "estresse_hidrico",
		match: func(a answers) bool {
			return a.clima == domain.ClimaQuenteSeco && a.irrigacao == domain.IrrigacaoRara
		},
		sku:  domain.ProductSKUStress,
		dose: 20,
	},
}

var fallbackRule = rule{name: "manutencao", sku: domain.ProductSKUGreen, dose: 20}

var (
	solModifier = map[string]float64{
		domain.SolPleno:      1,
		domain.SolMeiaSombra: 0.9,
		domain.SolSombra:     0.8,
	}
	climaModifier = map[string]float64{
		domain.ClimaQuenteSeco:  1,
		domain.ClimaQuenteUmido: 1,
		domain.ClimaAmeno:       1,
		domain.ClimaFrio:        0.85,
	}
	irrigacaoModifier = map[string]float64{
		domain.IrrigacaoDiaria:  1.1,
		domain.IrrigacaoSemanal: 1,
		domain.IrrigacaoRara:    1,
	}
)

// GeneratePlan recomputes the plan from scratch. It never returns a partial
// plan: any missing answer yields ErrIncompleteInput.
func GeneratePlan(input domain.CalculatorInput) (domain.CalculatorResult, error) {
	if err := Validate(input); err != nil {
		return domain.CalculatorResult{}, err
	}

	area := *input.AreaM2
	a := answers{
		implantando: *input.Implantando,
		objetivo:    input.Objetivo,
		clima:       input.ClimaHoje,
		sol:         input.Sol,
		irrigacao:   input.Irrigacao,
		pisoteio:    input.Pisoteio,
		nivel:       input.Nivel,
	}

	doses := matchDoses(a)
	modifier := solModifier[a.sol] * climaModifier[a.clima] * irrigacaoModifier[a.irrigacao]

	skus := make([]string, 0, len(doses))
	for sku := range doses {
		skus = append(skus, sku)
	}
	sort.Strings(skus)

	result := domain.CalculatorResult{
		AreaM2: area,
		Plan:   make([]domain.PlanItem, 0, len(skus)),
		Total:  decimal.Zero,
	}
	for _, sku := range skus {
		product, ok := catalog.BySKU(sku)
		if !ok {
			return domain.CalculatorResult{}, fmt.Errorf("plan: sku %s missing from catalog", sku)
		}

		dose := round1(doses[sku] * modifier)
		needGrams := int(math.Ceil(dose*area - 1e-6))
		packageGrams, count := Packaging(needGrams)
		pkg, ok := catalog.PackageFor(product, packageGrams)
		if !ok {
			return domain.CalculatorResult{}, fmt.Errorf("plan: sku %s has no %dg package", sku, packageGrams)
		}

		lineTotal := pkg.Price.Mul(decimal.NewFromInt(int64(count)))
		result.Plan = append(result.Plan, domain.PlanItem{
			ProductID:     product.ID,
			SKU:           product.SKU,
			Name:          product.Name,
			DoseGPerM2:    dose,
			NeedGrams:     needGrams,
			NeedDisplay:   format.Weight(needGrams),
			VariantID:     pkg.VariantID,
			PackageGrams:  packageGrams,
			Packages:      count,
			QuantityGrams: packageGrams * count,
			UnitPrice:     pkg.Price,
			LineTotal:     lineTotal,
		})
		result.Total = result.Total.Add(lineTotal)
	}

	return result, nil
}

func matchDoses(a answers) map[string]float64 {
	doses := make(map[string]float64, 3)
	for _, r := range rules {
		if !r.match(a) {
			continue
		}
		if r.dose > doses[r.sku] {
			doses[r.sku] = r.dose
		}
	}
	if len(doses) == 0 {
		doses[fallbackRule.sku] = fallbackRule.dose
	}
	return doses
}

// Packaging picks the smallest tier that covers the need in a single package.
// Needs above the largest tier are covered with whole large packages.
func Packaging(needGrams int) (packageGrams int, count int) {
	if needGrams < 1 {
		needGrams = 1
	}
	for _, tier := range catalog.PackageTiers {
		if needGrams <= tier {
			return tier, 1
		}
	}
	largest := catalog.PackageTiers[len(catalog.PackageTiers)-1]
	return largest, (needGrams + largest - 1) / largest
}

func round1(val float64) float64 {
	return math.Round(val*10) / 10
}
