// Package catalog holds the static fertilizer catalog shared by the plan,
// shipping and order bump engines.
package catalog

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/KairamCabral/terravik-sub002/internal/domain"
)

const (
	ProductIDRooting = "mock-p1"
	ProductIDGreen   = "mock-p2"
	ProductIDStress  = "mock-p3"
)

// Sellable package tiers, smallest first.
var PackageTiers = []int{400, 900, 2700}

var products = []domain.Product{
	{
		ID:          ProductIDRooting,
		SKU:         domain.ProductSKURooting,
		Name:        "Terravik Raiz Forte",
		Formula:     "NPK 10-30-10",
		Description: "Fórmula rica em fósforo para enraizamento de gramados novos e recuperação de falhas.",
		Packages: []domain.Package{
			{VariantID: "variant-p1-400", Grams: 400, Price: decimal.RequireFromString("39.90")},
			{VariantID: "variant-p1-900", Grams: 900, Price: decimal.RequireFromString("89.90")},
			{VariantID: "variant-p1-2700", Grams: 2700, Price: decimal.RequireFromString("229.90")},
		},
		Active: true,
	},
	{
		ID:          ProductIDGreen,
		SKU:         domain.ProductSKUGreen,
		Name:        "Terravik Verde Rápido",
		Formula:     "NPK 30-10-10",
		Description: "Nitrogênio de liberação rápida para um verde intenso em poucos dias.",
		Packages: []domain.Package{
			{VariantID: "variant-p2-400", Grams: 400, Price: decimal.RequireFromString("34.90")},
			{VariantID: "variant-p2-900", Grams: 900, Price: decimal.RequireFromString("79.90")},
			{VariantID: "variant-p2-2700", Grams: 2700, Price: decimal.RequireFromString("199.90")},
		},
		Active: true,
	},
	{
		ID:          ProductIDStress,
		SKU:         domain.ProductSKUStress,
		Name:        "Terravik Resistência Total",
		Formula:     "NPK 15-15-15",
		Description: "Fórmula equilibrada para gramados sob pisoteio, calor e pouca água.",
		Packages: []domain.Package{
			{VariantID: "variant-p3-400", Grams: 400, Price: decimal.RequireFromString("44.90")},
			{VariantID: "variant-p3-900", Grams: 900, Price: decimal.RequireFromString("99.90")},
			{VariantID: "variant-p3-2700", Grams: 2700, Price: decimal.RequireFromString("259.90")},
		},
		Active: true,
	},
}

var (
	bySKU     = make(map[string]int, len(products))
	byID      = make(map[string]int, len(products))
	byVariant = make(map[string]variantRef)
)

type variantRef struct {
	product int
	pkg     int
}

func init() {
	for i, product := range products {
		bySKU[product.SKU] = i
		byID[product.ID] = i
		for j, pkg := range product.Packages {
			byVariant[pkg.VariantID] = variantRef{product: i, pkg: j}
		}
	}
}

// All returns a copy of the catalog ordered by SKU.
func All() []domain.Product {
	out := make([]domain.Product, 0, len(products))
	for _, product := range products {
		out = append(out, clone(product))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out
}

func BySKU(sku string) (domain.Product, bool) {
	idx, ok := bySKU[strings.ToUpper(strings.TrimSpace(sku))]
	if !ok {
		return domain.Product{}, false
	}
	return clone(products[idx]), true
}

func ByID(id string) (domain.Product, bool) {
	idx, ok := byID[strings.TrimSpace(id)]
	if !ok {
		return domain.Product{}, false
	}
	return clone(products[idx]), true
}

// PackageFor returns the package of a product matching the given tier in grams.
func PackageFor(product domain.Product, grams int) (domain.Package, bool) {
	for _, pkg := range product.Packages {
		if pkg.Grams == grams {
			return pkg, true
		}
	}
	return domain.Package{}, false
}

// Variant resolves a variant id to its product and package.
func Variant(variantID string) (domain.Product, domain.Package, bool) {
	ref, ok := byVariant[strings.TrimSpace(variantID)]
	if !ok {
		return domain.Product{}, domain.Package{}, false
	}
	product := products[ref.product]
	return clone(product), product.Packages[ref.pkg], true
}

// CartWeightKg sums the package weight of every known variant in the cart.
// Unknown variants contribute nothing.
func CartWeightKg(items []domain.CartItem) float64 {
	grams := 0
	for _, item := range items {
		if item.Quantity < 1 {
			continue
		}
		_, pkg, ok := Variant(item.VariantID)
		if !ok {
			continue
		}
		grams += pkg.Grams * item.Quantity
	}
	return float64(grams) / 1000
}

func clone(product domain.Product) domain.Product {
	product.Packages = append([]domain.Package(nil), product.Packages...)
	return product
}
