package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KairamCabral/terravik-sub002/internal/domain"
)

func TestAllReturnsEveryTierForEveryProduct(t *testing.T) {
	products := All()
	require.Len(t, products, 3)
	assert.Equal(t, []string{"P1", "P2", "P3"}, []string{products[0].SKU, products[1].SKU, products[2].SKU})

	for _, product := range products {
		for _, tier := range PackageTiers {
			pkg, ok := PackageFor(product, tier)
			require.Truef(t, ok, "product %s missing %dg package", product.SKU, tier)
			assert.True(t, pkg.Price.IsPositive())
		}
	}
}

func TestAllReturnsCopies(t *testing.T) {
	products := All()
	products[0].Packages[0].Grams = 1

	again, ok := BySKU("p1")
	require.True(t, ok)
	assert.Equal(t, 400, again.Packages[0].Grams)
}

func TestVariantLookup(t *testing.T) {
	product, pkg, ok := Variant("variant-p2-900")
	require.True(t, ok)
	assert.Equal(t, ProductIDGreen, product.ID)
	assert.Equal(t, 900, pkg.Grams)

	_, _, ok = Variant("unknown")
	assert.False(t, ok)
}

func TestCartWeightKgIgnoresUnknownVariants(t *testing.T) {
	weight := CartWeightKg([]domain.CartItem{
		{VariantID: "variant-p1-2700", Quantity: 2},
		{VariantID: "variant-p3-400", Quantity: 1},
		{VariantID: "gift-card", Quantity: 3},
		{VariantID: "variant-p2-900", Quantity: 0},
	})
	assert.InDelta(t, 5.8, weight, 1e-9)
}
