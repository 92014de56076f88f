// Package bump picks the order bump offer shown next to the cart.
package bump

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/KairamCabral/terravik-sub002/internal/catalog"
	"github.com/KairamCabral/terravik-sub002/internal/domain"
	"github.com/KairamCabral/terravik-sub002/internal/format"
)

// Offer is a static complementary offer. Lower priority wins.
type Offer struct {
	ProductID      string
	VariantID      string
	Name           string
	Pitch          string
	Price          decimal.Decimal
	CompareAtPrice decimal.Decimal
	TriggeredBy    []string
	Priority       int
}

var defaultOffers = []Offer{
	{
		ProductID:      catalog.ProductIDGreen,
		VariantID:      "variant-p2-900",
		Name:           "Terravik Verde Rápido 900 g",
		Pitch:          "Depois de enraizar, acelere o verde: combine com o Verde Rápido e veja resultado em dias.",
		Price:          decimal.RequireFromString("59.90"),
		CompareAtPrice: decimal.RequireFromString("79.90"),
		TriggeredBy:    []string{catalog.ProductIDRooting},
		Priority:       1,
	},
	{
		ProductID:      catalog.ProductIDStress,
		VariantID:      "variant-p3-900",
		Name:           "Terravik Resistência Total 900 g",
		Pitch:          "Proteja o gramado do calor e do pisoteio com a fórmula equilibrada.",
		Price:          decimal.RequireFromString("74.90"),
		CompareAtPrice: decimal.RequireFromString("99.90"),
		TriggeredBy:    []string{catalog.ProductIDRooting, catalog.ProductIDGreen},
		Priority:       2,
	},
	{
		ProductID:      catalog.ProductIDRooting,
		VariantID:      "variant-p1-900",
		Name:           "Terravik Raiz Forte 900 g",
		Pitch:          "Raízes profundas deixam o gramado mais resistente. Fortaleça a base.",
		Price:          decimal.RequireFromString("67.90"),
		CompareAtPrice: decimal.RequireFromString("89.90"),
		TriggeredBy:    []string{catalog.ProductIDStress},
		Priority:       3,
	},
}

type Engine struct {
	offers []Offer
}

// NewEngine builds an engine over offers; nil means the default table.
func NewEngine(offers []Offer) *Engine {
	if offers == nil {
		offers = defaultOffers
	}
	sorted := append([]Offer(nil), offers...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })
	return &Engine{offers: sorted}
}

// GetSmartBumpProduct returns the highest priority offer that is not already in
// the cart and is triggered by at least one cart product, or nil.
func (e *Engine) GetSmartBumpProduct(cartProductIDs []string) *domain.OrderBumpProduct {
	cart := normalizeProductIDs(cartProductIDs)
	if len(cart) == 0 {
		return nil
	}

	for _, offer := range e.offers {
		if _, inCart := cart[offer.ProductID]; inCart {
			continue
		}
		if !triggered(offer, cart) {
			continue
		}
		product := toProduct(offer)
		return &product
	}
	return nil
}

// Offer looks an offer up by its product id.
func (e *Engine) Offer(productID string) (domain.OrderBumpProduct, bool) {
	productID = strings.TrimSpace(productID)
	for _, offer := range e.offers {
		if offer.ProductID == productID {
			return toProduct(offer), true
		}
	}
	return domain.OrderBumpProduct{}, false
}

// GetSmartBumpProduct runs the default offer table.
func GetSmartBumpProduct(cartProductIDs []string) *domain.OrderBumpProduct {
	return defaultEngine.GetSmartBumpProduct(cartProductIDs)
}

var defaultEngine = NewEngine(nil)

func triggered(offer Offer, cart map[string]struct{}) bool {
	for _, id := range offer.TriggeredBy {
		if _, ok := cart[id]; ok {
			return true
		}
	}
	return false
}

func normalizeProductIDs(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}

func toProduct(offer Offer) domain.OrderBumpProduct {
	discount := DiscountPercent(offer.Price, offer.CompareAtPrice)
	product := domain.OrderBumpProduct{
		ID:              offer.ProductID,
		VariantID:       offer.VariantID,
		Name:            offer.Name,
		Pitch:           offer.Pitch,
		Price:           offer.Price,
		CompareAtPrice:  offer.CompareAtPrice,
		DiscountPercent: discount,
		TriggeredBy:     append([]string(nil), offer.TriggeredBy...),
		Priority:        offer.Priority,
	}
	if discount > 0 {
		product.DiscountLabel = format.Percent(discount) + " OFF"
	}
	return product
}

// DiscountPercent is the whole-percent saving of price against compareAt.
func DiscountPercent(price decimal.Decimal, compareAt decimal.Decimal) int {
	if !compareAt.IsPositive() || price.GreaterThanOrEqual(compareAt) {
		return 0
	}
	return int(compareAt.Sub(price).Div(compareAt).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
}
