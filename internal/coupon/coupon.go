// Package coupon validates coupon rules and computes their discount.
package coupon

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/KairamCabral/terravik-sub002/internal/domain"
)

var (
	ErrCouponInactive      = errors.New("coupon inactive")
	ErrCouponExpired       = errors.New("coupon expired")
	ErrCouponMinimumNotMet = errors.New("coupon minimum subtotal not met")
	ErrInvalidCoupon       = errors.New("invalid coupon")
)

var hundred = decimal.NewFromInt(100)

// NormalizeCode makes codes case and whitespace insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateRule checks a coupon definition before it is stored.
func ValidateRule(c domain.Coupon) error {
	if NormalizeCode(c.Code) == "" || len(c.Code) > 40 {
		return ErrInvalidCoupon
	}
	if c.MinSubtotal.IsNegative() || !c.Value.IsPositive() {
		return ErrInvalidCoupon
	}
	switch c.Type {
	case domain.CouponTypePercent:
		if c.Value.GreaterThan(hundred) {
			return ErrInvalidCoupon
		}
	case domain.CouponTypeFixed:
	default:
		return ErrInvalidCoupon
	}
	return nil
}

// Apply computes the discount a coupon grants on subtotal at time now. The
// discount is rounded to cents and never exceeds the subtotal.
func Apply(c domain.Coupon, subtotal decimal.Decimal, now time.Time) (domain.AppliedCoupon, error) {
	if !c.Active {
		return domain.AppliedCoupon{}, ErrCouponInactive
	}
	if c.ExpiresAt != nil && !now.Before(*c.ExpiresAt) {
		return domain.AppliedCoupon{}, ErrCouponExpired
	}
	if subtotal.LessThan(c.MinSubtotal) {
		return domain.AppliedCoupon{}, ErrCouponMinimumNotMet
	}

	var discount decimal.Decimal
	switch c.Type {
	case domain.CouponTypePercent:
		discount = subtotal.Mul(c.Value).Div(hundred)
	case domain.CouponTypeFixed:
		discount = c.Value
	default:
		return domain.AppliedCoupon{}, ErrInvalidCoupon
	}

	discount = discount.Round(2)
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}

	return domain.AppliedCoupon{
		Code:           NormalizeCode(c.Code),
		DiscountAmount: discount,
		Subtotal:       subtotal,
	}, nil
}
