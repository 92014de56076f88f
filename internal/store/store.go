package store

import (
	"context"
	"errors"
	"time"

	"github.com/KairamCabral/terravik-sub002/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("already exists")
)

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	CreateCoupon(ctx context.Context, coupon domain.Coupon) (*domain.Coupon, error)
	GetCouponByCode(ctx context.Context, code string) (*domain.Coupon, error)
	ListCoupons(ctx context.Context) ([]domain.Coupon, error)
	UpdateCouponActive(ctx context.Context, couponID string, active bool) (*domain.Coupon, error)
	SaveSnapshot(ctx context.Context, sessionKey string, kind string, payload []byte, savedAt time.Time) error
	GetSnapshot(ctx context.Context, sessionKey string, kind string) ([]byte, error)
	DeleteSnapshot(ctx context.Context, sessionKey string, kind string) error
	CreateBumpEvent(ctx context.Context, event domain.BumpEvent) error
	GetBumpMetrics(ctx context.Context, from time.Time, to time.Time) (domain.BumpMetrics, error)
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

// AttachRate is accepted offers over shown offers, as a percentage.
func AttachRate(metrics domain.BumpMetrics) float64 {
	if metrics.Shown == 0 {
		return 0
	}
	return (float64(metrics.Accepted) / float64(metrics.Shown)) * 100
}
