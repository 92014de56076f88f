package memory

import (
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/KairamCabral/terravik-sub002/internal/catalog"
	"github.com/KairamCabral/terravik-sub002/internal/domain"
	"github.com/KairamCabral/terravik-sub002/internal/logging"
	"github.com/KairamCabral/terravik-sub002/internal/store"
	"github.com/KairamCabral/terravik-sub002/internal/xid"
)

type snapshotKey struct {
	sessionKey string
	kind       string
}

type snapshot struct {
	payload []byte
	savedAt time.Time
}

type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	couponsByID     map[string]domain.Coupon
	snapshots       map[snapshotKey]snapshot
	bumpEvents      []domain.BumpEvent
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the dev/demo back-office accounts. Passwords come from
// SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD; unset values fall back to dev
// defaults with a warning. Production runs on postgres and never seeds these.
func seedUsers(logger *zap.Logger) map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		logger.Warn("using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"staff", staffPwd, domain.RoleStaff},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			logger.Fatal("failed to hash seed password", zap.String("username", u.username), zap.Error(err))
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store holding the static catalog, the welcome coupons and
// the dev back-office accounts.
func NewSeeded(logger *zap.Logger) *Store {
	logger = logging.OrNop(logger).Named("memory-store")

	products := make(map[string]domain.Product)
	for _, p := range catalog.All() {
		products[p.ID] = p
	}

	createdAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	coupons := map[string]domain.Coupon{
		"coupon-bemvindo10": {
			ID:          "coupon-bemvindo10",
			Code:        "BEMVINDO10",
			Type:        domain.CouponTypePercent,
			Value:       decimal.NewFromInt(10),
			MinSubtotal: decimal.Zero,
			Active:      true,
			CreatedAt:   createdAt,
		},
		"coupon-grama20": {
			ID:          "coupon-grama20",
			Code:        "GRAMA20",
			Type:        domain.CouponTypeFixed,
			Value:       decimal.NewFromInt(20),
			MinSubtotal: decimal.NewFromInt(150),
			Active:      true,
			CreatedAt:   createdAt.Add(time.Second),
		},
	}

	return &Store{
		products:        products,
		couponsByID:     coupons,
		snapshots:       make(map[snapshotKey]snapshot),
		bumpEvents:      make([]domain.BumpEvent, 0, 64),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(logger),
	}
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !p.Active {
			continue
		}
		p.Packages = append([]domain.Package(nil), p.Packages...)
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return strings.Compare(a.SKU, b.SKU)
	})
	return products, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[strings.TrimSpace(id)]
	if !ok {
		return nil, store.ErrNotFound
	}
	product.Packages = append([]domain.Package(nil), product.Packages...)
	return &product, nil
}

func (s *Store) CreateCoupon(_ context.Context, coupon domain.Coupon) (*domain.Coupon, error) {
	coupon.Code = strings.ToUpper(strings.TrimSpace(coupon.Code))
	if coupon.Code == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.couponsByID {
		if existing.Code == coupon.Code {
			return nil, store.ErrConflict
		}
	}
	if coupon.ID == "" {
		coupon.ID = xid.New("coupon")
	}
	if coupon.CreatedAt.IsZero() {
		coupon.CreatedAt = time.Now().UTC()
	}
	s.couponsByID[coupon.ID] = coupon
	saved := coupon
	return &saved, nil
}

func (s *Store) GetCouponByCode(_ context.Context, code string) (*domain.Coupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, coupon := range s.couponsByID {
		if coupon.Code == code {
			found := coupon
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListCoupons(_ context.Context) ([]domain.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coupons := make([]domain.Coupon, 0, len(s.couponsByID))
	for _, coupon := range s.couponsByID {
		coupons = append(coupons, coupon)
	}
	slices.SortFunc(coupons, func(a, b domain.Coupon) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(a.ID, b.ID)
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return coupons, nil
}

func (s *Store) UpdateCouponActive(_ context.Context, couponID string, active bool) (*domain.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	coupon, exists := s.couponsByID[couponID]
	if !exists {
		return nil, store.ErrNotFound
	}
	coupon.Active = active
	s.couponsByID[couponID] = coupon
	updated := coupon
	return &updated, nil
}

func (s *Store) SaveSnapshot(_ context.Context, sessionKey string, kind string, payload []byte, savedAt time.Time) error {
	if strings.TrimSpace(sessionKey) == "" || kind == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[snapshotKey{sessionKey: sessionKey, kind: kind}] = snapshot{
		payload: append([]byte(nil), payload...),
		savedAt: savedAt,
	}
	return nil
}

func (s *Store) GetSnapshot(_ context.Context, sessionKey string, kind string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[snapshotKey{sessionKey: sessionKey, kind: kind}]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), snap.payload...), nil
}

func (s *Store) DeleteSnapshot(_ context.Context, sessionKey string, kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := snapshotKey{sessionKey: sessionKey, kind: kind}
	if _, ok := s.snapshots[key]; !ok {
		return store.ErrNotFound
	}
	delete(s.snapshots, key)
	return nil
}

func (s *Store) CreateBumpEvent(_ context.Context, event domain.BumpEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.bumpEvents = append(s.bumpEvents, event)
	return nil
}

func (s *Store) GetBumpMetrics(_ context.Context, from time.Time, to time.Time) (domain.BumpMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metrics := domain.BumpMetrics{}
	for _, event := range s.bumpEvents {
		if event.CreatedAt.Before(from) || !event.CreatedAt.Before(to) {
			continue
		}
		switch event.Action {
		case domain.BumpShownAction:
			metrics.Shown++
		case domain.BumpAcceptedAction:
			metrics.Accepted++
		case domain.BumpRejectedAction:
			metrics.Rejected++
		}
	}
	metrics.AttachRate = store.AttachRate(metrics)
	return metrics, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}
