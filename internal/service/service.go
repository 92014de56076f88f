package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/KairamCabral/terravik-sub002/internal/bump"
	"github.com/KairamCabral/terravik-sub002/internal/catalog"
	"github.com/KairamCabral/terravik-sub002/internal/coupon"
	"github.com/KairamCabral/terravik-sub002/internal/domain"
	"github.com/KairamCabral/terravik-sub002/internal/logging"
	"github.com/KairamCabral/terravik-sub002/internal/metrics"
	"github.com/KairamCabral/terravik-sub002/internal/plan"
	"github.com/KairamCabral/terravik-sub002/internal/shipping"
	"github.com/KairamCabral/terravik-sub002/internal/store"
	"github.com/KairamCabral/terravik-sub002/internal/xid"
)

var (
	ErrAdminRequired = errors.New("admin role required")
	ErrInvalidCEP    = errors.New("invalid cep")
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// AddressLookup resolves a CEP to an address; nil means unknown or unreachable.
type AddressLookup interface {
	FetchAddressByCEP(ctx context.Context, cep string) *domain.ShippingAddress
}

type Service struct {
	repo      store.Repository
	addresses AddressLookup
	bumps     *bump.Engine
	logger    *zap.Logger
	metrics   *metrics.Registry
	now       func() time.Time
}

func New(repo store.Repository, addresses AddressLookup, logger *zap.Logger, reg *metrics.Registry) *Service {
	return &Service{
		repo:      repo,
		addresses: addresses,
		bumps:     bump.NewEngine(nil),
		logger:    logging.OrNop(logger).Named("service"),
		metrics:   reg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return ErrAdminRequired
	}
	return nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

// GeneratePlan builds the plan and, when a session key is given,
// stores it as the quick-purchase snapshot. A failed save does not fail the plan.
func (s *Service) GeneratePlan(ctx context.Context, sessionKey string, input domain.CalculatorInput) (domain.CalculatorResult, error) {
	result, err := plan.GeneratePlan(input)
	if err != nil {
		if errors.Is(err, plan.ErrIncompleteInput) {
			s.metrics.PlanGenerated(metrics.OutcomeIncomplete)
		} else {
			s.metrics.PlanGenerated(metrics.OutcomeError)
		}
		return domain.CalculatorResult{}, err
	}
	s.metrics.PlanGenerated(metrics.OutcomeOK)

	sessionKey = strings.TrimSpace(sessionKey)
	if sessionKey == "" {
		return result, nil
	}

	snapshot := plan.NewQuickPurchaseSnapshot(result, s.now())
	if err := s.saveSnapshot(ctx, sessionKey, domain.SnapshotKindResult, snapshot); err != nil {
		s.logger.Warn("failed to persist quick purchase snapshot", zap.String("session_key", sessionKey), zap.Error(err))
	}
	return result, nil
}

func (s *Service) SaveWizard(ctx context.Context, req domain.WizardSaveRequest) (plan.WizardSnapshot, error) {
	sessionKey := strings.TrimSpace(req.SessionKey)
	if sessionKey == "" {
		return plan.WizardSnapshot{}, store.ErrInvalidInput
	}

	snapshot := plan.NewWizardSnapshot(req.Step, req.Answers, s.now())
	if err := s.saveSnapshot(ctx, sessionKey, domain.SnapshotKindAnswers, snapshot); err != nil {
		return plan.WizardSnapshot{}, err
	}
	return snapshot, nil
}

// LoadWizard restores saved answers. Unreadable snapshots are discarded and
// reported as missing so the visitor starts over.
func (s *Service) LoadWizard(ctx context.Context, sessionKey string) (plan.WizardSnapshot, error) {
	raw, err := s.repo.GetSnapshot(ctx, strings.TrimSpace(sessionKey), domain.SnapshotKindAnswers)
	if err != nil {
		return plan.WizardSnapshot{}, err
	}

	snapshot, err := plan.DecodeWizardSnapshot(raw)
	if err != nil {
		s.discardSnapshot(ctx, sessionKey, domain.SnapshotKindAnswers, err)
		return plan.WizardSnapshot{}, store.ErrNotFound
	}
	return snapshot, nil
}

func (s *Service) LoadQuickPurchase(ctx context.Context, sessionKey string) (plan.QuickPurchaseSnapshot, error) {
	raw, err := s.repo.GetSnapshot(ctx, strings.TrimSpace(sessionKey), domain.SnapshotKindResult)
	if err != nil {
		return plan.QuickPurchaseSnapshot{}, err
	}

	snapshot, err := plan.DecodeQuickPurchaseSnapshot(raw)
	if err != nil {
		s.discardSnapshot(ctx, sessionKey, domain.SnapshotKindResult, err)
		return plan.QuickPurchaseSnapshot{}, store.ErrNotFound
	}
	return snapshot, nil
}

// ResetCalculator drops both snapshots of a session.
func (s *Service) ResetCalculator(ctx context.Context, sessionKey string) error {
	sessionKey = strings.TrimSpace(sessionKey)
	if sessionKey == "" {
		return store.ErrInvalidInput
	}
	for _, kind := range []string{domain.SnapshotKindAnswers, domain.SnapshotKindResult} {
		if err := s.repo.DeleteSnapshot(ctx, sessionKey, kind); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}
	return nil
}

func (s *Service) CanGoNext(req domain.WizardStepCheckRequest) domain.WizardStepCheckResponse {
	return domain.WizardStepCheckResponse{
		Step:       req.Step,
		TotalSteps: plan.TotalSteps(),
		CanGoNext:  plan.CanGoNext(req.Step, req.Answers),
	}
}

func (s *Service) LookupAddress(ctx context.Context, cep string) (*domain.ShippingAddress, error) {
	if _, ok := shipping.CleanCEP(cep); !ok {
		return nil, ErrInvalidCEP
	}
	address := s.addresses.FetchAddressByCEP(ctx, cep)
	if address == nil {
		return nil, store.ErrNotFound
	}
	return address, nil
}

// QuoteShipping never fails on CEP problems: an unknown CEP gives a nil
// address and no options.
func (s *Service) QuoteShipping(ctx context.Context, req domain.ShippingQuoteRequest) (domain.ShippingQuoteResponse, error) {
	if req.Subtotal.IsNegative() || req.WeightKg < 0 {
		return domain.ShippingQuoteResponse{}, store.ErrInvalidInput
	}

	weight := req.WeightKg
	if weight == 0 && len(req.Items) > 0 {
		weight = catalog.CartWeightKg(req.Items)
	}

	address := s.resolveAddress(ctx, req.CEP)
	options := s.quote(address, req.Subtotal, weight)

	return domain.ShippingQuoteResponse{
		Address:      address,
		Options:      options,
		FreeShipping: shipping.CalculateRemainingForFreeShipping(req.Subtotal),
	}, nil
}

func (s *Service) ApplyCoupon(ctx context.Context, code string, subtotal decimal.Decimal) (domain.AppliedCoupon, error) {
	code = coupon.NormalizeCode(code)
	if code == "" || subtotal.IsNegative() {
		s.metrics.CouponApplied(metrics.OutcomeInvalid)
		return domain.AppliedCoupon{}, coupon.ErrInvalidCoupon
	}

	found, err := s.repo.GetCouponByCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.metrics.CouponApplied(metrics.OutcomeNotFound)
			return domain.AppliedCoupon{}, coupon.ErrInvalidCoupon
		}
		s.metrics.CouponApplied(metrics.OutcomeError)
		return domain.AppliedCoupon{}, err
	}

	applied, err := coupon.Apply(*found, subtotal, s.now())
	if err != nil {
		s.metrics.CouponApplied(metrics.OutcomeRejected)
		return domain.AppliedCoupon{}, err
	}
	s.metrics.CouponApplied(metrics.OutcomeOK)
	return applied, nil
}

func (s *Service) CreateCoupon(ctx context.Context, req domain.CouponCreateRequest) (domain.Coupon, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Coupon{}, err
	}

	candidate := domain.Coupon{
		ID:          xid.New("coupon"),
		Code:        coupon.NormalizeCode(req.Code),
		Type:        strings.TrimSpace(req.Type),
		Value:       req.Value,
		MinSubtotal: req.MinSubtotal,
		Active:      true,
		ExpiresAt:   req.ExpiresAt,
		CreatedAt:   s.now(),
	}
	if err := coupon.ValidateRule(candidate); err != nil {
		return domain.Coupon{}, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}

	saved, err := s.repo.CreateCoupon(ctx, candidate)
	if err != nil {
		return domain.Coupon{}, err
	}

	s.logAudit(ctx, "coupon_create", "coupon", saved.ID, fmt.Sprintf("code=%s,type=%s,value=%s", saved.Code, saved.Type, saved.Value.StringFixed(2)))
	return *saved, nil
}

func (s *Service) ListCoupons(ctx context.Context) ([]domain.Coupon, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListCoupons(ctx)
}

func (s *Service) SetCouponActive(ctx context.Context, couponID string, active bool) (domain.Coupon, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Coupon{}, err
	}

	updated, err := s.repo.UpdateCouponActive(ctx, strings.TrimSpace(couponID), active)
	if err != nil {
		return domain.Coupon{}, err
	}

	s.logAudit(ctx, "coupon_toggle", "coupon", updated.ID, fmt.Sprintf("active=%t", active))
	return *updated, nil
}

// OrderBump picks the cross-sell offer for a cart and records that it was shown.
func (s *Service) OrderBump(ctx context.Context, req domain.OrderBumpRequest) (domain.OrderBumpResponse, error) {
	offer := s.bumps.GetSmartBumpProduct(req.ProductIDs)
	if offer == nil {
		return domain.OrderBumpResponse{}, nil
	}

	s.recordBumpEvent(ctx, domain.BumpEvent{
		SessionKey: strings.TrimSpace(req.SessionKey),
		ProductID:  offer.ID,
		Action:     domain.BumpShownAction,
		CreatedAt:  s.now(),
	})
	return domain.OrderBumpResponse{Bump: offer}, nil
}

func (s *Service) RecordBumpAction(ctx context.Context, req domain.OrderBumpActionRequest) error {
	action := strings.ToLower(strings.TrimSpace(req.Action))
	if action != domain.BumpAcceptedAction && action != domain.BumpRejectedAction {
		return store.ErrInvalidInput
	}
	if _, ok := s.bumps.Offer(req.ProductID); !ok {
		return store.ErrInvalidInput
	}

	event := domain.BumpEvent{
		SessionKey: strings.TrimSpace(req.SessionKey),
		ProductID:  strings.TrimSpace(req.ProductID),
		Action:     action,
		CreatedAt:  s.now(),
	}
	if err := s.repo.CreateBumpEvent(ctx, event); err != nil {
		return err
	}
	s.metrics.BumpEvent(action)
	return nil
}

func (s *Service) BumpMetrics(ctx context.Context, days int) (domain.BumpMetrics, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.BumpMetrics{}, err
	}
	if days < 1 {
		days = 7
	}
	if days > 90 {
		days = 90
	}

	to := s.now()
	from := to.Add(-time.Duration(days) * 24 * time.Hour)
	return s.repo.GetBumpMetrics(ctx, from, to)
}

// CheckoutSummary prices a cart: subtotal, coupon, shipping and the bump
// offer. An invalid coupon is dropped with its reason instead of failing.
func (s *Service) CheckoutSummary(ctx context.Context, req domain.CheckoutSummaryRequest) (domain.CheckoutSummary, error) {
	items, err := normalizeItems(req.Cart.Items)
	if err != nil {
		return domain.CheckoutSummary{}, err
	}

	summary := domain.CheckoutSummary{Subtotal: decimal.Zero}
	productIDs := make([]string, 0, len(items))
	for _, item := range items {
		summary.ItemCount += item.Quantity
		summary.Subtotal = summary.Subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		productIDs = append(productIDs, item.ProductID)
	}
	summary.Subtotal = summary.Subtotal.Round(2)

	discount := decimal.Zero
	if coupon.NormalizeCode(req.CouponCode) != "" {
		applied, err := s.ApplyCoupon(ctx, req.CouponCode, summary.Subtotal)
		switch {
		case err == nil:
			summary.Coupon = &applied
			discount = applied.DiscountAmount
		case isCouponError(err):
			summary.CouponError = err.Error()
		default:
			return domain.CheckoutSummary{}, err
		}
	}

	summary.Address = s.resolveAddress(ctx, req.CEP)
	summary.Shipping = s.quote(summary.Address, summary.Subtotal, catalog.CartWeightKg(items))
	if selected, ok := shipping.FindOption(summary.Shipping, req.ShippingOptionID); ok {
		summary.SelectedOption = &selected
	} else if recommended, ok := shipping.RecommendedOption(summary.Shipping); ok {
		summary.SelectedOption = &recommended
	}
	summary.FreeShipping = shipping.CalculateRemainingForFreeShipping(summary.Subtotal)
	summary.Bump = s.bumps.GetSmartBumpProduct(productIDs)

	total := summary.Subtotal.Sub(discount)
	if summary.SelectedOption != nil {
		total = total.Add(summary.SelectedOption.Price)
	}
	if total.IsNegative() {
		total = decimal.Zero
	}
	summary.Total = total.Round(2)
	return summary, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 100
	}

	// Without a date the window is the trailing 24 hours.
	to := s.now().Add(time.Second)
	from := to.Add(-24 * time.Hour)
	if strings.TrimSpace(date) != "" {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, store.ErrInvalidInput
		}
		from = parsed.UTC()
		to = from.Add(24 * time.Hour)
	}

	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) resolveAddress(ctx context.Context, cep string) *domain.ShippingAddress {
	if _, ok := shipping.CleanCEP(cep); !ok {
		return nil
	}
	return s.addresses.FetchAddressByCEP(ctx, cep)
}

func (s *Service) quote(address *domain.ShippingAddress, subtotal decimal.Decimal, weightKg float64) []domain.ShippingOption {
	options := shipping.CalculateShipping(address, subtotal, weightKg)
	if address != nil && len(options) > 0 {
		free := false
		for _, option := range options {
			free = free || option.IsFree
		}
		s.metrics.ShippingQuoted(string(shipping.RegionForState(address.State)), free)
	}
	return options
}

func (s *Service) saveSnapshot(ctx context.Context, sessionKey string, kind string, snapshot any) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return s.repo.SaveSnapshot(ctx, sessionKey, kind, payload, s.now())
}

func (s *Service) discardSnapshot(ctx context.Context, sessionKey string, kind string, cause error) {
	s.logger.Warn("discarding unreadable calculator snapshot",
		zap.String("session_key", sessionKey),
		zap.String("kind", kind),
		zap.Error(cause),
	)
	if err := s.repo.DeleteSnapshot(ctx, sessionKey, kind); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("failed to delete calculator snapshot", zap.String("session_key", sessionKey), zap.Error(err))
	}
}

func (s *Service) recordBumpEvent(ctx context.Context, event domain.BumpEvent) {
	if err := s.repo.CreateBumpEvent(ctx, event); err != nil {
		s.logger.Warn("failed to record bump event", zap.String("action", event.Action), zap.String("product_id", event.ProductID), zap.Error(err))
		return
	}
	s.metrics.BumpEvent(event.Action)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now(),
	}); err != nil {
		s.logger.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("entity", entityType+"/"+entityID),
			zap.Error(err),
		)
	}
}

// normalizeItems merges duplicate variants and fills unit prices from the
// catalog when the cart did not carry one.
func normalizeItems(items []domain.CartItem) ([]domain.CartItem, error) {
	merged := make([]domain.CartItem, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		if item.Quantity < 1 || item.UnitPrice.IsNegative() {
			return nil, store.ErrInvalidInput
		}
		item.VariantID = strings.TrimSpace(item.VariantID)
		item.ProductID = strings.TrimSpace(item.ProductID)

		product, pkg, known := catalog.Variant(item.VariantID)
		if known {
			item.ProductID = product.ID
			if item.UnitPrice.IsZero() {
				item.UnitPrice = pkg.Price
			}
		} else if item.ProductID == "" || item.UnitPrice.IsZero() {
			return nil, store.ErrInvalidInput
		}

		key := item.VariantID + "|" + item.ProductID
		if i, ok := index[key]; ok && merged[i].UnitPrice.Equal(item.UnitPrice) && merged[i].Subscription == item.Subscription {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[key] = len(merged)
		merged = append(merged, item)
	}
	return merged, nil
}

func isCouponError(err error) bool {
	return errors.Is(err, coupon.ErrInvalidCoupon) ||
		errors.Is(err, coupon.ErrCouponInactive) ||
		errors.Is(err, coupon.ErrCouponExpired) ||
		errors.Is(err, coupon.ErrCouponMinimumNotMet)
}
