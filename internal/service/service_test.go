package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"github.com/KairamCabral/terravik-sub002/internal/coupon"
	"github.com/KairamCabral/terravik-sub002/internal/domain"
	"github.com/KairamCabral/terravik-sub002/internal/metrics"
	"github.com/KairamCabral/terravik-sub002/internal/plan"
	"github.com/KairamCabral/terravik-sub002/internal/shipping"
	"github.com/KairamCabral/terravik-sub002/internal/store"
	"github.com/KairamCabral/terravik-sub002/internal/store/memory"
)

type fakeAddresses map[string]*domain.ShippingAddress

func (f fakeAddresses) FetchAddressByCEP(_ context.Context, cep string) *domain.ShippingAddress {
	digits, _ := shipping.CleanCEP(cep)
	return f[digits]
}

var paulista = &domain.ShippingAddress{
	CEP:          "01310-100",
	Street:       "Avenida Paulista",
	Neighborhood: "Bela Vista",
	City:         "São Paulo",
	State:        "SP",
}

func newTestService() (*Service, *memory.Store, *metrics.Registry) {
	repo := memory.NewSeeded(nil)
	reg := metrics.New()
	svc := New(repo, fakeAddresses{"01310100": paulista}, nil, reg)
	return svc, repo, reg
}

func adminContext() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: domain.RoleAdmin})
}

func completeInput() domain.CalculatorInput {
	area := 100.0
	implantando := true
	return domain.CalculatorInput{
		AreaM2:      &area,
		Implantando: &implantando,
		Objetivo:    domain.ObjetivoCrescimento,
		ClimaHoje:   domain.ClimaAmeno,
		Sol:         domain.SolPleno,
		Irrigacao:   domain.IrrigacaoSemanal,
		Pisoteio:    domain.PisoteioBaixo,
		Nivel:       domain.NivelSaudavel,
	}
}

func TestGeneratePlanPersistsQuickPurchaseSnapshot(t *testing.T) {
	svc, _, reg := newTestService()
	ctx := context.Background()

	result, err := svc.GeneratePlan(ctx, "sess-plan", completeInput())
	if err != nil {
		t.Fatalf("generate plan: %v", err)
	}
	if len(result.Plan) == 0 {
		t.Fatalf("expected non-empty plan")
	}

	snapshot, err := svc.LoadQuickPurchase(ctx, "sess-plan")
	if err != nil {
		t.Fatalf("load quick purchase: %v", err)
	}
	if snapshot.Schema != plan.QuickPurchaseSchema || !snapshot.Result.Total.Equal(result.Total) {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
	if got := testutil.ToFloat64(reg.PlanCounter(metrics.OutcomeOK)); got != 1 {
		t.Fatalf("expected one ok plan metric, got %v", got)
	}
}

func TestGeneratePlanRejectsIncompleteInput(t *testing.T) {
	svc, _, reg := newTestService()
	ctx := context.Background()

	input := completeInput()
	input.Sol = ""
	_, err := svc.GeneratePlan(ctx, "sess-incomplete", input)
	if !errors.Is(err, plan.ErrIncompleteInput) {
		t.Fatalf("expected incomplete input error, got %v", err)
	}
	if _, err := svc.LoadQuickPurchase(ctx, "sess-incomplete"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected no snapshot for incomplete plan, got %v", err)
	}
	if got := testutil.ToFloat64(reg.PlanCounter(metrics.OutcomeIncomplete)); got != 1 {
		t.Fatalf("expected one incomplete plan metric, got %v", got)
	}
}

func TestWizardSnapshotRoundTripAndCorruptDiscard(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.SaveWizard(ctx, domain.WizardSaveRequest{Step: 1}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input without session key, got %v", err)
	}

	saved, err := svc.SaveWizard(ctx, domain.WizardSaveRequest{SessionKey: "sess-w", Step: 2, Answers: completeInput()})
	if err != nil {
		t.Fatalf("save wizard: %v", err)
	}
	loaded, err := svc.LoadWizard(ctx, "sess-w")
	if err != nil {
		t.Fatalf("load wizard: %v", err)
	}
	if loaded.Step != saved.Step || loaded.Answers.Objetivo != domain.ObjetivoCrescimento {
		t.Fatalf("unexpected wizard snapshot: %+v", loaded)
	}

	if err := repo.SaveSnapshot(ctx, "sess-bad", domain.SnapshotKindAnswers, []byte(`{"schema":"calculator-answers/v9"}`), time.Now()); err != nil {
		t.Fatalf("seed corrupt snapshot: %v", err)
	}
	if _, err := svc.LoadWizard(ctx, "sess-bad"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected unreadable snapshot reported missing, got %v", err)
	}
	if _, err := repo.GetSnapshot(ctx, "sess-bad", domain.SnapshotKindAnswers); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected unreadable snapshot deleted, got %v", err)
	}

	if err := svc.ResetCalculator(ctx, "sess-w"); err != nil {
		t.Fatalf("reset calculator: %v", err)
	}
	if _, err := svc.LoadWizard(ctx, "sess-w"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected wizard cleared, got %v", err)
	}
}

func TestCanGoNextReportsTotalSteps(t *testing.T) {
	svc, _, _ := newTestService()

	resp := svc.CanGoNext(domain.WizardStepCheckRequest{Step: 0, Answers: domain.CalculatorInput{}})
	if resp.CanGoNext || resp.TotalSteps != plan.TotalSteps() {
		t.Fatalf("expected blocked first step, got %+v", resp)
	}
}

func TestQuoteShippingFreeInSaoPaulo(t *testing.T) {
	svc, _, _ := newTestService()

	resp, err := svc.QuoteShipping(context.Background(), domain.ShippingQuoteRequest{
		CEP:      "01310-100",
		Subtotal: decimal.NewFromInt(200),
		WeightKg: 1,
	})
	if err != nil {
		t.Fatalf("quote shipping: %v", err)
	}
	if resp.Address == nil || resp.Address.State != "SP" {
		t.Fatalf("expected SP address, got %+v", resp.Address)
	}

	recommended, ok := shipping.RecommendedOption(resp.Options)
	if !ok || !recommended.IsFree || !recommended.Price.IsZero() {
		t.Fatalf("expected free recommended option, got %+v", resp.Options)
	}
	if recommended.EstimatedDays != (domain.DayRange{Min: 3, Max: 5}) {
		t.Fatalf("expected 3-5 days, got %+v", recommended.EstimatedDays)
	}
	if !resp.FreeShipping.Achieved {
		t.Fatalf("expected free shipping achieved")
	}
}

func TestQuoteShippingUnknownCEPHasNoOptions(t *testing.T) {
	svc, _, _ := newTestService()

	for _, cep := range []string{"123", "99999-999"} {
		resp, err := svc.QuoteShipping(context.Background(), domain.ShippingQuoteRequest{CEP: cep, Subtotal: decimal.NewFromInt(50)})
		if err != nil {
			t.Fatalf("quote shipping %s: %v", cep, err)
		}
		if resp.Address != nil || len(resp.Options) != 0 {
			t.Fatalf("expected no address or options for %s, got %+v", cep, resp)
		}
		if !resp.FreeShipping.Remaining.Equal(decimal.NewFromInt(100)) {
			t.Fatalf("expected 100 remaining, got %s", resp.FreeShipping.Remaining)
		}
	}

	if _, err := svc.LookupAddress(context.Background(), "123"); !errors.Is(err, ErrInvalidCEP) {
		t.Fatalf("expected invalid cep, got %v", err)
	}
	if _, err := svc.LookupAddress(context.Background(), "99999-999"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestQuoteShippingDerivesWeightFromItems(t *testing.T) {
	svc, _, _ := newTestService()

	resp, err := svc.QuoteShipping(context.Background(), domain.ShippingQuoteRequest{
		CEP:      "01310100",
		Subtotal: decimal.NewFromInt(50),
		Items:    []domain.CartItem{{VariantID: "variant-p1-2700", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("quote shipping: %v", err)
	}
	pac, ok := shipping.FindOption(resp.Options, shipping.OptionPAC)
	if !ok {
		t.Fatalf("expected pac option")
	}
	// 5.4 kg -> multiplier 2.7
	if !pac.Price.Equal(decimal.RequireFromString("42.93")) {
		t.Fatalf("expected weighted pac price 42.93, got %s", pac.Price)
	}
}

func TestApplyCoupon(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	applied, err := svc.ApplyCoupon(ctx, " bemvindo10 ", decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("apply coupon: %v", err)
	}
	if !applied.DiscountAmount.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected 10 discount, got %s", applied.DiscountAmount)
	}

	if _, err := svc.ApplyCoupon(ctx, "GRAMA20", decimal.NewFromInt(100)); !errors.Is(err, coupon.ErrCouponMinimumNotMet) {
		t.Fatalf("expected minimum not met, got %v", err)
	}
	if _, err := svc.ApplyCoupon(ctx, "NAOEXISTE", decimal.NewFromInt(100)); !errors.Is(err, coupon.ErrInvalidCoupon) {
		t.Fatalf("expected invalid coupon, got %v", err)
	}
}

func TestCouponAdminRequiresRoleAndAudits(t *testing.T) {
	svc, repo, _ := newTestService()

	req := domain.CouponCreateRequest{Code: "primavera", Type: domain.CouponTypePercent, Value: decimal.NewFromInt(15)}
	staffCtx := WithActor(context.Background(), domain.Actor{Username: "staff", Role: domain.RoleStaff})
	if _, err := svc.CreateCoupon(staffCtx, req); !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected admin role required, got %v", err)
	}

	ctx := adminContext()
	created, err := svc.CreateCoupon(ctx, req)
	if err != nil {
		t.Fatalf("create coupon: %v", err)
	}
	if created.Code != "PRIMAVERA" || !created.Active {
		t.Fatalf("unexpected coupon: %+v", created)
	}

	bad := domain.CouponCreateRequest{Code: "meio", Type: domain.CouponTypePercent, Value: decimal.NewFromInt(150)}
	if _, err := svc.CreateCoupon(ctx, bad); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input for 150%%, got %v", err)
	}

	if _, err := svc.SetCouponActive(ctx, created.ID, false); err != nil {
		t.Fatalf("toggle coupon: %v", err)
	}
	if _, err := svc.ApplyCoupon(context.Background(), "PRIMAVERA", decimal.NewFromInt(100)); !errors.Is(err, coupon.ErrCouponInactive) {
		t.Fatalf("expected inactive coupon, got %v", err)
	}

	logs, err := repo.ListAuditLogs(context.Background(), time.Now().Add(-time.Hour), time.Now().Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("list audit logs: %v", err)
	}
	if len(logs) != 2 || logs[0].Action != "coupon_toggle" || logs[1].Action != "coupon_create" {
		t.Fatalf("unexpected audit logs: %+v", logs)
	}
	if logs[0].ActorUsername != "admin" {
		t.Fatalf("expected admin actor, got %q", logs[0].ActorUsername)
	}
}

func TestOrderBumpRecordsEventsAndMetrics(t *testing.T) {
	svc, _, reg := newTestService()
	ctx := context.Background()

	empty, err := svc.OrderBump(ctx, domain.OrderBumpRequest{SessionKey: "s"})
	if err != nil || empty.Bump != nil {
		t.Fatalf("expected no bump for empty cart, got %+v err=%v", empty, err)
	}

	resp, err := svc.OrderBump(ctx, domain.OrderBumpRequest{SessionKey: "s", ProductIDs: []string{"mock-p1"}})
	if err != nil {
		t.Fatalf("order bump: %v", err)
	}
	if resp.Bump == nil || resp.Bump.ID != "mock-p2" {
		t.Fatalf("expected Verde Rápido bump, got %+v", resp.Bump)
	}

	if err := svc.RecordBumpAction(ctx, domain.OrderBumpActionRequest{SessionKey: "s", ProductID: "mock-p2", Action: "accepted"}); err != nil {
		t.Fatalf("record bump action: %v", err)
	}
	if err := svc.RecordBumpAction(ctx, domain.OrderBumpActionRequest{ProductID: "mock-p2", Action: "shown"}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input for shown action, got %v", err)
	}
	if err := svc.RecordBumpAction(ctx, domain.OrderBumpActionRequest{ProductID: "mock-p9", Action: "accepted"}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input for unknown offer, got %v", err)
	}

	if _, err := svc.BumpMetrics(ctx, 7); !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected admin role required, got %v", err)
	}
	bumpMetrics, err := svc.BumpMetrics(adminContext(), 7)
	if err != nil {
		t.Fatalf("bump metrics: %v", err)
	}
	if bumpMetrics.Shown != 1 || bumpMetrics.Accepted != 1 || bumpMetrics.AttachRate != 100 {
		t.Fatalf("unexpected bump metrics: %+v", bumpMetrics)
	}
	if got := testutil.ToFloat64(reg.BumpCounter(domain.BumpShownAction)); got != 1 {
		t.Fatalf("expected one shown metric, got %v", got)
	}
}

func TestCheckoutSummaryAppliesCouponAndFreeShipping(t *testing.T) {
	svc, _, _ := newTestService()

	summary, err := svc.CheckoutSummary(context.Background(), domain.CheckoutSummaryRequest{
		Cart: domain.Cart{Items: []domain.CartItem{
			{VariantID: "variant-p1-2700", Quantity: 1},
		}},
		CEP:        "01310-100",
		CouponCode: "grama20",
	})
	if err != nil {
		t.Fatalf("checkout summary: %v", err)
	}
	if !summary.Subtotal.Equal(decimal.RequireFromString("229.90")) {
		t.Fatalf("expected subtotal 229.90, got %s", summary.Subtotal)
	}
	if summary.Coupon == nil || !summary.Coupon.DiscountAmount.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected GRAMA20 applied, got %+v", summary.Coupon)
	}
	if summary.SelectedOption == nil || !summary.SelectedOption.IsFree {
		t.Fatalf("expected free option selected, got %+v", summary.SelectedOption)
	}
	if !summary.Total.Equal(decimal.RequireFromString("209.90")) {
		t.Fatalf("expected total 209.90, got %s", summary.Total)
	}
	if summary.Bump == nil || summary.Bump.ID != "mock-p2" {
		t.Fatalf("expected bump offer, got %+v", summary.Bump)
	}
}

func TestCheckoutSummaryDropsInvalidCouponAndHonoursSelection(t *testing.T) {
	svc, _, _ := newTestService()

	summary, err := svc.CheckoutSummary(context.Background(), domain.CheckoutSummaryRequest{
		Cart: domain.Cart{Items: []domain.CartItem{
			{VariantID: "variant-p2-400", Quantity: 1},
			{VariantID: "variant-p2-400", Quantity: 1},
		}},
		CEP:              "01310-100",
		CouponCode:       "GRAMA20",
		ShippingOptionID: shipping.OptionPAC,
	})
	if err != nil {
		t.Fatalf("checkout summary: %v", err)
	}
	if summary.ItemCount != 2 || !summary.Subtotal.Equal(decimal.RequireFromString("69.80")) {
		t.Fatalf("unexpected subtotal: count=%d subtotal=%s", summary.ItemCount, summary.Subtotal)
	}
	if summary.Coupon != nil || summary.CouponError == "" {
		t.Fatalf("expected coupon dropped with reason, got %+v %q", summary.Coupon, summary.CouponError)
	}
	if summary.SelectedOption == nil || summary.SelectedOption.ID != shipping.OptionPAC {
		t.Fatalf("expected pac selected, got %+v", summary.SelectedOption)
	}
	if !summary.Total.Equal(decimal.RequireFromString("85.70")) {
		t.Fatalf("expected total 85.70, got %s", summary.Total)
	}

	_, err = svc.CheckoutSummary(context.Background(), domain.CheckoutSummaryRequest{
		Cart: domain.Cart{Items: []domain.CartItem{{VariantID: "variant-x", Quantity: 1}}},
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input for unknown variant, got %v", err)
	}
}

func TestListAuditLogsValidatesDate(t *testing.T) {
	svc, _, _ := newTestService()

	if _, err := svc.ListAuditLogs(adminContext(), "18-10-2026", 10); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input for bad date, got %v", err)
	}
	if _, err := svc.ListAuditLogs(context.Background(), "", 10); !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected admin role required, got %v", err)
	}
}
