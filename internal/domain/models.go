package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Package struct {
	VariantID string          `json:"variant_id"`
	Grams     int             `json:"grams"`
	Price     decimal.Decimal `json:"price"`
}

type Product struct {
	ID          string    `json:"id"`
	SKU         string    `json:"sku"`
	Name        string    `json:"name"`
	Formula     string    `json:"formula"`
	Description string    `json:"description"`
	Packages    []Package `json:"packages"`
	Active      bool      `json:"active"`
}

// CalculatorInput is built step by step by the calculator wizard; unset fields
// stay nil or empty until the visitor answers them.
type CalculatorInput struct {
	AreaM2      *float64 `json:"area_m2,omitempty" validate:"required,gt=0,lte=1000000"`
	Implantando *bool    `json:"implantando,omitempty" validate:"required"`
	Objetivo    string   `json:"objetivo,omitempty" validate:"required,oneof=verde_intenso crescimento resistencia manutencao"`
	ClimaHoje   string   `json:"clima_hoje,omitempty" validate:"required,oneof=quente_seco quente_umido ameno frio"`
	Sol         string   `json:"sol,omitempty" validate:"required,oneof=pleno meia_sombra sombra"`
	Irrigacao   string   `json:"irrigacao,omitempty" validate:"required,oneof=diaria semanal rara"`
	Pisoteio    string   `json:"pisoteio,omitempty" validate:"required,oneof=baixo medio alto"`
	Nivel       string   `json:"nivel,omitempty" validate:"required,oneof=saudavel amarelado ralo falhas"`
}

const (
	ObjetivoVerdeIntenso = "verde_intenso"
	ObjetivoCrescimento  = "crescimento"
	ObjetivoResistencia  = "resistencia"
	ObjetivoManutencao   = "manutencao"
)

const (
	ClimaQuenteSeco   = "quente_seco"
	ClimaQuenteUmido  = "quente_umido"
	ClimaAmeno        = "ameno"
	ClimaFrio         = "frio"
	SolPleno          = "pleno"
	SolMeiaSombra     = "meia_sombra"
	SolSombra         = "sombra"
	IrrigacaoDiaria   = "diaria"
	IrrigacaoSemanal  = "semanal"
	IrrigacaoRara     = "rara"
	PisoteioBaixo     = "baixo"
	PisoteioMedio     = "medio"
	PisoteioAlto      = "alto"
	NivelSaudavel     = "saudavel"
	NivelAmarelado    = "amarelado"
	NivelRalo         = "ralo"
	NivelFalhas       = "falhas"
)

const (
	ProductSKURooting = "P1"
	ProductSKUGreen   = "P2"
	ProductSKUStress  = "P3"
)

type PlanItem struct {
	ProductID     string          `json:"product_id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	DoseGPerM2    float64         `json:"dose_g_per_m2"`
	NeedGrams     int             `json:"need_grams"`
	NeedDisplay   string          `json:"need_display"`
	VariantID     string          `json:"variant_id"`
	PackageGrams  int             `json:"package_grams"`
	Packages      int             `json:"packages"`
	QuantityGrams int             `json:"quantity_grams"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	LineTotal     decimal.Decimal `json:"line_total"`
}

type CalculatorResult struct {
	AreaM2 float64         `json:"area_m2"`
	Plan   []PlanItem      `json:"plan"`
	Total  decimal.Decimal `json:"total"`
}

type PlanRequest struct {
	SessionKey string          `json:"session_key"`
	Input      CalculatorInput `json:"input"`
}

type WizardSaveRequest struct {
	SessionKey string          `json:"session_key"`
	Step       int             `json:"step"`
	Answers    CalculatorInput `json:"answers"`
}

type WizardStepCheckRequest struct {
	Step    int             `json:"step"`
	Answers CalculatorInput `json:"answers"`
}

type WizardStepCheckResponse struct {
	Step       int  `json:"step"`
	TotalSteps int  `json:"total_steps"`
	CanGoNext  bool `json:"can_go_next"`
}

type ShippingAddress struct {
	CEP          string `json:"cep"`
	Street       string `json:"street"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
}

type DayRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

type ShippingOption struct {
	ID            string           `json:"id"`
	Carrier       string           `json:"carrier"`
	Service       string           `json:"service"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"original_price,omitempty"`
	EstimatedDays DayRange         `json:"estimated_days"`
	DeliveryLabel string           `json:"delivery_label"`
	IsFree        bool             `json:"is_free"`
	IsRecommended bool             `json:"is_recommended"`
}

type FreeShippingProgress struct {
	Threshold  decimal.Decimal `json:"threshold"`
	Remaining  decimal.Decimal `json:"remaining"`
	Percentage float64         `json:"percentage"`
	Achieved   bool            `json:"achieved"`
	Message    string          `json:"message"`
}

type ShippingQuoteRequest struct {
	CEP      string          `json:"cep"`
	Subtotal decimal.Decimal `json:"subtotal"`
	WeightKg float64         `json:"weight_kg"`
	Items    []CartItem      `json:"items,omitempty"`
}

type ShippingQuoteResponse struct {
	Address      *ShippingAddress     `json:"address"`
	Options      []ShippingOption     `json:"options"`
	FreeShipping FreeShippingProgress `json:"free_shipping"`
}

const (
	CouponTypePercent = "percent"
	CouponTypeFixed   = "fixed"
)

type Coupon struct {
	ID          string          `json:"id"`
	Code        string          `json:"code"`
	Type        string          `json:"type"`
	Value       decimal.Decimal `json:"value"`
	MinSubtotal decimal.Decimal `json:"min_subtotal"`
	Active      bool            `json:"active"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type CouponCreateRequest struct {
	Code        string          `json:"code"`
	Type        string          `json:"type"`
	Value       decimal.Decimal `json:"value"`
	MinSubtotal decimal.Decimal `json:"min_subtotal"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
}

type CouponToggleRequest struct {
	Active bool `json:"active"`
}

type CouponApplyRequest struct {
	Code     string          `json:"code"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// AppliedCoupon is only meaningful for the subtotal it was computed against.
type AppliedCoupon struct {
	Code           string          `json:"code"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Subtotal       decimal.Decimal `json:"subtotal"`
}

// ValidFor reports whether the discount still applies to the given subtotal.
func (c AppliedCoupon) ValidFor(subtotal decimal.Decimal) bool {
	return c.Subtotal.Equal(subtotal)
}

type OrderBumpProduct struct {
	ID              string          `json:"id"`
	VariantID       string          `json:"variant_id"`
	Name            string          `json:"name"`
	Pitch           string          `json:"pitch"`
	Price           decimal.Decimal `json:"price"`
	CompareAtPrice  decimal.Decimal `json:"compare_at_price"`
	DiscountPercent int             `json:"discount_percent"`
	DiscountLabel   string          `json:"discount_label,omitempty"`
	TriggeredBy     []string        `json:"triggered_by"`
	Priority        int             `json:"priority"`
}

type OrderBumpRequest struct {
	SessionKey string   `json:"session_key"`
	ProductIDs []string `json:"product_ids"`
}

type OrderBumpResponse struct {
	Bump *OrderBumpProduct `json:"bump"`
}

type OrderBumpActionRequest struct {
	SessionKey string `json:"session_key"`
	ProductID  string `json:"product_id"`
	Action     string `json:"action"`
}

const (
	BumpShownAction    = "shown"
	BumpAcceptedAction = "accepted"
	BumpRejectedAction = "rejected"
)

type BumpEvent struct {
	SessionKey string
	ProductID  string
	Action     string
	CreatedAt  time.Time
}

type BumpMetrics struct {
	Shown      int64   `json:"shown"`
	Accepted   int64   `json:"accepted"`
	Rejected   int64   `json:"rejected"`
	AttachRate float64 `json:"attach_rate"`
}

type CartItem struct {
	ProductID    string          `json:"product_id"`
	VariantID    string          `json:"variant_id"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Subscription bool            `json:"subscription"`
}

type Cart struct {
	Items []CartItem `json:"items"`
}

type CheckoutSummaryRequest struct {
	SessionKey       string `json:"session_key"`
	Cart             Cart   `json:"cart"`
	CEP              string `json:"cep"`
	CouponCode       string `json:"coupon_code,omitempty"`
	ShippingOptionID string `json:"shipping_option_id,omitempty"`
}

type CheckoutSummary struct {
	ItemCount      int                  `json:"item_count"`
	Subtotal       decimal.Decimal      `json:"subtotal"`
	Coupon         *AppliedCoupon       `json:"coupon,omitempty"`
	CouponError    string               `json:"coupon_error,omitempty"`
	Address        *ShippingAddress     `json:"address"`
	Shipping       []ShippingOption     `json:"shipping_options"`
	SelectedOption *ShippingOption      `json:"selected_shipping,omitempty"`
	FreeShipping   FreeShippingProgress `json:"free_shipping"`
	Bump           *OrderBumpProduct    `json:"bump,omitempty"`
	Total          decimal.Decimal      `json:"total"`
}

const (
	SnapshotKindAnswers = "calculator_answers"
	SnapshotKindResult  = "calculator_result"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for back-office credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type StaffCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type StaffUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}
