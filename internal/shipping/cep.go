package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/KairamCabral/terravik-sub002/internal/cache"
	"github.com/KairamCabral/terravik-sub002/internal/domain"
	"github.com/KairamCabral/terravik-sub002/internal/logging"
	"github.com/KairamCabral/terravik-sub002/internal/metrics"
)

const (
	DefaultCEPBaseURL = "https://viacep.com.br"
	defaultCEPTimeout = 5 * time.Second
	defaultAddressTTL = 30 * 24 * time.Hour
	maxCEPBodyBytes   = 64 << 10
)

type CEPClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Cache      cache.AddressCache
	CacheTTL   time.Duration
	Logger     *zap.Logger
	Metrics    *metrics.Registry
}

// CEPClient resolves Brazilian postal codes against a ViaCEP-compatible API.
type CEPClient struct {
	baseURL  string
	http     *http.Client
	cache    cache.AddressCache
	cacheTTL time.Duration
	logger   *zap.Logger
	metrics  *metrics.Registry
}

func NewCEPClient(cfg CEPClientConfig) *CEPClient {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultCEPBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultCEPTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	cacheStore := cfg.Cache
	if cacheStore == nil {
		cacheStore = cache.NoopAddressCache{}
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultAddressTTL
	}

	return &CEPClient{
		baseURL:  baseURL,
		http:     httpClient,
		cache:    cacheStore,
		cacheTTL: ttl,
		logger:   logging.OrNop(cfg.Logger).Named("cep"),
		metrics:  cfg.Metrics,
	}
}

type viaCEPResponse struct {
	CEP        string          `json:"cep"`
	Logradouro string          `json:"logradouro"`
	Bairro     string          `json:"bairro"`
	Localidade string          `json:"localidade"`
	UF         string          `json:"uf"`
	Erro       json.RawMessage `json:"erro"`
}

// notFound handles both `"erro": true` and the older `"erro": "true"`.
func (r viaCEPResponse) notFound() bool {
	flag := bytes.TrimSpace(r.Erro)
	return bytes.Equal(flag, []byte("true")) || bytes.Equal(flag, []byte(`"true"`))
}

// CleanCEP strips formatting and returns the 8 digit CEP.
func CleanCEP(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	return digits, len(digits) == 8
}

// FetchAddressByCEP never returns an error: any failure yields nil and the
// caller treats the address as not yet known.
func (c *CEPClient) FetchAddressByCEP(ctx context.Context, cep string) *domain.ShippingAddress {
	digits, ok := CleanCEP(cep)
	if !ok {
		c.metrics.CEPLookup(metrics.OutcomeInvalid)
		return nil
	}

	if cached, hit, err := c.cache.Get(ctx, digits); err == nil && hit {
		c.metrics.CEPLookup(metrics.OutcomeCacheHit)
		return cached
	} else if err != nil {
		c.logger.Debug("address cache read failed", zap.String("cep", digits), zap.Error(err))
	}

	address, err := c.fetch(ctx, digits)
	if err != nil {
		c.metrics.CEPLookup(metrics.OutcomeError)
		c.logger.Warn("cep lookup failed", zap.String("cep", digits), zap.Error(err))
		return nil
	}
	if address == nil {
		c.metrics.CEPLookup(metrics.OutcomeNotFound)
		c.logger.Info("cep not found", zap.String("cep", digits))
		return nil
	}

	c.metrics.CEPLookup(metrics.OutcomeOK)
	if err := c.cache.Set(ctx, digits, address, c.cacheTTL); err != nil {
		c.logger.Debug("address cache write failed", zap.String("cep", digits), zap.Error(err))
	}
	return address
}

func (c *CEPClient) fetch(ctx context.Context, digits string) (*domain.ShippingAddress, error) {
	url := fmt.Sprintf("%s/ws/%s/json/", c.baseURL, digits)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload viaCEPResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxCEPBodyBytes)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if payload.notFound() || strings.TrimSpace(payload.UF) == "" {
		return nil, nil
	}

	formatted := payload.CEP
	if formatted == "" {
		formatted = digits[:5] + "-" + digits[5:]
	}
	return &domain.ShippingAddress{
		CEP:          formatted,
		Street:       payload.Logradouro,
		Neighborhood: payload.Bairro,
		City:         payload.Localidade,
		State:        strings.ToUpper(payload.UF),
	}, nil
}
