package oracle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const (
	// CoinGeckoName is the source name used in logs, metrics and cache keys.
	CoinGeckoName = "coingecko"
	// CoinGeckoPublicURL is the keyless API base.
	CoinGeckoPublicURL = "https://api.coingecko.com/api/v3"
	// CoinGeckoProURL is the API base for pro keys.
	CoinGeckoProURL     = "https://pro-api.coingecko.com/api/v3"
	coinGeckoBatchLimit = 100
)

// CoinGeckoConfig configures the CoinGecko source.
type CoinGeckoConfig struct {
	BaseURL string
	APIKey  string
	// Pro selects the pro API key header. The base URL is not changed.
	Pro      bool
	Platform string
	// NativeID is the coin id the wrapped native token is priced as.
	NativeID      string
	WrappedNative common.Address
	HTTPClient    *http.Client
}

// CoinGecko prices tokens by contract address.
type CoinGecko struct {
	cfg    CoinGeckoConfig
	client *http.Client
}

// NewCoinGecko builds the source. Empty fields take Arbitrum defaults.
func NewCoinGecko(cfg CoinGeckoConfig) *CoinGecko {
	if cfg.BaseURL == "" {
		cfg.BaseURL = CoinGeckoPublicURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Platform == "" {
		cfg.Platform = "arbitrum-one"
	}
	if cfg.NativeID == "" {
		cfg.NativeID = "ethereum"
	}
	return &CoinGecko{cfg: cfg, client: newHTTPClient(cfg.HTTPClient)}
}

// Name implements Source.
func (c *CoinGecko) Name() string { return CoinGeckoName }

// Price implements Source.
func (c *CoinGecko) Price(ctx context.Context, addr common.Address) (decimal.Decimal, bool, error) {
	return singlePrice(ctx, c, addr)
}

// PricesBatch implements Source.
func (c *CoinGecko) PricesBatch(ctx context.Context, addrs []common.Address) (map[common.Address]decimal.Decimal, error) {
	out := make(map[common.Address]decimal.Decimal, len(addrs))
	tokens := make([]common.Address, 0, len(addrs))
	native := false
	for _, a := range addrs {
		if a == c.cfg.WrappedNative && c.cfg.WrappedNative != (common.Address{}) {
			native = true
			continue
		}
		tokens = append(tokens, a)
	}

	var errs []error
	for start := 0; start < len(tokens); start += coinGeckoBatchLimit {
		end := start + coinGeckoBatchLimit
		if end > len(tokens) {
			end = len(tokens)
		}
		if err := c.tokenPrices(ctx, tokens[start:end], out); err != nil {
			errs = append(errs, err)
		}
	}
	if native {
		price, err := c.nativePrice(ctx)
		if err != nil {
			errs = append(errs, err)
		} else if price.IsPositive() {
			out[c.cfg.WrappedNative] = price
		}
	}
	return out, errors.Join(errs...)
}

func (c *CoinGecko) header() http.Header {
	h := http.Header{}
	if c.cfg.APIKey == "" {
		return h
	}
	if c.cfg.Pro {
		h.Set("x-cg-pro-api-key", c.cfg.APIKey)
	} else {
		h.Set("x-cg-demo-api-key", c.cfg.APIKey)
	}
	return h
}

func (c *CoinGecko) tokenPrices(ctx context.Context, addrs []common.Address, out map[common.Address]decimal.Decimal) error {
	lower := make([]string, len(addrs))
	byLower := make(map[string]common.Address, len(addrs))
	for i, a := range addrs {
		lower[i] = strings.ToLower(a.Hex())
		byLower[lower[i]] = a
	}

	q := url.Values{}
	q.Set("contract_addresses", strings.Join(lower, ","))
	q.Set("vs_currencies", "usd")
	endpoint := fmt.Sprintf("%s/simple/token_price/%s?%s", c.cfg.BaseURL, url.PathEscape(c.cfg.Platform), q.Encode())

	var body map[string]map[string]decimal.Decimal
	if err := getJSON(ctx, c.client, CoinGeckoName, endpoint, c.header(), &body); err != nil {
		return err
	}
	for k, v := range body {
		a, ok := byLower[strings.ToLower(k)]
		if !ok {
			continue
		}
		if usd, ok := v["usd"]; ok && usd.IsPositive() {
			out[a] = usd
		}
	}
	return nil
}

func (c *CoinGecko) nativePrice(ctx context.Context) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("ids", c.cfg.NativeID)
	q.Set("vs_currencies", "usd")
	endpoint := fmt.Sprintf("%s/simple/price?%s", c.cfg.BaseURL, q.Encode())

	var body map[string]map[string]decimal.Decimal
	if err := getJSON(ctx, c.client, CoinGeckoName, endpoint, c.header(), &body); err != nil {
		return decimal.Zero, err
	}
	return body[c.cfg.NativeID]["usd"], nil
}
