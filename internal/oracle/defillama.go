package oracle

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const (
	// DefiLlamaName is the source name used in logs and metrics.
	DefiLlamaName = "defillama"
	// DefiLlamaURL is the coins API base.
	DefiLlamaURL = "https://coins.llama.fi"
)

// DefiLlamaConfig configures the DefiLlama source.
type DefiLlamaConfig struct {
	BaseURL       string
	Chain         string
	NativeID      string
	WrappedNative common.Address
	HTTPClient    *http.Client
}

// DefiLlama prices tokens through the coins API.
type DefiLlama struct {
	cfg    DefiLlamaConfig
	client *http.Client
}

type llamaResponse struct {
	Coins map[string]struct {
		Price decimal.Decimal `json:"price"`
	} `json:"coins"`
}

// NewDefiLlama builds the source. Empty fields take Arbitrum defaults.
func NewDefiLlama(cfg DefiLlamaConfig) *DefiLlama {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefiLlamaURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Chain == "" {
		cfg.Chain = "arbitrum"
	}
	if cfg.NativeID == "" {
		cfg.NativeID = "ethereum"
	}
	return &DefiLlama{cfg: cfg, client: newHTTPClient(cfg.HTTPClient)}
}

// Name implements Source.
func (d *DefiLlama) Name() string { return DefiLlamaName }

// Price implements Source.
func (d *DefiLlama) Price(ctx context.Context, addr common.Address) (decimal.Decimal, bool, error) {
	return singlePrice(ctx, d, addr)
}

func (d *DefiLlama) coinID(addr common.Address) string {
	if addr == d.cfg.WrappedNative && d.cfg.WrappedNative != (common.Address{}) {
		return "coingecko:" + d.cfg.NativeID
	}
	return d.cfg.Chain + ":" + strings.ToLower(addr.Hex())
}

// PricesBatch implements Source.
func (d *DefiLlama) PricesBatch(ctx context.Context, addrs []common.Address) (map[common.Address]decimal.Decimal, error) {
	out := make(map[common.Address]decimal.Decimal, len(addrs))
	if len(addrs) == 0 {
		return out, nil
	}

	ids := make([]string, len(addrs))
	byID := make(map[string]common.Address, len(addrs))
	for i, a := range addrs {
		ids[i] = d.coinID(a)
		byID[strings.ToLower(ids[i])] = a
	}

	endpoint := fmt.Sprintf("%s/prices/current/%s", d.cfg.BaseURL, strings.Join(ids, ","))
	var body llamaResponse
	if err := getJSON(ctx, d.client, DefiLlamaName, endpoint, nil, &body); err != nil {
		return out, err
	}
	for k, v := range body.Coins {
		a, ok := byID[strings.ToLower(k)]
		if ok && v.Price.IsPositive() {
			out[a] = v.Price
		}
	}
	return out, nil
}
