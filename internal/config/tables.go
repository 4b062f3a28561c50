package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"routeScope/internal/model"
)

// TokenEntry is one configured token, keyed by symbol under "tokens".
type TokenEntry struct {
	Address     string `mapstructure:"address"`
	Decimals    uint8  `mapstructure:"decimals"`
	PriceFeedID string `mapstructure:"price_feed_id"`
}

// PoolEntry is one configured pool. A zero Fee is read from chain.
type PoolEntry struct {
	Pair    string `mapstructure:"pair"`
	Address string `mapstructure:"address"`
	Fee     uint32 `mapstructure:"fee"`
}

// VenueEntry is one configured venue under "venues".
type VenueEntry struct {
	Name          string      `mapstructure:"name"`
	Kind          string      `mapstructure:"kind"`
	Quoter        string      `mapstructure:"quoter"`
	QuoterVersion int         `mapstructure:"quoter_version"`
	Router        string      `mapstructure:"router"`
	Pools         []PoolEntry `mapstructure:"pools"`
}

// DefaultTokens lists the Arbitrum One tokens quoted out of the box.
func DefaultTokens() map[string]TokenEntry {
	return map[string]TokenEntry{
		"USDC": {Address: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831", Decimals: 6, PriceFeedID: "usd-coin"},
		"USDT": {Address: "0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9", Decimals: 6, PriceFeedID: "tether"},
		"DAI":  {Address: "0xDA10009cBd5D07dd0CeCc66161FC93D7c9000da1", Decimals: 18, PriceFeedID: "dai"},
		"ETH":  {Address: "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1", Decimals: 18, PriceFeedID: "ethereum"},
		"WBTC": {Address: "0x2f2a2543B76A4166549F7aaB2e75Bef0aefC5B0f", Decimals: 8, PriceFeedID: "wrapped-bitcoin"},
	}
}

// DefaultVenues lists the Arbitrum One venues and pools quoted out of the box.
func DefaultVenues() []VenueEntry {
	return []VenueEntry{
		{
			Name:          "Uniswap",
			Kind:          string(model.KindUniswapV3),
			Quoter:        "0xb27308f9F90D607463bb33eA1BeBb41C27CE5AB6",
			QuoterVersion: 1,
			Router:        "0xE592427A0AEce92De3Edee1F18E0157C05861564",
			Pools: []PoolEntry{
				{Pair: "USDC/ETH", Address: "0xC6962004f452bE9203591991D15f6b388e09E8D0"},
				{Pair: "USDT/ETH", Address: "0x641C00A822e8b671738d32a431a4Fb6074E5c79d"},
				{Pair: "DAI/ETH", Address: "0xA961F0473dA4864C5eD28e00FcC53a3AAb056c1b"},
				{Pair: "USDC/DAI", Address: "0x7CF803e8d82A50504180f417B8bC7a493C0a0503"},
				{Pair: "USDT/DAI", Address: "0x7f580f8A02b759C350E6b8340e7c2d4b8162b6a9"},
				{Pair: "ETH/WBTC", Address: "0x2f5e87C9312fa29aed5c179E456625D79015299c"},
			},
		},
		{
			Name:          "SushiSwap",
			Kind:          string(model.KindUniswapV3),
			Quoter:        "0x0524E833cCD057e4d7A296e3aaAb9f7675964Ce1",
			QuoterVersion: 2,
			Router:        "0x8A21F6768C1f8075791D08546Dadf6daA0bE820c",
			Pools: []PoolEntry{
				{Pair: "USDC/ETH", Address: "0xf3Eb87C1F6020982173C908E7eB31aA66c1f0296"},
				{Pair: "USDT/ETH", Address: "0x96aDA81328abCe21939A51D971A63077e16db26E"},
				{Pair: "DAI/ETH", Address: "0x3370EA4a1640C657bDD94D71325541bA927f5Aef"},
				{Pair: "USDC/DAI", Address: "0x5DcF1Aa6B3422D8A59dc0e00904E02A1c1ea5a58"},
				{Pair: "USDT/DAI", Address: "0xCc2B91d28d754DFF160d0924e16e6d213cBD24F8"},
				{Pair: "ETH/WBTC", Address: "0x6F10667F314498649eb2f80da244e8c6E9f031d5"},
			},
		},
		{
			Name:   "Camelot",
			Kind:   string(model.KindAlgebra),
			Quoter: "0x0Fc73040b26E9bC8514fA028D998E73A254Fa76E",
			Router: "0x1F721E2E82F6676FCE4eA07A5958cF098D339e18",
			Pools: []PoolEntry{
				{Pair: "USDC/ETH", Address: "0xB1026b8e7276e7AC75410F1fcbbe21796e8f7526"},
				{Pair: "USDT/ETH", Address: "0x7CcCBA38E2D959fe135e79AEBB57CCb27B128358"},
			},
		},
	}
}

func loadTokens(v *viper.Viper) (model.TokenTable, error) {
	entries := DefaultTokens()
	if v.IsSet("tokens") {
		entries = map[string]TokenEntry{}
		if err := v.UnmarshalKey("tokens", &entries); err != nil {
			return nil, fmt.Errorf("decode tokens: %w", err)
		}
	}
	return BuildTokens(entries)
}

// BuildTokens validates token entries into a table.
func BuildTokens(entries map[string]TokenEntry) (model.TokenTable, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("token table is empty")
	}
	symbols := make([]string, 0, len(entries))
	for sym := range entries {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	tokens := make([]model.Token, 0, len(entries))
	seen := make(map[common.Address]string, len(entries))
	for _, sym := range symbols {
		e := entries[sym]
		addr, err := ParseAddress(e.Address)
		if err != nil {
			return nil, fmt.Errorf("token %s: %w", sym, err)
		}
		if other, dup := seen[addr]; dup {
			return nil, fmt.Errorf("token %s: address %s already used by %s", sym, addr.Hex(), other)
		}
		seen[addr] = sym
		tokens = append(tokens, model.Token{
			Symbol:      sym,
			Address:     addr,
			Decimals:    e.Decimals,
			PriceFeedID: e.PriceFeedID,
		})
	}
	return model.NewTokenTable(tokens...), nil
}

func loadVenues(v *viper.Viper) ([]model.Venue, error) {
	entries := DefaultVenues()
	if v.IsSet("venues") {
		entries = nil
		if err := v.UnmarshalKey("venues", &entries); err != nil {
			return nil, fmt.Errorf("decode venues: %w", err)
		}
	}
	return BuildVenues(entries)
}

// BuildVenues validates venue entries.
func BuildVenues(entries []VenueEntry) ([]model.Venue, error) {
	venues := make([]model.Venue, 0, len(entries))
	names := make(map[string]bool, len(entries))
	for _, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("venue name is required")
		}
		if names[strings.ToLower(name)] {
			return nil, fmt.Errorf("duplicate venue %s", name)
		}
		names[strings.ToLower(name)] = true

		kind, ok := model.ParseVenueKind(e.Kind)
		if !ok {
			return nil, fmt.Errorf("venue %s: unknown kind %q", name, e.Kind)
		}
		quoter, err := ParseAddress(e.Quoter)
		if err != nil {
			return nil, fmt.Errorf("venue %s quoter: %w", name, err)
		}
		router, err := ParseAddress(e.Router)
		if err != nil {
			return nil, fmt.Errorf("venue %s router: %w", name, err)
		}
		version := e.QuoterVersion
		if kind == model.KindUniswapV3 {
			if version == 0 {
				version = 1
			}
			if version != 1 && version != 2 {
				return nil, fmt.Errorf("venue %s: quoter_version must be 1 or 2, got %d", name, version)
			}
		}

		venue := model.Venue{
			Name:          name,
			Kind:          kind,
			Quoter:        quoter,
			QuoterVersion: version,
			Router:        router,
		}
		for _, p := range e.Pools {
			addr, err := ParseAddress(p.Address)
			if err != nil {
				return nil, fmt.Errorf("venue %s pool %s: %w", name, p.Pair, err)
			}
			pool := model.Pool{Venue: name, Pair: strings.ToUpper(strings.TrimSpace(p.Pair)), Address: addr}
			if p.Fee > 0 {
				fee := p.Fee
				pool.Fee = &fee
			}
			venue.Pools = append(venue.Pools, pool)
		}
		if err := checkPoolPairs(venue); err != nil {
			return nil, err
		}
		venues = append(venues, venue)
	}
	return venues, nil
}

// checkPoolPairs rejects a venue listing the same pair twice. "A/B" and "B/A" are the same pair.
func checkPoolPairs(venue model.Venue) error {
	seen := make(map[string]string, len(venue.Pools))
	for _, pool := range venue.Pools {
		a, b, err := pool.Symbols()
		if err != nil {
			return fmt.Errorf("venue %s: %w", venue.Name, err)
		}
		if a > b {
			a, b = b, a
		}
		key := a + "/" + b
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("venue %s: pool %s duplicates pair %s", venue.Name, pool.Pair, prev)
		}
		seen[key] = pool.Pair
	}
	return nil
}

// ParseAddress converts a hex string into common.Address.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %q", input)
	}
	return common.HexToAddress(input), nil
}
