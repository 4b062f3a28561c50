package model

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Pool is a configured pool of one venue, keyed by its pair of symbols ("USDC/ETH").
type Pool struct {
	Venue   string         `json:"venue"`
	Pair    string         `json:"pair"`
	Address common.Address `json:"address"`
	// Fee is the static fee tier in hundredths of a bip. Nil means read it from chain.
	Fee *uint32 `json:"fee,omitempty"`
}

// Symbols splits the pair name into its two symbols.
func (p Pool) Symbols() (string, string, error) {
	parts := strings.Split(p.Pair, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid pair %q", p.Pair)
	}
	a, b := NormalizeSymbol(parts[0]), NormalizeSymbol(parts[1])
	if a == "" || b == "" {
		return "", "", fmt.Errorf("invalid pair %q", p.Pair)
	}
	return a, b, nil
}

// Matches reports whether the pool trades exactly the two given symbols, in either order.
func (p Pool) Matches(from, to string) bool {
	a, b, err := p.Symbols()
	if err != nil {
		return false
	}
	from, to = NormalizeSymbol(from), NormalizeSymbol(to)
	return (a == from && b == to) || (a == to && b == from)
}

// Key returns the cache key prefix "{venue}_{pair}".
func (p Pool) Key() string {
	return strings.ToLower(p.Venue) + "_" + p.Pair
}
