package model

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// VenueKind selects the pool adapter family of a venue.
type VenueKind string

const (
	KindUniswapV3 VenueKind = "uniswap_v3"
	KindAlgebra   VenueKind = "algebra"
)

// Venue is one configured DEX and its pools.
type Venue struct {
	Name   string         `json:"name"`
	Kind   VenueKind      `json:"kind"`
	Quoter common.Address `json:"quoter"`
	// QuoterVersion is 1 for flat-argument quoters and 2 for tuple-argument quoters. Uniswap-style only.
	QuoterVersion int            `json:"quoter_version,omitempty"`
	Router        common.Address `json:"router"`
	Pools         []Pool         `json:"pools"`
}

// PoolsFor returns the venue's pools trading from and to, in either order.
func (v Venue) PoolsFor(from, to string) []Pool {
	var out []Pool
	for _, p := range v.Pools {
		if p.Matches(from, to) {
			if p.Venue == "" {
				p.Venue = v.Name
			}
			out = append(out, p)
		}
	}
	return out
}

// ParseVenueKind validates a configured venue kind.
func ParseVenueKind(s string) (VenueKind, bool) {
	switch VenueKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindUniswapV3, "uniswap", "v3":
		return KindUniswapV3, true
	case KindAlgebra, "camelot":
		return KindAlgebra, true
	default:
		return "", false
	}
}
