package model

import (
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Token is a static token table entry.
type Token struct {
	Symbol      string         `json:"symbol"`
	Address     common.Address `json:"address"`
	Decimals    uint8          `json:"decimals"`
	PriceFeedID string         `json:"price_feed_id,omitempty"`
}

// Same reports whether addr refers to this token. Address identity is case-insensitive.
func (t Token) Same(addr common.Address) bool {
	return t.Address == addr
}

// NormalizeSymbol upper-cases and trims a token symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// TokenMeta captures ERC20 metadata read from chain.
type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
}

// TokenTable is the static symbol to token mapping.
type TokenTable map[string]Token

// NewTokenTable indexes tokens by normalized symbol.
func NewTokenTable(tokens ...Token) TokenTable {
	t := make(TokenTable, len(tokens))
	for _, tok := range tokens {
		tok.Symbol = NormalizeSymbol(tok.Symbol)
		t[tok.Symbol] = tok
	}
	return t
}

// Lookup finds a token by symbol, case-insensitively.
func (t TokenTable) Lookup(symbol string) (Token, bool) {
	tok, ok := t[NormalizeSymbol(symbol)]
	return tok, ok
}

// Symbols returns the known symbols in sorted order.
func (t TokenTable) Symbols() []string {
	out := make([]string, 0, len(t))
	for s := range t {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
