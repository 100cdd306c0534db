package mexc

import (
	"fmt"
	"strings"
	"sync"

	"crossarb/internal/exchange"
)

// quoteAssets are tried longest-first when splitting a concatenated pair that
// was never seen in exchangeInfo.
var quoteAssets = []string{"USDT", "USDC", "TUSD", "BTC", "ETH"}

// Mapper translates canonical symbols to MEXC's concatenated pair format
// (BTC/USDT <-> BTCUSDT). Tables are filled from exchangeInfo at facade
// initialization; unseen pairs fall back to a quote-suffix split.
type Mapper struct {
	mu       sync.RWMutex
	toPair   map[exchange.Symbol]string
	toSymbol map[string]exchange.Symbol
}

// NewMapper creates an empty mapper.
func NewMapper() *Mapper {
	return &Mapper{
		toPair:   make(map[exchange.Symbol]string),
		toSymbol: make(map[string]exchange.Symbol),
	}
}

// Load registers discovered instruments.
func (m *Mapper) Load(infos []exchange.SymbolInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, info := range infos {
		pair := info.Symbol.Base + info.Symbol.Quote
		m.toPair[info.Symbol] = pair
		m.toSymbol[pair] = info.Symbol
	}
}

// ToPair returns the venue-native pair string.
func (m *Mapper) ToPair(s exchange.Symbol) (string, error) {
	if s.IsZero() {
		return "", exchange.NewError(exchange.KindInvalidSymbol, "empty symbol")
	}
	m.mu.RLock()
	pair, ok := m.toPair[s]
	m.mu.RUnlock()
	if ok {
		return pair, nil
	}
	return s.Base + s.Quote, nil
}

// ToSymbol splits a concatenated pair back into a canonical symbol.
func (m *Mapper) ToSymbol(pair string) (exchange.Symbol, error) {
	m.mu.RLock()
	s, ok := m.toSymbol[pair]
	m.mu.RUnlock()
	if ok {
		return s, nil
	}
	upper := strings.ToUpper(pair)
	for _, q := range quoteAssets {
		if strings.HasSuffix(upper, q) && len(upper) > len(q) {
			return exchange.NewSymbol(upper[:len(upper)-len(q)], q), nil
		}
	}
	return exchange.Symbol{}, exchange.NewError(exchange.KindInvalidSymbol,
		fmt.Sprintf("cannot split pair %q", pair))
}

// IsSupportedPair reports whether the pair was seen in exchangeInfo.
func (m *Mapper) IsSupportedPair(pair string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.toSymbol[pair]
	return ok
}
