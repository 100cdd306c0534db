package gate

import (
	"fmt"
	"strings"
	"sync"

	"crossarb/internal/exchange"
)

// Mapper translates canonical symbols to Gate.io's underscore pair format
// (BTC/USDT <-> BTC_USDT). Spot and futures share the same format, so one
// mapper serves both adapters.
type Mapper struct {
	mu        sync.RWMutex
	supported map[string]struct{}
}

// NewMapper creates an empty mapper.
func NewMapper() *Mapper {
	return &Mapper{supported: make(map[string]struct{})}
}

// Load registers discovered instruments for IsSupportedPair checks.
func (m *Mapper) Load(infos []exchange.SymbolInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, info := range infos {
		m.supported[info.Symbol.Base+"_"+info.Symbol.Quote] = struct{}{}
	}
}

// ToPair returns the venue-native pair string.
func (m *Mapper) ToPair(s exchange.Symbol) (string, error) {
	if s.IsZero() {
		return "", exchange.NewError(exchange.KindInvalidSymbol, "empty symbol")
	}
	return s.Base + "_" + s.Quote, nil
}

// ToSymbol splits an underscore pair back into a canonical symbol.
func (m *Mapper) ToSymbol(pair string) (exchange.Symbol, error) {
	parts := strings.SplitN(pair, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return exchange.Symbol{}, exchange.NewError(exchange.KindInvalidSymbol,
			fmt.Sprintf("malformed pair %q", pair))
	}
	return exchange.NewSymbol(parts[0], parts[1]), nil
}

// IsSupportedPair reports whether the pair was seen in instrument discovery.
func (m *Mapper) IsSupportedPair(pair string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.supported[pair]
	return ok
}
