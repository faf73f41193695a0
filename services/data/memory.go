package data

import (
	"sort"
)

// MemorySource serves pre-loaded bars grouped by unique timestamp. It backs
// the CSV and ClickHouse loaders and is the source of choice in tests.
type MemorySource struct {
	symbols []string
	bars    map[string][]Bar
	cursor  map[string]int
}

// NewMemorySource validates the per-symbol series and builds a source over
// them. Bars must be strictly ascending in timestamp within each symbol;
// a duplicate or out-of-order bar is a *Error.
func NewMemorySource(bySymbol map[string][]Bar) (*MemorySource, error) {
	symbols := make([]string, 0, len(bySymbol))
	for s, bars := range bySymbol {
		symbols = append(symbols, s)
		for i := 1; i < len(bars); i++ {
			prev, cur := bars[i-1].Timestamp, bars[i].Timestamp
			if cur.Equal(prev) {
				return nil, &Error{Symbol: s, Timestamp: cur, Reason: "duplicate timestamp"}
			}
			if cur.Before(prev) {
				return nil, &Error{Symbol: s, Timestamp: cur, Reason: "out-of-order timestamp"}
			}
		}
	}
	sort.Strings(symbols)

	src := &MemorySource{symbols: symbols, bars: bySymbol}
	src.cursor = make(map[string]int, len(symbols))
	return src, nil
}

func (m *MemorySource) Symbols() []string {
	out := make([]string, len(m.symbols))
	copy(out, m.symbols)
	return out
}

// Next collects every bar carrying the earliest pending timestamp, in
// lexicographic symbol order, so multi-symbol replays stay deterministic.
func (m *MemorySource) Next() ([]Bar, error) {
	var next *Bar
	for _, s := range m.symbols {
		i := m.cursor[s]
		if i >= len(m.bars[s]) {
			continue
		}
		b := m.bars[s][i]
		if next == nil || b.Timestamp.Before(next.Timestamp) {
			next = &b
		}
	}
	if next == nil {
		return nil, ErrExhausted
	}

	var batch []Bar
	for _, s := range m.symbols {
		i := m.cursor[s]
		if i >= len(m.bars[s]) {
			continue
		}
		if m.bars[s][i].Timestamp.Equal(next.Timestamp) {
			batch = append(batch, m.bars[s][i])
			m.cursor[s] = i + 1
		}
	}
	return batch, nil
}

func (m *MemorySource) Reset() error {
	for _, s := range m.symbols {
		m.cursor[s] = 0
	}
	return nil
}
