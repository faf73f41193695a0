package data

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// yahooRow matches the Yahoo Finance daily export header:
// Date,Open,High,Low,Close,Adj Close,Volume
type yahooRow struct {
	Date     string  `csv:"Date"`
	Open     float64 `csv:"Open"`
	High     float64 `csv:"High"`
	Low      float64 `csv:"Low"`
	Close    float64 `csv:"Close"`
	AdjClose float64 `csv:"Adj Close"`
	Volume   float64 `csv:"Volume"`
}

// NewCSVSource loads <dir>/<symbol>.csv for each symbol and returns a
// validated in-memory source. Bars before start are skipped. Exported files
// occasionally arrive UTF-16 encoded or with a BOM, so the reader sniffs the
// first bytes and decodes accordingly.
func NewCSVSource(dir string, symbols []string, start time.Time) (*MemorySource, error) {
	bySymbol := make(map[string][]Bar, len(symbols))
	for _, s := range symbols {
		path := filepath.Join(dir, s+".csv")
		bars, err := loadSymbolCSV(path, s, start)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		bySymbol[s] = bars
	}
	return NewMemorySource(bySymbol)
}

func loadSymbolCSV(path, symbol string, start time.Time) ([]Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []*yahooRow
	if err := gocsv.Unmarshal(decodeReader(f), &rows); err != nil {
		return nil, err
	}

	bars := make([]Bar, 0, len(rows))
	for _, r := range rows {
		ts, err := time.Parse("2006-01-02", strings.TrimSpace(r.Date))
		if err != nil {
			return nil, &Error{Symbol: symbol, Reason: fmt.Sprintf("unparseable date %q", r.Date)}
		}
		if ts.Before(start) {
			continue
		}
		bars = append(bars, Bar{
			Symbol:    symbol,
			Timestamp: ts.UTC(),
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			AdjClose:  r.AdjClose,
			Volume:    r.Volume,
		})
	}
	return bars, nil
}

// decodeReader wraps r with a UTF-16 decoder when a BOM is present and strips
// a leading UTF-8 BOM otherwise.
func decodeReader(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	head, _ := br.Peek(3)
	if len(head) >= 2 && ((head[0] == 0xFF && head[1] == 0xFE) || (head[0] == 0xFE && head[1] == 0xFF)) {
		return transform.NewReader(br, unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder())
	}
	if len(head) >= 3 && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF {
		br.Discard(3)
	}
	return br
}
