package source

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/sells-group/panel-cli/internal/model"
)

const (
	pricesSuffix = "prices"
	metaSuffix   = "meta"
)

// ReportPath returns the path of a ticker's report payload.
func ReportPath(dir, ticker string, kind model.SourceKind) string {
	return filepath.Join(dir, ticker+"_"+string(kind)+".json")
}

// PricesPath returns the path of a ticker's price series.
func PricesPath(dir, ticker string) string {
	return filepath.Join(dir, ticker+"_"+pricesSuffix+".csv")
}

// MetaPath returns the path of a ticker's metadata file.
func MetaPath(dir, ticker string) string {
	return filepath.Join(dir, ticker+"_"+metaSuffix+".json")
}

// LoadTicker reads every file for ticker from dir. A missing file is an
// empty source, not an error.
func LoadTicker(ctx context.Context, dir, ticker string, years model.YearRange) (model.TickerInput, LoadStats, error) {
	in := model.TickerInput{Ticker: ticker}
	var stats LoadStats
	log := zap.L().With(zap.String("ticker", ticker))

	for _, kind := range model.SourceKinds() {
		f, err := os.Open(ReportPath(dir, ticker, kind))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				log.Debug("source: report file missing", zap.String("kind", string(kind)))
				continue
			}
			return in, stats, eris.Wrapf(err, "source: open %s %s", ticker, kind)
		}
		records, ks, err := ParseReports(kind, f, years)
		_ = f.Close()
		if err != nil {
			return in, stats, eris.Wrapf(err, "source: parse %s %s", ticker, kind)
		}
		in.Reports.Set(kind, records)
		stats.Add(ks)
	}
	in.Malformed = stats.Malformed

	if f, err := os.Open(PricesPath(dir, ticker)); err == nil {
		prices, skipped, perr := ReadPrices(ctx, f)
		_ = f.Close()
		if perr != nil {
			return in, stats, eris.Wrapf(perr, "source: prices for %s", ticker)
		}
		if skipped > 0 {
			log.Debug("source: skipped price rows", zap.Int("skipped", skipped))
		}
		in.Prices = prices
	} else if !errors.Is(err, fs.ErrNotExist) {
		return in, stats, eris.Wrapf(err, "source: open prices for %s", ticker)
	}

	currency, err := readCurrency(MetaPath(dir, ticker))
	if err != nil {
		return in, stats, err
	}
	in.Currency = currency

	return in, stats, nil
}

// readCurrency returns the "currency" of a metadata file, or "" when the
// file does not exist.
func readCurrency(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", eris.Wrapf(err, "source: read %s", path)
	}
	if !gjson.ValidBytes(data) {
		return "", eris.Errorf("source: %s is not valid JSON", path)
	}
	return strings.ToUpper(strings.TrimSpace(gjson.GetBytes(data, "currency").String())), nil
}

// DiscoverTickers lists the distinct tickers with at least one report,
// price or metadata file in dir, sorted.
func DiscoverTickers(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "source: read dir %s", dir)
	}

	known := map[string]bool{pricesSuffix: true, metaSuffix: true}
	for _, kind := range model.SourceKinds() {
		known[string(kind)] = true
	}

	seen := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ticker, suffix, ok := tickerFromFile(e.Name())
		if ok && known[suffix] {
			seen[ticker] = true
		}
	}

	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}
