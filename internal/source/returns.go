package source

import (
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/guregu/null/v6"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/panel-cli/internal/model"
)

// Column names of a return workbook, compared case-insensitively.
const (
	colTicker    = "fixed_ticker"
	colDate      = "date"
	colReturn    = "total return"
	colMarketCap = "market capitalization"
)

// ReadReturnsXLSX reads periodic total returns and market caps from the
// first sheet of a workbook with fixed_ticker, Date, Total Return and Market
// Capitalization columns. Rows without a ticker or parseable date are
// skipped and counted.
func ReadReturnsXLSX(path string) ([]model.ReturnPoint, int, error) {
	rows, err := readSheet(path, "")
	if err != nil {
		return nil, 0, err
	}
	if len(rows) == 0 {
		return nil, 0, nil
	}

	idx := headerIndex(rows[0])
	for _, col := range []string{colTicker, colDate} {
		if _, ok := idx[col]; !ok {
			return nil, 0, eris.Errorf("source: %s missing column %q", filepath.Base(path), col)
		}
	}

	var out []model.ReturnPoint
	skipped := 0
	for _, row := range rows[1:] {
		ticker := cell(row, idx, colTicker)
		d, err := parseSheetDate(cell(row, idx, colDate))
		if ticker == "" || err != nil {
			skipped++
			continue
		}
		out = append(out, model.ReturnPoint{
			Ticker:         ticker,
			Date:           d,
			TotalReturnPct: optionalFloat(cell(row, idx, colReturn)),
			MarketCap:      optionalFloat(cell(row, idx, colMarketCap)),
		})
	}
	return out, skipped, nil
}

// ReadReturnsDir reads every .xlsx workbook in dir. A workbook that fails to
// parse is logged and skipped.
func ReadReturnsDir(dir string) ([]model.ReturnPoint, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.xlsx"))
	if err != nil {
		return nil, eris.Wrapf(err, "source: list workbooks in %s", dir)
	}
	sort.Strings(paths)

	var out []model.ReturnPoint
	for _, p := range paths {
		pts, skipped, err := ReadReturnsXLSX(p)
		if err != nil {
			zap.L().Warn("source: skipping workbook", zap.String("path", p), zap.Error(err))
			continue
		}
		if skipped > 0 {
			zap.L().Debug("source: skipped workbook rows", zap.String("path", p), zap.Int("skipped", skipped))
		}
		out = append(out, pts...)
	}
	return out, nil
}

// ReadReturns reads a single workbook or, for a directory, every workbook in
// it.
func ReadReturns(path string) ([]model.ReturnPoint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: stat %s", path)
	}
	if info.IsDir() {
		return ReadReturnsDir(path)
	}
	pts, _, err := ReadReturnsXLSX(path)
	return pts, err
}

// ReturnsFromPrices derives period total returns from closes. With monthly
// set, only the last trading day of each month is used. The first point has
// a null return. Market cap is close × shares, taking shares from the price
// point when present and otherwise from sharesAt.
func ReturnsFromPrices(ticker string, prices []model.PricePoint, sharesAt func(time.Time) null.Float, monthly bool) []model.ReturnPoint {
	series := make([]model.PricePoint, 0, len(prices))
	for _, p := range prices {
		if p.Close > 0 && !math.IsInf(p.Close, 0) {
			series = append(series, p)
		}
	}
	sort.SliceStable(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	if monthly {
		series = monthEnds(series)
	}

	out := make([]model.ReturnPoint, len(series))
	for i, p := range series {
		rp := model.ReturnPoint{Ticker: ticker, Date: p.Date}
		if i > 0 {
			rp.TotalReturnPct = model.FiniteFloat((p.Close/series[i-1].Close - 1) * 100)
		}
		shares := p.SharesOutstanding
		if !shares.Valid && sharesAt != nil {
			shares = sharesAt(p.Date)
		}
		if shares.Valid {
			rp.MarketCap = model.FiniteFloat(shares.Float64 * p.Close)
		}
		out[i] = rp
	}
	return out
}

func monthEnds(series []model.PricePoint) []model.PricePoint {
	var out []model.PricePoint
	for i, p := range series {
		if i == len(series)-1 {
			out = append(out, p)
			break
		}
		next := series[i+1].Date
		if next.Year() != p.Date.Year() || next.Month() != p.Date.Month() {
			out = append(out, p)
		}
	}
	return out
}

// tickerFromFile extracts TICKER from TICKER_kind.ext names.
func tickerFromFile(name string) (string, string, bool) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	i := strings.LastIndex(base, "_")
	if i <= 0 {
		return "", "", false
	}
	return base[:i], base[i+1:], true
}
