package source

import (
	"context"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/guregu/null/v6"
	"github.com/rotisserie/eris"

	"github.com/sells-group/panel-cli/internal/model"
)

// ReadPrices parses a CSV price series with a header of date, close and
// optionally volume and shares_outstanding. Rows with an unparseable date
// or a missing, unparseable or non-finite close are skipped and counted. Duplicate dates keep the last row. The
// result is sorted by date.
func ReadPrices(ctx context.Context, r io.Reader) ([]model.PricePoint, int, error) {
	headerCh := make(chan []string, 1)
	rowCh, errCh := StreamCSV(ctx, r, CSVOptions{HasHeader: true, HeaderCh: headerCh, TrimSpace: true})

	rows, err := collect(rowCh, errCh)
	if err != nil {
		return nil, 0, eris.Wrap(err, "source: read prices")
	}

	var header []string
	select {
	case header = <-headerCh:
	default:
		return nil, 0, nil
	}

	idx := headerIndex(header)
	if _, ok := idx["date"]; !ok {
		return nil, 0, eris.Errorf("source: price header missing date column (got %v)", header)
	}
	if _, ok := idx["close"]; !ok {
		if _, ok := idx["close_price"]; !ok {
			return nil, 0, eris.Errorf("source: price header missing close column (got %v)", header)
		}
	}

	byDate := make(map[time.Time]model.PricePoint, len(rows))
	skipped := 0
	for _, row := range rows {
		d, err := model.ParseDate(cell(row, idx, "date"))
		if err != nil {
			skipped++
			continue
		}
		c, err := strconv.ParseFloat(cell(row, idx, "close", "close_price"), 64)
		if err != nil || !model.FiniteFloat(c).Valid {
			skipped++
			continue
		}
		byDate[d] = model.PricePoint{
			Date:              d,
			Close:             c,
			Volume:            optionalFloat(cell(row, idx, "volume")),
			SharesOutstanding: optionalFloat(cell(row, idx, "shares_outstanding")),
		}
	}

	out := make([]model.PricePoint, 0, len(byDate))
	for _, p := range byDate {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, skipped, nil
}

func optionalFloat(s string) null.Float {
	s = strings.TrimSpace(s)
	if s == "" {
		return null.Float{}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return null.Float{}
	}
	return model.FiniteFloat(f)
}
