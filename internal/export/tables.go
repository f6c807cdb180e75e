package export

import (
	"io"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/panel-cli/internal/crosssection"
	"github.com/sells-group/panel-cli/internal/model"
)

// GroupIndexRecord is the CSV layout of one group index point.
type GroupIndexRecord struct {
	Group     string  `csv:"group"`
	Date      string  `csv:"date"`
	Weighting string  `csv:"weighting"`
	Value     float64 `csv:"groupIndexValue"`
	Tickers   int     `csv:"tickers"`
	Fallback  bool    `csv:"fallback"`
}

// GroupIndexRecords converts points into CSV records.
func GroupIndexRecords(points []model.GroupIndexPoint) []GroupIndexRecord {
	out := make([]GroupIndexRecord, len(points))
	for i, p := range points {
		out[i] = GroupIndexRecord{
			Group:     p.Group,
			Date:      p.Date.Format(model.DateLayout),
			Weighting: string(p.Weighting),
			Value:     p.Value,
			Tickers:   p.Tickers,
			Fallback:  p.Fallback,
		}
	}
	return out
}

// WriteGroupIndexCSV writes group,date,weighting,groupIndexValue rows.
func WriteGroupIndexCSV(w io.Writer, points []model.GroupIndexPoint) error {
	return writeRecords(w, GroupIndexRecords(points), "group index")
}

// WriteLongCSV writes the long-form latest metrics table.
func WriteLongCSV(w io.Writer, rows []crosssection.LongRow) error {
	return writeRecords(w, rows, "long metrics")
}

// WriteNegativeSharesCSV writes per-group negative shares.
func WriteNegativeSharesCSV(w io.Writer, shares []crosssection.GroupShare) error {
	return writeRecords(w, shares, "negative shares")
}

func writeRecords(w io.Writer, records any, what string) error {
	data, err := csvutil.Marshal(records)
	if err != nil {
		return eris.Wrapf(err, "export: encode %s", what)
	}
	_, err = w.Write(data)
	return eris.Wrapf(err, "export: write %s", what)
}
