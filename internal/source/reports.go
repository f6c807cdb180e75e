package source

import (
	"io"
	"strings"

	"github.com/guregu/null/v6"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/sells-group/panel-cli/internal/model"
)

// vendorNoticeKeys mark a payload that carries a notice instead of data.
var vendorNoticeKeys = []string{"Note", "Information", "Error Message"}

// LoadStats counts what happened while loading one report payload.
type LoadStats struct {
	Records    int    `json:"records"`
	Malformed  int    `json:"malformed"`
	OutOfRange int    `json:"out_of_range"`
	Notice     string `json:"notice,omitempty"`
}

// Add accumulates other into s.
func (s *LoadStats) Add(other LoadStats) {
	s.Records += other.Records
	s.Malformed += other.Malformed
	s.OutOfRange += other.OutOfRange
	if s.Notice == "" {
		s.Notice = other.Notice
	}
}

func arrayKey(kind model.SourceKind) string {
	if kind == model.SourceEarnings {
		return "quarterlyEarnings"
	}
	return "quarterlyReports"
}

// ParseReports decodes a vendor report payload of the given kind. Records
// whose fiscalDateEnding cannot be parsed are dropped and counted, as are
// records outside years. A payload carrying a vendor notice yields no
// records and no error.
func ParseReports(kind model.SourceKind, r io.Reader, years model.YearRange) ([]model.RawReportRecord, LoadStats, error) {
	var stats LoadStats

	schema := model.Schema(kind)
	if schema == nil {
		return nil, stats, eris.Errorf("source: unknown report kind %q", kind)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, stats, eris.Wrapf(err, "source: read %s payload", kind)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, stats, nil
	}
	if !gjson.ValidBytes(data) {
		return nil, stats, eris.Errorf("source: %s payload is not valid JSON", kind)
	}

	for _, key := range vendorNoticeKeys {
		if v := gjson.GetBytes(data, gjson.Escape(key)); v.Exists() {
			stats.Notice = v.String()
			zap.L().Warn("source: vendor notice instead of reports",
				zap.String("kind", string(kind)),
				zap.String("notice", stats.Notice),
			)
			return nil, stats, nil
		}
	}

	var records []model.RawReportRecord
	gjson.GetBytes(data, arrayKey(kind)).ForEach(func(_, item gjson.Result) bool {
		raw := strings.TrimSpace(item.Get("fiscalDateEnding").String())
		end, err := model.ParseDate(raw)
		if err != nil {
			stats.Malformed++
			zap.L().Debug("source: dropping record",
				zap.String("kind", string(kind)),
				zap.Error(eris.Wrapf(model.ErrMalformedRecord, "fiscalDateEnding %q", raw)),
			)
			return true
		}
		if !years.Contains(end) {
			stats.OutOfRange++
			return true
		}

		vals := make(model.Values, len(schema))
		for _, fs := range schema {
			vals[fs.Field] = parseAmount(item.Get(gjson.Escape(fs.Key)))
		}
		records = append(records, model.RawReportRecord{Kind: kind, FiscalPeriodEnd: end, Values: vals})
		return true
	})

	stats.Records = len(records)
	return records, stats, nil
}

// parseAmount reads a vendor number. Amounts arrive as strings, with
// "None", "-" and empty meaning not reported.
func parseAmount(v gjson.Result) null.Float {
	if !v.Exists() || v.Type == gjson.Null {
		return null.Float{}
	}
	s := strings.TrimSpace(v.String())
	switch strings.ToLower(s) {
	case "", "none", "-", "n/a", "nan", "null":
		return null.Float{}
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return null.Float{}
	}
	f, _ := d.Float64()
	return model.FiniteFloat(f)
}
