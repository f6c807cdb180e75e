package source

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/panel-cli/internal/model"
)

// readSheet returns the raw cell values of a workbook sheet. An empty
// sheetName selects the first sheet.
func readSheet(path, sheetName string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: open workbook %s", path)
	}

	var sheet *xlsx.Sheet
	if sheetName != "" {
		s, ok := f.Sheet[sheetName]
		if !ok {
			return nil, eris.Errorf("source: sheet %q not found in %s", sheetName, path)
		}
		sheet = s
	} else {
		if len(f.Sheets) == 0 {
			return nil, eris.Errorf("source: workbook %s has no sheets", path)
		}
		sheet = f.Sheets[0]
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, c := range row.Cells {
			if c != nil {
				cells[j] = strings.TrimSpace(c.Value)
			}
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

var sheetDateLayouts = []string{
	model.DateLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"01/02/2006",
	"1/2/2006",
	"01-02-06",
	"1/2/06",
}

// parseSheetDate accepts a text date in common layouts or an Excel serial
// day number.
func parseSheetDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range sheetDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return model.Date(t.Year(), t.Month(), t.Day()), nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		t := xlsx.TimeFromExcelTime(serial, false)
		return model.Date(t.Year(), t.Month(), t.Day()), nil
	}
	return time.Time{}, eris.Errorf("source: unrecognized date %q", s)
}
