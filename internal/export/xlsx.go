package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/panel-cli/internal/model"
)

// Workbook sheet names.
const (
	SheetPanel      = "panel"
	SheetGroupIndex = "group_index"
	SheetLatest     = "latest"
)

// WriteXLSX saves one workbook with the panel, the group index and the
// latest cross-section.
func WriteXLSX(path string, panel model.Panel, points []model.GroupIndexPoint, latest []model.FiscalQuarterRow) error {
	f := xlsx.NewFile()

	if err := addRowsSheet(f, SheetPanel, NewestFirst(panel)); err != nil {
		return err
	}

	sheet, err := f.AddSheet(SheetGroupIndex)
	if err != nil {
		return eris.Wrapf(err, "export: add sheet %s", SheetGroupIndex)
	}
	addStrings(sheet, []string{"group", "date", "weighting", "groupIndexValue", "tickers", "fallback"})
	for _, p := range points {
		row := sheet.AddRow()
		row.AddCell().SetString(p.Group)
		row.AddCell().SetString(p.Date.Format(model.DateLayout))
		row.AddCell().SetString(string(p.Weighting))
		row.AddCell().SetFloat(p.Value)
		row.AddCell().SetInt(p.Tickers)
		row.AddCell().SetBool(p.Fallback)
	}

	if err := addRowsSheet(f, SheetLatest, latest); err != nil {
		return err
	}

	return eris.Wrapf(f.Save(path), "export: save workbook %s", path)
}

func addRowsSheet(f *xlsx.File, name string, rows []model.FiscalQuarterRow) error {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrapf(err, "export: add sheet %s", name)
	}
	addStrings(sheet, PanelColumns())
	for i := range rows {
		addStrings(sheet, PanelRecord(&rows[i]))
	}
	return nil
}

func addStrings(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
