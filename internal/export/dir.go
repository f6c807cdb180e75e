package export

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/panel-cli/internal/crosssection"
	"github.com/sells-group/panel-cli/internal/model"
)

// File names written by WriteDir.
const (
	PanelFile          = "panel.csv"
	GroupIndexFile     = "group_index.csv"
	LongFile           = "latest_metrics_long.csv"
	NegativeSharesFile = "negative_shares.csv"
	WorkbookFile       = "panel.xlsx"
)

// Bundle is everything a build exports.
type Bundle struct {
	Panel      model.Panel
	GroupIndex []model.GroupIndexPoint
	Snapshot   crosssection.Snapshot
}

// WriteDir writes every export of b into dir, creating it if needed, and
// returns the written paths.
func WriteDir(dir string, b Bundle) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "export: create %s", dir)
	}

	csvs := []struct {
		name  string
		write func(io.Writer) error
	}{
		{PanelFile, func(w io.Writer) error { return WritePanelCSV(w, b.Panel) }},
		{GroupIndexFile, func(w io.Writer) error { return WriteGroupIndexCSV(w, b.GroupIndex) }},
		{LongFile, func(w io.Writer) error { return WriteLongCSV(w, b.Snapshot.Long) }},
		{NegativeSharesFile, func(w io.Writer) error { return WriteNegativeSharesCSV(w, b.Snapshot.NegativeShares) }},
	}

	var written []string
	for _, c := range csvs {
		path := filepath.Join(dir, c.name)
		if err := writeFile(path, c.write); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	path := filepath.Join(dir, WorkbookFile)
	if err := WriteXLSX(path, b.Panel, b.GroupIndex, b.Snapshot.Latest); err != nil {
		return written, err
	}
	written = append(written, path)

	zap.L().Info("export: files written", zap.String("dir", dir), zap.Int("files", len(written)))
	return written, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	if err := write(f); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "export: close %s", path)
}
