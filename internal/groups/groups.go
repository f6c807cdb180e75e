// Package groups maps tickers to analysis group labels.
package groups

import (
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/panel-cli/internal/model"
)

// Entry is one row of a group map file.
type Entry struct {
	Ticker string `csv:"fixed_ticker"`
	Group  string `csv:"group"`
}

// Map resolves tickers to groups. Tickers without an entry resolve to the
// control group.
type Map struct {
	labels  map[string]string
	control string
}

// New creates a Map from entries. Later entries win for duplicate tickers,
// and a winning entry with an empty group maps the ticker to control.
func New(entries []Entry, control string) *Map {
	if control == "" {
		control = model.DefaultControlGroup
	}
	m := &Map{labels: make(map[string]string, len(entries)), control: control}
	for _, e := range entries {
		ticker := strings.TrimSpace(e.Ticker)
		if ticker == "" {
			continue
		}
		m.labels[ticker] = strings.TrimSpace(e.Group)
	}
	for ticker, group := range m.labels {
		if group == "" {
			m.labels[ticker] = control
		}
	}
	return m
}

// Read decodes a CSV with fixed_ticker and group columns. Header names and
// values are trimmed.
func Read(r io.Reader, control string) (*Map, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, eris.New("groups: empty group map")
		}
		return nil, eris.Wrap(err, "groups: read header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}
	if !contains(header, "fixed_ticker") || !contains(header, "group") {
		return nil, eris.Errorf("groups: group map must have columns fixed_ticker, group (got %v)", header)
	}

	dec, err := csvutil.NewDecoder(cr, header...)
	if err != nil {
		return nil, eris.Wrap(err, "groups: create decoder")
	}

	var entries []Entry
	for {
		var e Entry
		if err := dec.Decode(&e); err != nil {
			if err == io.EOF {
				break
			}
			return nil, eris.Wrap(err, "groups: decode row")
		}
		entries = append(entries, e)
	}
	return New(entries, control), nil
}

// ReadFile is Read on a file path.
func ReadFile(path, control string) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "groups: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return Read(f, control)
}

// Lookup returns the ticker's group, or the control group when unmapped.
func (m *Map) Lookup(ticker string) string {
	if m == nil {
		return model.DefaultControlGroup
	}
	if g, ok := m.labels[strings.TrimSpace(ticker)]; ok {
		return g
	}
	return m.control
}

// Control returns the control group label.
func (m *Map) Control() string {
	if m == nil {
		return model.DefaultControlGroup
	}
	return m.control
}

// Attach sets the Group of every row.
func (m *Map) Attach(rows []model.FiscalQuarterRow) {
	for i := range rows {
		rows[i].Group = m.Lookup(rows[i].Ticker)
	}
}

// Groups returns the distinct labels, including the control group, sorted.
func (m *Map) Groups() []string {
	seen := map[string]bool{m.Control(): true}
	if m != nil {
		for _, g := range m.labels {
			seen[g] = true
		}
	}
	out := make([]string, 0, len(seen))
	for g := range seen {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of mapped tickers.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.labels)
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
