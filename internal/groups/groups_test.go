package groups

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/panel-cli/internal/model"
)

func TestRead_TrimsAndKeepsLast(t *testing.T) {
	t.Parallel()

	input := " fixed_ticker , group \n" +
		"NVDA , AI Leaders\n" +
		"MSFT,AI Leaders\n" +
		"NVDA,AI Hardware\n" +
		"IBM,\n"

	m, err := Read(strings.NewReader(input), "")
	require.NoError(t, err)

	assert.Equal(t, "AI Hardware", m.Lookup("NVDA"))
	assert.Equal(t, "AI Leaders", m.Lookup("MSFT"))
	assert.Equal(t, model.DefaultControlGroup, m.Lookup("IBM"), "blank group falls back to control")
	assert.Equal(t, 3, m.Len())
}

func TestNew_BlankLaterEntryWins(t *testing.T) {
	t.Parallel()

	m := New([]Entry{
		{Ticker: "A", Group: "AI"},
		{Ticker: "A", Group: " "},
		{Ticker: "B", Group: ""},
		{Ticker: "B", Group: "AI"},
	}, "Control")

	assert.Equal(t, "Control", m.Lookup("A"))
	assert.Equal(t, "AI", m.Lookup("B"))
	assert.Equal(t, []string{"AI", "Control"}, m.Groups())
}

func TestLookup_UnmappedUsesControl(t *testing.T) {
	t.Parallel()

	m := New([]Entry{{Ticker: "A", Group: "AI"}}, "Control")
	assert.Equal(t, "Control", m.Lookup("ZZZ"))
	assert.Equal(t, []string{"AI", "Control"}, m.Groups())

	var nilMap *Map
	assert.Equal(t, model.DefaultControlGroup, nilMap.Lookup("A"))
}

func TestRead_MissingColumns(t *testing.T) {
	t.Parallel()

	_, err := Read(strings.NewReader("ticker,group\nA,AI\n"), "")
	assert.Error(t, err)

	_, err = Read(strings.NewReader(""), "")
	assert.Error(t, err)
}

func TestAttach(t *testing.T) {
	t.Parallel()

	m := New([]Entry{{Ticker: "A", Group: "AI"}}, "")
	rows := []model.FiscalQuarterRow{{Ticker: "A"}, {Ticker: "B"}}
	m.Attach(rows)

	assert.Equal(t, "AI", rows[0].Group)
	assert.Equal(t, model.DefaultControlGroup, rows[1].Group)
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "group_map.csv")
	require.NoError(t, os.WriteFile(path, []byte("fixed_ticker,group\nA,AI\n"), 0o644))

	m, err := ReadFile(path, "")
	require.NoError(t, err)
	assert.Equal(t, "AI", m.Lookup("A"))

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.csv"), "")
	assert.Error(t, err)
}
