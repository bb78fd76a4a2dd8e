package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	oldOut, oldErr, oldColor := Stdout, Stderr, color.NoColor
	var out, errOut bytes.Buffer
	Stdout, Stderr, color.NoColor = &out, &errOut, true
	t.Cleanup(func() { Stdout, Stderr, color.NoColor = oldOut, oldErr, oldColor })
	return &out, &errOut
}

func TestMessages(t *testing.T) {
	out, errOut := capture(t)

	Success("Created %d items", 5)
	Info("plain info")
	Warn("careful")
	Error("failed: %s", "boom")

	assert.Equal(t, "✓ Created 5 items\nplain info\n", out.String())
	assert.Equal(t, "⚠ careful\n✗ failed: boom\n", errOut.String())
}

type sample struct {
	EventID string `json:"eventId"`
	Count   int    `json:"count"`
}

func TestPrint(t *testing.T) {
	v := sample{EventID: "e1", Count: 2}
	table := func() *Table {
		tbl := NewTable([]string{"EVENT", "COUNT"})
		tbl.AddRow([]string{"e1", "2"})
		return tbl
	}

	tests := []struct {
		format string
		want   string
	}{
		{FormatJSON, "{\n  \"eventId\": \"e1\",\n  \"count\": 2\n}\n"},
		{FormatYAML, "eventId: e1\ncount: 2\n"},
		{FormatTable, "EVENT  COUNT  \n-----  -----  \ne1     2      \n"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			out, _ := capture(t)
			require.NoError(t, Print(tt.format, v, table))
			assert.Equal(t, tt.want, out.String())
		})
	}

	_, _ = capture(t)
	assert.Error(t, Print("xml", v, table))
}

func TestTable_WidthsFollowLongestCell(t *testing.T) {
	out, _ := capture(t)

	tbl := NewTable([]string{"ID", "NAME"})
	tbl.AddRow([]string{"a-much-longer-id", "x"})
	tbl.Render()

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, len(lines[0]), len(lines[2]))
	assert.True(t, strings.HasPrefix(lines[1], strings.Repeat("-", len("a-much-longer-id"))))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcdefg...", Truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "abc", Truncate("abc", 2))
}
