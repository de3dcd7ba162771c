package duckdb

import (
	"testing"

	goduckdb "github.com/marcboeker/go-duckdb/v2"
)

func TestFormatValueRendersDuckDBTypes(t *testing.T) {
	id := goduckdb.UUID{0x55, 0x0e, 0x84, 0x00, 0xe2, 0x9b, 0x41, 0xd4, 0xa7, 0x16, 0x44, 0x66, 0x55, 0x44, 0x00, 0x00}
	cases := []struct {
		name  string
		value any
		want  string
	}{
		{name: "uuid", value: id, want: "550e8400-e29b-41d4-a716-446655440000"},
		{name: "one day", value: goduckdb.Interval{Days: 1}, want: "1 day"},
		{name: "mixed interval", value: goduckdb.Interval{Months: 14, Days: 3, Micros: 3_723_500_000}, want: "1 year 2 months 3 days 01:02:03.500000"},
		{name: "zero interval", value: goduckdb.Interval{}, want: "00:00:00"},
		{name: "struct", value: map[string]any{"y": "b", "x": int32(1)}, want: "{x: 1, y: b}"},
		{name: "list", value: []any{int64(1), nil, "c"}, want: "[1, NULL, c]"},
		{name: "map", value: goduckdb.Map{"k": int64(2)}, want: "{k=2}"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := formatValue(tc.value); got != tc.want {
				t.Fatalf("formatValue() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFormatCellUsesColumnTypeForUUIDBytes(t *testing.T) {
	raw := []byte{0x55, 0x0e, 0x84, 0x00, 0xe2, 0x9b, 0x41, 0xd4, 0xa7, 0x16, 0x44, 0x66, 0x55, 0x44, 0x00, 0x00}
	if got := formatCell("UUID", raw); got != "550e8400-e29b-41d4-a716-446655440000" {
		t.Fatalf("formatCell(UUID) = %q", got)
	}
	if got := formatCell("VARCHAR", []byte("plain")); got != "plain" {
		t.Fatalf("formatCell(VARCHAR) = %q", got)
	}
}
