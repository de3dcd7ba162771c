package duckdb

import (
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	goduckdb "github.com/marcboeker/go-duckdb/v2"
)

type resultSet struct {
	columns []string
	rows    [][]string
	omitted int
}

// render produces the text the answer prompt sees: a header line, then one
// line per row, cells joined with " | ".
func (r resultSet) render() string {
	var b strings.Builder
	b.WriteString(strings.Join(r.columns, " | "))
	for _, row := range r.rows {
		b.WriteString("\n")
		b.WriteString(strings.Join(row, " | "))
	}
	if len(r.rows) == 0 {
		b.WriteString("\n(no rows)")
	}
	if r.omitted > 0 {
		fmt.Fprintf(&b, "\n(%d more rows)", r.omitted)
	}
	return b.String()
}

// formatCell renders one scanned value. UUID columns scan as raw bytes, so
// the declared column type is needed to tell them apart from BLOBs.
func formatCell(typeName string, value any) string {
	if raw, ok := value.([]byte); ok && strings.EqualFold(typeName, "UUID") && len(raw) == 16 {
		if id, err := uuid.FromBytes(raw); err == nil {
			return id.String()
		}
	}
	return formatValue(value)
}

func formatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(typed)
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32)
	case time.Time:
		if typed.Hour() == 0 && typed.Minute() == 0 && typed.Second() == 0 && typed.Nanosecond() == 0 {
			return typed.Format(time.DateOnly)
		}
		return typed.Format(time.RFC3339Nano)
	case *big.Int:
		return typed.String()
	case goduckdb.UUID:
		return uuid.UUID(typed).String()
	case *goduckdb.UUID:
		return uuid.UUID(*typed).String()
	case goduckdb.Interval:
		return formatInterval(typed)
	case map[string]any:
		return formatStruct(typed)
	case goduckdb.Map:
		return formatMap(typed)
	case []any:
		items := make([]string, len(typed))
		for i, item := range typed {
			items[i] = formatValue(item)
		}
		return "[" + strings.Join(items, ", ") + "]"
	case fmt.Stringer:
		return typed.String()
	case interface{ Float64() float64 }:
		return strconv.FormatFloat(typed.Float64(), 'f', -1, 64)
	default:
		return fmt.Sprint(typed)
	}
}

// formatInterval follows DuckDB's own text form, e.g. "1 year 2 months 3 days 04:05:06".
func formatInterval(interval goduckdb.Interval) string {
	var parts []string
	years, months := interval.Months/12, interval.Months%12
	if years != 0 {
		parts = append(parts, plural(int64(years), "year"))
	}
	if months != 0 {
		parts = append(parts, plural(int64(months), "month"))
	}
	if interval.Days != 0 {
		parts = append(parts, plural(int64(interval.Days), "day"))
	}
	if interval.Micros != 0 || len(parts) == 0 {
		micros := interval.Micros
		sign := ""
		if micros < 0 {
			sign = "-"
			micros = -micros
		}
		clock := fmt.Sprintf("%s%02d:%02d:%02d", sign, micros/3_600_000_000, micros/60_000_000%60, micros/1_000_000%60)
		if fraction := micros % 1_000_000; fraction != 0 {
			clock += fmt.Sprintf(".%06d", fraction)
		}
		parts = append(parts, clock)
	}
	return strings.Join(parts, " ")
}

func plural(n int64, unit string) string {
	if n == 1 || n == -1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func formatStruct(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	items := make([]string, len(keys))
	for i, key := range keys {
		items[i] = key + ": " + formatValue(fields[key])
	}
	return "{" + strings.Join(items, ", ") + "}"
}

func formatMap(entries goduckdb.Map) string {
	items := make([]string, 0, len(entries))
	for key, value := range entries {
		items = append(items, formatValue(key)+"="+formatValue(value))
	}
	sort.Strings(items)
	return "{" + strings.Join(items, ", ") + "}"
}
