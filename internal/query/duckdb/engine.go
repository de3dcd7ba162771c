package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/csvask/csvask/internal/query"
)

var ErrNotBound = errors.New("no dataset is bound")

type Config struct {
	// SchemaSampleRows is the number of rows shown after the column list in Describe.
	SchemaSampleRows int
	// MaxResultRows caps rendered result rows; 0 renders everything.
	MaxResultRows int
}

// Engine owns one in-memory DuckDB database in which a single file is
// exposed as query.Relation. Calls are serialized on one connection.
type Engine struct {
	mu      sync.Mutex
	db      *sql.DB
	cfg     Config
	dataset *query.Dataset
	// reader is the table function behind the current view.
	reader string
}

func NewEngine(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.SchemaSampleRows < 0 {
		cfg.SchemaSampleRows = 0
	}
	if cfg.MaxResultRows < 0 {
		cfg.MaxResultRows = 0
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return &Engine{db: db, cfg: cfg}, nil
}

// Bind materializes path as the view query.Relation, replacing any previous
// binding. The row count query forces a full read so malformed files fail here.
// A failed bind leaves the previous binding in place.
func (e *Engine) Bind(ctx context.Context, path string, format query.Format) (query.Dataset, error) {
	if strings.TrimSpace(path) == "" {
		return query.Dataset{}, fmt.Errorf("dataset path is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return query.Dataset{}, fmt.Errorf("stat dataset %q: %w", path, err)
	}
	if info.IsDir() {
		return query.Dataset{}, fmt.Errorf("dataset %q is a directory", path)
	}
	reader, err := readerFor(path, format)
	if err != nil {
		return query.Dataset{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.db.ExecContext(ctx, viewStatement(reader)); err != nil {
		return query.Dataset{}, fmt.Errorf("create view %q over %q: %w", query.Relation, path, err)
	}

	var rows int64
	if err := e.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+quoteIdent(query.Relation)).Scan(&rows); err != nil {
		e.restoreViewLocked(context.WithoutCancel(ctx))
		return query.Dataset{}, fmt.Errorf("read dataset %q: %w", path, err)
	}

	dataset := query.Dataset{
		Relation: query.Relation,
		Source:   path,
		Path:     path,
		Format:   format,
		Rows:     rows,
	}
	e.dataset = &dataset
	e.reader = reader
	return dataset, nil
}

// restoreViewLocked points the view back at the last successful binding, or
// drops it when there was none.
func (e *Engine) restoreViewLocked(ctx context.Context) {
	if e.reader == "" {
		_, _ = e.db.ExecContext(ctx, `DROP VIEW IF EXISTS `+quoteIdent(query.Relation))
		return
	}
	_, _ = e.db.ExecContext(ctx, viewStatement(e.reader))
}

func viewStatement(reader string) string {
	return fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS SELECT * FROM %s`, quoteIdent(query.Relation), reader)
}

// Describe renders the bound relation's columns as a CREATE TABLE statement
// followed by a few sample rows. Nothing about other relations is included.
func (e *Engine) Describe(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dataset == nil {
		return "", ErrNotBound
	}

	columns, err := e.describeColumns(ctx)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", query.Relation)
	for i, column := range columns {
		fmt.Fprintf(&b, "\t%s %s", quoteIdentIfNeeded(column.name), column.typeName)
		if i < len(columns)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(")")

	if e.cfg.SchemaSampleRows == 0 {
		return b.String(), nil
	}

	sample, err := e.queryLocked(ctx, fmt.Sprintf(`SELECT * FROM %s LIMIT %d`, quoteIdent(query.Relation), e.cfg.SchemaSampleRows), 0)
	if err != nil {
		return "", fmt.Errorf("sample rows: %w", err)
	}
	fmt.Fprintf(&b, "\n\n/*\n%d rows from %s table:\n", len(sample.rows), query.Relation)
	b.WriteString(strings.Join(sample.columns, "\t"))
	for _, row := range sample.rows {
		b.WriteString("\n")
		b.WriteString(strings.Join(row, "\t"))
	}
	b.WriteString("\n*/")
	return b.String(), nil
}

// Execute runs sqlText and never returns an error value: engine failures
// come back as a failed Outcome carrying the statement and the cause.
func (e *Engine) Execute(ctx context.Context, sqlText string) query.Outcome {
	outcome := query.Outcome{SQL: sqlText}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dataset == nil {
		outcome.Err = ErrNotBound
		return outcome
	}
	statement := stripTrailingSemicolons(sqlText)
	if statement == "" {
		outcome.Err = fmt.Errorf("sql is required")
		return outcome
	}

	result, err := e.queryLocked(ctx, statement, e.cfg.MaxResultRows)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.Text = result.render()
	return outcome
}

func (e *Engine) Dataset() (query.Dataset, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dataset == nil {
		return query.Dataset{}, false
	}
	return *e.dataset, true
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dataset = nil
	e.reader = ""
	return e.db.Close()
}

type column struct {
	name     string
	typeName string
}

func (e *Engine) describeColumns(ctx context.Context) ([]column, error) {
	rows, err := e.db.QueryContext(ctx, `DESCRIBE `+quoteIdent(query.Relation))
	if err != nil {
		return nil, fmt.Errorf("describe %q: %w", query.Relation, err)
	}
	defer func() { _ = rows.Close() }()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("describe columns: %w", err)
	}
	nameIndex, typeIndex := indexOf(names, "column_name"), indexOf(names, "column_type")
	if nameIndex < 0 || typeIndex < 0 {
		return nil, fmt.Errorf("unexpected DESCRIBE output columns %v", names)
	}

	var columns []column
	for rows.Next() {
		values, err := scanRow(rows, len(names))
		if err != nil {
			return nil, err
		}
		columns = append(columns, column{
			name:     formatValue(values[nameIndex]),
			typeName: formatValue(values[typeIndex]),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate describe rows: %w", err)
	}
	return columns, nil
}

func (e *Engine) queryLocked(ctx context.Context, statement string, limit int) (resultSet, error) {
	rows, err := e.db.QueryContext(ctx, statement)
	if err != nil {
		return resultSet{}, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return resultSet{}, fmt.Errorf("query columns: %w", err)
	}
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return resultSet{}, fmt.Errorf("query column types: %w", err)
	}
	typeNames := make([]string, len(columnTypes))
	for i, columnType := range columnTypes {
		typeNames[i] = columnType.DatabaseTypeName()
	}

	result := resultSet{columns: columns}
	for rows.Next() {
		if limit > 0 && len(result.rows) >= limit {
			result.omitted++
			continue
		}
		values, err := scanRow(rows, len(columns))
		if err != nil {
			return resultSet{}, err
		}
		formatted := make([]string, len(values))
		for i, value := range values {
			formatted[i] = formatCell(typeNames[i], value)
		}
		result.rows = append(result.rows, formatted)
	}
	if err := rows.Err(); err != nil {
		return resultSet{}, err
	}
	return result, nil
}

func scanRow(rows *sql.Rows, width int) ([]any, error) {
	values := make([]any, width)
	scanTargets := make([]any, width)
	for i := range values {
		scanTargets[i] = &values[i]
	}
	if err := rows.Scan(scanTargets...); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}
	return values, nil
}

func readerFor(path string, format query.Format) (string, error) {
	quoted := quoteString(path)
	switch format {
	case query.FormatCSV, "":
		return fmt.Sprintf("read_csv_auto(%s)", quoted), nil
	case query.FormatTSV:
		return fmt.Sprintf("read_csv_auto(%s, delim='\\t')", quoted), nil
	case query.FormatParquet:
		return fmt.Sprintf("read_parquet(%s)", quoted), nil
	case query.FormatJSON:
		return fmt.Sprintf("read_json_auto(%s)", quoted), nil
	default:
		return "", fmt.Errorf("unsupported dataset format %q", format)
	}
}

func indexOf(values []string, want string) int {
	for i, value := range values {
		if value == want {
			return i
		}
	}
	return -1
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteIdentIfNeeded(value string) string {
	for _, r := range value {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return quoteIdent(value)
		}
	}
	if value == "" || (value[0] >= '0' && value[0] <= '9') {
		return quoteIdent(value)
	}
	return value
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
