package query

import (
	"context"
	"fmt"
)

// Relation is the only name the pipeline ever queries.
const Relation = "data"

const ExecutionErrorPrefix = "Error: The following query failed to execute:"

type Format string

const (
	FormatCSV     Format = "csv"
	FormatTSV     Format = "tsv"
	FormatParquet Format = "parquet"
	FormatJSON    Format = "json"
)

// Dataset describes the file currently bound as Relation.
type Dataset struct {
	Relation string
	Source   string
	Path     string
	Format   Format
	Rows     int64
}

// Outcome is the result of executing one statement: either rendered rows
// (Text) or the engine error (Err). Both render to text for the answer prompt.
type Outcome struct {
	SQL  string
	Text string
	Err  error
}

func (o Outcome) Failed() bool {
	return o.Err != nil
}

func (o Outcome) String() string {
	if o.Err == nil {
		return o.Text
	}
	return fmt.Sprintf("%s\n%s\n\nError details: %v", ExecutionErrorPrefix, o.SQL, o.Err)
}

// Engine binds one file as Relation and runs statements against it.
type Engine interface {
	Bind(ctx context.Context, path string, format Format) (Dataset, error)
	Describe(ctx context.Context) (string, error)
	Execute(ctx context.Context, sqlText string) Outcome
	Close() error
}
