package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/csvask/csvask/internal/dataset"
	"github.com/csvask/csvask/internal/history"
	"github.com/csvask/csvask/internal/nl2sql"
	"github.com/csvask/csvask/internal/observability"
	"github.com/csvask/csvask/internal/query"
	"github.com/csvask/csvask/internal/query/duckdb"
)

const historyRecordTimeout = 5 * time.Second

type Config struct {
	// Source is a local path or an s3://bucket/key URL.
	Source           string
	SchemaSampleRows int
	MaxResultRows    int
	// Model is recorded with each exchange.
	Model string
}

type Dependencies struct {
	Generator nl2sql.Generator
	// Engine is owned by the runner once New is called. A DuckDB engine is
	// created when nil.
	Engine   query.Engine
	Resolver Resolver
	Recorder history.Recorder
	Logger   *slog.Logger
	Clock    func() time.Time
}

type Resolver interface {
	Resolve(ctx context.Context, source string) (dataset.Local, error)
}

type Request struct {
	Question string
}

type Response struct {
	Question string
	RawQuery string
	SQL      string
	Outcome  query.Outcome
	Answer   string
	Stage    Stage
	Duration time.Duration
}

// Runner answers questions about one bound dataset. Calls are safe for
// concurrent use when the engine is.
type Runner struct {
	cfg      Config
	queries  *nl2sql.QueryGenerator
	composer *nl2sql.AnswerComposer
	engine   query.Engine
	recorder history.Recorder
	logger   *slog.Logger
	clock    func() time.Time
	local    dataset.Local
	dataset  query.Dataset
	schema   string
}

// New resolves and binds cfg.Source and renders its schema. Every failure is
// a *SetupError and leaves nothing open.
func New(ctx context.Context, cfg Config, deps Dependencies) (*Runner, error) {
	setupErr := func(err error) error {
		return &SetupError{Source: cfg.Source, Err: err}
	}

	if deps.Generator == nil {
		return nil, setupErr(fmt.Errorf("generator is required"))
	}
	if strings.TrimSpace(cfg.Source) == "" {
		return nil, setupErr(fmt.Errorf("dataset source is required"))
	}
	if deps.Logger == nil {
		deps.Logger = observability.DiscardLogger()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Resolver == nil {
		deps.Resolver = &dataset.Resolver{}
	}
	if deps.Recorder == nil {
		deps.Recorder = history.Discard{}
	}

	engine := deps.Engine
	if engine == nil {
		created, err := duckdb.NewEngine(ctx, duckdb.Config{
			SchemaSampleRows: cfg.SchemaSampleRows,
			MaxResultRows:    cfg.MaxResultRows,
		})
		if err != nil {
			return nil, setupErr(err)
		}
		engine = created
	}

	local, err := deps.Resolver.Resolve(ctx, cfg.Source)
	if err != nil {
		_ = engine.Close()
		return nil, setupErr(err)
	}
	fail := func(err error) (*Runner, error) {
		_ = engine.Close()
		_ = local.Cleanup()
		return nil, setupErr(err)
	}

	bound, err := engine.Bind(ctx, local.Path, local.Format)
	if err != nil {
		return fail(err)
	}
	bound.Source = local.Source

	schema, err := engine.Describe(ctx)
	if err != nil {
		return fail(fmt.Errorf("describe %s: %w", query.Relation, err))
	}
	queries, err := nl2sql.NewQueryGenerator(deps.Generator, schema)
	if err != nil {
		return fail(err)
	}
	composer, err := nl2sql.NewAnswerComposer(deps.Generator)
	if err != nil {
		return fail(err)
	}

	observability.SetDatasetRows(bound.Rows)
	deps.Logger.InfoContext(ctx, "dataset bound",
		slog.String("source", bound.Source),
		slog.String("relation", bound.Relation),
		slog.String("format", string(bound.Format)),
		slog.Int64("rows", bound.Rows),
	)

	return &Runner{
		cfg:      cfg,
		queries:  queries,
		composer: composer,
		engine:   engine,
		recorder: deps.Recorder,
		logger:   deps.Logger,
		clock:    deps.Clock,
		local:    local,
		dataset:  bound,
		schema:   schema,
	}, nil
}

// Answer returns only the final prose answer for question.
func (r *Runner) Answer(ctx context.Context, question string) (string, error) {
	response, err := r.Ask(ctx, Request{Question: question})
	if err != nil {
		return "", err
	}
	return response.Answer, nil
}

// Ask runs generation, sanitization, execution and composition in order.
// Execution failures do not fail the call; they reach the composer as a
// failed Outcome. Generation failures return *GenerationError.
func (r *Runner) Ask(ctx context.Context, request Request) (Response, error) {
	question := strings.TrimSpace(request.Question)
	if question == "" {
		return Response{}, ErrEmptyQuestion
	}

	started := r.clock()
	response := Response{Question: question, Stage: StageAwaitingQuery}
	finish := func(status string, err error) (Response, error) {
		response.Duration = r.clock().Sub(started)
		observability.IncrementAnswers(status)
		return response, err
	}

	stageStarted := time.Now()
	raw, err := r.queries.Generate(ctx, question)
	observability.ObserveStage("generate_query", time.Since(stageStarted))
	if err != nil {
		return finish(r.generationStatus(ctx), &GenerationError{Stage: StageAwaitingQuery, Err: err})
	}
	response.RawQuery = raw
	response.SQL = nl2sql.ExtractSQL(raw)
	r.advance(ctx, &response, StageQueryReady)

	if err := r.enter(ctx, &response, StageAwaitingExecution); err != nil {
		return finish(observability.AnswerStatusCanceled, err)
	}
	stageStarted = time.Now()
	response.Outcome = r.engine.Execute(ctx, response.SQL)
	observability.ObserveStage("execute", time.Since(stageStarted))
	r.advance(ctx, &response, StageExecutionDone)

	if err := r.enter(ctx, &response, StageAwaitingAnswer); err != nil {
		return finish(observability.AnswerStatusCanceled, err)
	}
	stageStarted = time.Now()
	answer, err := r.composer.Compose(ctx, question, response.SQL, response.Outcome)
	observability.ObserveStage("compose_answer", time.Since(stageStarted))
	if err != nil {
		return finish(r.generationStatus(ctx), &GenerationError{Stage: StageAwaitingAnswer, Err: err})
	}
	response.Answer = answer
	response.Stage = StageDone

	status := observability.AnswerStatusOK
	if response.Outcome.Failed() {
		status = observability.AnswerStatusExecutionError
	}
	response, err = finish(status, nil)

	r.logger.InfoContext(ctx, "question answered",
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.String("status", status),
		slog.String("sql", response.SQL),
		slog.Duration("duration", response.Duration),
	)
	r.record(ctx, response)
	return response, err
}

// Schema is the table description given to the query generator.
func (r *Runner) Schema() string {
	return r.schema
}

func (r *Runner) Dataset() query.Dataset {
	return r.dataset
}

func (r *Runner) Close() error {
	return errors.Join(r.engine.Close(), r.local.Cleanup())
}

func (r *Runner) advance(ctx context.Context, response *Response, next Stage) {
	r.logger.DebugContext(ctx, "pipeline stage",
		slog.String("from", response.Stage.String()),
		slog.String("to", next.String()),
	)
	response.Stage = next
}

// enter advances into a blocking stage unless ctx is already done.
func (r *Runner) enter(ctx context.Context, response *Response, next Stage) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("answer canceled before %s: %w", next, err)
	}
	r.advance(ctx, response, next)
	return nil
}

func (r *Runner) generationStatus(ctx context.Context) string {
	if ctx.Err() != nil {
		return observability.AnswerStatusCanceled
	}
	return observability.AnswerStatusGenerationError
}

func (r *Runner) record(ctx context.Context, response Response) {
	exchange := history.Exchange{
		Relation:  r.dataset.Relation,
		Source:    r.dataset.Source,
		Question:  response.Question,
		RawQuery:  response.RawQuery,
		SQL:       response.SQL,
		Succeeded: !response.Outcome.Failed(),
		Answer:    response.Answer,
		Model:     r.cfg.Model,
		Duration:  response.Duration,
		CreatedAt: r.clock().UTC(),
	}
	if response.Outcome.Err != nil {
		exchange.ErrorDetail = response.Outcome.Err.Error()
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyRecordTimeout)
	defer cancel()
	if err := r.recorder.Record(recordCtx, exchange); err != nil {
		observability.IncrementHistoryRecordFailures()
		r.logger.WarnContext(ctx, "record exchange failed", slog.Any("error", err))
	}
}
