package csvask

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/csvask/csvask/internal/config"
	"github.com/csvask/csvask/internal/history"
	"github.com/csvask/csvask/internal/nl2sql"
	"github.com/csvask/csvask/internal/observability"
	"github.com/csvask/csvask/internal/pipeline"
)

const exitInterrupted = 130

type Options struct {
	// Config supplies flag defaults and everything flags do not cover.
	Config config.Config
	// Generator overrides the OpenAI client built from flags.
	Generator nl2sql.Generator
	Resolver  pipeline.Resolver
	Recorder  history.Recorder
	Logger    *slog.Logger
	Stdin     io.Reader
	Stdout    io.Writer
	Stderr    io.Writer
}

// Run binds one dataset and answers questions read line by line from Stdin
// until "exit", EOF, or ctx is canceled.
func Run(ctx context.Context, args []string, defaults Options) int {
	stdin := defaults.Stdin
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}
	cfg := defaults.Config

	fs := flag.NewFlagSet("csvask", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { writeUsage(fs) }

	model := fs.String("model", firstNonEmpty(cfg.AI.Model, "gpt-4o"), "language model identifier")
	temperature := fs.Float64("temperature", cfg.AI.Temperature, "sampling temperature for both generation calls")
	baseURL := fs.String("base-url", firstNonEmpty(cfg.AI.BaseURL, "https://api.openai.com"), "OpenAI-compatible API base URL")
	timeout := fs.Duration("timeout", durationOr(cfg.AI.Timeout, 60*time.Second), "timeout for each generation call")
	showSQL := fs.Bool("show-sql", false, "print the generated SQL before each answer")
	sampleRows := fs.Int("sample-rows", cfg.Dataset.SchemaSampleRows, "sample rows included in the schema description")
	maxRows := fs.Int("max-rows", cfg.Dataset.MaxResultRows, "maximum result rows shown to the model (0 for all)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	source := cfg.Dataset.Source
	switch fs.NArg() {
	case 0:
	case 1:
		source = strings.TrimSpace(fs.Arg(0))
	default:
		_, _ = fmt.Fprintf(stderr, "expected one dataset path, got %d arguments\n\n", fs.NArg())
		writeUsage(fs)
		return 2
	}
	if source == "" {
		writeUsage(fs)
		return 2
	}
	if *temperature < 0 || *temperature > 2 {
		_, _ = fmt.Fprintf(stderr, "invalid -temperature %v: must be within [0,2]\n", *temperature)
		return 2
	}

	generator := defaults.Generator
	if generator == nil {
		openAI, err := nl2sql.NewOpenAIGenerator(nl2sql.OpenAIConfig{
			BaseURL:     *baseURL,
			APIKey:      cfg.AI.APIKey,
			Model:       *model,
			Temperature: *temperature,
			Timeout:     *timeout,
		})
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: configure language model: %v\n", err)
			return 1
		}
		generator = openAI
	}

	runner, err := pipeline.New(ctx, pipeline.Config{
		Source:           source,
		SchemaSampleRows: *sampleRows,
		MaxResultRows:    *maxRows,
		Model:            *model,
	}, pipeline.Dependencies{
		Generator: generator,
		Resolver:  defaults.Resolver,
		Recorder:  defaults.Recorder,
		Logger:    defaults.Logger,
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer func() {
		if err := runner.Close(); err != nil && defaults.Logger != nil {
			defaults.Logger.Warn("close runner", slog.Any("error", err))
		}
	}()

	writeBanner(stdout, source)
	return loop(ctx, runner, stdin, stdout, *showSQL, defaults.Logger)
}

func loop(ctx context.Context, runner *pipeline.Runner, stdin io.Reader, stdout io.Writer, showSQL bool, logger *slog.Logger) int {
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()
	lines := readLines(readCtx, stdin)
	for {
		_, _ = fmt.Fprint(stdout, "\n> ")

		var line string
		select {
		case <-ctx.Done():
			_, _ = fmt.Fprintln(stdout)
			return exitInterrupted
		case next, ok := <-lines:
			if !ok {
				_, _ = fmt.Fprintln(stdout)
				return 0
			}
			line = next
		}

		question := strings.TrimSpace(line)
		if question == "" {
			continue
		}
		if strings.EqualFold(question, "exit") {
			return 0
		}

		response, err := runner.Ask(ctx, pipeline.Request{Question: question})
		if err != nil {
			if ctx.Err() != nil {
				return exitInterrupted
			}
			logger.Debug("question failed", slog.Any("error", err))
			_, _ = fmt.Fprintf(stdout, "An error occurred: %v\n", err)
			continue
		}
		if showSQL {
			_, _ = fmt.Fprintf(stdout, "SQL: %s\n", response.SQL)
		}
		_, _ = fmt.Fprintf(stdout, "Answer: %s\n", response.Answer)
	}
}

// readLines feeds stdin lines to a channel so the loop can also watch ctx.
func readLines(ctx context.Context, reader io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(reader)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

func writeBanner(w io.Writer, source string) {
	_, _ = fmt.Fprintf(w, "\ncsvask is ready to query '%s'.\n", filepath.Base(source))
	_, _ = fmt.Fprintln(w, "   Try asking: 'What was the total revenue?' or 'Which product sold the most units?'")
	_, _ = fmt.Fprintln(w, "   Type 'exit' or press Ctrl+C to quit.")
}

func writeUsage(fs *flag.FlagSet) {
	w := fs.Output()
	_, _ = fmt.Fprintln(w, "Usage: csvask [flags] <dataset-path>")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Ask natural-language questions about a CSV, TSV, Parquet or JSON file.")
	_, _ = fmt.Fprintln(w, "The path may also be an s3://bucket/key URL.")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Flags:")
	fs.PrintDefaults()
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func durationOr(value, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return value
}
