package nl2sql

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/csvask/csvask/internal/query"
)

func TestQueryPromptInterpolatesSchemaAndQuestion(t *testing.T) {
	prompt := QueryPrompt("CREATE TABLE data (\n\tproduct VARCHAR\n)", "Which product sold the most units?")
	for _, want := range []string{
		"DuckDB",
		"do not limit your query",
		"table named 'data'",
		"CREATE TABLE data (",
		"Question: Which product sold the most units?",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("QueryPrompt() missing %q:\n%s", want, prompt)
		}
	}
}

func TestAnswerPromptMarksOutcomeStatus(t *testing.T) {
	ok := AnswerPrompt("q", "SELECT 1", query.Outcome{SQL: "SELECT 1", Text: "1"})
	if !strings.Contains(ok, "SQL Status: ok") || !strings.Contains(ok, "SQL Result: 1") {
		t.Fatalf("AnswerPrompt(ok) = %s", ok)
	}

	failed := AnswerPrompt("q", "SELECT x", query.Outcome{SQL: "SELECT x", Err: errors.New("column x not found")})
	if !strings.Contains(failed, "SQL Status: error") {
		t.Fatalf("AnswerPrompt(failed) = %s", failed)
	}
	if !strings.Contains(failed, query.ExecutionErrorPrefix) || !strings.Contains(failed, "column x not found") {
		t.Fatalf("AnswerPrompt(failed) missing error payload: %s", failed)
	}
}

func TestQueryGeneratorPropagatesGenerationErrors(t *testing.T) {
	boom := errors.New("service unavailable")
	generator, err := NewQueryGenerator(GeneratorFunc(func(context.Context, string) (string, error) {
		return "", boom
	}), "CREATE TABLE data ()")
	if err != nil {
		t.Fatalf("NewQueryGenerator() error = %v", err)
	}
	if _, err := generator.Generate(context.Background(), "q"); !errors.Is(err, boom) {
		t.Fatalf("Generate() error = %v, want %v", err, boom)
	}
}

func TestAnswerComposerPassesAllInputs(t *testing.T) {
	var seen string
	composer, err := NewAnswerComposer(GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		seen = prompt
		return "B sold the most.", nil
	}))
	if err != nil {
		t.Fatalf("NewAnswerComposer() error = %v", err)
	}
	answer, err := composer.Compose(context.Background(), "who sold most?", "SELECT product FROM data", query.Outcome{Text: "product\nB"})
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if answer != "B sold the most." {
		t.Fatalf("Compose() = %q", answer)
	}
	for _, want := range []string{"Question: who sold most?", "SQL Query: SELECT product FROM data", "product\nB"} {
		if !strings.Contains(seen, want) {
			t.Fatalf("prompt missing %q:\n%s", want, seen)
		}
	}
}

func TestConstructorsRequireGenerator(t *testing.T) {
	if _, err := NewQueryGenerator(nil, "x"); err == nil {
		t.Fatal("expected error for nil generator")
	}
	if _, err := NewQueryGenerator(GeneratorFunc(nil), " "); err == nil {
		t.Fatal("expected error for empty table info")
	}
	if _, err := NewAnswerComposer(nil); err == nil {
		t.Fatal("expected error for nil generator")
	}
}
