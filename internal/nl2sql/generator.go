package nl2sql

import (
	"context"
	"fmt"
	"strings"

	"github.com/csvask/csvask/internal/query"
)

// Generator is a language model reduced to a single text completion call.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// QueryGenerator turns a question into candidate SQL for the bound relation.
// The output is the raw model text and may still carry markdown fencing.
type QueryGenerator struct {
	generator Generator
	tableInfo string
}

func NewQueryGenerator(generator Generator, tableInfo string) (*QueryGenerator, error) {
	if generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if strings.TrimSpace(tableInfo) == "" {
		return nil, fmt.Errorf("table info is required")
	}
	return &QueryGenerator{generator: generator, tableInfo: tableInfo}, nil
}

func (g *QueryGenerator) Generate(ctx context.Context, question string) (string, error) {
	return g.generator.Generate(ctx, QueryPrompt(g.tableInfo, question))
}

// AnswerComposer asks the model for the final prose answer.
type AnswerComposer struct {
	generator Generator
}

func NewAnswerComposer(generator Generator) (*AnswerComposer, error) {
	if generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	return &AnswerComposer{generator: generator}, nil
}

func (c *AnswerComposer) Compose(ctx context.Context, question, sqlText string, outcome query.Outcome) (string, error) {
	return c.generator.Generate(ctx, AnswerPrompt(question, sqlText, outcome))
}
