package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/csvask/csvask/internal/history"
)

type Recorder struct {
	db  *sql.DB
	now func() time.Time
}

func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db, now: time.Now}
}

func (r *Recorder) Record(ctx context.Context, exchange history.Exchange) error {
	if strings.TrimSpace(exchange.Question) == "" {
		return fmt.Errorf("exchange question is required")
	}
	if exchange.ID == uuid.Nil {
		exchange.ID = uuid.New()
	}
	if exchange.CreatedAt.IsZero() {
		exchange.CreatedAt = r.now().UTC()
	}
	var errorDetail sql.NullString
	if !exchange.Succeeded {
		errorDetail = sql.NullString{String: exchange.ErrorDetail, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO exchange (exchange_id, relation, source, question, raw_query, sql_text, succeeded, error_detail, answer, model, duration_ms, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		exchange.ID.String(),
		exchange.Relation,
		exchange.Source,
		exchange.Question,
		exchange.RawQuery,
		exchange.SQL,
		exchange.Succeeded,
		errorDetail,
		exchange.Answer,
		exchange.Model,
		exchange.Duration.Milliseconds(),
		exchange.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert exchange %s: %w", exchange.ID, err)
	}
	return nil
}

// HealthCheck is used as an API readiness check.
func (r *Recorder) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping history db: %w", err)
	}
	return nil
}
