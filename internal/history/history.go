package history

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Exchange is one answered question. Exchanges are written for audit only
// and are never consulted when answering.
type Exchange struct {
	ID          uuid.UUID
	Relation    string
	Source      string
	Question    string
	RawQuery    string
	SQL         string
	Succeeded   bool
	ErrorDetail string
	Answer      string
	Model       string
	Duration    time.Duration
	CreatedAt   time.Time
}

type Recorder interface {
	Record(ctx context.Context, exchange Exchange) error
}

// Discard drops every exchange.
type Discard struct{}

func (Discard) Record(context.Context, Exchange) error { return nil }
