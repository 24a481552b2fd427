package review

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is the subset of pgxpool.Pool used by the store.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const insertReview = `INSERT INTO unverifiable_line_reviews
	(id, validation_id, buyer_id, line_index, catalog_token, quantity, declared_unit_price, amount, submitted_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7::numeric, $8::numeric, $9)
ON CONFLICT (validation_id, line_index) DO NOTHING`

// Store persists review requests.
type Store struct {
	db Execer
}

// NewStore constructs a review store.
func NewStore(db Execer) *Store {
	return &Store{db: db}
}

// Save records every line of payload. Redelivered tasks are absorbed by the unique key.
func (s *Store) Save(ctx context.Context, payload Payload) error {
	validationID, err := uuid.Parse(payload.ValidationID)
	if err != nil {
		return fmt.Errorf("validation id: %w", err)
	}
	for _, line := range payload.Lines {
		_, err := s.db.Exec(ctx, insertReview,
			uuid.New(),
			validationID,
			payload.BuyerID,
			line.Line,
			line.CatalogToken,
			line.Quantity,
			line.DeclaredUnitPrice.String(),
			line.Amount.String(),
			payload.SubmittedAt,
		)
		if err != nil {
			return fmt.Errorf("insert review line %d: %w", line.Line, err)
		}
	}
	return nil
}
