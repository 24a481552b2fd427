// Package pgxfake provides in-memory pgx.Row and pgx.Rows values for store tests.
package pgxfake

import (
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Row is a single-row result. A non-nil Err is returned from Scan.
type Row struct {
	Values []any
	Err    error
}

// Scan implements pgx.Row.
func (r Row) Scan(dest ...any) error {
	if r.Err != nil {
		return r.Err
	}
	return assign(dest, r.Values)
}

// NoRows returns a row that reports pgx.ErrNoRows.
func NoRows() Row { return Row{Err: pgx.ErrNoRows} }

// Rows is a multi-row result.
type Rows struct {
	Data [][]any
	Fail error
	pos  int
}

// NewRows builds a result set from the given rows.
func NewRows(data ...[]any) *Rows { return &Rows{Data: data} }

func (r *Rows) Close()                                       {}
func (r *Rows) Err() error                                   { return r.Fail }
func (r *Rows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *Rows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *Rows) RawValues() [][]byte                          { return nil }
func (r *Rows) Conn() *pgx.Conn                              { return nil }

// Values implements pgx.Rows.
func (r *Rows) Values() ([]any, error) { return r.Data[r.pos-1], nil }

// Next implements pgx.Rows.
func (r *Rows) Next() bool {
	if r.pos >= len(r.Data) {
		return false
	}
	r.pos++
	return true
}

// Scan implements pgx.Rows.
func (r *Rows) Scan(dest ...any) error { return assign(dest, r.Data[r.pos-1]) }

func assign(dest []any, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: want %d values got %d", len(dest), len(values))
	}
	for i, d := range dest {
		switch target := d.(type) {
		case *int64:
			v, ok := values[i].(int64)
			if !ok {
				return fmt.Errorf("scan column %d: %T is not int64", i, values[i])
			}
			*target = v
		case *string:
			v, ok := values[i].(string)
			if !ok {
				return fmt.Errorf("scan column %d: %T is not string", i, values[i])
			}
			*target = v
		case **string:
			if values[i] == nil {
				*target = nil
				continue
			}
			v, ok := values[i].(string)
			if !ok {
				return fmt.Errorf("scan column %d: %T is not string", i, values[i])
			}
			*target = &v
		default:
			return fmt.Errorf("scan column %d: unsupported destination %T", i, d)
		}
	}
	return nil
}
