package rowstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// RowQuerier is the subset of *pgxpool.Pool the Postgres backend needs.
type RowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres reads rows directly from the database.
type Postgres struct {
	db     RowQuerier
	schema Schema
}

// NewPostgres creates a backend over db.
func NewPostgres(db RowQuerier, schema Schema) *Postgres {
	return &Postgres{db: db, schema: schema}
}

// QueryOne fetches a single row as JSON. A missing row yields an *Error with CodeNoRows.
func (p *Postgres) QueryOne(ctx context.Context, table string, filter Filter, dest any) error {
	if err := p.schema.check(table, filter.Column); err != nil {
		return err
	}

	var raw []byte
	err := p.db.QueryRow(ctx, selectOneSQL(table, filter.Column), filter.Value).Scan(&raw)
	if err != nil {
		return translatePgError(err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode %s row: %w", table, err)
	}
	return nil
}

func selectOneSQL(table, column string) string {
	return fmt.Sprintf("SELECT to_jsonb(t) FROM %s t WHERE t.%s = $1 LIMIT 1",
		pgx.Identifier{table}.Sanitize(), pgx.Identifier{column}.Sanitize())
}

func translatePgError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return &Error{
			Status:  http.StatusNotAcceptable,
			Code:    CodeNoRows,
			Message: "JSON object requested, multiple (or no) rows returned",
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &Error{
			Status:  http.StatusBadRequest,
			Code:    pgErr.Code,
			Message: pgErr.Message,
			Details: pgErr.Detail,
			Hint:    pgErr.Hint,
		}
	}
	return fmt.Errorf("query row: %w", err)
}

var _ Querier = (*Postgres)(nil)
