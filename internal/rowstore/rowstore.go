// Package rowstore reads single rows from the data service.
//
// Two backends implement Querier: PostgREST talks to the hosted REST
// gateway with the caller's access token, Postgres reads through a pgx
// pool. Both report a missing row as an *Error with CodeNoRows and decode
// rows as JSON, so callers do not care which one is configured.
package rowstore

import (
	"context"
	"errors"
	"fmt"
)

// CodeNoRows is the PostgREST code for "singular response requested, zero
// (or more than one) rows returned".
const CodeNoRows = "PGRST116"

// Filter selects rows where Column equals Value.
type Filter struct {
	Column string
	Value  string
}

// Eq builds an equality filter.
func Eq(column, value string) Filter {
	return Filter{Column: column, Value: value}
}

// Querier fetches exactly one row into dest.
type Querier interface {
	QueryOne(ctx context.Context, table string, filter Filter, dest any) error
}

// Error is a data service error with its PostgREST / SQLSTATE code.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rowstore: %s (code %s)", e.Message, e.Code)
}

// Code returns the data service code carried by err, or "".
func Code(err error) string {
	var rowErr *Error
	if errors.As(err, &rowErr) {
		return rowErr.Code
	}
	return ""
}

// IsNoRows reports whether err means the lookup found no row.
func IsNoRows(err error) bool {
	return Code(err) == CodeNoRows
}

// Schema lists the tables and filter columns a backend may query.
type Schema map[string][]string

func (s Schema) check(table, column string) error {
	cols, ok := s[table]
	if !ok {
		return fmt.Errorf("rowstore: table %q is not queryable", table)
	}
	for _, c := range cols {
		if c == column {
			return nil
		}
	}
	return fmt.Errorf("rowstore: column %q of %q is not filterable", column, table)
}

type accessTokenKey struct{}

// WithAccessToken attaches the principal's access token so row-level
// security applies to lookups made with ctx.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenKey{}, token)
}

// AccessToken returns the token attached by WithAccessToken.
func AccessToken(ctx context.Context) string {
	token, _ := ctx.Value(accessTokenKey{}).(string)
	return token
}
