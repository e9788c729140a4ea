package core

import (
	"context"
	"database/sql"
	"strings"
)

type (
	// DBExecutor is satisfied by both *sqlx.DB and *sqlx.Tx.
	DBExecutor interface {
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
		NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
		GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
		SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
		Rebind(query string) string
	}

	// TxRunner runs fn inside a single database transaction.
	// The transaction is committed if fn returns nil and rolled back otherwise.
	TxRunner interface {
		RunInTx(ctx context.Context, reason string, fn func(exec DBExecutor) error) error
	}
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// OrderBy renders orderings restricted to the allowed columns, falling back to def.
func OrderBy(orderings []DBOrdering, allowed map[string]string, def string) string {
	parts := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		if col, ok := allowed[ord.Field]; ok {
			parts = append(parts, DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	if len(parts) == 0 {
		return def
	}
	return strings.Join(parts, ", ")
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

type Pagination struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

// Clean caps the page size and rejects negative offsets.
func (p *Pagination) Clean() {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	} else if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}

// Window applies the pagination to a slice length, returning [start, end).
func (p Pagination) Window(n int) (int, int) {
	p.Clean()
	if p.Offset >= n {
		return n, n
	}
	end := p.Offset + p.Limit
	if end > n {
		end = n
	}
	return p.Offset, end
}
