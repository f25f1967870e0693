package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
)

// Statement is one recorded Exec call.
type Statement struct {
	SQL  string
	Args []any
}

// FakeDB records statements instead of running them.
type FakeDB struct {
	Statements []Statement
	Err        error
}

func (f *FakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if f.Err != nil {
		return pgconn.CommandTag{}, f.Err
	}
	f.Statements = append(f.Statements, Statement{SQL: sql, Args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func NewPublisherWithDB(ctx context.Context, db *FakeDB, c Config) (*Publisher, error) {
	p := newPublisher(db, nil, c)
	if err := p.migrate(ctx); err != nil {
		return nil, err
	}
	return p, nil
}
