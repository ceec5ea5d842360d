package store

import (
	"context"
	"database/sql"

	"github.com/GoldenEggs-Workshop/spend-what-server/internal/services"
)

// Queryer is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Repositories run against a Queryer so the same code serves pooled
// reads and transaction-scoped mutations.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store aggregates the Postgres repositories behind one Queryer. The
// zero db field marks a transaction-bound Store handed to RunInTx
// callbacks.
type Store struct {
	db *sql.DB
	q  Queryer
}

func New(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

func (s *Store) Users() services.UserRepository       { return &UserRepository{q: s.q} }
func (s *Store) Sessions() services.SessionRepository { return &SessionRepository{q: s.q} }
func (s *Store) Bills() services.BillRepository       { return &BillRepository{q: s.q} }
func (s *Store) Items() services.ItemRepository       { return &ItemRepository{q: s.q} }
func (s *Store) Shares() services.ShareRepository     { return &ShareRepository{q: s.q} }
