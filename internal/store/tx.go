package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/GoldenEggs-Workshop/spend-what-server/internal/services"
)

const (
	maxTxAttempts  = 3
	initialBackoff = 100 * time.Millisecond
)

// RunInTx executes fn inside a transaction, retrying on transient
// write conflicts (serialization failures and deadlocks) with
// exponential backoff. Errors from fn that are not conflicts roll the
// transaction back and return unchanged; an exhausted retry budget
// surfaces as services.ErrConflict. Calling RunInTx on a
// transaction-bound Store joins the open transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(services.Store) error) error {
	if s.db == nil {
		return fn(s)
	}

	backoff := initialBackoff
	var err error
	for attempt := 1; ; attempt++ {
		err = s.runOnce(ctx, fn)
		if err == nil || !isRetryableConflict(err) {
			return err
		}
		if attempt == maxTxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("%w: transaction aborted after %d attempts: %v", services.ErrConflict, maxTxAttempts, err)
}

func (s *Store) runOnce(ctx context.Context, fn func(services.Store) error) error {
	// Repeatable read gives every transaction a single snapshot, so a
	// permission check and the mutation it guards see the same access
	// rows; conflicting concurrent writes abort with 40001 and retry.
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return err
	}
	if err := fn(&Store{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
