// Package persistence - реализации репозиториев на PostgreSQL (sqlx + lib/pq).
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/freelance-escrow/internal/domain/repository"
	"github.com/ignatzorin/freelance-escrow/internal/logger"
)

// querier - общее подмножество *sqlx.DB и *sqlx.Tx.
type querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

type txKey struct{}

type txState struct {
	tx     *sqlx.Tx
	hooks  []func()
	closed bool
}

// Transactor хранит транзакцию в ctx; вложенные WithinTx присоединяются к внешней.
type Transactor struct {
	db *sqlx.DB
}

var _ repository.Transactor = (*Transactor)(nil)

func NewTransactor(db *sqlx.DB) *Transactor {
	return &Transactor{db: db}
}

func current(ctx context.Context) (*txState, bool) {
	st, ok := ctx.Value(txKey{}).(*txState)
	if !ok || st.closed {
		return nil, false
	}
	return st, true
}

func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := current(ctx); ok {
		return fn(ctx)
	}

	tx, err := t.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("postgres: не удалось начать транзакцию: %w", err)
	}
	st := &txState{tx: tx}

	defer func() {
		if r := recover(); r != nil {
			st.closed = true
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, st)); err != nil {
		st.closed = true
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger.Component("db").WithError(rbErr).Warn("откат транзакции не удался")
		}
		return err
	}

	st.closed = true
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: не удалось зафиксировать транзакцию: %w", err)
	}
	for _, hook := range st.hooks {
		hook()
	}
	return nil
}

func (t *Transactor) AfterCommit(ctx context.Context, fn func()) {
	if st, ok := current(ctx); ok {
		st.hooks = append(st.hooks, fn)
		return
	}
	fn()
}

// q возвращает открытую транзакцию из ctx или пул соединений.
func (t *Transactor) q(ctx context.Context) querier {
	if st, ok := current(ctx); ok {
		return st.tx
	}
	return t.db
}

// isUniqueViolation распознаёт нарушение уникального индекса.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
