package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// Postgres is the production Ledger backend: an accounts table plus an
// append-only transactions table. Debits run inside a database
// transaction with the account row locked, so the funds check is atomic
// against the persisted balance.
type Postgres struct {
	pool   *sql.DB
	logger *log.Logger
}

// NewPostgres opens a connection pool and runs the idempotent migration.
func NewPostgres(dsn string, logger *log.Logger) (*Postgres, error) {
	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: open: %w", err)
	}
	pool.SetMaxOpenConns(10)
	pool.SetMaxIdleConns(5)
	pool.SetConnMaxLifetime(5 * time.Minute)

	p := &Postgres{pool: pool, logger: logger.WithPrefix("ledger")}
	if err := p.migrate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	return p.pool.Close()
}

func (p *Postgres) migrate() error {
	_, err := p.pool.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			username   VARCHAR(100) PRIMARY KEY,
			balance    BIGINT       NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("ledger: migrate accounts: %w", err)
	}
	_, err = p.pool.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			id             UUID         PRIMARY KEY,
			username       VARCHAR(100) NOT NULL REFERENCES accounts(username),
			balance_change BIGINT       NOT NULL,
			kind           VARCHAR(30)  NOT NULL,
			created_at     TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("ledger: migrate transactions: %w", err)
	}
	_, err = p.pool.Exec(`
		CREATE INDEX IF NOT EXISTS idx_transactions_username
			ON transactions(username, created_at DESC)
	`)
	if err != nil {
		return fmt.Errorf("ledger: migrate index: %w", err)
	}
	p.logger.Info("schema ready")
	return nil
}

// Balance returns the current balance for a user.
func (p *Postgres) Balance(ctx context.Context, username string) (int64, error) {
	var balance int64
	err := p.pool.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE username=$1`, username,
	).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%w: %s", ErrUnknownUser, username)
	}
	return balance, err
}

// Debit atomically checks and subtracts amount from the user's balance,
// recording a transaction in the same database transaction.
func (p *Postgres) Debit(ctx context.Context, username string, amount int64, kind string) error {
	tx, err := p.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger: debit begin: %w", err)
	}
	defer tx.Rollback()

	var balance int64
	err = tx.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE username=$1 FOR UPDATE`, username,
	).Scan(&balance)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s", ErrUnknownUser, username)
	}
	if err != nil {
		return fmt.Errorf("ledger: debit select: %w", err)
	}
	if balance < amount {
		return ErrInsufficientFunds
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance=balance-$1 WHERE username=$2`,
		amount, username,
	); err != nil {
		return fmt.Errorf("ledger: debit update: %w", err)
	}
	if err := p.insertTransaction(ctx, tx, username, -amount, kind); err != nil {
		return err
	}
	return tx.Commit()
}

// Credit adds amount to the user's balance and records a transaction.
func (p *Postgres) Credit(ctx context.Context, username string, amount int64, kind string) error {
	tx, err := p.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger: credit begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance=balance+$1 WHERE username=$2`,
		amount, username,
	)
	if err != nil {
		return fmt.Errorf("ledger: credit update: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownUser, username)
	}
	if err := p.insertTransaction(ctx, tx, username, amount, kind); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateAccount inserts an account if not present. Idempotent.
func (p *Postgres) CreateAccount(ctx context.Context, username string, balance int64) error {
	_, err := p.pool.ExecContext(ctx,
		`INSERT INTO accounts(username, balance) VALUES($1, $2) ON CONFLICT DO NOTHING`,
		username, balance,
	)
	if err != nil {
		return fmt.Errorf("ledger: create account: %w", err)
	}
	return nil
}

func (p *Postgres) insertTransaction(ctx context.Context, tx *sql.Tx, username string, change int64, kind string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transactions(id, username, balance_change, kind) VALUES($1, $2, $3, $4)`,
		uuid.NewString(), username, change, kind,
	)
	if err != nil {
		return fmt.Errorf("ledger: record transaction: %w", err)
	}
	return nil
}
